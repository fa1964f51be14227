// Package gate is the write-path guard. Every candidate memory passes
// through Run before it is committed: fingerprinting, duplicate
// detection, quality assessment, conflict detection and resolution.
// Nothing here throws for business conditions; reject and merge are
// result variants.
package gate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/vkoven/membrain/internal/lexical"
	"github.com/vkoven/membrain/internal/linker"
	"github.com/vkoven/membrain/internal/types"
)

const (
	// DefaultDupThreshold flags a candidate whose best weighted
	// similarity against the existing set reaches this value
	DefaultDupThreshold = 0.85

	// DefaultMinQuality rejects candidates the quality assessment
	// scores below this
	DefaultMinQuality = 0.3

	// DefaultMinTagOverlap is the shared-tag floor for conflict
	// detection
	DefaultMinTagOverlap = 2

	// conflictFloor drops conflicts below this confidence
	conflictFloor = 0.25

	// Auto-resolution thresholds for same-type conflicts
	supersedeConfidence = 0.7
	mergeConfidence     = 0.45
)

// Options tunes one gate run
type Options struct {
	MinQuality    float64
	DupThreshold  float64
	MinTagOverlap int
	AutoResolve   bool
}

// DefaultOptions returns the standard gate tuning with auto-resolve
// off (conflicts are attached for the caller to decide).
func DefaultOptions() Options {
	return Options{
		MinQuality:    DefaultMinQuality,
		DupThreshold:  DefaultDupThreshold,
		MinTagOverlap: DefaultMinTagOverlap,
	}
}

// Fingerprint is the deterministic duplicate-detection hash over
// normalized title+content keywords.
func Fingerprint(title, content string) string {
	return lexical.Fingerprint(title, content)
}

// DuplicateCheck is the outcome of duplicate detection
type DuplicateCheck struct {
	Duplicate  bool
	OfID       string
	Similarity float64
}

// IsDuplicate checks a candidate against every non-superseded
// existing memory. An exact fingerprint match short-circuits to a
// duplicate; otherwise the best weighted similarity (title 0.5,
// content keywords 0.3, tags 0.2) is compared to the threshold.
func IsDuplicate(candidate *types.Memory, existing []*types.Memory, threshold float64) DuplicateCheck {
	if threshold <= 0 {
		threshold = DefaultDupThreshold
	}
	fp := candidate.Fingerprint
	if fp == "" {
		fp = Fingerprint(candidate.Title, candidate.Content)
	}

	best := DuplicateCheck{}
	candTitle := lexical.KeywordSet(candidate.Title)
	candContent := lexical.KeywordSet(candidate.Content)
	candTags := candidate.TagSet()

	for _, m := range existing {
		if m.SupersededBy != "" || m.ID == candidate.ID {
			continue
		}
		if m.Fingerprint != "" && m.Fingerprint == fp {
			return DuplicateCheck{Duplicate: true, OfID: m.ID, Similarity: 1.0}
		}
		sim := 0.5*lexical.Jaccard(candTitle, lexical.KeywordSet(m.Title)) +
			0.3*lexical.Jaccard(candContent, lexical.KeywordSet(m.Content)) +
			0.2*lexical.Jaccard(candTags, m.TagSet())
		if sim > best.Similarity {
			best.Similarity = sim
			best.OfID = m.ID
		}
	}
	best.Duplicate = best.Similarity >= threshold
	return best
}

// concreteIdentifier matches filenames, versions, CamelCase names and
// similar markers that make a memory specific rather than vague.
var concreteIdentifier = regexp.MustCompile(`\b\w+\.\w{1,4}\b|\bv?\d+\.\d+(\.\d+)?\b|\b[a-z]+[A-Z]\w*\b|[\w-]+/[\w-]+`)

// AssessQuality scores a candidate in [0,1] from three additive
// buckets: specificity (0.35), actionability (0.35) and completeness
// (0.30).
func AssessQuality(m *types.Memory) float64 {
	var specificity, actionability, completeness float64

	titleKw := len(lexical.Keywords(m.Title))
	switch {
	case titleKw >= 5:
		specificity += 0.2
	case titleKw >= 3:
		specificity += 0.15
	case titleKw >= 1:
		specificity += 0.05
	}
	if concreteIdentifier.MatchString(m.Title + " " + m.Content) {
		specificity += 0.15
	}
	if specificity > 0.35 {
		specificity = 0.35
	}

	rule := strings.TrimSpace(m.Rule)
	switch {
	case len(rule) >= 40:
		actionability += 0.2
	case len(rule) >= 10:
		actionability += 0.15
	}
	if lexical.ActionableLanguage(rule) {
		actionability += 0.15
	}
	if actionability > 0.35 {
		actionability = 0.35
	}

	contentKw := len(lexical.Keywords(m.Content))
	switch {
	case contentKw >= 20:
		completeness += 0.15
	case contentKw >= 8:
		completeness += 0.1
	case contentKw >= 3:
		completeness += 0.05
	}
	switch {
	case len(m.Tags) >= 3:
		completeness += 0.1
	case len(m.Tags) >= 1:
		completeness += 0.05
	}
	severityMatters := m.Type == types.TypePain || m.Type == types.TypeDecision || m.Type == types.TypeArchitecture
	if severityMatters && m.Severity != "" {
		completeness += 0.05
	}
	if completeness > 0.30 {
		completeness = 0.30
	}

	total := specificity + actionability + completeness
	if total > 1.0 {
		total = 1.0
	}
	return total
}

// ConflictKind classifies a detected conflict
type ConflictKind string

const (
	// ConflictUpdate marks a likely update or correction of the
	// existing memory
	ConflictUpdate ConflictKind = "update_correction"
	// ConflictComplementary marks a pain/win pair on the same topic;
	// these coexist and need no resolution
	ConflictComplementary ConflictKind = "complementary"
	// ConflictContradiction marks explicitly opposing guidance
	ConflictContradiction ConflictKind = "contradiction"
)

// Conflict is one detected tension between the candidate and an
// existing memory.
type Conflict struct {
	With       *types.Memory
	Kind       ConflictKind
	Confidence float64
	Reason     string
}

// DetectConflicts finds existing memories the candidate is in tension
// with. Requires shared-tag overlap; returns conflicts above the
// confidence floor sorted by confidence descending.
func DetectConflicts(candidate *types.Memory, existing []*types.Memory, minTagOverlap int) []Conflict {
	if minTagOverlap <= 0 {
		minTagOverlap = DefaultMinTagOverlap
	}
	candTags := candidate.TagSet()
	candKw := lexical.KeywordSet(candidate.Title + " " + candidate.Content)

	var conflicts []Conflict
	for _, m := range existing {
		if m.SupersededBy != "" || m.ID == candidate.ID {
			continue
		}
		shared := lexical.SharedCount(candTags, m.TagSet())
		if shared < minTagOverlap {
			continue
		}

		best := Conflict{With: m}

		if candidate.Rule != "" && m.Rule != "" && linker.AntonymConflict(candidate.Rule, m.Rule) {
			best.Kind = ConflictContradiction
			best.Confidence = 0.8
			best.Reason = fmt.Sprintf("rules give opposing guidance on %d shared tags", shared)
		} else if candidate.Type == m.Type {
			kwOverlap := lexical.Jaccard(candKw, lexical.KeywordSet(m.Title+" "+m.Content))
			if kwOverlap >= 0.4 {
				conf := 0.5 + 0.1*float64(shared)
				if conf > 0.9 {
					conf = 0.9
				}
				best.Kind = ConflictUpdate
				best.Confidence = conf
				best.Reason = fmt.Sprintf("same type, keyword overlap %.2f: likely update or correction", kwOverlap)
			}
		} else if painWinPair(candidate, m) {
			best.Kind = ConflictComplementary
			best.Confidence = 0.4
			best.Reason = fmt.Sprintf("pain/win pair on %d shared tags: complementary, not opposing", shared)
		}

		if best.Kind != "" && best.Confidence >= conflictFloor {
			conflicts = append(conflicts, best)
		}
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].Confidence > conflicts[j].Confidence
	})
	return conflicts
}

// Strategy selects how a conflict is resolved
type Strategy string

const (
	StrategyKeepNew Strategy = "keep_new"
	StrategyKeepOld Strategy = "keep_old"
	StrategyMerge   Strategy = "merge"
)

// Resolution is the outcome of resolving one conflict
type Resolution struct {
	Strategy Strategy
	// Memory is the record to commit: the candidate for keep_new,
	// nil for keep_old, the synthesized record for merge.
	Memory *types.Memory
	// SupersededID is the existing memory the caller must mark as
	// superseded by the committed record, when set.
	SupersededID string
}

// ResolveConflict applies a strategy to a candidate/existing pair.
// keep_new supersedes the existing record, keep_old rejects the
// candidate, merge synthesizes a combined record that supersedes the
// old one.
func ResolveConflict(candidate, existing *types.Memory, strategy Strategy) Resolution {
	switch strategy {
	case StrategyKeepNew:
		return Resolution{Strategy: strategy, Memory: candidate, SupersededID: existing.ID}
	case StrategyKeepOld:
		return Resolution{Strategy: strategy}
	case StrategyMerge:
		return Resolution{Strategy: strategy, Memory: mergeMemories(candidate, existing), SupersededID: existing.ID}
	}
	return Resolution{Strategy: strategy, Memory: candidate}
}

// mergeMemories synthesizes a combined record: longer title wins,
// contents concatenate with an update marker when both differ, the
// longer rule wins with the shorter appended parenthetically.
func mergeMemories(candidate, existing *types.Memory) *types.Memory {
	merged := candidate.Clone()

	if len(existing.Title) > len(candidate.Title) {
		merged.Title = existing.Title
	}

	if existing.Content != candidate.Content && existing.Content != "" {
		merged.Content = existing.Content + "\n\n[Updated] " + candidate.Content
	}

	longer, shorter := candidate.Rule, existing.Rule
	if len(shorter) > len(longer) {
		longer, shorter = shorter, longer
	}
	merged.Rule = longer
	if shorter != "" && shorter != longer {
		merged.Rule = longer + " (" + shorter + ")"
	}

	// Union of tags, candidate order first
	seen := merged.TagSet()
	for _, tag := range existing.Tags {
		if !seen[tag] {
			merged.Tags = append(merged.Tags, tag)
		}
	}

	merged.Fingerprint = Fingerprint(merged.Title, merged.Content)
	return merged
}

// Action is the gate's verdict for a candidate
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
	ActionMerge  Action = "merge"
)

// Outcome is the result of one gate run
type Outcome struct {
	Action Action
	// Memory is the record to commit for accept/merge, stamped with
	// fingerprint and quality score. Nil on reject.
	Memory *types.Memory
	Reason string
	// Conflicts unresolved by the gate, attached for the caller
	Conflicts []Conflict
	// Superseded lists existing ids the caller must mark as
	// superseded by the committed record
	Superseded []string
}

// Run applies the full gate pipeline: fingerprint, quality floor,
// duplicate rejection, conflict detection and, when AutoResolve is
// set, conflict resolution.
func Run(candidate *types.Memory, existing []*types.Memory, now time.Time, opts Options) Outcome {
	out := candidate.Clone()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	if out.SynapticStrength == 0 {
		out.SynapticStrength = 1.0
	}
	out.Fingerprint = Fingerprint(out.Title, out.Content)
	out.QualityScore = AssessQuality(out)

	if out.QualityScore < opts.MinQuality {
		return Outcome{
			Action: ActionReject,
			Reason: fmt.Sprintf("quality %.2f below minimum %.2f", out.QualityScore, opts.MinQuality),
		}
	}

	if dup := IsDuplicate(out, existing, opts.DupThreshold); dup.Duplicate {
		return Outcome{
			Action: ActionReject,
			Reason: fmt.Sprintf("Duplicate of %s (similarity %.2f)", dup.OfID, dup.Similarity),
		}
	}

	conflicts := DetectConflicts(out, existing, opts.MinTagOverlap)
	if len(conflicts) == 0 || !opts.AutoResolve {
		return Outcome{Action: ActionAccept, Memory: out, Conflicts: conflicts, Reason: "accepted"}
	}

	// Complementary pain/win pairs always coexist
	allComplementary := true
	for _, c := range conflicts {
		if c.Kind != ConflictComplementary {
			allComplementary = false
			break
		}
	}
	if allComplementary {
		return Outcome{Action: ActionAccept, Memory: out, Conflicts: conflicts, Reason: "accepted: complementary records coexist"}
	}

	// Only a same-type conflict can retire or absorb the existing
	// record; cross-type tension (a win contradicting a pain) leaves
	// both records standing.
	top := conflicts[0]
	switch {
	case top.Kind != ConflictComplementary && top.Confidence >= supersedeConfidence && out.Type == top.With.Type:
		res := ResolveConflict(out, top.With, StrategyKeepNew)
		return Outcome{
			Action:     ActionAccept,
			Memory:     res.Memory,
			Superseded: []string{res.SupersededID},
			Conflicts:  conflicts,
			Reason:     fmt.Sprintf("accepted, supersedes %s: %s", top.With.ID, top.Reason),
		}
	case top.Kind == ConflictUpdate && top.Confidence >= mergeConfidence:
		res := ResolveConflict(out, top.With, StrategyMerge)
		return Outcome{
			Action:     ActionMerge,
			Memory:     res.Memory,
			Superseded: []string{res.SupersededID},
			Conflicts:  conflicts,
			Reason:     fmt.Sprintf("merged with %s: %s", top.With.ID, top.Reason),
		}
	}
	return Outcome{Action: ActionAccept, Memory: out, Conflicts: conflicts, Reason: "accepted with unresolved conflicts"}
}

func painWinPair(a, b *types.Memory) bool {
	return (a.Type == types.TypePain && b.Type == types.TypeWin) ||
		(a.Type == types.TypeWin && b.Type == types.TypePain)
}
