// Package engine implements the retrieval pipeline: tokenize,
// attention filter, viability gate, tag pattern matching, associative
// chaining, severity and synaptic weighting, link propagation,
// selection, dopamine pairing and hot-tag detection. Retrieve is
// stateless: the session BrainState goes in as a value and comes back
// updated for the caller to persist.
package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/vkoven/membrain/internal/lexical"
	"github.com/vkoven/membrain/internal/scoring"
	"github.com/vkoven/membrain/internal/types"
)

// Config tunes one Retrieve call
type Config struct {
	MinPromptLen    int
	ViabilityFloor  float64
	MaxPain         int
	MaxWins         int
	MidAt           int // message count where the session turns mid
	LateAt          int // message count where the session turns late
	AssocSeeds      int // direct matches used as chaining seeds
	HotTagThreshold int
	Scoring         scoring.Options

	// Merged over the built-in tables, never replacing them
	ExtraCortex    map[string][]string
	ExtraAttention []AttentionRule
}

// DefaultConfig returns the standard tuning
func DefaultConfig() Config {
	return Config{
		MinPromptLen:    12,
		ViabilityFloor:  0.15,
		MaxPain:         3,
		MaxWins:         2,
		MidAt:           10,
		LateAt:          30,
		AssocSeeds:      6,
		HotTagThreshold: 3,
		Scoring:         scoring.DefaultOptions(),
	}
}

// Provenance records how a memory earned its place in the result
type Provenance string

const (
	ProvenanceDirect      Provenance = "direct"
	ProvenanceAssociative Provenance = "associative"
	ProvenanceDopamine    Provenance = "dopamine"
)

// ScoredMemory is one ranked result entry
type ScoredMemory struct {
	Memory     *types.Memory
	Score      float64
	Provenance Provenance
}

// AttentionWarning is the attention filter's independent output
type AttentionWarning struct {
	Keyword string
	Warning string
}

// Result is the full output of one retrieval
type Result struct {
	PainMemories []ScoredMemory
	WinMemories  []ScoredMemory
	MatchedTags  []string
	Attention    *AttentionWarning
	Phase        types.ContextPhase
	HotTags      []string
	Injection    string
	State        *types.BrainState
}

// Empty reports whether the retrieval surfaced nothing at all
func (r *Result) Empty() bool {
	return len(r.PainMemories) == 0 && len(r.WinMemories) == 0 && r.Attention == nil
}

// Retrieve runs the full pipeline over an immutable memory snapshot.
// The input slice and state are never mutated.
func Retrieve(prompt string, memories []*types.Memory, state *types.BrainState, now time.Time, cfg Config) *Result {
	phase := state.Phase(cfg.MidAt, cfg.LateAt)
	next := state.Clone()
	next.MessageCount++

	result := &Result{Phase: phase, State: next}

	if len(strings.TrimSpace(prompt)) < cfg.MinPromptLen {
		return result
	}

	tokens := lexical.Tokenize(prompt)
	result.Attention = attentionScan(prompt, cfg.ExtraAttention)

	// Viability gate: superseded memories score 0 and fall out here,
	// so nothing downstream can resurface them. The quality-derived
	// score is applied exactly once, as this binary gate.
	viable := make([]*types.Memory, 0, len(memories))
	for _, m := range memories {
		if m.SupersededBy != "" {
			continue
		}
		if scoring.ScoreMemory(m, now, cfg.Scoring) >= cfg.ViabilityFloor {
			viable = append(viable, m)
		}
	}

	lessonsByTag := make(map[string][]*types.Memory)
	winsByTag := make(map[string][]*types.Memory)
	var wins []*types.Memory
	for _, m := range viable {
		byTag := lessonsByTag
		if m.Type == types.TypeWin {
			byTag = winsByTag
			wins = append(wins, m)
		}
		for _, tag := range m.Tags {
			byTag[tag] = append(byTag[tag], m)
		}
	}

	// Pattern recognition: cortex token -> tags -> indexed memories
	matchedTags := make(map[string]bool)
	scores := make(map[string]float64)
	prov := make(map[string]Provenance)
	for token := range tokens {
		for _, tag := range cortexTags(token, cfg.ExtraCortex) {
			if len(lessonsByTag[tag]) == 0 && len(winsByTag[tag]) == 0 {
				continue
			}
			matchedTags[tag] = true
			for _, m := range lessonsByTag[tag] {
				scores[m.ID] += 1.0
				prov[m.ID] = ProvenanceDirect
			}
		}
	}

	// Fuzzy fallback when no lesson scored directly: substring-match
	// longer prompt words against title, rule and content. A cortex
	// tag that matched only wins still leaves lessons to this pass.
	if len(scores) == 0 {
		fuzzyMatch(tokens, viable, scores, prov)
	}

	if len(scores) == 0 && len(matchedTags) == 0 {
		if result.Attention == nil {
			return result
		}
		result.Injection = formatInjection(result)
		return result
	}

	// Associative chaining: neighbor tags of the top direct matches
	// pull in thematically adjacent memories at half weight.
	chainAssociative(scores, prov, matchedTags, lessonsByTag, cfg.AssocSeeds)

	// Weighting: severity multiplier and synaptic strength, with the
	// session-local trace strength overriding the stored field.
	index := types.ByID(viable)
	for id := range scores {
		m := index[id]
		scores[id] *= severityMultiplier(m) * effectiveStrength(m, state)
	}

	// Link propagation: one hop along non-negative relationships,
	// keeping the best score per target.
	propagateLinks(scores, prov, index)

	// Rank and select, shrinking volume as the session ages
	maxPain, maxWins := cfg.MaxPain, cfg.MaxWins
	if phase == types.PhaseLate {
		if maxPain > 1 {
			maxPain--
		}
		if maxWins > 1 {
			maxWins--
		}
	}
	result.PainMemories = topScored(scores, prov, index, maxPain)

	// Dopamine pairing: wins ranked by shared matched tags, plus any
	// win resolving a selected pain memory.
	result.WinMemories = pairWins(wins, matchedTags, result.PainMemories, index, maxWins)

	// Hot tags: a tag firing repeatedly across the session signals a
	// recurring unresolved pattern.
	for tag := range matchedTags {
		result.MatchedTags = append(result.MatchedTags, tag)
		if next.FiringFrequency == nil {
			next.FiringFrequency = make(map[string]int)
		}
		next.FiringFrequency[tag]++
		if next.FiringFrequency[tag] >= cfg.HotTagThreshold {
			result.HotTags = append(result.HotTags, tag)
		}
		if next.SynapticActivity == nil {
			next.SynapticActivity = make(map[string]types.TagActivity)
		}
		act := next.SynapticActivity[tag]
		act.Count++
		act.LastHit = now
		next.SynapticActivity[tag] = act
	}
	sort.Strings(result.MatchedTags)
	sort.Strings(result.HotTags)

	// Session-local access traces for every surfaced memory; the
	// caller persists the durable access bookkeeping.
	for _, sm := range append(append([]ScoredMemory{}, result.PainMemories...), result.WinMemories...) {
		if next.MemoryTraces == nil {
			next.MemoryTraces = make(map[string]types.MemoryTrace)
		}
		tr, ok := next.MemoryTraces[sm.Memory.ID]
		if !ok {
			tr.SynapticStrength = sm.Memory.SynapticStrength
		}
		tr.Count++
		tr.LastAccessed = now
		next.MemoryTraces[sm.Memory.ID] = tr
	}

	result.Injection = formatInjection(result)
	return result
}

// attentionScan checks the raw prompt against the ordered rule table.
// First match wins; extra rules from config run after the built-ins.
func attentionScan(prompt string, extra []AttentionRule) *AttentionWarning {
	lower := strings.ToLower(prompt)
	for _, rules := range [][]AttentionRule{attentionRules, extra} {
		for _, r := range rules {
			if strings.Contains(lower, r.Keyword) {
				return &AttentionWarning{Keyword: r.Keyword, Warning: r.Warning}
			}
		}
	}
	return nil
}

func cortexTags(token string, extra map[string][]string) []string {
	tags := cortex[token]
	if extraTags, ok := extra[token]; ok {
		tags = append(append([]string(nil), tags...), extraTags...)
	}
	return tags
}

// fuzzyMatch scores prompt words longer than 3 runes against memory
// text: title hits 1.0, rule hits 0.8, content hits 0.5.
func fuzzyMatch(tokens map[string]bool, viable []*types.Memory, scores map[string]float64, prov map[string]Provenance) {
	for _, m := range viable {
		if m.Type == types.TypeWin {
			continue
		}
		title := strings.ToLower(m.Title)
		rule := strings.ToLower(m.Rule)
		content := strings.ToLower(m.Content)
		for token := range tokens {
			if len(token) <= 3 {
				continue
			}
			switch {
			case strings.Contains(title, token):
				scores[m.ID] += 1.0
			case rule != "" && strings.Contains(rule, token):
				scores[m.ID] += 0.8
			case strings.Contains(content, token):
				scores[m.ID] += 0.5
			default:
				continue
			}
			prov[m.ID] = ProvenanceDirect
		}
	}
}

// chainAssociative takes the top directly-matched memories and adds
// +0.5 to every memory under their not-yet-matched tags.
func chainAssociative(scores map[string]float64, prov map[string]Provenance, matchedTags map[string]bool, lessonsByTag map[string][]*types.Memory, seeds int) {
	type seed struct {
		id    string
		score float64
	}
	direct := make([]seed, 0, len(scores))
	for id, s := range scores {
		direct = append(direct, seed{id, s})
	}
	sort.Slice(direct, func(i, j int) bool { return direct[i].score > direct[j].score })
	if len(direct) > seeds {
		direct = direct[:seeds]
	}

	directSet := make(map[string]bool, len(scores))
	for id := range scores {
		directSet[id] = true
	}

	neighborTags := make(map[string]bool)
	for _, s := range direct {
		for tag, members := range lessonsByTag {
			if matchedTags[tag] {
				continue
			}
			for _, m := range members {
				if m.ID == s.id {
					neighborTags[tag] = true
					break
				}
			}
		}
	}

	for tag := range neighborTags {
		for _, m := range lessonsByTag[tag] {
			if directSet[m.ID] {
				continue
			}
			scores[m.ID] += 0.5
			if _, ok := prov[m.ID]; !ok {
				prov[m.ID] = ProvenanceAssociative
			}
		}
	}
}

// propagateLinks spreads each candidate's score one hop along its
// resolves/extends/related links. Contradicts and supersedes never
// propagate positively. The target keeps the best score any path
// gives it.
func propagateLinks(scores map[string]float64, prov map[string]Provenance, index map[string]*types.Memory) {
	type propagation struct {
		id    string
		score float64
	}
	var updates []propagation
	for id, base := range scores {
		m := index[id]
		if m == nil {
			continue
		}
		for _, l := range m.Links {
			w := 0.0
			switch l.Relationship {
			case types.LinkResolves, types.LinkExtends, types.LinkRelated:
				w = types.LinkWeight(l.Relationship)
			default:
				continue
			}
			target := index[l.TargetID]
			if target == nil || target.Type == types.TypeWin {
				continue
			}
			updates = append(updates, propagation{id: l.TargetID, score: base * w})
		}
	}
	for _, u := range updates {
		if u.score > scores[u.id] {
			scores[u.id] = u.score
			if _, ok := prov[u.id]; !ok {
				prov[u.id] = ProvenanceAssociative
			}
		}
	}
}

func topScored(scores map[string]float64, prov map[string]Provenance, index map[string]*types.Memory, limit int) []ScoredMemory {
	ranked := make([]ScoredMemory, 0, len(scores))
	for id, s := range scores {
		m := index[id]
		if m == nil || m.Type == types.TypeWin {
			continue
		}
		p := prov[id]
		if p == "" {
			p = ProvenanceDirect
		}
		ranked = append(ranked, ScoredMemory{Memory: m, Score: s, Provenance: p})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// pairWins ranks win memories by how many matched tags they share,
// then force-includes any win resolving a selected pain memory.
func pairWins(wins []*types.Memory, matchedTags map[string]bool, pains []ScoredMemory, index map[string]*types.Memory, limit int) []ScoredMemory {
	if limit <= 0 {
		return nil
	}

	type winScore struct {
		m       *types.Memory
		overlap int
	}
	var ranked []winScore
	for _, w := range wins {
		overlap := 0
		for _, tag := range w.Tags {
			if matchedTags[tag] {
				overlap++
			}
		}
		if overlap > 0 {
			ranked = append(ranked, winScore{m: w, overlap: overlap})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].overlap > ranked[j].overlap })

	selected := make([]ScoredMemory, 0, limit)
	seen := make(map[string]bool)
	for _, ws := range ranked {
		if len(selected) >= limit {
			break
		}
		selected = append(selected, ScoredMemory{Memory: ws.m, Score: float64(ws.overlap), Provenance: ProvenanceDirect})
		seen[ws.m.ID] = true
	}

	// Resolution edges between a selected pain and an unselected win
	// override the tag ranking, still capped at the win limit.
	for _, pain := range pains {
		if len(selected) >= limit {
			break
		}
		for _, l := range pain.Memory.Links {
			if l.Relationship != types.LinkResolves {
				continue
			}
			if w := index[l.TargetID]; w != nil && w.Type == types.TypeWin && !seen[w.ID] {
				selected = append(selected, ScoredMemory{Memory: w, Score: types.LinkWeight(types.LinkResolves), Provenance: ProvenanceDopamine})
				seen[w.ID] = true
			}
		}
		for _, w := range wins {
			if seen[w.ID] || len(selected) >= limit {
				continue
			}
			if w.HasLink(pain.Memory.ID, types.LinkResolves) {
				selected = append(selected, ScoredMemory{Memory: w, Score: types.LinkWeight(types.LinkResolves), Provenance: ProvenanceDopamine})
				seen[w.ID] = true
			}
		}
	}
	if len(selected) > limit {
		selected = selected[:limit]
	}
	return selected
}

func severityMultiplier(m *types.Memory) float64 {
	switch m.Severity {
	case types.SeverityHigh:
		return 2.0
	case types.SeverityMedium:
		return 1.5
	case types.SeverityLow:
		return 1.0
	}
	// No explicit severity: infer from the memory's own text
	text := strings.ToLower(m.Title + " " + m.Content + " " + m.Rule)
	for _, kw := range highSeverityKeywords {
		if strings.Contains(text, kw) {
			return 2.0
		}
	}
	for _, kw := range mediumSeverityKeywords {
		if strings.Contains(text, kw) {
			return 1.5
		}
	}
	return 1.0
}

func effectiveStrength(m *types.Memory, state *types.BrainState) float64 {
	if state != nil {
		if tr, ok := state.MemoryTraces[m.ID]; ok && tr.SynapticStrength > 0 {
			return tr.SynapticStrength
		}
	}
	return m.SynapticStrength
}
