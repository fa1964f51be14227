// Package learner mines the memory set for generalizable behavioral
// rules: clusters of tag-overlapping pain/win memories yield pattern
// rules, pain/win pairs yield resolution rules. New candidates either
// reinforce an existing learned rule or become a new one, and mature
// rules are surfaced for permanent promotion.
package learner

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vkoven/membrain/internal/lexical"
	"github.com/vkoven/membrain/internal/types"
)

const (
	// DefaultMinClusterSize is the smallest tag cluster worth a rule
	DefaultMinClusterSize = 3

	// DefaultMinSharedTags joins two memories into one cluster
	DefaultMinSharedTags = 2

	// minRuleLen filters out trivial rule fields
	minRuleLen = 10

	confidencePerMember  = 0.15
	clusterConfidenceCap = 0.9
	pairConfidence       = 0.5

	reinforceBump       = 0.1
	reinforceCap        = 0.95
	reinforceMinJaccard = 0.3

	// DefaultNewRuleFloor is the confidence a candidate needs to
	// become a new learned rule
	DefaultNewRuleFloor = 0.4

	promoteConfidence   = 0.8
	promoteObservations = 3
)

// Options tunes one learning pass
type Options struct {
	MinClusterSize int
	MinSharedTags  int
	NewRuleFloor   float64
}

// DefaultOptions returns the standard learner tuning
func DefaultOptions() Options {
	return Options{
		MinClusterSize: DefaultMinClusterSize,
		MinSharedTags:  DefaultMinSharedTags,
		NewRuleFloor:   DefaultNewRuleFloor,
	}
}

// Candidate is one mined rule before integration with the existing
// learned set.
type Candidate struct {
	Kind       types.RuleKind
	Type       types.MemoryType
	Rule       string
	Tags       []string
	Confidence float64
	SourceIDs  []string
}

// Promotion flags a learned rule ready for permanent adoption
type Promotion struct {
	Rule *types.LearnedRule
	Line string
}

// Outcome is the result of one learning pass. Rules is the full
// updated rule set (existing rules possibly reinforced, plus new
// ones); the caller persists it.
type Outcome struct {
	Rules      []*types.LearnedRule
	NewRules   []*types.LearnedRule
	Reinforced []string
	Promotable []Promotion
}

// Learn runs one mining pass over the active memory set against the
// existing learned rules. Inputs are not mutated.
func Learn(memories []*types.Memory, existing []*types.LearnedRule, now time.Time, opts Options) Outcome {
	if opts.MinClusterSize <= 0 {
		opts.MinClusterSize = DefaultMinClusterSize
	}
	if opts.MinSharedTags <= 0 {
		opts.MinSharedTags = DefaultMinSharedTags
	}
	if opts.NewRuleFloor <= 0 {
		opts.NewRuleFloor = DefaultNewRuleFloor
	}

	candidates := clusterCandidates(memories, opts)
	candidates = append(candidates, pairCandidates(memories, opts)...)

	rules := make([]*types.LearnedRule, 0, len(existing))
	for _, r := range existing {
		c := *r
		c.Tags = append([]string(nil), r.Tags...)
		c.SourceIDs = append([]string(nil), r.SourceIDs...)
		rules = append(rules, &c)
	}

	outcome := Outcome{}
	reinforced := make(map[string]bool)

	for _, cand := range candidates {
		if target := matchExisting(cand, rules, opts.MinSharedTags); target != nil {
			target.Confidence += reinforceBump
			if target.Confidence > reinforceCap {
				target.Confidence = reinforceCap
			}
			target.Observations++
			target.SourceIDs = mergeIDs(target.SourceIDs, cand.SourceIDs)
			target.UpdatedAt = now
			if !reinforced[target.ID] {
				reinforced[target.ID] = true
				outcome.Reinforced = append(outcome.Reinforced, target.ID)
			}
			continue
		}
		if cand.Confidence < opts.NewRuleFloor {
			continue
		}
		rule := &types.LearnedRule{
			ID:           "rule-" + uuid.NewString()[:8],
			Kind:         cand.Kind,
			Type:         cand.Type,
			Rule:         cand.Rule,
			Tags:         cand.Tags,
			Confidence:   cand.Confidence,
			Observations: len(cand.SourceIDs),
			SourceIDs:    cand.SourceIDs,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		rules = append(rules, rule)
		outcome.NewRules = append(outcome.NewRules, rule)
	}

	for _, r := range rules {
		if !r.Promoted && r.Confidence >= promoteConfidence && r.Observations >= promoteObservations {
			outcome.Promotable = append(outcome.Promotable, Promotion{
				Rule: r,
				Line: fmt.Sprintf("[%s] %s (confidence %.0f%%, %d observations)",
					strings.Join(r.Tags, ","), r.Rule, r.Confidence*100, r.Observations),
			})
		}
	}

	outcome.Rules = rules
	return outcome
}

// clusterCandidates greedily groups rule-bearing pain/win memories by
// tag overlap, seeded highest-tag-count-first, and extracts the best
// rule from each cluster of useful size.
func clusterCandidates(memories []*types.Memory, opts Options) []Candidate {
	pool := make([]*types.Memory, 0, len(memories))
	for _, m := range memories {
		if m.SupersededBy != "" {
			continue
		}
		if m.Type != types.TypePain && m.Type != types.TypeWin {
			continue
		}
		if len(strings.TrimSpace(m.Rule)) < minRuleLen {
			continue
		}
		pool = append(pool, m)
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if len(pool[i].Tags) != len(pool[j].Tags) {
			return len(pool[i].Tags) > len(pool[j].Tags)
		}
		return pool[i].ID < pool[j].ID
	})

	assigned := make(map[string]bool)
	var candidates []Candidate

	for _, seed := range pool {
		if assigned[seed.ID] {
			continue
		}
		cluster := []*types.Memory{seed}
		seedTags := seed.TagSet()
		for _, m := range pool {
			if m.ID == seed.ID || assigned[m.ID] {
				continue
			}
			if lexical.SharedCount(seedTags, m.TagSet()) >= opts.MinSharedTags {
				cluster = append(cluster, m)
			}
		}
		if len(cluster) < opts.MinClusterSize {
			continue
		}
		for _, m := range cluster {
			assigned[m.ID] = true
		}

		best := bestRule(cluster)
		conf := confidencePerMember * float64(len(cluster))
		if conf > clusterConfidenceCap {
			conf = clusterConfidenceCap
		}
		ids := make([]string, 0, len(cluster))
		for _, m := range cluster {
			ids = append(ids, m.ID)
		}
		candidates = append(candidates, Candidate{
			Kind:       types.RulePattern,
			Type:       best.Type,
			Rule:       best.Rule,
			Tags:       commonTags(cluster),
			Confidence: conf,
			SourceIDs:  ids,
		})
	}
	return candidates
}

// bestRule picks the cluster's strongest rule string: length doubled
// when it carries actionable language.
func bestRule(cluster []*types.Memory) *types.Memory {
	best := cluster[0]
	bestScore := -1
	for _, m := range cluster {
		score := len(m.Rule)
		if lexical.ActionableLanguage(m.Rule) {
			score *= 2
		}
		if score > bestScore {
			bestScore = score
			best = m
		}
	}
	return best
}

// commonTags returns tags present in at least half the cluster,
// sorted for determinism.
func commonTags(cluster []*types.Memory) []string {
	counts := make(map[string]int)
	for _, m := range cluster {
		for _, tag := range m.Tags {
			counts[tag]++
		}
	}
	half := (len(cluster) + 1) / 2
	var tags []string
	for tag, n := range counts {
		if n >= half {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// pairCandidates mines pain/win pairs sharing enough tags as
// contradiction-resolution rules, preferring the win's rule as the
// resolution.
func pairCandidates(memories []*types.Memory, opts Options) []Candidate {
	var pains, wins []*types.Memory
	for _, m := range memories {
		if m.SupersededBy != "" {
			continue
		}
		switch m.Type {
		case types.TypePain:
			pains = append(pains, m)
		case types.TypeWin:
			wins = append(wins, m)
		}
	}

	var candidates []Candidate
	for _, pain := range pains {
		painTags := pain.TagSet()
		for _, win := range wins {
			shared := sharedTags(painTags, win.Tags)
			if len(shared) < opts.MinSharedTags {
				continue
			}
			rule := strings.TrimSpace(win.Rule)
			if len(rule) < minRuleLen {
				rule = strings.TrimSpace(pain.Rule)
			}
			if len(rule) < minRuleLen {
				continue
			}
			candidates = append(candidates, Candidate{
				Kind:       types.RuleResolution,
				Type:       types.TypeWin,
				Rule:       rule,
				Tags:       shared,
				Confidence: pairConfidence,
				SourceIDs:  []string{pain.ID, win.ID},
			})
		}
	}
	return candidates
}

// matchExisting finds a learned rule the candidate reinforces: same
// type, enough shared tags, rule texts overlapping in keyword space.
func matchExisting(cand Candidate, rules []*types.LearnedRule, minSharedTags int) *types.LearnedRule {
	candTags := make(map[string]bool, len(cand.Tags))
	for _, t := range cand.Tags {
		candTags[t] = true
	}
	candKw := lexical.KeywordSet(cand.Rule)

	for _, r := range rules {
		if r.Type != cand.Type {
			continue
		}
		ruleTags := make(map[string]bool, len(r.Tags))
		for _, t := range r.Tags {
			ruleTags[t] = true
		}
		if lexical.SharedCount(candTags, ruleTags) < minSharedTags {
			continue
		}
		if lexical.Jaccard(candKw, lexical.KeywordSet(r.Rule)) > reinforceMinJaccard {
			return r
		}
	}
	return nil
}

func sharedTags(set map[string]bool, tags []string) []string {
	var shared []string
	for _, t := range tags {
		if set[t] {
			shared = append(shared, t)
		}
	}
	sort.Strings(shared)
	return shared
}

func mergeIDs(existing, extra []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}
	for _, id := range extra {
		if !seen[id] {
			seen[id] = true
			existing = append(existing, id)
		}
	}
	return existing
}
