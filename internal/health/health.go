// Package health aggregates engine statistics into a single graded
// report with actionable recommendations. Pure aggregation: no I/O,
// no mutation.
package health

import (
	"fmt"
	"time"

	"github.com/vkoven/membrain/internal/scoring"
	"github.com/vkoven/membrain/internal/types"
)

// largeCorpus is the size at which coverage penalties start to apply;
// a tiny memory base is not penalized for missing metadata.
const largeCorpus = 20

// Input is everything the reporter aggregates over
type Input struct {
	Memories []*types.Memory
	Rules    []*types.LearnedRule
	// State is the current session state; nil counts as missing and
	// costs points.
	State *types.BrainState
	// FailureCounts is the caller's per-memory failure bookkeeping
	// used for harmful classification; may be nil.
	FailureCounts map[string]int
	Now           time.Time
	Scoring       scoring.Options
}

// RuleStats summarizes the learned rule set
type RuleStats struct {
	Total         int     `json:"total"`
	Promoted      int     `json:"promoted"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Report is the graded health summary
type Report struct {
	Score               int                        `json:"score"`
	Grade               string                     `json:"grade"`
	TotalMemories       int                        `json:"total_memories"`
	ByType              map[types.MemoryType]int   `json:"by_type"`
	ByHealth            map[scoring.Health]int     `json:"by_health"`
	AvgQuality          float64                    `json:"avg_quality"`
	AvgAgeDays          float64                    `json:"avg_age_days"`
	LinkCoverage        float64                    `json:"link_coverage"`
	FingerprintCoverage float64                    `json:"fingerprint_coverage"`
	QualityCoverage     float64                    `json:"quality_coverage"`
	ActiveTags          int                        `json:"active_tags"`
	Rules               RuleStats                  `json:"rules"`
	Issues              []string                   `json:"issues,omitempty"`
	Recommendations     []string                   `json:"recommendations,omitempty"`
}

// Build computes the full report
func Build(in Input) *Report {
	r := &Report{
		TotalMemories: len(in.Memories),
		ByType:        make(map[types.MemoryType]int),
		ByHealth:      make(map[scoring.Health]int),
	}

	var qualitySum, ageSum float64
	var withLinks, withFingerprint, withQuality int
	for _, m := range in.Memories {
		r.ByType[m.Type]++
		score := scoring.ScoreMemory(m, in.Now, in.Scoring)
		bucket := scoring.ClassifyHealth(m, score, in.FailureCounts[m.ID], in.Now, in.Scoring)
		r.ByHealth[bucket]++

		qualitySum += m.QualityScore
		ageSum += in.Now.Sub(m.CreatedAt).Hours() / 24
		if len(m.Links) > 0 {
			withLinks++
		}
		if m.Fingerprint != "" {
			withFingerprint++
		}
		if m.QualityScore > 0 {
			withQuality++
		}
	}
	if n := float64(len(in.Memories)); n > 0 {
		r.AvgQuality = qualitySum / n
		r.AvgAgeDays = ageSum / n
		r.LinkCoverage = float64(withLinks) / n
		r.FingerprintCoverage = float64(withFingerprint) / n
		r.QualityCoverage = float64(withQuality) / n
	}

	var confSum float64
	for _, rule := range in.Rules {
		r.Rules.Total++
		if rule.Promoted {
			r.Rules.Promoted++
		}
		confSum += rule.Confidence
	}
	if r.Rules.Total > 0 {
		r.Rules.AvgConfidence = confSum / float64(r.Rules.Total)
	}
	if in.State != nil {
		r.ActiveTags = len(in.State.SynapticActivity)
	}

	r.Score, r.Grade = grade(r, in)
	return r
}

// grade starts from 100 and deducts fixed penalties per finding
func grade(r *Report, in Input) (int, string) {
	score := 100

	if r.TotalMemories == 0 {
		score -= 40
		r.Issues = append(r.Issues, "no memories recorded")
		r.Recommendations = append(r.Recommendations, "Record lessons as they happen; an empty brain retrieves nothing.")
	} else {
		deadRatio := float64(r.ByHealth[scoring.HealthStale]+r.ByHealth[scoring.HealthSuperseded]) / float64(r.TotalMemories)
		switch {
		case deadRatio > 0.30:
			score -= 20
			r.Issues = append(r.Issues, fmt.Sprintf("%.0f%% of memories are stale or superseded", deadRatio*100))
			r.Recommendations = append(r.Recommendations, "Run a prune pass to archive dead records.")
		case deadRatio > 0.15:
			score -= 10
			r.Issues = append(r.Issues, fmt.Sprintf("%.0f%% of memories are stale or superseded", deadRatio*100))
			r.Recommendations = append(r.Recommendations, "Consider a prune pass soon.")
		}
	}

	if harmful := r.ByHealth[scoring.HealthHarmful]; harmful > 0 {
		score -= 15
		r.Issues = append(r.Issues, fmt.Sprintf("%d memories repeatedly preceded failures", harmful))
		r.Recommendations = append(r.Recommendations, "Review harmful memories; supersede or archive the misleading ones.")
	}

	if r.TotalMemories >= largeCorpus {
		if r.QualityCoverage < 0.5 {
			score -= 10
			r.Issues = append(r.Issues, "most memories lack a quality score")
			r.Recommendations = append(r.Recommendations, "Re-run the quality gate over legacy records to stamp scores.")
		}
		if r.LinkCoverage < 0.3 {
			score -= 5
			r.Issues = append(r.Issues, "link coverage is low")
			r.Recommendations = append(r.Recommendations, "Run link discovery so retrieval can propagate across related records.")
		}
		if r.Rules.Total == 0 {
			score -= 5
			r.Issues = append(r.Issues, "no learned rules yet")
			r.Recommendations = append(r.Recommendations, "Run the rule learner; a corpus this size should yield patterns.")
		}
	}

	if in.State == nil {
		score -= 10
		r.Issues = append(r.Issues, "no session state supplied")
		r.Recommendations = append(r.Recommendations, "Thread BrainState through retrieval so hot tags and traces accumulate.")
	}

	if score < 0 {
		score = 0
	}

	switch {
	case score >= 90:
		return score, "A"
	case score >= 75:
		return score, "B"
	case score >= 60:
		return score, "C"
	case score >= 40:
		return score, "D"
	default:
		return score, "F"
	}
}
