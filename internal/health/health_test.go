package health

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/vkoven/membrain/internal/scoring"
	"github.com/vkoven/membrain/internal/types"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// healthyCorpus builds n fresh, stamped, partly-linked memories
func healthyCorpus(n int) []*types.Memory {
	var out []*types.Memory
	for i := 0; i < n; i++ {
		m := &types.Memory{
			ID:               fmt.Sprintf("mem-%03d", i),
			Type:             types.TypeFact,
			Title:            fmt.Sprintf("note %d", i),
			QualityScore:     0.7,
			Fingerprint:      fmt.Sprintf("%016x", i),
			SynapticStrength: 1.0,
			CreatedAt:        testNow.Add(-time.Duration(i) * time.Hour),
		}
		if i%2 == 0 {
			m.Links = []types.Link{{TargetID: "mem-000", Relationship: types.LinkRelated}}
		}
		out = append(out, m)
	}
	return out
}

func baseInput(memories []*types.Memory) Input {
	return Input{
		Memories: memories,
		Rules:    []*types.LearnedRule{{ID: "rule-a", Confidence: 0.6}},
		State:    &types.BrainState{},
		Now:      testNow,
		Scoring:  scoring.DefaultOptions(),
	}
}

func TestBuildHealthyCorpusGradesA(t *testing.T) {
	r := Build(baseInput(healthyCorpus(25)))
	if r.Score != 100 || r.Grade != "A" {
		t.Errorf("score = %d grade %s, want 100 A (issues: %v)", r.Score, r.Grade, r.Issues)
	}
	if r.TotalMemories != 25 || r.ByType[types.TypeFact] != 25 {
		t.Errorf("totals wrong: %d memories, by type %v", r.TotalMemories, r.ByType)
	}
	if r.ByHealth[scoring.HealthActive] != 25 {
		t.Errorf("by health = %v, want all active", r.ByHealth)
	}
	if r.QualityCoverage != 1.0 || r.FingerprintCoverage != 1.0 {
		t.Errorf("coverage = %f/%f, want full", r.QualityCoverage, r.FingerprintCoverage)
	}
}

func TestBuildEmptyBrain(t *testing.T) {
	in := baseInput(nil)
	in.State = nil
	r := Build(in)

	// -40 empty, -10 missing state
	if r.Score != 50 || r.Grade != "D" {
		t.Errorf("score = %d grade %s, want 50 D", r.Score, r.Grade)
	}
	found := false
	for _, issue := range r.Issues {
		if strings.Contains(issue, "no memories") {
			found = true
		}
	}
	if !found {
		t.Errorf("issues = %v, want the empty-brain finding", r.Issues)
	}
	if len(r.Recommendations) == 0 {
		t.Error("issues without recommendations")
	}
}

func TestBuildPenalizesDeadRatio(t *testing.T) {
	corpus := healthyCorpus(25)
	for i := 0; i < 10; i++ {
		corpus[i].SupersededBy = "mem-024"
	}
	r := Build(baseInput(corpus))
	// 40% dead costs 20
	if r.Score != 80 || r.Grade != "B" {
		t.Errorf("score = %d grade %s, want 80 B (issues: %v)", r.Score, r.Grade, r.Issues)
	}
	if r.ByHealth[scoring.HealthSuperseded] != 10 {
		t.Errorf("superseded bucket = %d, want 10", r.ByHealth[scoring.HealthSuperseded])
	}
}

func TestBuildPenalizesHarmful(t *testing.T) {
	corpus := healthyCorpus(10)
	corpus[0].Type = types.TypePain
	corpus[0].CreatedAt = testNow.Add(-90 * 24 * time.Hour)

	in := baseInput(corpus)
	in.FailureCounts = map[string]int{"mem-000": 3}
	r := Build(in)

	if r.ByHealth[scoring.HealthHarmful] != 1 {
		t.Fatalf("by health = %v, want one harmful", r.ByHealth)
	}
	if r.Score != 85 {
		t.Errorf("score = %d, want 85 after the harmful penalty", r.Score)
	}
	found := false
	for _, issue := range r.Issues {
		if strings.Contains(issue, "preceded failures") {
			found = true
		}
	}
	if !found {
		t.Errorf("issues = %v, want the harmful finding", r.Issues)
	}
}

func TestBuildPenalizesMissingMetadataOnLargeCorpus(t *testing.T) {
	corpus := healthyCorpus(25)
	for _, m := range corpus {
		m.QualityScore = 0
		m.Links = nil
	}
	in := baseInput(corpus)
	in.Rules = nil
	r := Build(in)

	// -10 quality coverage, -5 link coverage, -5 no rules
	if r.Score != 80 {
		t.Errorf("score = %d, want 80 (issues: %v)", r.Score, r.Issues)
	}
}

func TestBuildSmallCorpusSkipsCoveragePenalties(t *testing.T) {
	corpus := healthyCorpus(5)
	for _, m := range corpus {
		m.QualityScore = 0
		m.Links = nil
	}
	in := baseInput(corpus)
	in.Rules = nil
	r := Build(in)

	if r.Score != 100 {
		t.Errorf("score = %d, want 100: a forming brain is not penalized for coverage", r.Score)
	}
}

func TestBuildRuleStats(t *testing.T) {
	in := baseInput(healthyCorpus(25))
	in.Rules = []*types.LearnedRule{
		{ID: "rule-a", Confidence: 0.8, Promoted: true},
		{ID: "rule-b", Confidence: 0.4},
	}
	r := Build(in)
	if r.Rules.Total != 2 || r.Rules.Promoted != 1 {
		t.Errorf("rule stats = %+v", r.Rules)
	}
	if diff := r.Rules.AvgConfidence - 0.6; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("avg confidence = %f, want 0.6", r.Rules.AvgConfidence)
	}
}
