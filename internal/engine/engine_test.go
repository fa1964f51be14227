package engine

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/vkoven/membrain/internal/types"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func freshMemory(id string, typ types.MemoryType, title string, tags ...string) *types.Memory {
	return &types.Memory{
		ID:               id,
		Type:             typ,
		Title:            title,
		Tags:             tags,
		SynapticStrength: 1.0,
		CreatedAt:        testNow.Add(-time.Hour),
	}
}

func TestRetrieveShortPromptIsEmpty(t *testing.T) {
	memories := []*types.Memory{freshMemory("mem-a", types.TypePain, "deploy pain", "deployment")}
	result := Retrieve("hi", memories, nil, testNow, DefaultConfig())
	if !result.Empty() {
		t.Errorf("short prompt surfaced results: %+v", result)
	}
	if result.State.MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1 even on empty retrieval", result.State.MessageCount)
	}
}

func TestRetrieveDeployOnProductionScenario(t *testing.T) {
	pain := freshMemory("mem-pain", types.TypePain, "Deploy crashes on ARM", "deployment", "production")
	pain.Rule = "Always cross-compile before deploy"
	pain.Severity = types.SeverityHigh
	win := freshMemory("mem-win", types.TypeWin, "ARM deploy pipeline fixed", "deployment")
	win.Rule = "Use cross-rs for ARM targets"

	result := Retrieve("deploy crashed on production", []*types.Memory{pain, win}, nil, testNow, DefaultConfig())

	if len(result.PainMemories) != 1 || result.PainMemories[0].Memory.ID != "mem-pain" {
		t.Fatalf("pains = %+v, want mem-pain", result.PainMemories)
	}
	if result.PainMemories[0].Provenance != ProvenanceDirect {
		t.Errorf("provenance = %s, want direct", result.PainMemories[0].Provenance)
	}
	// deployment + production hits, doubled by high severity
	if s := result.PainMemories[0].Score; s < 3.9 || s > 4.1 {
		t.Errorf("pain score = %f, want 4.0", s)
	}

	if len(result.WinMemories) != 1 || result.WinMemories[0].Memory.ID != "mem-win" {
		t.Fatalf("wins = %+v, want mem-win paired via the shared tag", result.WinMemories)
	}

	if result.Attention == nil || result.Attention.Keyword != "production" {
		t.Fatalf("attention = %+v, want the production warning", result.Attention)
	}

	if len(result.MatchedTags) != 2 || result.MatchedTags[0] != "deployment" || result.MatchedTags[1] != "production" {
		t.Errorf("matched tags = %v, want [deployment production]", result.MatchedTags)
	}

	for _, want := range []string{"ATTENTION:", "Relevant lessons:", "Deploy crashes on ARM", "Wins worth repeating:"} {
		if !strings.Contains(result.Injection, want) {
			t.Errorf("injection missing %q:\n%s", want, result.Injection)
		}
	}
}

func TestRetrieveSupersededNeverSurfaces(t *testing.T) {
	pain := freshMemory("mem-pain", types.TypePain, "Deploy crashes on ARM", "deployment")
	pain.SupersededBy = "mem-newer"
	pain.AccessCount = 50 // high past traffic must not resurrect it

	result := Retrieve("deploy crashed on production", []*types.Memory{pain}, nil, testNow, DefaultConfig())
	if len(result.PainMemories) != 0 {
		t.Errorf("superseded memory surfaced: %+v", result.PainMemories)
	}
}

func TestRetrieveViabilityFloorExcludesDecayed(t *testing.T) {
	old := freshMemory("mem-old", types.TypePain, "Deploy crashes on ARM", "deployment")
	old.CreatedAt = testNow.Add(-300 * 24 * time.Hour)

	result := Retrieve("deploy crashed again today", []*types.Memory{old}, nil, testNow, DefaultConfig())
	if len(result.PainMemories) != 0 {
		t.Errorf("decayed memory surfaced: %+v", result.PainMemories)
	}
}

func TestRetrieveDopaminePairingViaResolvesLink(t *testing.T) {
	pain := freshMemory("mem-pain", types.TypePain, "Deploy crashes on ARM", "deployment")
	pain.Links = []types.Link{{TargetID: "mem-win", Relationship: types.LinkResolves}}
	// The win shares no matched tag; only the resolution edge pulls it in
	win := freshMemory("mem-win", types.TypeWin, "cross-rs saved the release", "rust")

	result := Retrieve("deploy crashed hard today", []*types.Memory{pain, win}, nil, testNow, DefaultConfig())
	if len(result.WinMemories) != 1 || result.WinMemories[0].Memory.ID != "mem-win" {
		t.Fatalf("wins = %+v, want the resolving win forced in", result.WinMemories)
	}
	if result.WinMemories[0].Provenance != ProvenanceDopamine {
		t.Errorf("provenance = %s, want dopamine", result.WinMemories[0].Provenance)
	}
}

func TestRetrieveFuzzyFallback(t *testing.T) {
	m := freshMemory("mem-widget", types.TypePain, "Widget pipeline stalls", "widgets")

	result := Retrieve("the widget pipeline misbehaves", []*types.Memory{m}, nil, testNow, DefaultConfig())
	if len(result.PainMemories) != 1 || result.PainMemories[0].Memory.ID != "mem-widget" {
		t.Fatalf("pains = %+v, want the title-matched memory", result.PainMemories)
	}
}

func TestRetrieveLatePhaseShrinksVolume(t *testing.T) {
	var memories []*types.Memory
	for i := 0; i < 5; i++ {
		memories = append(memories, freshMemory(fmt.Sprintf("mem-%d", i), types.TypePain, fmt.Sprintf("deploy pain %d", i), "deployment"))
	}
	state := &types.BrainState{MessageCount: 40}

	result := Retrieve("deploy crashed hard today", memories, state, testNow, DefaultConfig())
	if result.Phase != types.PhaseLate {
		t.Fatalf("phase = %s, want late", result.Phase)
	}
	if len(result.PainMemories) > 2 {
		t.Errorf("late phase surfaced %d pains, want at most 2", len(result.PainMemories))
	}
}

func TestRetrieveHotTagsAcrossSession(t *testing.T) {
	m := freshMemory("mem-a", types.TypePain, "deploy keeps breaking", "deployment")
	cfg := DefaultConfig()

	var state *types.BrainState
	var result *Result
	for i := 0; i < 3; i++ {
		result = Retrieve("deploy failing once more", []*types.Memory{m}, state, testNow, cfg)
		state = result.State
	}

	if len(result.HotTags) != 1 || result.HotTags[0] != "deployment" {
		t.Fatalf("hot tags after 3 hits = %v, want [deployment]", result.HotTags)
	}
	if !strings.Contains(result.Injection, "Recurring this session") {
		t.Errorf("injection missing the recurring note:\n%s", result.Injection)
	}
	if state.FiringFrequency["deployment"] != 3 {
		t.Errorf("firing frequency = %d, want 3", state.FiringFrequency["deployment"])
	}
}

func TestRetrieveDoesNotMutateInputs(t *testing.T) {
	m := freshMemory("mem-a", types.TypePain, "deploy keeps breaking", "deployment")
	state := &types.BrainState{MessageCount: 5}

	result := Retrieve("deploy failing once more", []*types.Memory{m}, state, testNow, DefaultConfig())
	if state.MessageCount != 5 {
		t.Errorf("input state mutated: MessageCount = %d", state.MessageCount)
	}
	if len(state.FiringFrequency) != 0 {
		t.Errorf("input state mutated: firing frequency %v", state.FiringFrequency)
	}
	if result.State.MessageCount != 6 {
		t.Errorf("returned state MessageCount = %d, want 6", result.State.MessageCount)
	}
	if m.AccessCount != 0 {
		t.Error("retrieval must not touch the stored access count")
	}
}

func TestRetrieveRecordsMemoryTraces(t *testing.T) {
	m := freshMemory("mem-a", types.TypePain, "deploy keeps breaking", "deployment")

	result := Retrieve("deploy failing once more", []*types.Memory{m}, nil, testNow, DefaultConfig())
	tr, ok := result.State.MemoryTraces["mem-a"]
	if !ok {
		t.Fatal("surfaced memory left no session trace")
	}
	if tr.Count != 1 || tr.SynapticStrength != 1.0 {
		t.Errorf("trace = %+v, want count 1 with the stored strength", tr)
	}
}

func TestRetrieveAttentionWithoutMatches(t *testing.T) {
	result := Retrieve("rm -rf the build directory", nil, nil, testNow, DefaultConfig())
	if result.Attention == nil || result.Attention.Keyword != "rm -rf" {
		t.Fatalf("attention = %+v, want the recursive-delete warning", result.Attention)
	}
	if !strings.HasPrefix(result.Injection, "ATTENTION:") {
		t.Errorf("injection = %q, want the warning alone", result.Injection)
	}
}

func TestAttentionOrderFirstMatchWins(t *testing.T) {
	// Both keywords present: the table's earlier entry decides
	w := attentionScan("deploy this to production now", nil)
	if w == nil || w.Keyword != "production" {
		t.Fatalf("warning = %+v, want production before deploy", w)
	}
}

func TestSeverityInference(t *testing.T) {
	tests := []struct {
		name string
		m    *types.Memory
		want float64
	}{
		{"explicit high", &types.Memory{Severity: types.SeverityHigh}, 2.0},
		{"explicit low beats keywords", &types.Memory{Severity: types.SeverityLow, Title: "data loss on restart"}, 1.0},
		{"inferred high", &types.Memory{Title: "cache corrupt after restart"}, 2.0},
		{"inferred medium", &types.Memory{Content: "the flaky test again"}, 1.5},
		{"default", &types.Memory{Title: "notes on naming"}, 1.0},
	}
	for _, tt := range tests {
		if got := severityMultiplier(tt.m); got != tt.want {
			t.Errorf("%s: multiplier = %f, want %f", tt.name, got, tt.want)
		}
	}
}

// A cortex tag carried only by wins must not suppress the fuzzy pass:
// the win pairs via the tag while lessons still match on their text.
func TestRetrieveFuzzyRunsWhenTagMatchesOnlyWins(t *testing.T) {
	win := freshMemory("mem-win", types.TypeWin, "Deploy pipeline green", "deployment")
	pain := freshMemory("mem-pain", types.TypePain, "Widget pipeline stalls", "widgets")

	result := Retrieve("deploy widget pipeline", []*types.Memory{win, pain}, nil, testNow, DefaultConfig())
	if len(result.PainMemories) != 1 || result.PainMemories[0].Memory.ID != "mem-pain" {
		t.Fatalf("pains = %+v, want the title-matched lesson", result.PainMemories)
	}
	if len(result.WinMemories) != 1 || result.WinMemories[0].Memory.ID != "mem-win" {
		t.Fatalf("wins = %+v, want the tag-matched win", result.WinMemories)
	}
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	if got := truncate("short rule", 80); got != "short rule" {
		t.Errorf("short input changed: %q", got)
	}
	long := strings.Repeat("é", 100)
	got := truncate(long, 80)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got)
	}
	if got != strings.Repeat("é", 80)+"..." {
		t.Errorf("got %d-rune prefix %q, want 80 runes plus ellipsis", len([]rune(got))-3, got)
	}
}

func TestRetrieveAssociativeChaining(t *testing.T) {
	direct := freshMemory("mem-direct", types.TypePain, "Deploy crashes on ARM", "deployment", "rust")
	neighbor := freshMemory("mem-neighbor", types.TypePain, "Cargo cross builds misconfigured", "rust")

	result := Retrieve("deploy crashed hard today", []*types.Memory{direct, neighbor}, nil, testNow, DefaultConfig())
	var found *ScoredMemory
	for i := range result.PainMemories {
		if result.PainMemories[i].Memory.ID == "mem-neighbor" {
			found = &result.PainMemories[i]
		}
	}
	if found == nil {
		t.Fatalf("neighbor not chained in: %+v", result.PainMemories)
	}
	if found.Provenance != ProvenanceAssociative {
		t.Errorf("provenance = %s, want associative", found.Provenance)
	}
}
