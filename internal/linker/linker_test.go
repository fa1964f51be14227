package linker

import (
	"fmt"
	"testing"
	"time"

	"github.com/vkoven/membrain/internal/types"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSimilarityIdenticalMemories(t *testing.T) {
	m := &types.Memory{
		ID:      "mem-a",
		Tags:    []string{"deployment", "rust"},
		Content: "cross compilation fails on arm hosts",
	}
	if got := Similarity(m, m); got < 0.99 {
		t.Errorf("self-similarity = %f, want ~1.0", got)
	}
}

func TestSimilarityDisjoint(t *testing.T) {
	a := &types.Memory{ID: "mem-a", Tags: []string{"frontend"}, Content: "react render loop"}
	b := &types.Memory{ID: "mem-b", Tags: []string{"database"}, Content: "postgres vacuum schedule"}
	if got := Similarity(a, b); got != 0 {
		t.Errorf("disjoint memories scored %f, want 0", got)
	}
}

func TestContradictionRequiresSharedTags(t *testing.T) {
	a := &types.Memory{ID: "mem-a", Tags: []string{"deployment"}, Rule: "always use async handlers"}
	b := &types.Memory{ID: "mem-b", Tags: []string{"frontend"}, Rule: "never use async handlers"}
	if got := DetectContradiction(a, b); got != 0 {
		t.Errorf("memories on different topics scored %f, want 0", got)
	}
}

func TestContradictionAntonymGuidance(t *testing.T) {
	a := &types.Memory{
		ID:   "mem-a",
		Type: types.TypePain,
		Tags: []string{"workers", "queue"},
		Rule: "Always drain the queue before shutdown",
	}
	b := &types.Memory{
		ID:   "mem-b",
		Type: types.TypePain,
		Tags: []string{"workers", "queue"},
		Rule: "Never drain the queue before shutdown",
	}
	if got := DetectContradiction(a, b); got < 0.7 {
		t.Errorf("opposite directives scored %f, want >= 0.7", got)
	}
}

// A win that resolves a pain is related history, not a contradiction,
// even when the pair only shares two tags.
func TestPainWinPairIsNotContradiction(t *testing.T) {
	pain := &types.Memory{
		ID:        "mem-pain",
		Type:      types.TypePain,
		Title:     "Deploy crashes on ARM",
		Rule:      "Always cross-compile before deploy",
		Tags:      []string{"deployment", "rust"},
		CreatedAt: testNow.Add(-48 * time.Hour),
	}
	win := &types.Memory{
		ID:        "mem-win",
		Type:      types.TypeWin,
		Title:     "Deploy pipeline fixed",
		Rule:      "Use cross-rs for ARM targets",
		Tags:      []string{"deployment", "rust"},
		CreatedAt: testNow.Add(-24 * time.Hour),
	}

	if got := DetectContradiction(win, pain); got != 0 {
		t.Errorf("pain/win pair scored %f as contradiction, want 0", got)
	}

	for _, c := range FindLinks(win, []*types.Memory{pain}) {
		if c.Relationship == types.LinkContradicts {
			t.Errorf("pain/win pair proposed as contradicts: %+v", c)
		}
	}
}

func TestSupersessionSameTitleAndTags(t *testing.T) {
	old := &types.Memory{
		ID:        "mem-old",
		Type:      types.TypeFact,
		Title:     "Postgres connection pooling",
		Content:   "pgbouncer caps at 100 connections",
		Tags:      []string{"database", "postgres", "pooling"},
		CreatedAt: testNow.Add(-30 * 24 * time.Hour),
	}
	newer := &types.Memory{
		ID:        "mem-new",
		Type:      types.TypeFact,
		Title:     "Postgres connection pooling",
		Content:   "pgbouncer caps at 100 connections per pool, raised via max_client_conn",
		Tags:      []string{"database", "postgres", "pooling"},
		CreatedAt: testNow,
	}

	got := DetectSupersession(newer, old)
	if got < 0.9 {
		t.Errorf("exact title, 3 shared tags, full coverage scored %f, want >= 0.9", got)
	}
	if DetectSupersession(old, newer) != 0 {
		t.Error("older memory must never supersede a newer one")
	}
}

func TestSupersessionRequiresSameType(t *testing.T) {
	old := &types.Memory{
		ID: "mem-old", Type: types.TypePain, Title: "Cache stampede on restart",
		Tags: []string{"cache", "redis", "restart"}, CreatedAt: testNow.Add(-time.Hour),
	}
	newer := &types.Memory{
		ID: "mem-new", Type: types.TypeWin, Title: "Cache stampede on restart",
		Tags: []string{"cache", "redis", "restart"}, CreatedAt: testNow,
	}
	if got := DetectSupersession(newer, old); got != 0 {
		t.Errorf("cross-type supersession scored %f, want 0", got)
	}
}

func TestFindLinksNeverSelfLinks(t *testing.T) {
	m := &types.Memory{
		ID: "mem-self", Type: types.TypeFact,
		Tags: []string{"alpha", "beta"}, Content: "identical keywords everywhere",
		CreatedAt: testNow,
	}
	for _, c := range FindLinks(m, []*types.Memory{m}) {
		if c.TargetID == m.ID {
			t.Fatalf("proposed a self-link: %+v", c)
		}
	}
}

func TestFindLinksSkipsSuperseded(t *testing.T) {
	dead := &types.Memory{
		ID: "mem-dead", Type: types.TypeFact,
		Tags: []string{"alpha", "beta"}, Content: "shared keyword soup",
		SupersededBy: "mem-live", CreatedAt: testNow.Add(-time.Hour),
	}
	m := &types.Memory{
		ID: "mem-fresh", Type: types.TypeFact,
		Tags: []string{"alpha", "beta"}, Content: "shared keyword soup",
		CreatedAt: testNow,
	}
	if got := FindLinks(m, []*types.Memory{dead}); len(got) != 0 {
		t.Errorf("linked to a superseded memory: %+v", got)
	}
}

func TestFindLinksCapped(t *testing.T) {
	newMem := &types.Memory{
		ID: "mem-new", Type: types.TypeFact, Title: "worker pool sizing",
		Tags: []string{"workers", "tuning"}, Content: "pool sizing and backpressure limits",
		CreatedAt: testNow.Add(-100 * 24 * time.Hour),
	}
	var existing []*types.Memory
	for i := 0; i < 15; i++ {
		existing = append(existing, &types.Memory{
			ID:        fmt.Sprintf("mem-%02d", i),
			Type:      types.TypeFact,
			Title:     fmt.Sprintf("worker note %d", i),
			Tags:      []string{"workers", "tuning"},
			Content:   "pool sizing and backpressure limits",
			CreatedAt: testNow,
		})
	}

	got := FindLinks(newMem, existing)
	if len(got) != MaxCandidates {
		t.Fatalf("got %d candidates, want cap of %d", len(got), MaxCandidates)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Weight > got[i-1].Weight {
			t.Errorf("candidates not sorted by weight: %f after %f", got[i].Weight, got[i-1].Weight)
		}
	}
}

func TestApplyLinksDeduplicates(t *testing.T) {
	m := &types.Memory{
		ID: "mem-a",
		Links: []types.Link{
			{TargetID: "mem-b", Relationship: types.LinkResolves, CreatedAt: testNow.Add(-time.Hour)},
		},
	}
	out := ApplyLinks(m, []Candidate{
		{TargetID: "mem-b", Relationship: types.LinkResolves, Weight: 0.9},
		{TargetID: "mem-b", Relationship: types.LinkRelated, Weight: 0.4},
	}, testNow)

	if len(out.Links) != 2 {
		t.Fatalf("got %d links, want 2 (duplicate pair skipped, new relationship kept)", len(out.Links))
	}
	if len(m.Links) != 1 {
		t.Error("ApplyLinks mutated its input")
	}
}

func TestTraverseLinks(t *testing.T) {
	memories := []*types.Memory{
		{ID: "mem-a", Links: []types.Link{{TargetID: "mem-b", Relationship: types.LinkResolves}}},
		{ID: "mem-b", Links: []types.Link{{TargetID: "mem-c", Relationship: types.LinkExtends}}},
		{ID: "mem-c"},
	}

	got := TraverseLinks("mem-a", memories, 3)
	if len(got) != 2 {
		t.Fatalf("got %d connected memories, want 2", len(got))
	}
	if got[0].Memory.ID != "mem-b" || got[0].Hops != 1 {
		t.Errorf("strongest connection = %s at hop %d, want mem-b at hop 1", got[0].Memory.ID, got[0].Hops)
	}
	// resolves 0.8 then extends 0.6
	if w := got[1].PathWeight; w < 0.47 || w > 0.49 {
		t.Errorf("two-hop path weight = %f, want 0.48", w)
	}
}

func TestTraverseLinksIncomingDiscount(t *testing.T) {
	memories := []*types.Memory{
		{ID: "mem-b", Links: []types.Link{{TargetID: "mem-c", Relationship: types.LinkExtends}}},
		{ID: "mem-c"},
	}

	got := TraverseLinks("mem-c", memories, 2)
	if len(got) != 1 || got[0].Memory.ID != "mem-b" {
		t.Fatalf("expected to reach mem-b against the edge, got %+v", got)
	}
	// extends 0.6 discounted by 0.7
	if w := got[0].PathWeight; w < 0.41 || w > 0.43 {
		t.Errorf("reverse-edge weight = %f, want 0.42", w)
	}
}

func TestTraverseLinksSkipsDanglingTargets(t *testing.T) {
	memories := []*types.Memory{
		{ID: "mem-a", Links: []types.Link{{TargetID: "mem-ghost", Relationship: types.LinkRelated}}},
	}
	for _, c := range TraverseLinks("mem-a", memories, 3) {
		if c.Memory.ID == "mem-ghost" {
			t.Fatal("returned a connection to a memory missing from the snapshot")
		}
	}
}

func TestTraverseLinksUnknownSeed(t *testing.T) {
	if got := TraverseLinks("mem-missing", []*types.Memory{{ID: "mem-a"}}, 3); got != nil {
		t.Errorf("unknown seed returned %+v, want nil", got)
	}
}
