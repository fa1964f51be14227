// Package pruner is the maintenance pass that moves decayed memories
// out of the active set into the archive. Archival never deletes: the
// archive is append-only and entries can be restored verbatim.
package pruner

import (
	"fmt"
	"strings"
	"time"

	"github.com/vkoven/membrain/internal/scoring"
	"github.com/vkoven/membrain/internal/types"
)

const (
	// DefaultMinMemoryCount is the population floor below which the
	// pruner refuses to run: a small, still-forming memory base
	// should not be thinned.
	DefaultMinMemoryCount = 50

	DefaultMinScore     = 0.10
	DefaultMaxStaleDays = 90
	DefaultMinQuality   = 0.10

	// Capacity is the active-set size the shell alerts on
	Capacity        = 1000
	capacityWarnPct = 0.8
)

// Options tunes one prune pass
type Options struct {
	MinMemoryCount int
	MinScore       float64
	MaxStaleDays   int
	MinQuality     float64
	Scoring        scoring.Options
}

// DefaultOptions returns the standard prune tuning
func DefaultOptions() Options {
	return Options{
		MinMemoryCount: DefaultMinMemoryCount,
		MinScore:       DefaultMinScore,
		MaxStaleDays:   DefaultMaxStaleDays,
		MinQuality:     DefaultMinQuality,
		Scoring:        scoring.DefaultOptions(),
	}
}

// Stats tallies one prune pass by archival reason
type Stats struct {
	SupersededCount int `json:"superseded_count"`
	StaleCount      int `json:"stale_count"`
	LowQualityCount int `json:"low_quality_count"`
	KeptCount       int `json:"kept_count"`
}

// Result holds the outcome of a prune pass. Kept preserves input
// order; Archived entries carry the reason and the score at archival
// time.
type Result struct {
	Kept     []*types.Memory
	Archived []types.ArchiveEntry
	Stats    Stats
}

// decision is the shared verdict logic: Prune and Preview must agree
// exactly on which ids go and why.
func decision(m *types.Memory, now time.Time, opts Options) (reason string, score float64, archive bool) {
	score = scoring.ScoreMemory(m, now, opts.Scoring)
	if m.DecayExempt {
		return "", score, false
	}
	if m.SupersededBy != "" {
		return fmt.Sprintf("Superseded by %s", m.SupersededBy), score, true
	}
	ageDays := int(now.Sub(m.LastTouch()).Hours() / 24)
	if score < opts.MinScore && ageDays > opts.MaxStaleDays {
		return fmt.Sprintf("Stale: score %.2f, unaccessed for %d days", score, ageDays), score, true
	}
	if m.QualityScore > 0 && m.QualityScore < opts.MinQuality {
		return fmt.Sprintf("Low quality: %.2f", m.QualityScore), score, true
	}
	return "", score, false
}

// Prune runs the maintenance pass. Below the population floor it is a
// no-op returning the input unchanged. The input slice is never
// mutated.
func Prune(memories []*types.Memory, now time.Time, opts Options) Result {
	result := Result{}
	if len(memories) < opts.MinMemoryCount {
		result.Kept = append(result.Kept, memories...)
		result.Stats.KeptCount = len(memories)
		return result
	}

	for _, m := range memories {
		reason, score, archive := decision(m, now, opts)
		if !archive {
			result.Kept = append(result.Kept, m)
			continue
		}
		result.Archived = append(result.Archived, types.ArchiveEntry{
			Memory:         m.Clone(),
			Reason:         reason,
			ArchivedAt:     now,
			ScoreAtArchive: score,
		})
		switch {
		case strings.HasPrefix(reason, "Superseded"):
			result.Stats.SupersededCount++
		case strings.HasPrefix(reason, "Stale"):
			result.Stats.StaleCount++
		default:
			result.Stats.LowQualityCount++
		}
	}
	result.Stats.KeptCount = len(result.Kept)
	return result
}

// PreviewEntry names one memory a prune pass would archive
type PreviewEntry struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Reason string  `json:"reason"`
	Score  float64 `json:"score"`
}

// Preview reports what Prune would archive without building archive
// entries. Agrees with Prune on exactly which ids go and why.
func Preview(memories []*types.Memory, now time.Time, opts Options) []PreviewEntry {
	if len(memories) < opts.MinMemoryCount {
		return nil
	}
	var entries []PreviewEntry
	for _, m := range memories {
		if reason, score, archive := decision(m, now, opts); archive {
			entries = append(entries, PreviewEntry{ID: m.ID, Title: m.Title, Reason: reason, Score: score})
		}
	}
	return entries
}

// CapacityLevel grades how full the active set is
type CapacityLevel string

const (
	CapacityOK       CapacityLevel = "ok"
	CapacityWarning  CapacityLevel = "warning"
	CapacityCritical CapacityLevel = "critical"
)

// CapacityCheck is the result of a capacity probe
type CapacityCheck struct {
	Level       CapacityLevel `json:"level"`
	Count       int           `json:"count"`
	Capacity    int           `json:"capacity"`
	ShouldPrune bool          `json:"should_prune"`
}

// CheckCapacity grades the active count against the fixed capacity:
// warning at 80%, critical (and prune-worthy) at or above 100%.
func CheckCapacity(count int) CapacityCheck {
	check := CapacityCheck{Level: CapacityOK, Count: count, Capacity: Capacity}
	switch {
	case count >= Capacity:
		check.Level = CapacityCritical
		check.ShouldPrune = true
	case float64(count) >= capacityWarnPct*Capacity:
		check.Level = CapacityWarning
	}
	return check
}

// Restore brings an archived memory back into the active set: clears
// SupersededBy, stamps a fresh LastAccessed, and preserves every
// other field verbatim.
func Restore(entry types.ArchiveEntry, now time.Time) *types.Memory {
	m := entry.Memory.Clone()
	m.SupersededBy = ""
	t := now
	m.LastAccessed = &t
	return m
}
