// Package scoring computes a memory's current retrieval-worthiness
// and its health classification. Pure functions; callers pass the
// clock.
package scoring

import (
	"math"
	"time"

	"github.com/vkoven/membrain/internal/types"
)

const (
	// DefaultHalfLifeDays controls recency falloff: a memory
	// untouched for one half-life keeps half its recency component.
	DefaultHalfLifeDays = 30.0

	// accessSaturation is the access count at which the frequency
	// boost reaches half of its maximum.
	accessSaturation = 5.0

	// recencyWeight and accessWeight split the base score between
	// the two components before the synaptic multiplier.
	recencyWeight = 0.6
	accessWeight  = 0.4
)

// Options tunes ScoreMemory and ClassifyHealth
type Options struct {
	HalfLifeDays  float64
	StaleDays     int     // unaccessed window before "stale" applies
	StaleBelow    float64 // score threshold for "stale"
	AgingBelow    float64 // score threshold for "aging"
	HarmfulBelow  float64 // score threshold for "harmful"
	HarmfulRepeat int     // failure count that marks a memory harmful
}

// DefaultOptions returns the tuning used across the engine
func DefaultOptions() Options {
	return Options{
		HalfLifeDays:  DefaultHalfLifeDays,
		StaleDays:     45,
		StaleBelow:    0.2,
		AgingBelow:    0.5,
		HarmfulBelow:  0.3,
		HarmfulRepeat: 3,
	}
}

// ScoreMemory returns the memory's retrieval-worthiness in [0,1].
// Superseded memories score exactly 0 so every downstream consumer
// can treat them as dead without special-casing. The score is
// monotonic in each input: older, less-accessed, or weaker always
// means lower.
func ScoreMemory(m *types.Memory, now time.Time, opts Options) float64 {
	if m.SupersededBy != "" {
		return 0
	}

	halfLife := opts.HalfLifeDays
	if halfLife <= 0 {
		halfLife = DefaultHalfLifeDays
	}

	ageDays := now.Sub(m.LastTouch()).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	recency := math.Exp2(-ageDays / halfLife)

	// Saturating boost: 0 accesses -> 0, grows toward 1
	boost := float64(m.AccessCount) / (float64(m.AccessCount) + accessSaturation)

	score := (recencyWeight*recency + accessWeight*boost) * m.SynapticStrength
	return clamp01(score)
}

// Health is the five-way reporting bucket for one memory
type Health string

const (
	HealthActive     Health = "active"
	HealthAging      Health = "aging"
	HealthStale      Health = "stale"
	HealthHarmful    Health = "harmful"
	HealthSuperseded Health = "superseded"
)

// ClassifyHealth buckets a memory for reporting. failureCount is the
// caller-tracked number of failures that followed this memory's
// retrieval; pass 0 when no such bookkeeping exists.
func ClassifyHealth(m *types.Memory, score float64, failureCount int, now time.Time, opts Options) Health {
	if m.SupersededBy != "" {
		return HealthSuperseded
	}
	if (m.Type == types.TypePain || m.Type == types.TypeFact) &&
		failureCount >= opts.HarmfulRepeat && score < opts.HarmfulBelow {
		return HealthHarmful
	}
	staleAge := now.Sub(m.LastTouch()) > time.Duration(opts.StaleDays)*24*time.Hour
	if score < opts.StaleBelow && staleAge {
		return HealthStale
	}
	if score < opts.AgingBelow {
		return HealthAging
	}
	return HealthActive
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
