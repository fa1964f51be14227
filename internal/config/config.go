// Package config loads the membrain tuning from YAML with sane
// defaults for everything. The config file is optional; a missing
// file means pure defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vkoven/membrain/internal/engine"
	"github.com/vkoven/membrain/internal/gate"
	"github.com/vkoven/membrain/internal/learner"
	"github.com/vkoven/membrain/internal/pruner"
	"github.com/vkoven/membrain/internal/scoring"
)

// Config is the on-disk tuning shape
type Config struct {
	StatePath string `yaml:"state_path"`

	Scoring struct {
		HalfLifeDays float64 `yaml:"half_life_days"`
		StaleDays    int     `yaml:"stale_days"`
	} `yaml:"scoring"`

	Retrieval struct {
		MinPromptLen    int     `yaml:"min_prompt_len"`
		ViabilityFloor  float64 `yaml:"viability_floor"`
		MaxPain         int     `yaml:"max_pain"`
		MaxWins         int     `yaml:"max_wins"`
		MidAt           int     `yaml:"mid_at"`
		LateAt          int     `yaml:"late_at"`
		HotTagThreshold int     `yaml:"hot_tag_threshold"`
	} `yaml:"retrieval"`

	Gate struct {
		MinQuality   float64 `yaml:"min_quality"`
		DupThreshold float64 `yaml:"dup_threshold"`
		AutoResolve  bool    `yaml:"auto_resolve"`
	} `yaml:"gate"`

	Prune struct {
		MinMemoryCount int     `yaml:"min_memory_count"`
		MinScore       float64 `yaml:"min_score"`
		MaxStaleDays   int     `yaml:"max_stale_days"`
		MinQuality     float64 `yaml:"min_quality"`
	} `yaml:"prune"`

	// Cortex entries merged over the built-in keyword->tags table
	Cortex map[string][]string `yaml:"cortex,omitempty"`

	// Attention rules appended after the built-in table
	Attention []struct {
		Keyword string `yaml:"keyword"`
		Warning string `yaml:"warning"`
	} `yaml:"attention,omitempty"`
}

// Load reads a YAML config file. A missing path or empty filename
// returns defaults without error; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the standard tuning
func Default() *Config {
	cfg := &Config{StatePath: "state"}
	cfg.Scoring.HalfLifeDays = scoring.DefaultHalfLifeDays
	cfg.Scoring.StaleDays = scoring.DefaultOptions().StaleDays

	ec := engine.DefaultConfig()
	cfg.Retrieval.MinPromptLen = ec.MinPromptLen
	cfg.Retrieval.ViabilityFloor = ec.ViabilityFloor
	cfg.Retrieval.MaxPain = ec.MaxPain
	cfg.Retrieval.MaxWins = ec.MaxWins
	cfg.Retrieval.MidAt = ec.MidAt
	cfg.Retrieval.LateAt = ec.LateAt
	cfg.Retrieval.HotTagThreshold = ec.HotTagThreshold

	cfg.Gate.MinQuality = gate.DefaultMinQuality
	cfg.Gate.DupThreshold = gate.DefaultDupThreshold

	cfg.Prune.MinMemoryCount = pruner.DefaultMinMemoryCount
	cfg.Prune.MinScore = pruner.DefaultMinScore
	cfg.Prune.MaxStaleDays = pruner.DefaultMaxStaleDays
	cfg.Prune.MinQuality = pruner.DefaultMinQuality
	return cfg
}

// ScoringOptions materializes the scoring tuning
func (c *Config) ScoringOptions() scoring.Options {
	opts := scoring.DefaultOptions()
	if c.Scoring.HalfLifeDays > 0 {
		opts.HalfLifeDays = c.Scoring.HalfLifeDays
	}
	if c.Scoring.StaleDays > 0 {
		opts.StaleDays = c.Scoring.StaleDays
	}
	return opts
}

// EngineConfig materializes the retrieval tuning
func (c *Config) EngineConfig() engine.Config {
	ec := engine.DefaultConfig()
	if c.Retrieval.MinPromptLen > 0 {
		ec.MinPromptLen = c.Retrieval.MinPromptLen
	}
	if c.Retrieval.ViabilityFloor > 0 {
		ec.ViabilityFloor = c.Retrieval.ViabilityFloor
	}
	if c.Retrieval.MaxPain > 0 {
		ec.MaxPain = c.Retrieval.MaxPain
	}
	if c.Retrieval.MaxWins > 0 {
		ec.MaxWins = c.Retrieval.MaxWins
	}
	if c.Retrieval.MidAt > 0 {
		ec.MidAt = c.Retrieval.MidAt
	}
	if c.Retrieval.LateAt > 0 {
		ec.LateAt = c.Retrieval.LateAt
	}
	if c.Retrieval.HotTagThreshold > 0 {
		ec.HotTagThreshold = c.Retrieval.HotTagThreshold
	}
	ec.Scoring = c.ScoringOptions()
	ec.ExtraCortex = c.Cortex
	for _, a := range c.Attention {
		ec.ExtraAttention = append(ec.ExtraAttention, engine.AttentionRule{Keyword: a.Keyword, Warning: a.Warning})
	}
	return ec
}

// GateOptions materializes the write-path tuning
func (c *Config) GateOptions() gate.Options {
	opts := gate.DefaultOptions()
	if c.Gate.MinQuality > 0 {
		opts.MinQuality = c.Gate.MinQuality
	}
	if c.Gate.DupThreshold > 0 {
		opts.DupThreshold = c.Gate.DupThreshold
	}
	opts.AutoResolve = c.Gate.AutoResolve
	return opts
}

// PruneOptions materializes the maintenance tuning
func (c *Config) PruneOptions() pruner.Options {
	opts := pruner.DefaultOptions()
	if c.Prune.MinMemoryCount > 0 {
		opts.MinMemoryCount = c.Prune.MinMemoryCount
	}
	if c.Prune.MinScore > 0 {
		opts.MinScore = c.Prune.MinScore
	}
	if c.Prune.MaxStaleDays > 0 {
		opts.MaxStaleDays = c.Prune.MaxStaleDays
	}
	if c.Prune.MinQuality > 0 {
		opts.MinQuality = c.Prune.MinQuality
	}
	opts.Scoring = c.ScoringOptions()
	return opts
}

// LearnerOptions materializes the rule-learner tuning
func (c *Config) LearnerOptions() learner.Options {
	return learner.DefaultOptions()
}
