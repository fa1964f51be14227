package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vkoven/membrain/internal/health"
	"github.com/vkoven/membrain/internal/pruner"
	"github.com/vkoven/membrain/internal/status"
)

func init() {
	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Graded health report over the memory set",
		Run:   runHealth,
	}
	healthCmd.Flags().Bool("json", false, "Emit the full report as JSON")
	RootCmd.AddCommand(healthCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Capacity and process status",
		Run:   runStatus,
	}
	RootCmd.AddCommand(statusCmd)
}

func runHealth(cmd *cobra.Command, args []string) {
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	memories, err := s.ListMemories()
	if err != nil {
		exitErr("load memories", err)
	}
	rules, err := s.ListRules()
	if err != nil {
		exitErr("load rules", err)
	}
	state, err := s.LoadBrainState(sessionID)
	if err != nil {
		exitErr("load brain state", err)
	}

	report := health.Build(health.Input{
		Memories: memories,
		Rules:    rules,
		State:    state,
		Now:      time.Now(),
		Scoring:  cfg.ScoringOptions(),
	})

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(report)
		return
	}

	fmt.Printf("grade %s (%d/100), %d memories, avg quality %.2f, avg age %.0fd\n",
		report.Grade, report.Score, report.TotalMemories, report.AvgQuality, report.AvgAgeDays)
	fmt.Printf("links %.0f%%, fingerprints %.0f%%, rules %d (%d promoted)\n",
		report.LinkCoverage*100, report.FingerprintCoverage*100, report.Rules.Total, report.Rules.Promoted)
	for bucket, n := range report.ByHealth {
		fmt.Printf("  %s: %d\n", bucket, n)
	}
	for _, issue := range report.Issues {
		fmt.Printf("issue: %s\n", issue)
	}
	for _, rec := range report.Recommendations {
		fmt.Printf("recommend: %s\n", rec)
	}
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	active, err := s.CountMemories()
	if err != nil {
		exitErr("count memories", err)
	}
	archived, err := s.CountArchive()
	if err != nil {
		exitErr("count archive", err)
	}

	check := pruner.CheckCapacity(active)
	fmt.Printf("active %d / %d (%s), archived %d\n", check.Count, check.Capacity, check.Level, archived)
	if check.ShouldPrune {
		fmt.Println("capacity exceeded: run membrain prune")
	}

	if stats, err := status.Probe(); err == nil {
		fmt.Printf("process pid=%d rss=%.1fMB cpu=%.1f%% threads=%d\n",
			stats.PID, float64(stats.RSSBytes)/(1024*1024), stats.CPUPercent, stats.NumThreads)
	}
}
