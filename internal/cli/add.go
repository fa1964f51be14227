package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vkoven/membrain/internal/gate"
	"github.com/vkoven/membrain/internal/linker"
	"github.com/vkoven/membrain/internal/types"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a memory through the quality gate",
		Run:   runAdd,
	}

	cmd.Flags().String("title", "", "Memory title (required)")
	cmd.Flags().String("content", "", "Memory content (required)")
	cmd.Flags().String("rule", "", "Actionable takeaway")
	cmd.Flags().String("type", "fact", "Type: pain, win, fact, decision, architecture, reflection, skill")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")
	cmd.Flags().String("severity", "", "Severity: low, medium, high")
	cmd.Flags().Bool("auto-resolve", false, "Let the gate resolve conflicts (supersede/merge)")

	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("content")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	title, _ := cmd.Flags().GetString("title")
	content, _ := cmd.Flags().GetString("content")
	rule, _ := cmd.Flags().GetString("rule")
	memType, _ := cmd.Flags().GetString("type")
	tagsStr, _ := cmd.Flags().GetString("tags")
	severity, _ := cmd.Flags().GetString("severity")
	autoResolve, _ := cmd.Flags().GetBool("auto-resolve")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	existing, err := s.ListMemories()
	if err != nil {
		exitErr("load memories", err)
	}

	now := time.Now()
	candidate := &types.Memory{
		ID:        "mem-" + uuid.NewString()[:8],
		Type:      types.MemoryType(memType),
		Title:     title,
		Content:   content,
		Rule:      rule,
		Tags:      splitTags(tagsStr),
		Severity:  types.Severity(severity),
		CreatedAt: now,
	}

	opts := cfg.GateOptions()
	opts.AutoResolve = opts.AutoResolve || autoResolve
	outcome := gate.Run(candidate, existing, now, opts)

	switch outcome.Action {
	case gate.ActionReject:
		fmt.Printf("rejected: %s\n", outcome.Reason)
		return
	case gate.ActionAccept, gate.ActionMerge:
		committed := outcome.Memory

		// Mark superseded records before link discovery so the new
		// record never links back to a dead one
		index := types.ByID(existing)
		for _, oldID := range outcome.Superseded {
			old, ok := index[oldID]
			if !ok {
				continue
			}
			old.SupersededBy = committed.ID
			if err := s.SaveMemory(old); err != nil {
				exitErr("save superseded memory", err)
			}
		}

		candidates := linker.FindLinks(committed, existing)
		committed = linker.ApplyLinks(committed, candidates, now)
		if err := s.SaveMemory(committed); err != nil {
			exitErr("save memory", err)
		}

		fmt.Printf("%s %s (quality %.2f, %d links)\n", outcome.Action, committed.ID, committed.QualityScore, len(committed.Links))
		for _, c := range candidates {
			fmt.Printf("  link %s -> %s: %s\n", c.Relationship, c.TargetID, c.Reason)
		}
		for _, conflict := range outcome.Conflicts {
			fmt.Printf("  conflict with %s (%s, %.2f): %s\n", conflict.With.ID, conflict.Kind, conflict.Confidence, conflict.Reason)
		}
		for _, id := range outcome.Superseded {
			fmt.Printf("  supersedes %s\n", id)
		}
	}
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, strings.ToLower(t))
		}
	}
	return tags
}
