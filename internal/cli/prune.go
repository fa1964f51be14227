package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vkoven/membrain/internal/pruner"
)

func init() {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Archive superseded, stale and low-quality memories",
		Run:   runPrune,
	}
	cmd.Flags().Bool("dry-run", false, "Show what would be archived without archiving")
	RootCmd.AddCommand(cmd)

	restoreCmd := &cobra.Command{
		Use:   "restore <memory-id>",
		Short: "Restore an archived memory into the active set",
		Args:  cobra.ExactArgs(1),
		Run:   runRestore,
	}
	RootCmd.AddCommand(restoreCmd)
}

func runPrune(cmd *cobra.Command, args []string) {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	memories, err := s.ListMemories()
	if err != nil {
		exitErr("load memories", err)
	}

	now := time.Now()
	opts := cfg.PruneOptions()

	if dryRun {
		entries := pruner.Preview(memories, now, opts)
		if len(entries) == 0 {
			fmt.Println("nothing to prune")
			return
		}
		for _, e := range entries {
			fmt.Printf("would archive %s (%s): %s\n", e.ID, e.Title, e.Reason)
		}
		return
	}

	result := pruner.Prune(memories, now, opts)
	if len(result.Archived) == 0 {
		fmt.Println("nothing to prune")
		return
	}
	if err := s.AppendArchive(result.Archived); err != nil {
		exitErr("append archive", err)
	}
	for _, e := range result.Archived {
		if err := s.DeleteMemory(e.Memory.ID); err != nil {
			exitErr("remove archived memory", err)
		}
		fmt.Printf("archived %s: %s\n", e.Memory.ID, e.Reason)
	}
	fmt.Printf("kept %d, archived %d (superseded %d, stale %d, low-quality %d)\n",
		result.Stats.KeptCount, len(result.Archived),
		result.Stats.SupersededCount, result.Stats.StaleCount, result.Stats.LowQualityCount)
}

func runRestore(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	entry, err := s.LatestArchiveEntry(args[0])
	if err != nil {
		exitErr("load archive entry", err)
	}
	if entry == nil {
		exitErr("restore", fmt.Errorf("no archive entry for %s", args[0]))
	}

	restored := pruner.Restore(*entry, time.Now())
	if err := s.SaveMemory(restored); err != nil {
		exitErr("save restored memory", err)
	}
	fmt.Printf("restored %s: %s\n", restored.ID, restored.Title)
}
