package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vkoven/membrain/internal/engine"
	"github.com/vkoven/membrain/internal/types"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recall <prompt>",
		Short: "Retrieve the memories most relevant to a prompt",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRecall,
	}
	cmd.Flags().Bool("verbose", false, "Show scores and provenance")
	RootCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	prompt := strings.Join(args, " ")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	memories, err := s.ListMemories()
	if err != nil {
		exitErr("load memories", err)
	}
	state, err := s.LoadBrainState(sessionID)
	if err != nil {
		exitErr("load brain state", err)
	}

	now := time.Now()
	result := engine.Retrieve(prompt, memories, state, now, cfg.EngineConfig())

	if result.Empty() {
		fmt.Println("no relevant memories")
	} else {
		fmt.Println(result.Injection)
	}
	if verbose {
		fmt.Printf("\nphase=%s matched=%v hot=%v\n", result.Phase, result.MatchedTags, result.HotTags)
		for _, sm := range result.PainMemories {
			fmt.Printf("  %.2f [%s] %s %s\n", sm.Score, sm.Provenance, sm.Memory.ID, sm.Memory.Title)
		}
		for _, sm := range result.WinMemories {
			fmt.Printf("  %.2f [%s] %s %s\n", sm.Score, sm.Provenance, sm.Memory.ID, sm.Memory.Title)
		}
	}

	// Persist the durable access bookkeeping for surfaced memories
	// and the updated session state
	index := types.ByID(memories)
	surfaced := append(append([]engine.ScoredMemory{}, result.PainMemories...), result.WinMemories...)
	for _, sm := range surfaced {
		m, ok := index[sm.Memory.ID]
		if !ok {
			continue
		}
		updated := m.Clone()
		updated.AccessCount++
		t := now
		updated.LastAccessed = &t
		if err := s.SaveMemory(updated); err != nil {
			exitErr("save access bookkeeping", err)
		}
	}
	if err := s.SaveBrainState(sessionID, result.State); err != nil {
		exitErr("save brain state", err)
	}
}
