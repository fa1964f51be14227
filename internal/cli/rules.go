package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vkoven/membrain/internal/learner"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Mine the memory set for reusable behavioral rules",
		Run:   runRules,
	}
	cmd.Flags().Bool("list", false, "List stored rules without running a learning pass")
	RootCmd.AddCommand(cmd)
}

func runRules(cmd *cobra.Command, args []string) {
	listOnly, _ := cmd.Flags().GetBool("list")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	existing, err := s.ListRules()
	if err != nil {
		exitErr("load rules", err)
	}

	if listOnly {
		for _, r := range existing {
			fmt.Printf("%s [%s] conf=%.2f obs=%d promoted=%t: %s\n",
				r.ID, r.Kind, r.Confidence, r.Observations, r.Promoted, r.Rule)
		}
		return
	}

	memories, err := s.ListMemories()
	if err != nil {
		exitErr("load memories", err)
	}

	outcome := learner.Learn(memories, existing, time.Now(), cfg.LearnerOptions())
	if err := s.SaveRules(outcome.Rules); err != nil {
		exitErr("save rules", err)
	}

	for _, r := range outcome.NewRules {
		fmt.Printf("new %s [%s] conf=%.2f: %s\n", r.ID, r.Kind, r.Confidence, r.Rule)
	}
	for _, id := range outcome.Reinforced {
		fmt.Printf("reinforced %s\n", id)
	}
	if len(outcome.Promotable) > 0 {
		fmt.Println("ready for promotion:")
		for _, p := range outcome.Promotable {
			fmt.Printf("  %s\n", p.Line)
		}
	}
	if len(outcome.NewRules) == 0 && len(outcome.Reinforced) == 0 && len(outcome.Promotable) == 0 {
		fmt.Println("no new patterns")
	}
}
