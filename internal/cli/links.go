package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vkoven/membrain/internal/linker"
)

func init() {
	cmd := &cobra.Command{
		Use:   "links <memory-id>",
		Short: "Show memories connected to one record via the link graph",
		Args:  cobra.ExactArgs(1),
		Run:   runLinks,
	}
	cmd.Flags().Int("depth", linker.DefaultTraverseDepth, "Traversal depth in hops")
	RootCmd.AddCommand(cmd)
}

func runLinks(cmd *cobra.Command, args []string) {
	depth, _ := cmd.Flags().GetInt("depth")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	memories, err := s.ListMemories()
	if err != nil {
		exitErr("load memories", err)
	}

	connected := linker.TraverseLinks(args[0], memories, depth)
	if len(connected) == 0 {
		fmt.Println("no connected memories")
		return
	}
	for _, c := range connected {
		fmt.Printf("%.3f  %d hop(s)  %s  %s\n", c.PathWeight, c.Hops, c.Memory.ID, c.Memory.Title)
	}
}
