// Package cli implements the membrain operator commands. Every
// command follows the same shape: load a snapshot from the store,
// call the pure engine, persist what it returned.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vkoven/membrain/internal/config"
	"github.com/vkoven/membrain/internal/logging"
	"github.com/vkoven/membrain/internal/store"
)

var (
	configPath string
	statePath  string
	sessionID  string

	rootLog zerolog.Logger
)

// RootCmd is the top-level command
var RootCmd = &cobra.Command{
	Use:   "membrain",
	Short: "Associative memory engine for lessons, facts and decisions",
	Long: "membrain stores short textual memory records and retrieves the most\n" +
		"relevant ones for a prompt, while keeping the record set healthy:\n" +
		"deduplication, conflict resolution, supersession, decay archival and\n" +
		"rule extraction.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		rootLog = logging.Setup()
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config path (default: $MEMBRAIN_CONFIG)")
	RootCmd.PersistentFlags().StringVar(&statePath, "state", "", "State directory (default: $MEMBRAIN_STATE or ./state)")
	RootCmd.PersistentFlags().StringVar(&sessionID, "session", "default", "Session id for brain state")
}

func loadConfig() *config.Config {
	path := configPath
	if path == "" {
		path = os.Getenv("MEMBRAIN_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		exitErr("load config", err)
	}
	if statePath != "" {
		cfg.StatePath = statePath
	} else if env := os.Getenv("MEMBRAIN_STATE"); env != "" {
		cfg.StatePath = env
	}
	return cfg
}

func openStore(cfg *config.Config) *store.Store {
	s, err := store.Open(cfg.StatePath, logging.For(rootLog, "store"))
	if err != nil {
		exitErr("open store", err)
	}
	return s
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
