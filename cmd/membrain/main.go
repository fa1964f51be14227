package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/vkoven/membrain/internal/cli"
)

func main() {
	// Optional .env for MEMBRAIN_STATE / MEMBRAIN_CONFIG / MEMBRAIN_DEBUG
	godotenv.Load()

	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
