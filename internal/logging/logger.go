// Package logging is the thin zerolog wrapper the shell packages log
// through. Engine packages are pure and never log.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Setup configures the global log level and returns the root logger.
// MEMBRAIN_DEBUG=true enables debug output; logs go to stderr so
// command output stays clean on stdout.
func Setup() zerolog.Logger {
	level := zerolog.InfoLevel
	if os.Getenv("MEMBRAIN_DEBUG") == "true" {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// For returns a subsystem-tagged child logger
func For(root zerolog.Logger, subsystem string) zerolog.Logger {
	return root.With().Str("subsystem", subsystem).Logger()
}
