// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// LogLevelEnv names the environment variable that lowers or raises the
// command log level ("debug", "warn", "error"). Unset or unparseable
// values leave it at info.
const LogLevelEnv = "CONCERT_LOG_LEVEL"

// NewCommandLogger returns the logger handed to [Command.Run]. A
// terminal on stderr gets text, anything else gets JSON in the same
// shape the daemons write.
func NewCommandLogger() *slog.Logger {
	return newLogger(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), os.Getenv(LogLevelEnv))
}

func newLogger(w io.Writer, terminal bool, level string) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	var parsed slog.Level
	if level != "" && parsed.UnmarshalText([]byte(level)) == nil {
		options.Level = parsed
	}
	if terminal {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}
