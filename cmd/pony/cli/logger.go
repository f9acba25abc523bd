// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates the CLI's structured logger on stderr. Format
// "auto" picks text when stderr is a terminal and JSON otherwise. An
// unknown level falls back to info.
func NewCommandLogger(level, format string) *slog.Logger {
	auto := term.IsTerminal(int(os.Stderr.Fd()))
	return newLogger(os.Stderr, level, format, auto)
}

func newLogger(w io.Writer, level, format string, terminal bool) *slog.Logger {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		slogLevel = slog.LevelInfo
	}
	options := &slog.HandlerOptions{Level: slogLevel}

	text := format == "text" || (format != "json" && terminal)
	if text {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}
