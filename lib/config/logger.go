// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Resolve returns the configuration for a binary: the file at path when
// path is set, the file named by YABRIDGE_CONFIG when that is set, and
// Default otherwise.
func Resolve(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if os.Getenv("YABRIDGE_CONFIG") != "" {
		return Load()
	}
	return Default(), nil
}

// NewLogger creates the structured logger of a bridge binary writing to
// w. With LogFormatAuto a terminal gets slog.TextHandler output and
// anything else (a DAW's log capture, a pipe, a file) gets JSON.
func (c *Config) NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if c.textOutput(w) {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

func (c *Config) textOutput(w io.Writer) bool {
	switch c.LogFormat {
	case LogFormatText:
		return true
	case LogFormatJSON:
		return false
	}
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
