// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bootstrap

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions selects the log destination and format.
type LogOptions struct {
	// File, when set, also receives every record as JSON with size-based
	// rotation.
	File string

	Debug bool

	// Stderr overrides os.Stderr. Used by tests.
	Stderr io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds the process logger.
//
// Records go to stderr as text when it is a terminal and as JSON otherwise.
// Close the returned io.Closer on exit to release the log file.
func NewLogger(opts LogOptions) (*slog.Logger, io.Closer) {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	stderr := opts.Stderr
	terminal := false
	if stderr == nil {
		stderr = os.Stderr
		terminal = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	}

	var console slog.Handler
	if terminal {
		console = slog.NewTextHandler(stderr, hopts)
	} else {
		console = slog.NewJSONHandler(stderr, hopts)
	}

	if opts.File == "" {
		return slog.New(console), nopCloser{}
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
	return slog.New(fanout{console, slog.NewJSONHandler(rotator, hopts)}), rotator
}
