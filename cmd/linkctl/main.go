// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// linkctl resolves mentions, annotates ALTO documents and compares strings
// from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/EntityLink/services/linker/bootstrap"
	"github.com/AleutianAI/EntityLink/services/linker/config"
)

// Persistent flag values.
var (
	configPath string
	logFile    string
	debug      bool
	jsonOutput bool
)

var logCloser io.Closer = io.NopCloser(nil)

var rootCmd = &cobra.Command{
	Use:           "linkctl",
	Short:         "Link named-entity mentions to knowledge base entities",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger, closer := bootstrap.NewLogger(bootstrap.LogOptions{File: logFile, Debug: debug})
		logCloser = closer
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML file overriding the embedded defaults")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file, rotated")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(resolveCmd, batchCmd, annotateCmd, compareCmd, phoneticCmd)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "linkctl: loading .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logCloser.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "linkctl: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads --config, or the embedded defaults.
func loadConfig(ctx context.Context) (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfigFile(ctx, configPath)
	}
	return config.GetConfig(ctx)
}

// openStack builds the linker for commands that resolve mentions.
func openStack(ctx context.Context) (*bootstrap.Stack, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return bootstrap.Build(ctx, cfg, bootstrap.Options{Logger: slog.Default()})
}
