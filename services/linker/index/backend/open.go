// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backend builds the configured index.Searcher.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/EntityLink/services/linker/config"
	"github.com/AleutianAI/EntityLink/services/linker/index"
	"github.com/AleutianAI/EntityLink/services/linker/index/solr"
	"github.com/AleutianAI/EntityLink/services/linker/index/weaviate"
	"github.com/AleutianAI/EntityLink/services/linker/redact"
	"github.com/AleutianAI/EntityLink/services/linker/secrets"
)

// Deps are the collaborators Open needs beyond the configuration.
type Deps struct {
	// Secrets resolves credential environment names. Nil disables
	// credentials.
	Secrets secrets.SecretBackend

	// FS holds the memory backend's records. Nil uses the OS filesystem.
	FS afero.Fs

	// MeterProvider receives index metrics. Nil uses the global provider.
	MeterProvider metric.MeterProvider

	Logger *slog.Logger
}

// Open creates the searcher named by cfg.Index.Backend.
//
// # Description
//
// The backend is wrapped in an Instrumented decorator and, when
// cfg.Index.RateLimit is positive, a RateLimited decorator outside it so
// time spent waiting for a token is not counted as index latency.
//
// # Outputs
//
//   - index.Searcher: Ready to use.
//   - error: Unknown backend, missing credentials store entries that fail
//     for reasons other than being unset, or an unloadable records file.
func Open(ctx context.Context, cfg *config.Config, deps Deps) (index.Searcher, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		searcher index.Searcher
		err      error
	)
	switch cfg.Index.Backend {
	case "solr":
		searcher, err = openSolr(ctx, cfg, deps, logger)
	case "weaviate":
		searcher, err = openWeaviate(ctx, cfg, deps, logger)
	case "memory":
		searcher, err = openMemory(cfg, deps)
	default:
		err = fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
	if err != nil {
		return nil, err
	}

	instrumented, err := index.NewInstrumented(searcher, deps.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("instrumenting %s index: %w", searcher.Name(), err)
	}
	searcher = instrumented

	if cfg.Index.RateLimit > 0 {
		searcher = index.NewRateLimited(searcher, cfg.Index.RateLimit, cfg.Index.Burst)
	}

	logger.Info("index backend ready",
		slog.String("backend", cfg.Index.Backend),
		slog.String("endpoint", redact.String(cfg.Index.Endpoint)),
		slog.Float64("rate_limit", cfg.Index.RateLimit),
	)
	return searcher, nil
}

func openSolr(ctx context.Context, cfg *config.Config, deps Deps, logger *slog.Logger) (index.Searcher, error) {
	username, err := secrets.Optional(ctx, deps.Secrets, cfg.Index.UsernameEnv)
	if err != nil {
		return nil, fmt.Errorf("solr username: %w", err)
	}
	password, err := secrets.Optional(ctx, deps.Secrets, cfg.Index.PasswordEnv)
	if err != nil {
		return nil, fmt.Errorf("solr password: %w", err)
	}
	return solr.New(solr.Options{
		Endpoint: cfg.Index.Endpoint,
		Core:     cfg.CoreName(),
		Timeout:  cfg.Index.Timeout,
		Username: username,
		Password: password,
		Logger:   logger,
	})
}

func openWeaviate(ctx context.Context, cfg *config.Config, deps Deps, logger *slog.Logger) (index.Searcher, error) {
	apiKey, err := secrets.Optional(ctx, deps.Secrets, cfg.Index.Weaviate.APIKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("weaviate api key: %w", err)
	}
	return weaviate.New(weaviate.Options{
		Endpoint: cfg.Index.Endpoint,
		Class:    cfg.Index.Weaviate.Class,
		APIKey:   apiKey,
		Logger:   logger,
	})
}

func openMemory(cfg *config.Config, deps Deps) (index.Searcher, error) {
	fs := deps.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return index.LoadMemoryIndex(fs, cfg.Index.RecordsPath)
}
