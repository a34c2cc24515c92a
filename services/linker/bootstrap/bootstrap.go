// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bootstrap assembles a ready linker from configuration for the
// server and CLI binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/metric"

	linker "github.com/AleutianAI/EntityLink/services/linker"
	"github.com/AleutianAI/EntityLink/services/linker/audit"
	"github.com/AleutianAI/EntityLink/services/linker/cache"
	"github.com/AleutianAI/EntityLink/services/linker/config"
	"github.com/AleutianAI/EntityLink/services/linker/index/backend"
	"github.com/AleutianAI/EntityLink/services/linker/secrets"
	badgerstore "github.com/AleutianAI/EntityLink/services/linker/storage/badger"
)

// secretTTL bounds how long credentials stay cached in sealed memory.
const secretTTL = 15 * time.Minute

// Options carries the process-level dependencies of a Stack.
type Options struct {
	Logger *slog.Logger

	// FS holds memory backend records. Nil uses the OS filesystem.
	FS afero.Fs

	// MeterProvider receives index metrics. Nil uses the global provider.
	MeterProvider metric.MeterProvider

	// Secrets resolves credential variables. Nil uses the environment.
	Secrets secrets.SecretBackend
}

// Stack is an assembled linker and the resources it owns.
type Stack struct {
	// Resolver is the uncached resolver, used for Explain.
	Resolver *linker.Resolver

	// Linker is Resolver behind the result cache when caching is enabled,
	// otherwise Resolver itself.
	Linker linker.Linker

	audit  audit.Sink
	db     *badgerstore.DB
	logger *slog.Logger
}

// Build assembles the index backend, resolver, audit sink and result cache
// described by cfg.
//
// # Description
//
// Build fails when the index backend cannot be opened. A result cache
// that cannot be opened is logged and skipped: the linker still works,
// only slower.
//
// # Outputs
//
//   - *Stack: Close it to flush the audit sink and close the cache.
//   - error: Index backend or audit token errors.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Stack, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sec := opts.Secrets
	if sec == nil {
		sec = secrets.NewEnvBackend(secretTTL)
	}

	searcher, err := backend.Open(ctx, cfg, backend.Deps{
		Secrets:       sec,
		FS:            opts.FS,
		MeterProvider: opts.MeterProvider,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	sink, err := openAudit(ctx, cfg.Audit, sec, logger)
	if err != nil {
		return nil, err
	}

	resolver, err := linker.NewResolver(cfg, searcher,
		linker.WithLogger(logger),
		linker.WithAuditSink(sink),
	)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}

	s := &Stack{Resolver: resolver, Linker: resolver, audit: sink, logger: logger}

	if cfg.Cache.Enabled {
		db, err := openCache(cfg.Cache, logger)
		if err != nil {
			logger.Warn("result cache unavailable, resolving without it",
				slog.String("path", cfg.Cache.Path),
				slog.String("error", err.Error()),
			)
		} else {
			s.db = db
			rc := cache.NewResultCache(db, cfg.Fingerprint(), cfg.Cache.TTL, logger)
			s.Linker = cache.NewCachedLinker(resolver, rc, logger)
			logger.Info("result cache opened",
				slog.String("path", cfg.Cache.Path),
				slog.Bool("in_memory", cfg.Cache.InMemory),
				slog.Duration("ttl", cfg.Cache.TTL),
			)
		}
	}
	return s, nil
}

func openAudit(ctx context.Context, cfg config.AuditConfig, sec secrets.SecretBackend, logger *slog.Logger) (audit.Sink, error) {
	if !cfg.Enabled {
		return audit.NopSink{}, nil
	}
	token, err := secrets.Optional(ctx, sec, cfg.TokenEnv)
	if err != nil {
		return nil, fmt.Errorf("audit token: %w", err)
	}
	return audit.NewInfluxSink(audit.InfluxOptions{
		URL:    cfg.URL,
		Token:  token,
		Org:    cfg.Org,
		Bucket: cfg.Bucket,
		Logger: logger,
	}), nil
}

func openCache(cfg config.CacheConfig, logger *slog.Logger) (*badgerstore.DB, error) {
	if cfg.InMemory {
		c := badgerstore.InMemoryConfig()
		c.Logger = logger
		return badgerstore.OpenDB(c)
	}
	c := badgerstore.DefaultConfig()
	c.Path = cfg.Path
	c.Logger = logger
	return badgerstore.OpenDB(c)
}

// Cached reports whether results go through the result cache.
func (s *Stack) Cached() bool { return s.db != nil }

// Close flushes the audit sink and closes the result cache.
func (s *Stack) Close() error {
	var errs []error
	if err := s.audit.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing audit sink: %w", err))
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing result cache: %w", err))
		}
	}
	return errors.Join(errs...)
}
