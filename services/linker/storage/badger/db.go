// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps an embedded BadgerDB with context-aware transaction
// helpers and value log garbage collection.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// ErrClosed is returned by transaction helpers after Close.
var ErrClosed = errors.New("badger: database closed")

// gcDiscardRatio is the fraction of a value log file that must be garbage
// before GC rewrites it.
const gcDiscardRatio = 0.5

// Config configures OpenDB.
type Config struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// ReadOnly opens an existing directory without write access.
	ReadOnly bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns an on-disk configuration with GC every 10 minutes.
// Path must be set by the caller.
func DefaultConfig() Config {
	return Config{GCInterval: 10 * time.Minute}
}

// InMemoryConfig returns a configuration for an in-memory database.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// DB is an open BadgerDB.
//
// # Thread Safety
//
// Safe for concurrent use. Each helper call runs in its own transaction.
type DB struct {
	db     *dgbadger.DB
	logger *slog.Logger

	stopGC chan struct{}
	gcDone chan struct{}
	once   sync.Once
}

// OpenDB opens the database described by cfg.
func OpenDB(cfg Config) (*DB, error) {
	var opts dgbadger.Options
	if cfg.InMemory {
		opts = dgbadger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger: path must not be empty")
		}
		opts = dgbadger.DefaultOptions(cfg.Path).
			WithSyncWrites(cfg.SyncWrites).
			WithReadOnly(cfg.ReadOnly)
	}
	// Badger's own logger is chatty at INFO; route nothing.
	opts = opts.WithLogger(nil)

	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %q: %w", cfg.Path, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &DB{db: db, logger: logger}

	if cfg.GCInterval > 0 && !cfg.InMemory && !cfg.ReadOnly {
		d.stopGC = make(chan struct{})
		d.gcDone = make(chan struct{})
		go d.gcLoop(cfg.GCInterval)
	}
	return d, nil
}

// Badger returns the underlying database for iteration and other direct use.
func (d *DB) Badger() *dgbadger.DB {
	return d.db
}

// WithTxn runs fn in a read-write transaction and commits it if fn
// succeeds.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.db.IsClosed() {
		return ErrClosed
	}
	return d.db.Update(fn)
}

// WithReadTxn runs fn in a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.db.IsClosed() {
		return ErrClosed
	}
	return d.db.View(fn)
}

// Close stops GC and closes the database. Safe to call more than once.
func (d *DB) Close() error {
	var err error
	d.once.Do(func() {
		if d.stopGC != nil {
			close(d.stopGC)
			<-d.gcDone
		}
		err = d.db.Close()
	})
	return err
}

func (d *DB) gcLoop(interval time.Duration) {
	defer close(d.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopGC:
			return
		case <-ticker.C:
			// Keep rewriting while files are reclaimable.
			for {
				err := d.db.RunValueLogGC(gcDiscardRatio)
				if err == nil {
					continue
				}
				if !errors.Is(err, dgbadger.ErrNoRewrite) && !errors.Is(err, dgbadger.ErrRejected) {
					d.logger.Warn("badger value log GC failed", slog.String("error", err.Error()))
				}
				break
			}
		}
	}
}
