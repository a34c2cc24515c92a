// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache persists resolution results in BadgerDB.
//
// Storage layout:
//
//	linker/result/v1/{fingerprint}/{mention}  →  gob-encoded entity.Result
//	                                            TTL: cache.ttl
//
// The fingerprint is config.Config.Fingerprint: changing the index, the
// query fields or any cutoff makes old entries unreachable, and they expire
// through Badger's TTL without explicit invalidation.
package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
	badgerstore "github.com/AleutianAI/EntityLink/services/linker/storage/badger"
)

// KeyPrefix is the versioned prefix of every result key.
const KeyPrefix = "linker/result/v1/"

// defaultTTL applies when the configured TTL is zero.
const defaultTTL = 24 * time.Hour

// maxMentionKeyBytes bounds the mention part of a key. Longer mentions are
// not cached.
const maxMentionKeyBytes = 1024

// errCacheMiss distinguishes an absent key from a storage error inside a
// transaction.
var errCacheMiss = errors.New("cache miss")

// ResultCache stores resolution results keyed by configuration fingerprint
// and raw mention.
//
// # Description
//
// Lookup failures are never stored: they describe the index's state at one
// moment, not the mention. Matches and no-matches are stored with the
// configured TTL.
//
// # Thread Safety
//
// Safe for concurrent use.
type ResultCache struct {
	db          *badgerstore.DB
	fingerprint string
	ttl         time.Duration
	logger      *slog.Logger
}

// NewResultCache creates a cache over db.
//
// # Inputs
//
//   - db: Open database. Must not be nil. The caller owns its lifecycle.
//   - fingerprint: Configuration fingerprint scoping every key.
//   - ttl: Entry lifetime. Zero uses 24 hours.
//   - logger: May be nil.
func NewResultCache(db *badgerstore.DB, fingerprint string, ttl time.Duration, logger *slog.Logger) *ResultCache {
	if db == nil {
		panic("NewResultCache: db must not be nil")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultCache{db: db, fingerprint: fingerprint, ttl: ttl, logger: logger}
}

// Key returns the storage key for mention under fingerprint.
func Key(fingerprint, mention string) []byte {
	return []byte(KeyPrefix + fingerprint + "/" + mention)
}

// Get returns the cached result for mention.
//
// # Outputs
//
//   - entity.Result: The cached result, valid when found is true.
//   - bool: Whether an entry was found.
//   - error: Storage or decode failure. A miss is not an error.
func (c *ResultCache) Get(ctx context.Context, mention string) (entity.Result, bool, error) {
	if len(mention) > maxMentionKeyBytes {
		cacheLookupsTotal.WithLabelValues("miss").Inc()
		return entity.Result{}, false, nil
	}

	var raw []byte
	err := c.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(Key(c.fingerprint, mention))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get cache key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, errCacheMiss) {
		cacheLookupsTotal.WithLabelValues("miss").Inc()
		c.logger.Debug("result cache: miss", slog.String("mention", mention))
		return entity.Result{}, false, nil
	}
	if err != nil {
		cacheLookupsTotal.WithLabelValues("error").Inc()
		return entity.Result{}, false, fmt.Errorf("result cache load: %w", err)
	}

	res, err := DecodeResult(raw)
	if err != nil {
		cacheLookupsTotal.WithLabelValues("error").Inc()
		return entity.Result{}, false, fmt.Errorf("result cache decode: %w", err)
	}

	cacheLookupsTotal.WithLabelValues("hit").Inc()
	c.logger.Debug("result cache: hit",
		slog.String("mention", mention),
		slog.String("outcome", string(res.Outcome)),
	)
	return res, true, nil
}

// Put stores res under mention. Lookup failures and over-long mentions are
// skipped without error.
func (c *ResultCache) Put(ctx context.Context, mention string, res entity.Result) error {
	if res.Outcome == entity.OutcomeLookupFailure || len(mention) > maxMentionKeyBytes {
		cacheWritesTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	raw, err := EncodeResult(res)
	if err != nil {
		cacheWritesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("result cache encode: %w", err)
	}

	err = c.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.SetEntry(dgbadger.NewEntry(Key(c.fingerprint, mention), raw).WithTTL(c.ttl))
	})
	if err != nil {
		cacheWritesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("result cache save: %w", err)
	}
	cacheWritesTotal.WithLabelValues("ok").Inc()
	return nil
}

// EncodeResult gob-encodes a result.
func EncodeResult(res entity.Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(res); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeResult decodes a value written by EncodeResult.
func DecodeResult(raw []byte) (entity.Result, error) {
	var res entity.Result
	err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&res)
	return res, err
}
