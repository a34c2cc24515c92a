// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
)

// Linker resolves mentions. It matches linker.Linker.
type Linker interface {
	Resolve(ctx context.Context, mention string) entity.Result
	ResolveBatch(ctx context.Context, mentions []string) (map[string]entity.Result, error)
}

// CachedLinker serves results from a ResultCache and resolves misses with
// the wrapped Linker.
//
// Cache errors are logged and treated as misses; the cache never turns a
// resolvable mention into a failure.
//
// # Thread Safety
//
// Safe for concurrent use if the wrapped Linker is.
type CachedLinker struct {
	next   Linker
	cache  *ResultCache
	logger *slog.Logger
}

// NewCachedLinker wraps next with cache.
func NewCachedLinker(next Linker, cache *ResultCache, logger *slog.Logger) *CachedLinker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedLinker{next: next, cache: cache, logger: logger}
}

// Resolve implements Linker.
func (c *CachedLinker) Resolve(ctx context.Context, mention string) entity.Result {
	if res, ok := c.lookup(ctx, mention); ok {
		return res
	}
	res := c.next.Resolve(ctx, mention)
	c.store(ctx, mention, res)
	return res
}

// ResolveBatch implements Linker. Cached mentions are answered directly;
// the rest go to the wrapped Linker as one batch.
func (c *CachedLinker) ResolveBatch(ctx context.Context, mentions []string) (map[string]entity.Result, error) {
	out := make(map[string]entity.Result, len(mentions))
	seen := make(map[string]struct{}, len(mentions))
	var misses []string
	for _, m := range mentions {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		if res, ok := c.lookup(ctx, m); ok {
			out[m] = res
			continue
		}
		misses = append(misses, m)
	}

	if len(misses) == 0 {
		return out, ctx.Err()
	}

	resolved, err := c.next.ResolveBatch(ctx, misses)
	for m, res := range resolved {
		out[m] = res
		c.store(ctx, m, res)
	}
	return out, err
}

func (c *CachedLinker) lookup(ctx context.Context, mention string) (entity.Result, bool) {
	res, ok, err := c.cache.Get(ctx, mention)
	if err != nil {
		c.logger.Warn("result cache: lookup failed, resolving",
			slog.String("mention", mention),
			slog.String("error", err.Error()),
		)
		return entity.Result{}, false
	}
	return res, ok
}

func (c *CachedLinker) store(ctx context.Context, mention string, res entity.Result) {
	if err := c.cache.Put(ctx, mention, res); err != nil {
		c.logger.Warn("result cache: store failed",
			slog.String("mention", mention),
			slog.String("error", err.Error()),
		)
	}
}
