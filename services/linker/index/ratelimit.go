// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
	"github.com/AleutianAI/EntityLink/services/linker/query"
)

// RateLimited caps the query rate sent to another Searcher.
//
// Callers block until a token is available or their context ends, so a
// batch larger than the burst spreads out over time instead of flooding
// the index.
type RateLimited struct {
	next    Searcher
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a limiter of qps queries per second and
// the given burst. A burst below 1 is raised to 1.
func NewRateLimited(next Searcher, qps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(qps), burst),
	}
}

// Name implements Searcher.
func (r *RateLimited) Name() string { return r.next.Name() }

// Search implements Searcher.
func (r *RateLimited) Search(ctx context.Context, req query.Request) (*entity.SearchResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Search(ctx, req)
}
