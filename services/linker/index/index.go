// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index defines the search index boundary and the backends that do
// not need a network: an in-memory BM25 index plus rate-limiting and
// instrumentation decorators for any backend.
package index

import (
	"context"
	"errors"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
	"github.com/AleutianAI/EntityLink/services/linker/query"
)

var (
	// ErrMalformedResponse is returned when the index answers with a body
	// that cannot be decoded into a SearchResult.
	ErrMalformedResponse = errors.New("malformed index response")

	// ErrUnavailable is returned when the index cannot be reached or
	// answers with an error status.
	ErrUnavailable = errors.New("index unavailable")
)

// Searcher runs one query against a search index.
//
// # Description
//
// Search returns hits ordered by descending relevance with the query's max
// score. Transport failures and undecodable responses are errors; an empty
// result is not.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Searcher interface {
	Search(ctx context.Context, req query.Request) (*entity.SearchResult, error)

	// Name identifies the backend in logs, metrics and audit points.
	Name() string
}

// SearcherFunc adapts a function to Searcher. Name returns "func".
type SearcherFunc func(ctx context.Context, req query.Request) (*entity.SearchResult, error)

// Search implements Searcher.
func (f SearcherFunc) Search(ctx context.Context, req query.Request) (*entity.SearchResult, error) {
	return f(ctx, req)
}

// Name implements Searcher.
func (f SearcherFunc) Name() string { return "func" }
