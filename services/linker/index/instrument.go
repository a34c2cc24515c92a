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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
	"github.com/AleutianAI/EntityLink/services/linker/query"
)

const instrumentationName = "github.com/AleutianAI/EntityLink/services/linker/index"

// Instrumented records a span and OpenTelemetry metrics around every
// search of the wrapped Searcher.
//
// Metrics:
//
//	linker.index.search.duration  histogram, seconds, by backend and status
//	linker.index.search.hits      histogram, hits returned, by backend
//
// # Thread Safety
//
// Safe for concurrent use.
type Instrumented struct {
	next     Searcher
	tracer   trace.Tracer
	duration metric.Float64Histogram
	hits     metric.Int64Histogram
}

// NewInstrumented wraps next. A nil provider uses the global MeterProvider.
func NewInstrumented(next Searcher, provider metric.MeterProvider) (*Instrumented, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(instrumentationName)

	duration, err := meter.Float64Histogram("linker.index.search.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Latency of search index queries"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}
	hits, err := meter.Int64Histogram("linker.index.search.hits",
		metric.WithDescription("Number of hits returned per search index query"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 5, 10, 20, 50),
	)
	if err != nil {
		return nil, err
	}

	return &Instrumented{
		next:     next,
		tracer:   otel.Tracer(instrumentationName),
		duration: duration,
		hits:     hits,
	}, nil
}

// Name implements Searcher.
func (i *Instrumented) Name() string { return i.next.Name() }

// Search implements Searcher.
func (i *Instrumented) Search(ctx context.Context, req query.Request) (*entity.SearchResult, error) {
	backend := attribute.String("backend", i.next.Name())

	ctx, span := i.tracer.Start(ctx, "index.Search",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			backend,
			attribute.Int("rows", req.Rows),
			attribute.Int("tokens", len(req.Tokens)),
		),
	)
	defer span.End()

	start := time.Now()
	res, err := i.next.Search(ctx, req)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.duration.Record(ctx, elapsed, metric.WithAttributes(backend, attribute.String("status", "error")))
		return nil, err
	}

	if res == nil {
		res = &entity.SearchResult{}
	}

	i.duration.Record(ctx, elapsed, metric.WithAttributes(backend, attribute.String("status", "ok")))
	i.hits.Record(ctx, int64(len(res.Docs)), metric.WithAttributes(backend))
	span.SetAttributes(
		attribute.Int("hits", len(res.Docs)),
		attribute.Float64("max_score", res.MaxScore),
	)
	return res, nil
}
