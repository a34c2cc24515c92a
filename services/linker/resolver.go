// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package linker resolves named-entity mentions to knowledge base entities
// and exposes the resolver over HTTP.
//
// A resolution runs one pipeline per mention:
//
//	mention → query.Builder → index.Searcher → candidates.Aggregate
//	        → scoring.Scorer → entity.Result
//
// Index problems never escape as errors: they become a lookup_failure
// result for the affected mention so one bad mention never aborts a batch.
package linker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/EntityLink/services/linker/audit"
	"github.com/AleutianAI/EntityLink/services/linker/candidates"
	"github.com/AleutianAI/EntityLink/services/linker/config"
	"github.com/AleutianAI/EntityLink/services/linker/entity"
	"github.com/AleutianAI/EntityLink/services/linker/index"
	"github.com/AleutianAI/EntityLink/services/linker/query"
	"github.com/AleutianAI/EntityLink/services/linker/redact"
	"github.com/AleutianAI/EntityLink/services/linker/scoring"
)

var tracer = otel.Tracer("github.com/AleutianAI/EntityLink/services/linker")

// Reasons reported on results that are not matches.
const (
	ReasonEmptyMention = "empty mention"
	ReasonNoCandidates = "no candidates"
	ReasonBelowCutoff  = "no candidate above cutoffs"
)

// Linker resolves mentions.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Linker interface {
	// Resolve resolves one mention. It never fails; problems are reported
	// through the result's Outcome and Reason.
	Resolve(ctx context.Context, mention string) entity.Result

	// ResolveBatch resolves every distinct mention. The error is non-nil
	// only when ctx ended; the map then holds the mentions that finished.
	ResolveBatch(ctx context.Context, mentions []string) (map[string]entity.Result, error)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithAuditSink sets the sink receiving one event per resolution. Nil is
// ignored.
func WithAuditSink(sink audit.Sink) Option {
	return func(r *Resolver) {
		if sink != nil {
			r.audit = sink
		}
	}
}

// WithWorkers overrides cfg.Batch.Workers. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		if n >= 1 {
			r.workers = n
		}
	}
}

// Resolver is the entity resolution facade.
//
// # Description
//
// Holds only immutable collaborators built from one config.Config, so any
// number of independent resolvers can coexist, each with its own index.
//
// # Thread Safety
//
// Safe for concurrent use.
type Resolver struct {
	searcher        index.Searcher
	builder         *query.Builder
	scorer          *scoring.Scorer
	relevancyCutoff float64
	workers         int
	audit           audit.Sink
	logger          *slog.Logger
}

// NewResolver creates a Resolver.
//
// # Inputs
//
//   - cfg: Validated configuration. Must not be nil.
//   - searcher: The index to query. Must not be nil.
//   - opts: Optional logger, audit sink and worker override.
//
// # Outputs
//
//   - *Resolver: Ready to use.
//   - error: Non-nil when cfg or searcher is nil.
func NewResolver(cfg *config.Config, searcher index.Searcher, opts ...Option) (*Resolver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("NewResolver: cfg must not be nil")
	}
	if searcher == nil {
		return nil, fmt.Errorf("NewResolver: searcher must not be nil")
	}

	r := &Resolver{
		searcher:        searcher,
		builder:         query.NewBuilder(cfg),
		scorer:          scoring.NewScorer(cfg.Scoring),
		relevancyCutoff: cfg.Scoring.RelevancyCutoff,
		workers:         cfg.Batch.Workers,
		audit:           audit.NopSink{},
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = 1
	}
	return r, nil
}

// Backend returns the name of the index backend.
func (r *Resolver) Backend() string {
	return r.searcher.Name()
}

// Resolve implements Linker.
func (r *Resolver) Resolve(ctx context.Context, mention string) entity.Result {
	res, _ := r.resolve(ctx, mention)
	return res
}

// Explain resolves mention and also returns every label variant that
// cleared the similarity cutoff, best first.
func (r *Resolver) Explain(ctx context.Context, mention string) (entity.Result, []scoring.VariantScore) {
	return r.resolve(ctx, mention)
}

func (r *Resolver) resolve(ctx context.Context, raw string) (entity.Result, []scoring.VariantScore) {
	ctx, span := tracer.Start(ctx, "linker.Resolve",
		trace.WithAttributes(
			attribute.Int("mention.length", len(raw)),
			attribute.String("index.backend", r.searcher.Name()),
		),
	)
	defer span.End()

	start := time.Now()
	res, ranked := r.pipeline(ctx, raw)
	took := time.Since(start)

	span.SetAttributes(
		attribute.String("outcome", string(res.Outcome)),
		attribute.Int("scored_variants", len(ranked)),
	)
	if res.Outcome == entity.OutcomeLookupFailure {
		span.SetStatus(codes.Error, res.Reason)
	}

	recordResolution(res.Outcome, took)
	r.audit.Record(ctx, audit.EventFromResult(res, r.searcher.Name(), took, start))

	logger := loggerFor(ctx, r.logger)
	if res.Outcome == entity.OutcomeLookupFailure {
		logger.Warn("mention lookup failed",
			slog.String("mention", raw),
			slog.String("reason", res.Reason),
			slog.Duration("duration", took),
		)
	} else {
		attrs := []any{
			slog.String("mention", raw),
			slog.String("outcome", string(res.Outcome)),
			slog.Duration("duration", took),
		}
		if res.Match != nil {
			attrs = append(attrs, slog.String("id", res.Match.ID), slog.Float64("score", res.Match.Score))
		}
		logger.Debug("mention resolved", attrs...)
	}
	return res, ranked
}

// pipeline runs query, search, aggregation and scoring for one mention.
func (r *Resolver) pipeline(ctx context.Context, raw string) (entity.Result, []scoring.VariantScore) {
	m := query.NewMention(raw)
	res := entity.Result{Mention: m, Outcome: entity.OutcomeNoMatch}

	if m.IsEmpty() {
		res.Reason = ReasonEmptyMention
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return lookupFailure(m, err), nil
	}

	hits, err := r.searcher.Search(ctx, r.builder.Build(m))
	if err != nil {
		return lookupFailure(m, err), nil
	}
	if hits == nil || len(hits.Docs) == 0 {
		res.Reason = ReasonNoCandidates
		return res, nil
	}

	agg, err := candidates.Aggregate(hits, r.relevancyCutoff)
	if err != nil {
		return lookupFailure(m, err), nil
	}

	d := r.scorer.Score(m, agg)
	res.Closest = d.Closest
	if d.Match == nil {
		res.Reason = ReasonBelowCutoff
		return res, d.Ranked
	}
	res.Outcome = entity.OutcomeMatched
	res.Match = d.Match
	return res, d.Ranked
}

func lookupFailure(m entity.Mention, cause error) entity.Result {
	return entity.Result{
		Mention: m,
		Outcome: entity.OutcomeLookupFailure,
		Reason:  redact.String(fmt.Errorf("%w: %w", entity.ErrLookupFailure, cause).Error()),
	}
}

// ResolveBatch implements Linker.
//
// # Description
//
// Mentions are deduplicated by exact, case-sensitive string equality, so
// "Paris" and "paris" are resolved separately. Distinct mentions run on up
// to cfg.Batch.Workers goroutines. Once ctx ends no further resolution
// starts, resolutions that failed because of it are dropped, and the
// finished results are returned together with ctx.Err().
//
// # Outputs
//
//   - map[string]entity.Result: Keyed by the raw mention.
//   - error: ctx.Err() when the batch was cut short, otherwise nil.
func (r *Resolver) ResolveBatch(ctx context.Context, mentions []string) (map[string]entity.Result, error) {
	unique := Distinct(mentions)

	ctx, span := tracer.Start(ctx, "linker.ResolveBatch",
		trace.WithAttributes(
			attribute.Int("batch.mentions", len(mentions)),
			attribute.Int("batch.distinct", len(unique)),
			attribute.Int("batch.workers", r.workers),
		),
	)
	defer span.End()
	batchSize.Observe(float64(len(unique)))

	var (
		mu  sync.Mutex
		out = make(map[string]entity.Result, len(unique))
		g   errgroup.Group
	)
	g.SetLimit(r.workers)

	for _, m := range unique {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := r.Resolve(ctx, m)
			if res.Outcome == entity.OutcomeLookupFailure && ctx.Err() != nil {
				return nil
			}
			mu.Lock()
			out[m] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		loggerFor(ctx, r.logger).Warn("batch cut short",
			slog.Int("distinct", len(unique)),
			slog.Int("finished", len(out)),
			slog.String("error", err.Error()),
		)
		return out, err
	}
	return out, nil
}

// Distinct returns mentions without repeats, keeping first-seen order.
// Comparison is exact and case-sensitive.
func Distinct(mentions []string) []string {
	seen := make(map[string]struct{}, len(mentions))
	out := make([]string, 0, len(mentions))
	for _, m := range mentions {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// loggerFor adds the active trace ID, if any, to logger.
func loggerFor(ctx context.Context, logger *slog.Logger) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return logger
	}
	return logger.With(slog.String("trace_id", sc.TraceID().String()))
}
