// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package alto

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Document statuses.
const (
	StatusAnnotated = "annotated"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// documentsTotal counts processed documents.
// Labels: status (annotated, skipped, failed)
var documentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "linker",
	Subsystem: "alto",
	Name:      "documents_total",
	Help:      "ALTO documents processed by status",
}, []string{"status"})

// Summary totals a directory run.
type Summary struct {
	Annotated int `json:"annotated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Linked    int `json:"linked"`
}

// ProcessFile annotates src/name into dst/name.
//
// Documents that are not ALTO are skipped and nothing is written; the
// returned error then wraps ErrNotALTO.
func (a *Annotator) ProcessFile(ctx context.Context, src, dst Store, name string) (Stats, error) {
	data, err := src.Read(ctx, name)
	if err != nil {
		documentsTotal.WithLabelValues(StatusFailed).Inc()
		return Stats{}, fmt.Errorf("reading %s: %w", name, err)
	}

	out, stats, err := a.Annotate(ctx, data)
	switch {
	case errors.Is(err, ErrNotALTO):
		documentsTotal.WithLabelValues(StatusSkipped).Inc()
		return stats, fmt.Errorf("%s: %w", name, err)
	case err != nil:
		documentsTotal.WithLabelValues(StatusFailed).Inc()
		return stats, fmt.Errorf("annotating %s: %w", name, err)
	}

	if err := dst.Write(ctx, name, out); err != nil {
		documentsTotal.WithLabelValues(StatusFailed).Inc()
		return stats, fmt.Errorf("writing %s: %w", name, err)
	}
	documentsTotal.WithLabelValues(StatusAnnotated).Inc()
	return stats, nil
}

// ProcessAll annotates every document of src into dst under the same name.
//
// # Description
//
// A document that fails is logged and counted; the run continues. The run
// stops early only when ctx ends, returning the summary so far and
// ctx.Err().
func (a *Annotator) ProcessAll(ctx context.Context, src, dst Store) (Summary, error) {
	var sum Summary

	names, err := src.List(ctx)
	if err != nil {
		return sum, err
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		stats, err := a.ProcessFile(ctx, src, dst, name)
		switch {
		case err == nil:
			sum.Annotated++
			sum.Linked += stats.Linked
			a.logger.Info("annotated",
				slog.String("document", name),
				slog.Int("tags", stats.Tags),
				slog.Int("linked", stats.Linked),
			)
		case errors.Is(err, ErrNotALTO):
			sum.Skipped++
			a.logger.Debug("skipped", slog.String("document", name), slog.String("reason", err.Error()))
		case ctx.Err() != nil:
			return sum, ctx.Err()
		default:
			sum.Failed++
			a.logger.Warn("annotation failed", slog.String("document", name), slog.String("error", err.Error()))
		}
	}

	a.logger.Info("alto run finished",
		slog.String("source", src.String()),
		slog.String("target", dst.String()),
		slog.Int("annotated", sum.Annotated),
		slog.Int("skipped", sum.Skipped),
		slog.Int("failed", sum.Failed),
		slog.Int("linked", sum.Linked),
	)
	return sum, nil
}
