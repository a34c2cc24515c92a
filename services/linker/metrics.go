// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package linker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
)

var (
	// resolutionsTotal counts finished resolutions.
	// Labels: outcome (matched, no_match, lookup_failure)
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linker",
		Subsystem: "resolver",
		Name:      "resolutions_total",
		Help:      "Total mention resolutions by outcome",
	}, []string{"outcome"})

	// resolutionDuration measures single-mention resolution latency,
	// index call included.
	// Labels: outcome
	resolutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "linker",
		Subsystem: "resolver",
		Name:      "duration_seconds",
		Help:      "Mention resolution latency by outcome",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"outcome"})

	// batchSize observes the number of distinct mentions per batch.
	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "linker",
		Subsystem: "resolver",
		Name:      "batch_size",
		Help:      "Distinct mentions per batch resolution",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
	})
)

func recordResolution(outcome entity.Outcome, took time.Duration) {
	resolutionsTotal.WithLabelValues(string(outcome)).Inc()
	resolutionDuration.WithLabelValues(string(outcome)).Observe(took.Seconds())
}
