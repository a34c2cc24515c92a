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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheLookupsTotal counts result cache lookups.
	// Labels: result (hit, miss, error)
	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linker",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Total result cache lookups by result",
	}, []string{"result"})

	// cacheWritesTotal counts result cache writes.
	// Labels: status (ok, error, skipped)
	cacheWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linker",
		Subsystem: "cache",
		Name:      "writes_total",
		Help:      "Total result cache writes by status",
	}, []string{"status"})
)
