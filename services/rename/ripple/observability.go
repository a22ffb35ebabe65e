// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ripple

import (
	"errors"
	"time"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const tracerName = "rename.ripple"

// Resolution paths used as the "path" label.
const (
	pathFast  = "fast"
	pathFull  = "full"
	pathCheap = "cheap"
)

var (
	// resolveDuration measures Resolve latency.
	//
	// Labels:
	//   - path: "fast", "full", "cheap"
	//   - status: "success", "error", "cancelled"
	resolveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rename",
			Subsystem: "ripple",
			Name:      "resolve_duration_seconds",
			Help:      "Duration of ripple resolutions in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"path", "status"},
	)

	// partitionsObserved tracks how many override partitions a resolution saw.
	partitionsObserved = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rename",
			Subsystem: "ripple",
			Name:      "partitions",
			Help:      "Number of override partitions per resolution.",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		},
	)

	// marriagesTotal counts alien partitions merged into a ripple set.
	marriagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rename",
			Subsystem: "ripple",
			Name:      "marriages_total",
			Help:      "Alien partitions merged through a shared subtype.",
		},
	)
)

func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, model.ErrCancelled):
		return "cancelled"
	default:
		return "error"
	}
}

// recordResolveMetrics records one completed resolution.
func recordResolveMetrics(path string, duration time.Duration, res *Result, err error) {
	resolveDuration.WithLabelValues(path, statusOf(err)).Observe(duration.Seconds())
	if err != nil || res == nil {
		return
	}
	if res.Partitions > 0 {
		partitionsObserved.Observe(float64(res.Partitions))
	}
	if res.Married > 0 {
		marriagesTotal.Add(float64(res.Married))
	}
}
