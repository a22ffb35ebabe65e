// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rename

import (
	"errors"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const tracerName = "rename.service"

var (
	// planDuration measures Plan latency.
	//
	// Labels:
	//   - outcome: "clean", "blocked", "invalid", "error", "cancelled"
	planDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rename",
			Name:      "plan_duration_seconds",
			Help:      "Duration of rename planning in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"outcome"},
	)

	planEdits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rename",
			Name:      "plan_edits",
			Help:      "Text edits per rename plan.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// httpRequests counts API requests.
	//
	// Labels:
	//   - route: the registered route pattern
	//   - status: the HTTP status code
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rename",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served by the rename API.",
		},
		[]string{"route", "status"},
	)
)

func planOutcome(plan *Plan, err error) string {
	switch {
	case errors.Is(err, model.ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrInvalidName):
		return "invalid"
	case err != nil:
		return "error"
	case plan.Blocking():
		return "blocked"
	default:
		return "clean"
	}
}

// recordPlanMetrics records one completed Plan call.
func recordPlanMetrics(duration time.Duration, plan *Plan, err error) {
	planDuration.WithLabelValues(planOutcome(plan, err)).Observe(duration.Seconds())
	if err == nil {
		planEdits.Observe(float64(len(plan.Edits)))
	}
}

// MetricsMiddleware counts requests by route and status.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
