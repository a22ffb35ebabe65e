// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package javamodel

import (
	"errors"
	"time"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const tracerName = "rename.javamodel"

var (
	// parseDuration measures snapshot parse and bind latency.
	//
	// Labels:
	//   - status: "success", "syntax", "error", "cancelled"
	parseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rename",
			Subsystem: "javamodel",
			Name:      "parse_duration_seconds",
			Help:      "Duration of snapshot parses in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"status"},
	)

	// unitsParsed counts compilation units run through tree-sitter.
	unitsParsed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rename",
			Subsystem: "javamodel",
			Name:      "units_parsed_total",
			Help:      "Compilation units parsed.",
		},
	)
)

func recordParseMetrics(duration time.Duration, units int, err error) {
	status := "success"
	switch {
	case errors.Is(err, model.ErrCancelled):
		status = "cancelled"
	case errors.Is(err, model.ErrReparseFailed):
		status = "syntax"
	case err != nil:
		status = "error"
	}
	parseDuration.WithLabelValues(status).Observe(duration.Seconds())
	unitsParsed.Add(float64(units))
}
