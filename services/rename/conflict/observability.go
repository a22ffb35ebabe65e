// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conflict

import (
	"errors"
	"time"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const tracerName = "rename.conflict"

var (
	// entriesTotal counts reported conflicts.
	//
	// Labels:
	//   - kind: "NEW_PROBLEM", "DANGLING_REFERENCE", "SHADOWING", "REPARSE_FAILED"
	entriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rename",
			Subsystem: "conflict",
			Name:      "entries_total",
			Help:      "Conflict report entries by kind.",
		},
		[]string{"kind"},
	)

	// analyzeDuration measures Analyze latency, dominated by the two parses.
	analyzeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rename",
			Subsystem: "conflict",
			Name:      "analyze_duration_seconds",
			Help:      "Duration of conflict analyses in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

func recordAnalyzeMetrics(duration time.Duration, report *model.ConflictReport, err error) {
	status := "success"
	switch {
	case errors.Is(err, model.ErrCancelled):
		status = "cancelled"
	case err != nil:
		status = "error"
	case report.HasFatal():
		status = "fatal"
	}
	analyzeDuration.WithLabelValues(status).Observe(duration.Seconds())
	if report == nil {
		return
	}
	for _, e := range report.Entries {
		entriesTotal.WithLabelValues(string(e.Kind)).Inc()
	}
}
