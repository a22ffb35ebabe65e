// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conflict simulates a rename on a throwaway copy of the source and
// reports what it would break.
package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Request describes one simulated rename.
type Request struct {
	// Original is the committed source. It is never modified.
	Original model.Snapshot

	// Edits are applied to a copy of Original.
	Edits []model.TextEdit

	// Declaration is the binding key of the renamed declaration.
	Declaration model.BindingKey

	// Related are the keys of the other declarations renamed in lockstep.
	// Names bound to them count as bound to the target.
	Related []model.BindingKey

	// AllowCapture downgrades shadowing from an error to a warning.
	AllowCapture bool
}

// Options configures an Analyzer.
type Options struct {
	// ReportWarnings also reports introduced warning-level diagnostics.
	ReportWarnings bool

	Logger *slog.Logger
}

// Option is a functional option for Analyzer.
type Option func(*Options)

// WithReportWarnings includes introduced warnings in reports.
func WithReportWarnings(report bool) Option {
	return func(o *Options) {
		o.ReportWarnings = report
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// Analyzer is the conflict analyzer.
//
// Description:
//
//	Applies the edits of a Request to a private copy of the original
//	snapshot and parses both versions. The report contains:
//	  - NEW_PROBLEM for every introduced error diagnostic,
//	  - DANGLING_REFERENCE (fatal) for every untouched name still bound to
//	    a renamed declaration,
//	  - SHADOWING for every edited name now bound to something else,
//	  - a single fatal REPARSE_FAILED if the edited copy does not parse.
//
// Thread Safety:
//
//	Safe for concurrent use when the SourceModel is.
type Analyzer struct {
	source model.SourceModel
	opts   Options
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(source model.SourceModel, opts ...Option) (*Analyzer, error) {
	if source == nil {
		return nil, fmt.Errorf("source model must not be nil")
	}
	options := Options{Logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	return &Analyzer{source: source, opts: options}, nil
}

// Analyze simulates req and reports its conflicts.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	req - The simulated rename.
//
// Outputs:
//
//	*model.ConflictReport - Entries sorted by location. A reparse failure
//	                        is an entry, not an error.
//	error - ErrInvalidEdit for overlapping or out-of-range edits,
//	        ErrCancelled if ctx is done, ErrModel if the original snapshot
//	        cannot be parsed or the model fails.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*model.ConflictReport, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "conflict.Analyzer.Analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("conflict.declaration", string(req.Declaration)),
		attribute.Int("conflict.edits", len(req.Edits)),
		attribute.Bool("conflict.allow_capture", req.AllowCapture),
	)

	start := time.Now()
	report, err := a.analyze(ctx, req)
	recordAnalyzeMetrics(time.Since(start), report, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "conflict analysis failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("conflict.entries", len(report.Entries)),
		attribute.Bool("conflict.fatal", report.HasFatal()),
	)
	a.opts.Logger.Debug("conflicts analyzed",
		slog.String("declaration", string(req.Declaration)),
		slog.Int("edits", len(req.Edits)),
		slog.Int("entries", len(report.Entries)),
	)
	return report, nil
}

func (a *Analyzer) analyze(ctx context.Context, req Request) (*model.ConflictReport, error) {
	if err := model.CheckCancelled(ctx); err != nil {
		return nil, err
	}

	modified, edits, err := req.Original.Apply(req.Edits)
	if err != nil {
		return nil, err
	}

	before, err := a.source.Parse(ctx, req.Original)
	if err != nil {
		if errors.Is(err, model.ErrCancelled) || ctx.Err() != nil {
			return nil, model.Classify(ctx, "parse original", err)
		}
		return nil, fmt.Errorf("parse original: %w: %w", model.ErrModel, err)
	}
	if err := model.CheckCancelled(ctx); err != nil {
		return nil, err
	}

	after, err := a.source.Parse(ctx, modified)
	if err != nil {
		if errors.Is(err, model.ErrReparseFailed) {
			a.opts.Logger.Info("edited source does not parse", slog.String("error", err.Error()))
			return reparseFailed(err), nil
		}
		return nil, model.Classify(ctx, "parse edited copy", err)
	}

	report := &model.ConflictReport{Entries: []model.Conflict{}}
	a.addProblems(report, DiffDiagnostics(before.Diagnostics, after.Diagnostics, edits))
	a.addBindings(report, DiffBindings(after.Bindings, targetSet(req), edits), req.AllowCapture)
	sortEntries(report.Entries)
	return report, nil
}

func (a *Analyzer) addProblems(report *model.ConflictReport, diff DiagnosticDiff) {
	for _, d := range diff.Introduced {
		if d.Severity < model.SeverityError && !a.opts.ReportWarnings {
			continue
		}
		report.Entries = append(report.Entries, model.Conflict{
			Kind:     model.ConflictNewProblem,
			Severity: d.Severity,
			Code:     d.Code,
			Message:  d.Message,
			Location: d.Range,
		})
	}
}

func (a *Analyzer) addBindings(report *model.ConflictReport, diff BindingDiff, allowCapture bool) {
	for _, n := range diff.Dangling {
		report.Entries = append(report.Entries, model.Conflict{
			Kind:     model.ConflictDangling,
			Severity: model.SeverityError,
			Fatal:    true,
			Message:  fmt.Sprintf("%q still refers to the renamed declaration but was not edited", n.Name),
			Location: n.Range,
		})
	}
	severity := model.SeverityError
	if allowCapture {
		severity = model.SeverityWarning
	}
	for _, n := range diff.Captured {
		report.Entries = append(report.Entries, model.Conflict{
			Kind:     model.ConflictShadowing,
			Severity: severity,
			Message:  fmt.Sprintf("renamed %q now refers to %s", n.Name, n.Key),
			Location: n.Range,
		})
	}
}

func reparseFailed(err error) *model.ConflictReport {
	entry := model.Conflict{
		Kind:     model.ConflictReparseFailed,
		Severity: model.SeverityError,
		Fatal:    true,
		Code:     "Syntax",
		Message:  err.Error(),
	}
	var re *model.ReparseError
	if errors.As(err, &re) {
		entry.Message = re.Message
		entry.Location = model.Range{Container: re.Container, Offset: re.Offset}
	}
	return &model.ConflictReport{Entries: []model.Conflict{entry}}
}

func targetSet(req Request) map[model.BindingKey]bool {
	targets := make(map[model.BindingKey]bool, 1+len(req.Related))
	if req.Declaration != "" {
		targets[req.Declaration] = true
	}
	for _, k := range req.Related {
		if k != "" {
			targets[k] = true
		}
	}
	return targets
}

func sortEntries(entries []model.Conflict) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Location, entries[j].Location
		if a.Container != b.Container {
			return a.Container < b.Container
		}
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		return entries[i].Kind < entries[j].Kind
	})
}
