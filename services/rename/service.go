// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rename plans method renames over a Java workspace.
//
// A plan runs the ripple resolver, computes the search scope of the ripple
// set, turns every reference into a text edit and simulates the edits with
// the conflict analyzer. The package also exposes the pipeline over HTTP
// and watches the workspace for changes.
package rename

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianRename/services/rename/config"
	"github.com/AleutianAI/AleutianRename/services/rename/conflict"
	"github.com/AleutianAI/AleutianRename/services/rename/javamodel"
	"github.com/AleutianAI/AleutianRename/services/rename/journal"
	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"github.com/AleutianAI/AleutianRename/services/rename/ripple"
	"github.com/AleutianAI/AleutianRename/services/rename/scope"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidName indicates a new name that is not a usable Java identifier.
var ErrInvalidName = errors.New("invalid name")

// ErrJournalDisabled indicates a history request on a service without a journal.
var ErrJournalDisabled = errors.New("plan journal disabled")

// Loader builds a fresh Java model. It is called once by NewService and
// again on every Reload.
type Loader func(ctx context.Context) (*javamodel.Model, error)

// DirLoader returns a Loader that opens the workspace rooted at dir.
func DirLoader(dir string, cfg config.JavaModelConfig, logger *slog.Logger) Loader {
	return func(ctx context.Context) (*javamodel.Model, error) {
		ws, err := javamodel.Open(ctx, dir, cfg.MaxFileSize, logger)
		if err != nil {
			return nil, model.Classify(ctx, "opening workspace", err)
		}
		return javamodel.NewModel(ctx, ws,
			javamodel.WithParseWorkers(cfg.ParseWorkers),
			javamodel.WithMaxFileSize(cfg.MaxFileSize),
			javamodel.WithLogger(logger),
		)
	}
}

// =============================================================================
// Options
// =============================================================================

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithJournal records every evaluated plan in j.
func WithJournal(j *journal.Journal) Option {
	return func(s *Service) {
		s.journal = j
	}
}

// =============================================================================
// Service
// =============================================================================

// engine is one consistent set of collaborators built over a single model.
type engine struct {
	model    *javamodel.Model
	resolver *ripple.Resolver
	scopes   *scope.Factory
	analyzer *conflict.Analyzer
	builtAt  time.Time
}

// Service plans renames.
//
// Description:
//
//	Holds the current Java model and the ripple resolver, scope factory and
//	conflict analyzer built over it. Reload swaps all of them at once;
//	requests in flight keep the engine they started with.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Service struct {
	cfg     *config.Config
	load    Loader
	logger  *slog.Logger
	journal *journal.Journal

	mu      sync.RWMutex
	current *engine
	reloads int
}

// NewService loads the model and builds the pipeline.
//
// Inputs:
//
//	ctx - Context for the initial load.
//	cfg - Configuration. Nil means config.Default().
//	load - Model loader. Must not be nil.
//	opts - Optional configuration.
//
// Outputs:
//
//	*Service - The service.
//	error - Loader failures, ErrCancelled if ctx is done.
func NewService(ctx context.Context, cfg *config.Config, load Loader, opts ...Option) (*Service, error) {
	if load == nil {
		return nil, fmt.Errorf("loader must not be nil")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Service{cfg: cfg, load: load, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	e, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	s.current = e
	return s, nil
}

// Reload rebuilds the model. On failure the previous model stays active.
func (s *Service) Reload(ctx context.Context) error {
	start := time.Now()
	e, err := s.build(ctx)
	if err != nil {
		s.logger.Warn("reload failed, keeping previous model", slog.String("error", err.Error()))
		return err
	}
	s.mu.Lock()
	s.current = e
	s.reloads++
	s.mu.Unlock()
	s.logger.Info("workspace reloaded",
		slog.Int("units", len(e.model.Workspace().Sources())),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (s *Service) build(ctx context.Context) (*engine, error) {
	m, err := s.load(ctx)
	if err != nil {
		return nil, model.Classify(ctx, "loading model", err)
	}

	ropts := []ripple.Option{
		ripple.WithCheapPathRatio(s.cfg.Ripple.CheapPathRatio),
		ripple.WithLogger(s.logger),
	}
	if s.cfg.Ripple.ExcludeBinaries {
		ropts = append(ropts, ripple.WithCoveredBinaries(func(id model.MethodID) bool { return id.Binary }))
	}
	resolver, err := ripple.NewResolver(m, m.Methods(), ropts...)
	if err != nil {
		return nil, err
	}
	scopes, err := scope.NewFactory(m, m, scope.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	analyzer, err := conflict.NewAnalyzer(m,
		conflict.WithReportWarnings(s.cfg.Conflict.ReportWarnings),
		conflict.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	return &engine{
		model:    m,
		resolver: resolver,
		scopes:   scopes,
		analyzer: analyzer,
		builtAt:  time.Now(),
	}, nil
}

func (s *Service) engine() *engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Journal returns the plan journal, or nil when plans are not recorded.
func (s *Service) Journal() *journal.Journal { return s.journal }

// Status summarizes the loaded model.
type Status struct {
	Projects     int   `json:"projects"`
	Units        int   `json:"units"`
	Reloads      int   `json:"reloads"`
	BuiltAtMilli int64 `json:"built_at_milli"`
	Journal      bool  `json:"journal"`
}

// Status reports the loaded model.
func (s *Service) Status() Status {
	s.mu.RLock()
	e, reloads := s.current, s.reloads
	s.mu.RUnlock()
	return Status{
		Projects:     len(e.model.Workspace().Projects()),
		Units:        len(e.model.Workspace().Sources()),
		Reloads:      reloads,
		BuiltAtMilli: e.builtAt.UnixMilli(),
		Journal:      s.journal != nil,
	}
}

// =============================================================================
// Queries
// =============================================================================

// Resolve returns the ripple set of id.
func (s *Service) Resolve(ctx context.Context, id model.MethodID) (*ripple.Result, error) {
	e := s.engine()
	decl, err := e.model.Methods().Describe(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.resolver.Resolve(ctx, decl.ID)
}

// ScopeResult is the search scope of a method or of its ripple set.
type ScopeResult struct {
	Method  model.MethodID    `json:"method"`
	Methods []model.MethodID  `json:"methods"`
	Scope   model.SearchScope `json:"scope"`
}

// Scope returns the search scope of id. With wholeRipple set the scope
// covers every method in id's ripple set.
func (s *Service) Scope(ctx context.Context, id model.MethodID, wholeRipple bool) (*ScopeResult, error) {
	e := s.engine()
	decl, err := e.model.Methods().Describe(ctx, id)
	if err != nil {
		return nil, err
	}
	if !wholeRipple {
		sc, err := e.scopes.Compute(ctx, decl.ID, decl.Visibility)
		if err != nil {
			return nil, err
		}
		return &ScopeResult{Method: decl.ID, Methods: []model.MethodID{decl.ID}, Scope: sc}, nil
	}
	res, err := e.resolver.Resolve(ctx, decl.ID)
	if err != nil {
		return nil, err
	}
	sc, err := e.scopes.ForDeclarations(ctx, res.Declarations)
	if err != nil {
		return nil, err
	}
	return &ScopeResult{Method: decl.ID, Methods: res.Methods, Scope: sc}, nil
}

// =============================================================================
// Planning
// =============================================================================

// PlanRequest asks for the rename of Method to NewName.
type PlanRequest struct {
	Method  model.MethodID
	NewName string
}

// Plan evaluates a rename without applying it.
//
// Description:
//
//  1. Validates NewName.
//  2. Resolves the ripple set of Method.
//  3. Computes the scope of the whole ripple set.
//  4. Finds every reference to the methods that require renaming and
//     turns each into a text edit.
//  5. Simulates the edits and collects the conflict report.
//  6. Records the plan in the journal, if one is configured.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	req - The rename request.
//
// Outputs:
//
//	*Plan - The evaluated plan. A blocking plan is still a result.
//	error - ErrInvalidName, ErrUnresolvedBinding for an unknown method,
//	        ErrCancelled if ctx is done, ErrModel for collaborator failures.
func (s *Service) Plan(ctx context.Context, req PlanRequest) (*Plan, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "rename.Service.Plan",
		trace.WithAttributes(
			attribute.String("rename.method", req.Method.String()),
			attribute.String("rename.new_name", req.NewName),
		),
	)
	defer span.End()

	start := time.Now()
	plan, err := s.plan(ctx, req)
	recordPlanMetrics(time.Since(start), plan, err)

	if err != nil {
		if errors.Is(err, model.ErrCancelled) {
			span.AddEvent("cancelled")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "rename planning failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("rename.methods", len(plan.Ripple.Methods)),
		attribute.Int("rename.edits", len(plan.Edits)),
		attribute.Int("rename.conflicts", len(plan.Report.Entries)),
		attribute.Bool("rename.blocking", plan.Blocking()),
	)
	s.logger.Info("rename planned",
		slog.String("method", plan.Method.String()),
		slog.String("new_name", plan.NewName),
		slog.Int("methods", len(plan.Ripple.Methods)),
		slog.Int("edits", len(plan.Edits)),
		slog.Int("conflicts", len(plan.Report.Entries)),
		slog.Bool("blocking", plan.Blocking()),
		slog.Duration("duration", time.Since(start)),
	)
	return plan, nil
}

func (s *Service) plan(ctx context.Context, req PlanRequest) (*Plan, error) {
	if err := validateName(req.NewName); err != nil {
		return nil, err
	}
	if req.NewName == req.Method.Name {
		return nil, fmt.Errorf("%w: %s is already named %s", ErrInvalidName, req.Method, req.NewName)
	}

	e := s.engine()
	methods := e.model.Methods()
	decl, err := methods.Describe(ctx, req.Method)
	if err != nil {
		return nil, err
	}

	res, err := e.resolver.Resolve(ctx, decl.ID)
	if err != nil {
		return nil, err
	}
	sc, err := e.scopes.ForDeclarations(ctx, res.Declarations)
	if err != nil {
		return nil, err
	}
	occs, err := methods.FindReferences(ctx, sc, res.RequiringRename())
	if err != nil {
		return nil, err
	}
	edits := make([]model.TextEdit, 0, len(occs))
	for _, o := range occs {
		edits = append(edits, model.TextEdit{
			Container: o.Container,
			Offset:    o.Offset,
			Length:    o.Length,
			NewText:   req.NewName,
		})
	}

	target, err := e.model.KeyOf(ctx, decl.ID)
	if err != nil {
		return nil, err
	}
	var related []model.BindingKey
	for _, m := range res.RequiringRename() {
		if m == decl.ID {
			continue
		}
		key, err := e.model.KeyOf(ctx, m)
		if err != nil {
			return nil, err
		}
		related = append(related, key)
	}

	original, err := e.model.Snapshot(ctx, sc.Containers...)
	if err != nil {
		return nil, err
	}
	report, err := e.analyzer.Analyze(ctx, conflict.Request{
		Original:     original,
		Edits:        edits,
		Declaration:  target,
		Related:      related,
		AllowCapture: s.cfg.Conflict.AllowCapture,
	})
	if err != nil {
		return nil, err
	}

	warnings := append(append([]model.Warning(nil), res.Warnings...), sc.Warnings...)
	p := &Plan{
		Method:      decl.ID,
		NewName:     req.NewName,
		Ripple:      res,
		Scope:       sc,
		Occurrences: occs,
		Edits:       edits,
		Report:      report,
		Warnings:    warnings,
		original:    original,
	}
	s.record(ctx, p)
	return p, nil
}

// record saves p in the journal. Journal failures degrade to a warning.
func (s *Service) record(ctx context.Context, p *Plan) {
	if s.journal == nil {
		return
	}
	rec := &journal.Record{
		Method:   p.Method,
		NewName:  p.NewName,
		Methods:  p.Ripple.Methods,
		Edits:    p.Edits,
		Report:   p.Report,
		Warnings: p.Warnings,
		Blocking: p.Blocking(),
	}
	if _, err := s.journal.Save(ctx, rec); err != nil {
		s.logger.Warn("failed to record plan",
			slog.String("method", p.Method.String()),
			slog.String("error", err.Error()))
		return
	}
	p.ID = rec.ID
}

// History lists recorded plans, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]*journal.Metadata, error) {
	if s.journal == nil {
		return nil, ErrJournalDisabled
	}
	return s.journal.List(ctx, limit)
}

// Recorded loads a recorded plan.
func (s *Service) Recorded(ctx context.Context, id string) (*journal.Record, error) {
	if s.journal == nil {
		return nil, ErrJournalDisabled
	}
	rec, _, err := s.journal.Load(ctx, id)
	return rec, err
}
