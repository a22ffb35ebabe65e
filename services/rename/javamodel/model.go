// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package javamodel is a source model for Java workspaces built on the
// tree-sitter Java grammar.
//
// A Model indexes every compilation unit of a Workspace once and answers
// hierarchy, declaration and reference queries from that committed index.
// Parse binds an edited snapshot against the committed index with the
// snapshot's units swapped in, which is what conflict analysis needs.
//
// The model is approximate: signatures are erased to simple
// type names, overload resolution is by arity, and anything it cannot
// resolve is reported as unresolved rather than as an error.
package javamodel

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// Options configures a Model.
type Options struct {
	// ParseWorkers bounds concurrent unit parses. Zero means GOMAXPROCS.
	ParseWorkers int

	// MaxFileSize rejects larger units. Zero means DefaultMaxFileSize.
	MaxFileSize int64

	Logger *slog.Logger
}

// Option is a functional option for Model.
type Option func(*Options)

// WithParseWorkers bounds concurrent unit parses.
func WithParseWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.ParseWorkers = n
		}
	}
}

// WithMaxFileSize sets the unit size limit.
func WithMaxFileSize(n int64) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxFileSize = n
		}
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

// Model is the committed index of a Workspace.
//
// Description:
//
//	Implements model.TypeHierarchyProvider, model.SourceModel and
//	model.ProjectGraph; Methods returns the model.NameSearchService view.
//	Everything is computed by NewModel; to pick up changed files build a
//	new Model.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Model struct {
	ws    *Workspace
	opts  Options
	units map[model.ContainerID]*unit
	index *index
	names map[model.ContainerID][]model.BoundName
}

var (
	_ model.TypeHierarchyProvider = (*Model)(nil)
	_ model.NameSearchService     = (*MethodIndex)(nil)
	_ model.SourceModel           = (*Model)(nil)
	_ model.ProjectGraph          = (*Model)(nil)
)

// NewModel parses and binds every unit of ws.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	ws - The workspace. Must not be modified afterwards.
//	opts - Functional options.
//
// Outputs:
//
//	*Model - The committed model. Units with syntax errors are indexed as
//	         far as tree-sitter could recover them and logged at Warn.
//	error - ErrCancelled if ctx is done, ErrModel if a unit cannot be read.
func NewModel(ctx context.Context, ws *Workspace, opts ...Option) (*Model, error) {
	if ws == nil {
		return nil, fmt.Errorf("workspace must not be nil")
	}
	options := Options{
		ParseWorkers: runtime.GOMAXPROCS(0),
		MaxFileSize:  DefaultMaxFileSize,
		Logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	m := &Model{ws: ws, opts: options}

	start := time.Now()
	units, err := m.parseAll(ctx, ws.Sources())
	if err != nil {
		return nil, err
	}
	m.units = make(map[model.ContainerID]*unit, len(units))
	for _, u := range units {
		m.units[u.container] = u
		if u.syntax != nil {
			options.Logger.Warn("compilation unit has syntax errors",
				slog.String("container", string(u.container)),
				slog.Int("offset", u.syntax.Offset),
				slog.String("message", u.syntax.Message))
		}
	}
	m.index = newIndex(units)
	m.names = make(map[model.ContainerID][]model.BoundName, len(units))
	for _, u := range m.index.units {
		names, _ := analyzeUnit(m.index, u)
		m.names[u.container] = names
	}

	options.Logger.Info("java model built",
		slog.Int("units", len(units)),
		slog.Int("types", len(m.index.types)),
		slog.Duration("duration", time.Since(start)))
	return m, nil
}

func (m *Model) parseAll(ctx context.Context, sources []*Source) ([]*unit, error) {
	units := make([]*unit, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.ParseWorkers)
	for i, src := range sources {
		g.Go(func() error {
			u, err := parseUnit(gctx, src, m.opts.MaxFileSize)
			if err != nil {
				return err
			}
			units[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, model.Classify(ctx, "parse units", err)
	}
	return units, nil
}

// Workspace returns the workspace the model was built from.
func (m *Model) Workspace() *Workspace { return m.ws }

// =============================================================================
// TypeHierarchyProvider
// =============================================================================

// Describe implements model.TypeHierarchyProvider.
func (m *Model) Describe(ctx context.Context, t model.TypeID) (model.TypeDecl, error) {
	if err := model.CheckCancelled(ctx); err != nil {
		return model.TypeDecl{}, err
	}
	td, ok := m.index.types[t]
	if !ok {
		return model.TypeDecl{}, &model.UnresolvedTypeError{Type: t}
	}
	return model.TypeDecl{
		ID:        td.id,
		Package:   td.unit.pkg,
		Project:   td.unit.project,
		Container: td.unit.container,
		Interface: td.kind == kindInterface,
		Binary:    td.unit.archive,
	}, nil
}

// SupertypesOf implements model.TypeHierarchyProvider. java.lang.Object is
// implicit and never listed.
func (m *Model) SupertypesOf(ctx context.Context, t model.TypeID) ([]model.TypeID, error) {
	if err := model.CheckCancelled(ctx); err != nil {
		return nil, err
	}
	if _, ok := m.index.types[t]; !ok {
		return nil, &model.UnresolvedTypeError{Type: t}
	}
	supers := append([]model.TypeID(nil), m.index.supers[t]...)
	if missing := m.index.missing[t]; len(missing) > 0 {
		return supers, &model.UnresolvedTypeError{Type: t, Missing: append([]string(nil), missing...)}
	}
	return supers, nil
}

// SubtypesOf implements model.TypeHierarchyProvider.
func (m *Model) SubtypesOf(ctx context.Context, t model.TypeID) ([]model.TypeID, error) {
	if err := model.CheckCancelled(ctx); err != nil {
		return nil, err
	}
	if _, ok := m.index.types[t]; !ok {
		return nil, &model.UnresolvedTypeError{Type: t}
	}
	return append([]model.TypeID(nil), m.index.subs[t]...), nil
}

// =============================================================================
// NameSearchService
// =============================================================================

func (m *Model) method(id model.MethodID) (*methodDecl, bool) {
	td, ok := m.index.types[id.Type]
	if !ok {
		return nil, false
	}
	for _, md := range td.methods {
		if md.name == id.Name && md.signature() == id.Signature {
			return md, true
		}
	}
	return nil, false
}

func describeMethod(md *methodDecl) model.MethodDecl {
	return model.MethodDecl{
		ID:         md.id(),
		Visibility: md.vis,
		Static:     md.static,
		Package:    md.owner.unit.pkg,
		Project:    md.owner.unit.project,
		Container:  md.owner.unit.container,
	}
}

// MethodIndex is the model.NameSearchService view of a Model.
type MethodIndex struct{ m *Model }

// Methods returns the model's method search view.
func (m *Model) Methods() *MethodIndex { return &MethodIndex{m: m} }

// Describe implements model.NameSearchService.
func (mi *MethodIndex) Describe(ctx context.Context, id model.MethodID) (model.MethodDecl, error) {
	if err := model.CheckCancelled(ctx); err != nil {
		return model.MethodDecl{}, err
	}
	md, ok := mi.m.method(id)
	if !ok {
		return model.MethodDecl{}, fmt.Errorf("%w: %s", model.ErrUnresolvedBinding, id)
	}
	return describeMethod(md), nil
}

// FindDeclarations implements model.NameSearchService.
func (mi *MethodIndex) FindDeclarations(ctx context.Context, name, signature string) ([]model.MethodDecl, error) {
	if err := model.CheckCancelled(ctx); err != nil {
		return nil, err
	}
	var out []model.MethodDecl
	for _, md := range mi.m.index.byName[name] {
		if md.signature() == signature {
			out = append(out, describeMethod(md))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID.Type != out[j].ID.Type {
			return out[i].ID.Type < out[j].ID.Type
		}
		return out[i].Container < out[j].Container
	})
	return out, nil
}

// FindReferences implements model.NameSearchService.
//
// Occurrences come from the committed bindings, so calls the binder could
// not resolve are never reported.
func (mi *MethodIndex) FindReferences(ctx context.Context, scope model.SearchScope, methods []model.MethodID) ([]model.Occurrence, error) {
	if err := model.CheckCancelled(ctx); err != nil {
		return nil, err
	}
	byKey := make(map[model.BindingKey]model.MethodID, len(methods))
	for _, id := range methods {
		md, ok := mi.m.method(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", model.ErrUnresolvedBinding, id)
		}
		byKey[md.key()] = md.id()
	}

	var out []model.Occurrence
	for _, c := range scope.Containers {
		for _, n := range mi.m.names[c] {
			id, ok := byKey[n.Key]
			if !ok {
				continue
			}
			out = append(out, model.Occurrence{
				Method:      id,
				Container:   c,
				Offset:      n.Range.Offset,
				Length:      n.Range.Length,
				Declaration: n.Declaration,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Container != out[j].Container {
			return out[i].Container < out[j].Container
		}
		return out[i].Offset < out[j].Offset
	})
	return out, nil
}

// =============================================================================
// SourceModel
// =============================================================================

// Snapshot implements model.SourceModel.
func (m *Model) Snapshot(ctx context.Context, containers ...model.ContainerID) (model.Snapshot, error) {
	if err := model.CheckCancelled(ctx); err != nil {
		return model.Snapshot{}, err
	}
	files := make(map[model.ContainerID][]byte)
	if len(containers) == 0 {
		for _, src := range m.ws.Sources() {
			files[src.Container] = src.Content
		}
		return model.NewSnapshot(files), nil
	}
	for _, c := range containers {
		src, ok := m.ws.Source(c)
		if !ok {
			return model.Snapshot{}, fmt.Errorf("%w: unknown container %s", model.ErrModel, c)
		}
		files[c] = src.Content
	}
	return model.NewSnapshot(files), nil
}

// Parse implements model.SourceModel.
//
// Description:
//
//	Parses the units of snap, binds them against the committed index with
//	those units replaced, and returns diagnostics and bindings for the
//	snapshot's containers only.
//
// Outputs:
//
//	*model.Compilation - Diagnostics and bindings, ordered by container.
//	error - *model.ReparseError (ErrReparseFailed) for the first unit, by
//	        container, with a syntax error. ErrModel for containers not in
//	        the workspace. ErrCancelled if ctx is done.
func (m *Model) Parse(ctx context.Context, snap model.Snapshot) (*model.Compilation, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "javamodel.Model.Parse")
	defer span.End()
	span.SetAttributes(attribute.Int("javamodel.containers", snap.Len()))

	start := time.Now()
	comp, err := m.parse(ctx, snap)
	recordParseMetrics(time.Since(start), snap.Len(), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("javamodel.diagnostics", len(comp.Diagnostics)),
		attribute.Int("javamodel.bindings", len(comp.Bindings)),
	)
	return comp, nil
}

func (m *Model) parse(ctx context.Context, snap model.Snapshot) (*model.Compilation, error) {
	if err := model.CheckCancelled(ctx); err != nil {
		return nil, err
	}
	containers := snap.Containers()
	sources := make([]*Source, 0, len(containers))
	for _, c := range containers {
		committed, ok := m.ws.Source(c)
		if !ok {
			return nil, fmt.Errorf("%w: unknown container %s", model.ErrModel, c)
		}
		content, _ := snap.Content(c)
		sources = append(sources, &Source{
			Container: c,
			Project:   committed.Project,
			Archive:   committed.Archive,
			Content:   content,
		})
	}

	parsed, err := m.parseAll(ctx, sources)
	if err != nil {
		return nil, err
	}
	for _, u := range parsed {
		if u.syntax != nil {
			return nil, u.syntax
		}
	}

	replaced := make(map[model.ContainerID]bool, len(parsed))
	units := make([]*unit, 0, len(m.units))
	for _, u := range parsed {
		replaced[u.container] = true
		units = append(units, u)
	}
	for c, u := range m.units {
		if !replaced[c] {
			units = append(units, u)
		}
	}
	x := newIndex(units)

	comp := &model.Compilation{Diagnostics: []model.Diagnostic{}, Bindings: []model.BoundName{}}
	for _, u := range parsed {
		if err := model.CheckCancelled(ctx); err != nil {
			return nil, err
		}
		names, diags := analyzeUnit(x, u)
		comp.Bindings = append(comp.Bindings, names...)
		comp.Diagnostics = append(comp.Diagnostics, diags...)
	}
	return comp, nil
}

// KeyOf implements model.SourceModel.
func (m *Model) KeyOf(ctx context.Context, id model.MethodID) (model.BindingKey, error) {
	if err := model.CheckCancelled(ctx); err != nil {
		return "", err
	}
	if md, ok := m.method(id); ok {
		return md.key(), nil
	}
	if id.Type == objectType {
		if bm, ok := builtinBySignature(id.Name, id.Signature); ok {
			return bm.key(), nil
		}
	}
	return "", fmt.Errorf("%w: %s", model.ErrUnresolvedBinding, id)
}

// =============================================================================
// ProjectGraph
// =============================================================================

// Projects implements model.ProjectGraph.
func (m *Model) Projects(ctx context.Context) ([]model.ProjectID, error) {
	if err := model.CheckCancelled(ctx); err != nil {
		return nil, err
	}
	return m.ws.Projects(), nil
}

// Dependents implements model.ProjectGraph.
func (m *Model) Dependents(ctx context.Context, p model.ProjectID) ([]model.Dependent, error) {
	if err := model.CheckCancelled(ctx); err != nil {
		return nil, err
	}
	if !m.hasProject(p) {
		return nil, fmt.Errorf("%w: unknown project %s", model.ErrModel, p)
	}
	return m.ws.Dependents(p), nil
}

// SourceContainers implements model.ProjectGraph.
func (m *Model) SourceContainers(ctx context.Context, p model.ProjectID) ([]model.ContainerID, error) {
	return m.containers(ctx, p, func(*unit) bool { return true })
}

// PackageContainers implements model.ProjectGraph.
func (m *Model) PackageContainers(ctx context.Context, p model.ProjectID, pkg string) ([]model.ContainerID, error) {
	return m.containers(ctx, p, func(u *unit) bool { return u.pkg == pkg })
}

func (m *Model) containers(ctx context.Context, p model.ProjectID, keep func(*unit) bool) ([]model.ContainerID, error) {
	if err := model.CheckCancelled(ctx); err != nil {
		return nil, err
	}
	if !m.hasProject(p) {
		return nil, fmt.Errorf("%w: unknown project %s", model.ErrModel, p)
	}
	var out []model.ContainerID
	for _, u := range m.index.units {
		if u.project == p && !u.archive && keep(u) {
			out = append(out, u.container)
		}
	}
	return out, nil
}

func (m *Model) hasProject(p model.ProjectID) bool {
	for _, id := range m.ws.projects {
		if id == p {
			return true
		}
	}
	return false
}
