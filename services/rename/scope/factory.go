// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scope computes the smallest search scope that can contain every
// reference to a member, given its visibility.
package scope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "rename.scope"

// scopeContainers tracks the size of computed scopes.
//
// Labels:
//   - visibility: "private", "package", "protected", "public", "workspace", "ripple"
var scopeContainers = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "rename",
		Subsystem: "scope",
		Name:      "containers",
		Help:      "Number of compilation units in computed search scopes.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	},
	[]string{"visibility"},
)

// Factory builds search scopes from visibility and the project graph.
//
// Description:
//
//	Private members are searched in their declaring unit only. Package
//	members are searched in every unit of the same package across the
//	projects that can see the declaring project. Protected and public
//	members are searched in every source unit of those projects. The
//	project closure follows dependency edges outward from the declaring
//	project; a dependent is always included, but its own dependents are
//	only reached when it re-exports the dependency.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Factory struct {
	types    model.TypeHierarchyProvider
	projects model.ProjectGraph
	logger   *slog.Logger
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFactory creates a Factory.
func NewFactory(types model.TypeHierarchyProvider, projects model.ProjectGraph, opts ...Option) (*Factory, error) {
	if types == nil {
		return nil, fmt.Errorf("type hierarchy provider must not be nil")
	}
	if projects == nil {
		return nil, fmt.Errorf("project graph must not be nil")
	}
	f := &Factory{types: types, projects: projects, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Compute returns the search scope of member for the given visibility.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	member - A type or method; its declaring type locates it.
//	vis - The member's visibility.
//
// Outputs:
//
//	model.SearchScope - The scope. An unresolvable declaring type yields
//	                    the whole workspace plus a warning.
//	error - ErrCancelled or ErrModel.
func (f *Factory) Compute(ctx context.Context, member model.Member, vis model.Visibility) (model.SearchScope, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "scope.Factory.Compute")
	defer span.End()
	span.SetAttributes(
		attribute.String("scope.type", string(member.DeclaringType())),
		attribute.String("scope.visibility", vis.String()),
	)

	b := model.NewScopeBuilder()
	label, err := f.compute(ctx, b, member.DeclaringType(), vis, closureMemo{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scope computation failed")
		return model.SearchScope{}, err
	}
	s := b.Build()
	scopeContainers.WithLabelValues(label).Observe(float64(len(s.Containers)))
	span.SetAttributes(
		attribute.Int("scope.containers", len(s.Containers)),
		attribute.Int("scope.projects", len(s.Projects)),
	)
	return s, nil
}

// ForDeclarations returns the union of the scopes of every declaration, as
// needed to search for references to a whole ripple set.
func (f *Factory) ForDeclarations(ctx context.Context, decls []model.MethodDecl) (model.SearchScope, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "scope.Factory.ForDeclarations")
	defer span.End()
	span.SetAttributes(attribute.Int("scope.declarations", len(decls)))

	b := model.NewScopeBuilder()
	memo := closureMemo{}
	for _, d := range decls {
		label, err := f.compute(ctx, b, d.ID.Type, d.Visibility, memo)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scope computation failed")
			return model.SearchScope{}, err
		}
		if label == "workspace" {
			break
		}
	}
	s := b.Build()
	scopeContainers.WithLabelValues("ripple").Observe(float64(len(s.Containers)))
	span.SetAttributes(attribute.Int("scope.containers", len(s.Containers)))
	return s, nil
}

type closureMemo map[model.ProjectID][]model.ProjectID

func (f *Factory) compute(ctx context.Context, b *model.ScopeBuilder, t model.TypeID, vis model.Visibility, memo closureMemo) (string, error) {
	if err := model.CheckCancelled(ctx); err != nil {
		return "", err
	}
	decl, err := f.types.Describe(ctx, t)
	if err != nil {
		if !errors.Is(err, model.ErrUnresolvedType) {
			return "", model.Classify(ctx, "describe "+string(t), err)
		}
		f.logger.Warn("declaring type unresolved, widening scope to workspace",
			slog.String("type", string(t)))
		b.AddWarning(model.Warning{Code: model.WarnUnresolvedType, Message: err.Error(), Subject: string(t)})
		return "workspace", f.addWorkspace(ctx, b)
	}

	if vis == model.VisibilityPrivate {
		addDeclaringContainer(b, decl)
		b.AddProjects(decl.Project)
		return vis.String(), nil
	}

	closure, ok := memo[decl.Project]
	if !ok {
		closure, err = f.Closure(ctx, decl.Project)
		if err != nil {
			return "", err
		}
		memo[decl.Project] = closure
	}

	addDeclaringContainer(b, decl)
	b.AddProjects(closure...)
	for _, p := range closure {
		if err := model.CheckCancelled(ctx); err != nil {
			return "", err
		}
		var containers []model.ContainerID
		if vis == model.VisibilityPackage {
			containers, err = f.projects.PackageContainers(ctx, p, decl.Package)
		} else {
			containers, err = f.projects.SourceContainers(ctx, p)
		}
		if err != nil {
			return "", model.Classify(ctx, "containers of "+string(p), err)
		}
		b.AddContainers(containers...)
	}
	return vis.String(), nil
}

// Closure returns p followed by every project that can reference p,
// breadth-first.
//
// Description:
//
//	Every direct dependent of a reached project is included. A dependent
//	is expanded further only when its dependency edge is exported. Each
//	project is expanded at most once, so dependency cycles terminate.
func (f *Factory) Closure(ctx context.Context, p model.ProjectID) ([]model.ProjectID, error) {
	included := map[model.ProjectID]bool{p: true}
	expanded := map[model.ProjectID]bool{p: true}
	out := []model.ProjectID{p}
	queue := []model.ProjectID{p}

	for len(queue) > 0 {
		if err := model.CheckCancelled(ctx); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]

		deps, err := f.projects.Dependents(ctx, cur)
		if err != nil {
			return nil, model.Classify(ctx, "dependents of "+string(cur), err)
		}
		for _, d := range deps {
			if !included[d.Project] {
				included[d.Project] = true
				out = append(out, d.Project)
			}
			if d.Exported && !expanded[d.Project] {
				expanded[d.Project] = true
				queue = append(queue, d.Project)
			}
		}
	}
	return out, nil
}

// addDeclaringContainer adds the unit declaring t unless it lives in an
// archive. Archive units have no source to search or edit.
func addDeclaringContainer(b *model.ScopeBuilder, t model.TypeDecl) {
	if t.Binary || t.Container == "" {
		return
	}
	b.AddContainers(t.Container)
}

func (f *Factory) addWorkspace(ctx context.Context, b *model.ScopeBuilder) error {
	projects, err := f.projects.Projects(ctx)
	if err != nil {
		return model.Classify(ctx, "list projects", err)
	}
	b.AddProjects(projects...)
	for _, p := range projects {
		if err := model.CheckCancelled(ctx); err != nil {
			return err
		}
		containers, err := f.projects.SourceContainers(ctx, p)
		if err != nil {
			return model.Classify(ctx, "containers of "+string(p), err)
		}
		b.AddContainers(containers...)
	}
	return nil
}
