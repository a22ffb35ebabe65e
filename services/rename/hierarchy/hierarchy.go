// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package hierarchy provides a request-scoped, memoized view of the type
// hierarchy and the partitioner that groups method declarations by
// override relationships.
package hierarchy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
)

// cancelCheckInterval is how many visited types pass between context checks.
const cancelCheckInterval = 32

// Hierarchy memoizes direct supertype and subtype queries for one request.
//
// Description:
//
//	Each query hits the provider at most once per type. Types the provider
//	cannot resolve become isolated nodes and are recorded as warnings, so
//	results over-approximate rather than fail. A Hierarchy is never shared
//	between requests, which keeps the memo consistent with one model state.
//
// Thread Safety:
//
//	Not safe for concurrent use.
type Hierarchy struct {
	provider model.TypeHierarchyProvider
	logger   *slog.Logger

	supers   map[model.TypeID][]model.TypeID
	subs     map[model.TypeID][]model.TypeID
	decls    map[model.TypeID]model.TypeDecl
	unknown  map[model.TypeID]bool
	partial  map[model.TypeID]bool
	warnings []model.Warning
	visits   int
}

// Option configures a Hierarchy.
type Option func(*Hierarchy)

// WithLogger sets the logger for degraded-result warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hierarchy) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New creates an empty Hierarchy over provider.
func New(provider model.TypeHierarchyProvider, opts ...Option) *Hierarchy {
	h := &Hierarchy{
		provider: provider,
		logger:   slog.Default(),
		supers:   make(map[model.TypeID][]model.TypeID),
		subs:     make(map[model.TypeID][]model.TypeID),
		decls:    make(map[model.TypeID]model.TypeDecl),
		unknown:  make(map[model.TypeID]bool),
		partial:  make(map[model.TypeID]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Build eagerly loads the supertype closure of roots.
//
// Description:
//
//	Used to materialize the slice of the hierarchy spanned by a set of
//	declaring types before partitioning, so that later lookups are served
//	from the memo.
func (h *Hierarchy) Build(ctx context.Context, roots []model.TypeID) error {
	for _, t := range roots {
		if _, err := h.AllSupertypes(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// Describe returns the declaration of t. ok is false when t cannot be resolved.
func (h *Hierarchy) Describe(ctx context.Context, t model.TypeID) (decl model.TypeDecl, ok bool, err error) {
	if d, hit := h.decls[t]; hit {
		return d, true, nil
	}
	if h.unknown[t] {
		return model.TypeDecl{ID: t, Package: t.Package()}, false, nil
	}
	d, err := h.provider.Describe(ctx, t)
	if err != nil {
		if errors.Is(err, model.ErrUnresolvedType) {
			h.markUnknown(t, err)
			return model.TypeDecl{ID: t, Package: t.Package()}, false, nil
		}
		return model.TypeDecl{}, false, model.Classify(ctx, "describe "+string(t), err)
	}
	h.decls[t] = d
	return d, true, nil
}

// Supertypes returns the direct supertypes of t.
func (h *Hierarchy) Supertypes(ctx context.Context, t model.TypeID) ([]model.TypeID, error) {
	if s, hit := h.supers[t]; hit {
		return s, nil
	}
	s, err := h.provider.SupertypesOf(ctx, t)
	if err != nil {
		if !errors.Is(err, model.ErrUnresolvedType) {
			return nil, model.Classify(ctx, "supertypes of "+string(t), err)
		}
		var ute *model.UnresolvedTypeError
		if errors.As(err, &ute) && len(ute.Missing) > 0 {
			h.markPartial(t, err)
		} else {
			h.markUnknown(t, err)
			s = nil
		}
	}
	h.supers[t] = s
	return s, nil
}

// Subtypes returns the direct subtypes of t.
func (h *Hierarchy) Subtypes(ctx context.Context, t model.TypeID) ([]model.TypeID, error) {
	if s, hit := h.subs[t]; hit {
		return s, nil
	}
	s, err := h.provider.SubtypesOf(ctx, t)
	if err != nil {
		if !errors.Is(err, model.ErrUnresolvedType) {
			return nil, model.Classify(ctx, "subtypes of "+string(t), err)
		}
		h.markUnknown(t, err)
		s = nil
	}
	h.subs[t] = s
	return s, nil
}

// AllSupertypes returns every transitive supertype of t, nearest first.
// t itself is not included. Cycles are tolerated.
func (h *Hierarchy) AllSupertypes(ctx context.Context, t model.TypeID) ([]model.TypeID, error) {
	return h.closure(ctx, t, h.Supertypes)
}

// AllSubtypes returns every transitive subtype of t, nearest first.
// t itself is not included.
func (h *Hierarchy) AllSubtypes(ctx context.Context, t model.TypeID) ([]model.TypeID, error) {
	return h.closure(ctx, t, h.Subtypes)
}

// Warnings returns the degradations recorded so far.
func (h *Hierarchy) Warnings() []model.Warning {
	return append([]model.Warning(nil), h.warnings...)
}

// Known reports whether t resolved and all of its supertype edges are known.
func (h *Hierarchy) Known(t model.TypeID) bool {
	return !h.unknown[t] && !h.partial[t]
}

func (h *Hierarchy) closure(ctx context.Context, start model.TypeID,
	next func(context.Context, model.TypeID) ([]model.TypeID, error)) ([]model.TypeID, error) {

	visited := map[model.TypeID]bool{start: true}
	queue := []model.TypeID{start}
	var out []model.TypeID
	for len(queue) > 0 {
		if err := h.tick(ctx); err != nil {
			return nil, err
		}
		t := queue[0]
		queue = queue[1:]
		adj, err := next(ctx, t)
		if err != nil {
			return nil, err
		}
		for _, n := range adj {
			if visited[n] {
				continue
			}
			visited[n] = true
			out = append(out, n)
			queue = append(queue, n)
		}
	}
	return out, nil
}

func (h *Hierarchy) tick(ctx context.Context) error {
	h.visits++
	if h.visits%cancelCheckInterval == 1 {
		return model.CheckCancelled(ctx)
	}
	return nil
}

func (h *Hierarchy) markUnknown(t model.TypeID, err error) {
	if h.unknown[t] {
		return
	}
	h.unknown[t] = true
	h.warnings = append(h.warnings, model.Warning{
		Code:    model.WarnUnresolvedType,
		Message: err.Error(),
		Subject: string(t),
	})
	h.logger.Warn("type unresolved, treating as isolated",
		slog.String("type", string(t)),
		slog.String("error", err.Error()),
	)
}

func (h *Hierarchy) markPartial(t model.TypeID, err error) {
	if h.partial[t] {
		return
	}
	h.partial[t] = true
	h.warnings = append(h.warnings, model.Warning{
		Code:    model.WarnPartialHierarchy,
		Message: err.Error(),
		Subject: string(t),
	})
	h.logger.Warn("partial hierarchy",
		slog.String("type", string(t)),
		slog.String("error", err.Error()),
	)
}
