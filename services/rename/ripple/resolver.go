// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ripple computes the set of method declarations that must be
// renamed together with a target method so that dispatch is preserved.
package ripple

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianRename/services/rename/hierarchy"
	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Result is the ripple set of a method.
type Result struct {
	// Target is the method the resolution started from.
	Target model.MethodID `json:"target"`

	// Methods is the full ripple set, sorted. It always contains Target.
	Methods []model.MethodID `json:"methods"`

	// Declarations describes each entry of Methods, same order. Entries are
	// missing only when the target itself could not be described.
	Declarations []model.MethodDecl `json:"declarations"`

	// Binary lists members of Methods that live in archives.
	Binary []model.MethodID `json:"binary,omitempty"`

	// Covered lists binary members already accounted for by a prior reference.
	Covered []model.MethodID `json:"covered,omitempty"`

	// Partitions is the number of override partitions before marriage.
	Partitions int `json:"partitions"`

	// Married is the number of alien partitions merged in.
	Married int `json:"married"`

	// CheapPath is true when the alien-first marriage search ran.
	CheapPath bool `json:"cheap_path,omitempty"`

	Warnings []model.Warning `json:"warnings,omitempty"`
}

// Contains reports whether m is in the ripple set.
func (r *Result) Contains(m model.MethodID) bool {
	for _, x := range r.Methods {
		if x == m {
			return true
		}
	}
	return false
}

// RequiringRename returns Methods without the covered binaries.
func (r *Result) RequiringRename() []model.MethodID {
	covered := make(map[model.MethodID]bool, len(r.Covered))
	for _, m := range r.Covered {
		covered[m] = true
	}
	out := make([]model.MethodID, 0, len(r.Methods))
	for _, m := range r.Methods {
		if !covered[m] {
			out = append(out, m)
		}
	}
	return out
}

// Resolver is the ripple method resolver.
//
// Description:
//
//	Given a method, finds every declaration with the same name and erased
//	signature, partitions them by override relationships and merges
//	partitions that a common subtype binds together ("married aliens")
//	until nothing changes. Private and static methods resolve to
//	themselves without touching the hierarchy.
//
// Thread Safety:
//
//	Safe for concurrent use. Every Resolve call builds its own hierarchy
//	memo and union-find.
type Resolver struct {
	types  model.TypeHierarchyProvider
	search model.NameSearchService
	opts   Options
}

// NewResolver creates a Resolver.
//
// Inputs:
//
//	types - Hierarchy provider. Must not be nil.
//	search - Declaration search. Must not be nil.
//	opts - Optional configuration.
//
// Outputs:
//
//	*Resolver - The resolver.
//	error - Non-nil if a collaborator is nil.
func NewResolver(types model.TypeHierarchyProvider, search model.NameSearchService, opts ...Option) (*Resolver, error) {
	if types == nil {
		return nil, fmt.Errorf("type hierarchy provider must not be nil")
	}
	if search == nil {
		return nil, fmt.Errorf("name search service must not be nil")
	}
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Resolver{types: types, search: search, opts: options}, nil
}

// Resolve returns the ripple set of m.
//
// Description:
//
//  1. Non-virtual methods (private or static) return {m}.
//  2. Virtual declarations of the same name and signature are collected.
//  3. The declaring types are partitioned by override edges. An edge only
//     joins when the supertype's declaration is visible from the subtype.
//  4. Alien partitions married to m's partition are merged to a fixed point.
//  5. Every declaration in m's final partition is returned.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	m - The target method.
//
// Outputs:
//
//	*Result - The ripple set. Never nil when error is nil.
//	error - ErrCancelled if ctx is done; ErrModel for collaborator failures.
//	        Unresolved types and bindings degrade the result and are
//	        reported as warnings instead.
func (r *Resolver) Resolve(ctx context.Context, m model.MethodID) (*Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ripple.Resolver.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("ripple.target", m.String()))

	start := time.Now()
	path := pathFast
	res, err := r.resolve(ctx, m, &path)
	recordResolveMetrics(path, time.Since(start), res, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ripple resolution failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("ripple.path", path),
		attribute.Int("ripple.methods", len(res.Methods)),
		attribute.Int("ripple.partitions", res.Partitions),
		attribute.Int("ripple.married", res.Married),
		attribute.Int("ripple.warnings", len(res.Warnings)),
	)
	r.opts.Logger.Debug("ripple resolved",
		slog.String("target", m.String()),
		slog.String("path", path),
		slog.Int("methods", len(res.Methods)),
		slog.Int("partitions", res.Partitions),
		slog.Int("married", res.Married),
	)
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, m model.MethodID, path *string) (*Result, error) {
	if err := model.CheckCancelled(ctx); err != nil {
		return nil, err
	}

	target, err := r.search.Describe(ctx, m)
	if err != nil {
		if errors.Is(err, model.ErrUnresolvedBinding) {
			r.opts.Logger.Warn("ripple target unresolved", slog.String("method", m.String()))
			return &Result{
				Target:  m,
				Methods: []model.MethodID{m},
				Warnings: []model.Warning{{
					Code:    model.WarnUnresolvedBinding,
					Message: err.Error(),
					Subject: m.String(),
				}},
			}, nil
		}
		return nil, model.Classify(ctx, "describe target", err)
	}
	m = target.ID

	if !target.Virtual() {
		return r.finish(m, []model.MethodDecl{target}, 1, 0, nil), nil
	}

	found, err := r.search.FindDeclarations(ctx, m.Name, m.Signature)
	if err != nil {
		return nil, model.Classify(ctx, "find declarations", err)
	}
	pool := candidatePool(target, found)
	if len(pool) == 1 {
		return r.finish(m, pool, 1, 0, nil), nil
	}

	*path = pathFull
	h := hierarchy.New(r.types, hierarchy.WithLogger(r.opts.Logger))
	parts, err := hierarchy.Partition(ctx, h, pool)
	if err != nil {
		return nil, err
	}
	partitions := parts.Count()
	if partitions == 1 {
		return r.finish(m, pool, partitions, 0, h.Warnings()), nil
	}

	cheap, err := r.useCheapPath(ctx, h, m.Type, len(pool))
	if err != nil {
		return nil, err
	}
	var married int
	if cheap {
		*path = pathCheap
		married, err = marryAlienFirst(ctx, h, parts, m.Type)
	} else {
		married, err = marryRelatedFirst(ctx, h, parts, m.Type)
	}
	if err != nil {
		return nil, err
	}

	res := r.finish(m, parts.Declarations(m.Type), partitions, married, h.Warnings())
	res.CheapPath = cheap
	return res, nil
}

// useCheapPath decides between the two marriage search directions.
func (r *Resolver) useCheapPath(ctx context.Context, h *hierarchy.Hierarchy, t model.TypeID, declarations int) (bool, error) {
	ratio := r.opts.CheapPathRatio
	if ratio == 0 {
		return false, nil
	}
	if ratio < 0 {
		return true, nil
	}
	subs, err := h.Subtypes(ctx, t)
	if err != nil {
		return false, err
	}
	return float64(len(subs)) > ratio*float64(declarations), nil
}

// candidatePool keeps the virtual declarations, always including the
// target. Visibility is checked per override edge, not here.
func candidatePool(target model.MethodDecl, found []model.MethodDecl) []model.MethodDecl {
	pool := []model.MethodDecl{target}
	for _, d := range found {
		if d.ID.Type == target.ID.Type || !d.Virtual() {
			continue
		}
		pool = append(pool, d)
	}
	return pool
}

func (r *Resolver) finish(target model.MethodID, decls []model.MethodDecl, partitions, married int, warnings []model.Warning) *Result {
	res := &Result{
		Target:     target,
		Partitions: partitions,
		Married:    married,
		Warnings:   warnings,
	}
	sorted := append([]model.MethodDecl(nil), decls...)
	sortDecls(sorted)
	for _, d := range sorted {
		res.Methods = append(res.Methods, d.ID)
		res.Declarations = append(res.Declarations, d)
		if !d.ID.Binary {
			continue
		}
		res.Binary = append(res.Binary, d.ID)
		if r.opts.Covered != nil && r.opts.Covered(d.ID) {
			res.Covered = append(res.Covered, d.ID)
			continue
		}
		res.Warnings = append(res.Warnings, model.Warning{
			Code:    model.WarnBinaryMember,
			Message: "ripple member is declared in a read-only archive",
			Subject: d.ID.String(),
		})
	}
	return res
}

func sortDecls(decls []model.MethodDecl) {
	ids := make([]model.MethodID, len(decls))
	index := make(map[model.MethodID]model.MethodDecl, len(decls))
	for i, d := range decls {
		ids[i] = d.ID
		index[d.ID] = d
	}
	model.SortMethods(ids)
	for i, id := range ids {
		decls[i] = index[id]
	}
}
