// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hierarchy

import (
	"context"
	"sort"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"github.com/AleutianAI/AleutianRename/services/rename/unionfind"
)

// Partitions groups the declaring types of one method signature into
// override-related sets.
type Partitions struct {
	uf    *unionfind.UnionFind[model.TypeID]
	decls map[model.TypeID][]model.MethodDecl
}

// Partition unions each declaring type with every transitive supertype
// whose declaration it can see.
//
// Description:
//
//	For every declaring type T, walks all supertypes S of T. When S also
//	declares the method and that declaration is visible from T's package,
//	T and S are unioned. The walk continues through S either way, so
//	supertypes without their own declaration never break a chain. The
//	result does not depend on the order of decls.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	h - Request-scoped hierarchy.
//	decls - Virtual declarations of one name and erased signature.
//
// Outputs:
//
//	*Partitions - The override-related sets.
//	error - ErrCancelled or ErrModel.
func Partition(ctx context.Context, h *Hierarchy, decls []model.MethodDecl) (*Partitions, error) {
	p := &Partitions{
		uf:    unionfind.New[model.TypeID](),
		decls: make(map[model.TypeID][]model.MethodDecl, len(decls)),
	}

	types := make([]model.TypeID, 0, len(decls))
	for _, d := range decls {
		t := d.ID.Type
		if _, seen := p.decls[t]; !seen {
			types = append(types, t)
		}
		p.decls[t] = append(p.decls[t], d)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		p.uf.Add(t)
	}

	if err := h.Build(ctx, types); err != nil {
		return nil, err
	}

	for _, t := range types {
		if err := model.CheckCancelled(ctx); err != nil {
			return nil, err
		}
		pkg := p.packageOf(t)
		supers, err := h.AllSupertypes(ctx, t)
		if err != nil {
			return nil, err
		}
		for _, s := range supers {
			if p.VisibleDeclaration(s, pkg) {
				p.uf.Union(t, s)
			}
		}
	}
	return p, nil
}

// VisibleDeclaration reports whether t declares the method with a
// visibility that reaches package fromPkg.
func (p *Partitions) VisibleDeclaration(t model.TypeID, fromPkg string) bool {
	for _, d := range p.decls[t] {
		if d.Visibility.VisibleFrom(d.Package, fromPkg) {
			return true
		}
	}
	return false
}

// Declares reports whether t is one of the declaring types.
func (p *Partitions) Declares(t model.TypeID) bool {
	_, ok := p.decls[t]
	return ok
}

// Root returns the representative of t's set.
func (p *Partitions) Root(t model.TypeID) model.TypeID { return p.uf.Find(t) }

// Merge unions the sets of a and b.
func (p *Partitions) Merge(a, b model.TypeID) model.TypeID { return p.uf.Union(a, b) }

// Count returns the number of sets.
func (p *Partitions) Count() int { return p.uf.Sets() }

// Types returns the declaring types sharing t's set, sorted.
func (p *Partitions) Types(t model.TypeID) []model.TypeID {
	out := p.uf.Members(t)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Roots returns one representative per set, sorted.
func (p *Partitions) Roots() []model.TypeID {
	out := p.uf.Roots()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Declarations returns the method declarations of every type in t's set,
// ordered by method identity.
func (p *Partitions) Declarations(t model.TypeID) []model.MethodDecl {
	var out []model.MethodDecl
	for _, member := range p.Types(t) {
		out = append(out, p.decls[member]...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID.Type != out[j].ID.Type {
			return out[i].ID.Type < out[j].ID.Type
		}
		return out[i].ID.Signature < out[j].ID.Signature
	})
	return out
}

func (p *Partitions) packageOf(t model.TypeID) string {
	if ds := p.decls[t]; len(ds) > 0 {
		return ds[0].Package
	}
	return t.Package()
}
