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
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
)

// index is the resolved type and method table of a set of units.
//
// Thread Safety:
//
//	Immutable after newIndex except for the memo tables, which are guarded.
type index struct {
	units       []*unit
	byContainer map[model.ContainerID]*unit
	types       map[model.TypeID]*typeDecl
	supers      map[model.TypeID][]model.TypeID
	superclass  map[model.TypeID]model.TypeID
	missing     map[model.TypeID][]string
	subs        map[model.TypeID][]model.TypeID
	byName      map[string][]*methodDecl

	mu        sync.Mutex
	ancestors map[model.TypeID][]model.TypeID
	complete  map[model.TypeID]bool
}

// newIndex resolves the hierarchy of units. When two units declare the
// same type, the one with the smaller container ID wins.
func newIndex(units []*unit) *index {
	sorted := append([]*unit(nil), units...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].container < sorted[j].container })

	x := &index{
		units:       sorted,
		byContainer: make(map[model.ContainerID]*unit, len(sorted)),
		types:       make(map[model.TypeID]*typeDecl),
		supers:      make(map[model.TypeID][]model.TypeID),
		superclass:  make(map[model.TypeID]model.TypeID),
		missing:     make(map[model.TypeID][]string),
		subs:        make(map[model.TypeID][]model.TypeID),
		byName:      make(map[string][]*methodDecl),
		ancestors:   make(map[model.TypeID][]model.TypeID),
		complete:    make(map[model.TypeID]bool),
	}
	for _, u := range sorted {
		x.byContainer[u.container] = u
		for _, t := range u.types {
			if _, dup := x.types[t.id]; dup {
				continue
			}
			x.types[t.id] = t
			for _, m := range t.methods {
				x.byName[m.name] = append(x.byName[m.name], m)
			}
		}
	}

	ids := x.typeIDs()
	for _, id := range ids {
		t := x.types[id]
		var refs []typeRef
		if t.superclass != nil {
			refs = append(refs, *t.superclass)
		}
		refs = append(refs, t.interfaces...)
		for i, ref := range refs {
			sup, ok := x.resolve(ref.name, t.outer, t.unit)
			if !ok {
				if ref.name != "Object" && ref.name != "java.lang.Object" {
					x.missing[id] = append(x.missing[id], ref.name)
				}
				continue
			}
			if sup == id {
				continue
			}
			x.supers[id] = append(x.supers[id], sup)
			if i == 0 && t.superclass != nil {
				x.superclass[id] = sup
			}
		}
	}
	for _, id := range ids {
		for _, sup := range x.supers[id] {
			x.subs[sup] = append(x.subs[sup], id)
		}
	}
	return x
}

func (x *index) typeIDs() []model.TypeID {
	ids := make([]model.TypeID, 0, len(x.types))
	for id := range x.types {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// =============================================================================
// Type resolution
// =============================================================================

// resolve finds the type a name refers to from inside from (nil for top
// level) in unit u.
//
// Simple names are looked up as member types of the enclosing types, then
// top-level types of the unit, single-type imports, the unit's package and
// on-demand imports. Dotted names are tried as fully qualified names, then
// as member types of a resolvable first segment.
func (x *index) resolve(name string, from *typeDecl, u *unit) (model.TypeID, bool) {
	if name == "" {
		return "", false
	}
	if !strings.Contains(name, ".") {
		return x.resolveSimple(name, from, u)
	}

	segments := strings.Split(name, ".")
	for k := len(segments) - 1; k >= 1; k-- {
		id := model.TypeID(strings.Join(segments[:k], ".") + "." + strings.Join(segments[k:], "$"))
		if _, ok := x.types[id]; ok {
			return id, true
		}
	}
	if _, ok := x.types[model.TypeID(strings.Join(segments, "$"))]; ok {
		return model.TypeID(strings.Join(segments, "$")), true
	}
	if head, ok := x.resolveSimple(segments[0], from, u); ok {
		id := model.TypeID(string(head) + "$" + strings.Join(segments[1:], "$"))
		if _, ok := x.types[id]; ok {
			return id, true
		}
	}
	return "", false
}

func (x *index) resolveSimple(name string, from *typeDecl, u *unit) (model.TypeID, bool) {
	for t := from; t != nil; t = t.outer {
		if t.name == name {
			return t.id, true
		}
		if id := model.TypeID(string(t.id) + "$" + name); x.has(id) {
			return id, true
		}
	}
	if u == nil {
		return "", false
	}
	for _, t := range u.types {
		if t.outer == nil && t.name == name {
			return t.id, true
		}
	}
	for _, imp := range u.imports {
		if imp.onDemand || imp.static {
			continue
		}
		if imp.path == name || strings.HasSuffix(imp.path, "."+name) {
			id, ok := x.resolve(imp.path, nil, nil)
			return id, ok
		}
	}
	if id := qualify(u.pkg, name); x.has(id) {
		return id, true
	}
	for _, imp := range u.imports {
		if !imp.onDemand || imp.static {
			continue
		}
		if id := qualify(imp.path, name); x.has(id) {
			return id, true
		}
		if owner, ok := x.resolve(imp.path, nil, nil); ok {
			if id := model.TypeID(string(owner) + "$" + name); x.has(id) {
				return id, true
			}
		}
	}
	return "", false
}

func qualify(pkg, name string) model.TypeID {
	if pkg == "" {
		return model.TypeID(name)
	}
	return model.TypeID(pkg + "." + name)
}

func (x *index) has(id model.TypeID) bool {
	_, ok := x.types[id]
	return ok
}

// refType resolves a declared type reference. Primitive and array types
// have no members and never resolve.
func (x *index) refType(ref typeRef, from *typeDecl) (model.TypeID, bool) {
	if !ref.reference() {
		return "", false
	}
	return x.resolve(ref.name, from, from.unit)
}

// =============================================================================
// Hierarchy queries
// =============================================================================

// ancestorsOf returns every transitive supertype of t, nearest first.
func (x *index) ancestorsOf(t model.TypeID) []model.TypeID {
	x.mu.Lock()
	if cached, ok := x.ancestors[t]; ok {
		x.mu.Unlock()
		return cached
	}
	x.mu.Unlock()

	seen := map[model.TypeID]bool{t: true}
	var out []model.TypeID
	queue := append([]model.TypeID(nil), x.supers[t]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		queue = append(queue, x.supers[cur]...)
	}

	x.mu.Lock()
	x.ancestors[t] = out
	x.mu.Unlock()
	return out
}

// isComplete reports whether every supertype of t, transitively, resolved.
// Enums and records inherit members from library types and are never
// complete.
func (x *index) isComplete(t model.TypeID) bool {
	x.mu.Lock()
	if c, ok := x.complete[t]; ok {
		x.mu.Unlock()
		return c
	}
	x.mu.Unlock()

	c := true
	for _, id := range append([]model.TypeID{t}, x.ancestorsOf(t)...) {
		td, ok := x.types[id]
		if !ok || len(x.missing[id]) > 0 || td.kind == kindEnum || td.kind == kindRecord {
			c = false
			break
		}
	}

	x.mu.Lock()
	x.complete[t] = c
	x.mu.Unlock()
	return c
}

// subtypeOf reports whether sub is sup or one of its subtypes.
func (x *index) subtypeOf(sub, sup model.TypeID) bool {
	if sub == sup {
		return true
	}
	for _, a := range x.ancestorsOf(sub) {
		if a == sup {
			return true
		}
	}
	return false
}

// findMethod returns the most derived method named name that accepts arity
// arguments, searching t and then its supertypes nearest first.
func (x *index) findMethod(t model.TypeID, name string, arity int) *methodDecl {
	for _, id := range append([]model.TypeID{t}, x.ancestorsOf(t)...) {
		td, ok := x.types[id]
		if !ok {
			continue
		}
		for _, m := range td.methods {
			if m.name == name && m.accepts(arity) {
				return m
			}
		}
	}
	return nil
}

// findOverridden returns the nearest supertype method with m's name and
// signature.
func (x *index) findOverridden(m *methodDecl) *methodDecl {
	sig := m.signature()
	for _, id := range x.ancestorsOf(m.owner.id) {
		for _, sm := range x.types[id].methods {
			if sm.name == m.name && sm.vis != model.VisibilityPrivate && !sm.static && sm.signature() == sig {
				return sm
			}
		}
	}
	return nil
}

// =============================================================================
// java.lang.Object
// =============================================================================

// objectType is the implicit root of every class and interface.
const objectType = "java.lang.Object"

type builtinMethod struct {
	name string
	sig  string
	ret  typeRef
}

var objectMethods = []builtinMethod{
	{"equals", "(Object)", typeRef{name: "boolean", primitive: true}},
	{"hashCode", "()", typeRef{name: "int", primitive: true}},
	{"toString", "()", typeRef{name: "String"}},
	{"getClass", "()", typeRef{name: "Class"}},
	{"clone", "()", typeRef{name: "Object"}},
	{"finalize", "()", voidType},
	{"notify", "()", voidType},
	{"notifyAll", "()", voidType},
	{"wait", "()", voidType},
	{"wait", "(long)", voidType},
	{"wait", "(long,int)", voidType},
}

func (b builtinMethod) arity() int {
	if b.sig == "()" {
		return 0
	}
	return strings.Count(b.sig, ",") + 1
}

func (b builtinMethod) key() model.BindingKey {
	return model.BindingKey(objectType + "#" + b.name + b.sig)
}

func findBuiltin(name string, arity int) (builtinMethod, bool) {
	for _, b := range objectMethods {
		if b.name == name && b.arity() == arity {
			return b, true
		}
	}
	return builtinMethod{}, false
}

func builtinBySignature(name, sig string) (builtinMethod, bool) {
	for _, b := range objectMethods {
		if b.name == name && b.sig == sig {
			return b, true
		}
	}
	return builtinMethod{}, false
}
