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
	"fmt"
	"sort"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
)

// Diagnostic codes reported by Parse.
const (
	CodeSyntax                 = "Syntax"
	CodeDuplicateMethod        = "DuplicateMethod"
	CodeUndefinedMethod        = "UndefinedMethod"
	CodeIncompatibleReturnType = "IncompatibleReturnType"
	CodeMissingImplementation  = "MissingImplementation"
	CodeUnusedPrivateMethod    = "UnusedPrivateMethod"
)

// analyzeUnit binds u against x and returns its bindings and diagnostics.
func analyzeUnit(x *index, u *unit) ([]model.BoundName, []model.Diagnostic) {
	b := newBinder(x, u)
	names := b.bindings()
	diags := b.diags

	for _, t := range u.types {
		if x.types[t.id] != t {
			continue
		}
		diags = append(diags, duplicateMethods(t)...)
		diags = append(diags, returnTypeClashes(x, t)...)
		diags = append(diags, missingImplementations(x, t)...)
	}
	diags = append(diags, unusedPrivateMethods(u, names)...)

	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Range.Offset != diags[j].Range.Offset {
			return diags[i].Range.Offset < diags[j].Range.Offset
		}
		return diags[i].Code < diags[j].Code
	})
	return names, diags
}

func duplicateMethods(t *typeDecl) []model.Diagnostic {
	var out []model.Diagnostic
	seen := make(map[string]bool, len(t.methods))
	for _, m := range t.methods {
		sig := m.name + m.signature()
		if seen[sig] {
			out = append(out, model.Diagnostic{
				Code:     CodeDuplicateMethod,
				Severity: model.SeverityError,
				Message:  fmt.Sprintf("Duplicate method %s in type %s", sig, t.name),
				Range:    m.nameRange,
			})
			continue
		}
		seen[sig] = true
	}
	return out
}

// returnTypeClashes checks every declared override against the method it
// overrides, and every pair of unrelated inherited methods t does not
// override itself.
func returnTypeClashes(x *index, t *typeDecl) []model.Diagnostic {
	var out []model.Diagnostic
	declared := make(map[string]bool, len(t.methods))
	for _, m := range t.methods {
		declared[m.name+m.signature()] = true
		if m.static || m.vis == model.VisibilityPrivate {
			continue
		}
		if sm := x.findOverridden(m); sm != nil {
			if !returnCompatible(x, m.ret, t, sm.ret, sm.owner) {
				out = append(out, incompatible(m.nameRange, fmt.Sprintf(
					"The return type is incompatible with %s.%s%s", sm.owner.name, sm.name, sm.signature())))
			}
			continue
		}
		if bm, ok := builtinBySignature(m.name, m.signature()); ok && !returnCompatible(x, m.ret, t, bm.ret, nil) {
			out = append(out, incompatible(m.nameRange, fmt.Sprintf(
				"The return type is incompatible with Object.%s%s", bm.name, bm.sig)))
		}
	}

	inherited := make(map[string][]*methodDecl)
	var order []string
	for _, id := range x.ancestorsOf(t.id) {
		for _, m := range x.types[id].methods {
			if m.static || m.vis == model.VisibilityPrivate {
				continue
			}
			sig := m.name + m.signature()
			if declared[sig] {
				continue
			}
			if _, ok := inherited[sig]; !ok {
				order = append(order, sig)
			}
			inherited[sig] = append(inherited[sig], m)
		}
	}
	for _, sig := range order {
		if a, c, ok := clash(x, inherited[sig]); ok {
			out = append(out, incompatible(t.nameRange, fmt.Sprintf(
				"The return types are incompatible for the inherited methods %s.%s and %s.%s",
				a.owner.name, sig, c.owner.name, sig)))
		}
	}
	return out
}

func clash(x *index, methods []*methodDecl) (*methodDecl, *methodDecl, bool) {
	for i := 0; i < len(methods); i++ {
		for j := i + 1; j < len(methods); j++ {
			a, c := methods[i], methods[j]
			if !returnCompatible(x, a.ret, a.owner, c.ret, c.owner) &&
				!returnCompatible(x, c.ret, c.owner, a.ret, a.owner) {
				return a, c, true
			}
		}
	}
	return nil, nil, false
}

func incompatible(r model.Range, msg string) model.Diagnostic {
	return model.Diagnostic{
		Code:     CodeIncompatibleReturnType,
		Severity: model.SeverityError,
		Message:  msg,
		Range:    r,
	}
}

// returnCompatible reports whether sub may override a method returning sup.
// Types the index cannot resolve are assumed compatible.
func returnCompatible(x *index, sub typeRef, subCtx *typeDecl, sup typeRef, supCtx *typeDecl) bool {
	if sub.primitive || sup.primitive {
		return sub.primitive == sup.primitive && sub.erased() == sup.erased()
	}
	if isObject(sup) {
		return true
	}
	if sub.dims != sup.dims {
		return false
	}
	if sub.erased() == sup.erased() {
		return true
	}
	subID, ok1 := resolveIn(x, sub, subCtx)
	supID, ok2 := resolveIn(x, sup, supCtx)
	if sub.dims > 0 || !ok1 || !ok2 {
		return true
	}
	return x.subtypeOf(subID, supID)
}

func resolveIn(x *index, ref typeRef, from *typeDecl) (model.TypeID, bool) {
	if from == nil {
		return x.resolve(ref.name, nil, nil)
	}
	return x.resolve(ref.name, from, from.unit)
}

// missingImplementations reports abstract methods a concrete class inherits
// without an implementation. Classes with unresolved supertypes are skipped.
func missingImplementations(x *index, t *typeDecl) []model.Diagnostic {
	if t.kind != kindClass || t.abstract || !x.isComplete(t.id) {
		return nil
	}
	implemented := make(map[string]bool)
	for _, m := range t.methods {
		if !m.abstract {
			implemented[m.name+m.signature()] = true
		}
	}
	ancestors := x.ancestorsOf(t.id)
	for _, id := range ancestors {
		for _, m := range x.types[id].methods {
			if !m.abstract && !m.static {
				implemented[m.name+m.signature()] = true
			}
		}
	}

	var out []model.Diagnostic
	reported := make(map[string]bool)
	for _, id := range ancestors {
		for _, m := range x.types[id].methods {
			sig := m.name + m.signature()
			if !m.abstract || implemented[sig] || reported[sig] {
				continue
			}
			if _, ok := builtinBySignature(m.name, m.signature()); ok {
				continue
			}
			reported[sig] = true
			out = append(out, model.Diagnostic{
				Code:     CodeMissingImplementation,
				Severity: model.SeverityError,
				Message: fmt.Sprintf("The type %s must implement the inherited abstract method %s.%s",
					t.name, m.owner.name, sig),
				Range: t.nameRange,
			})
		}
	}
	return out
}

func unusedPrivateMethods(u *unit, names []model.BoundName) []model.Diagnostic {
	used := make(map[model.BindingKey]bool)
	for _, n := range names {
		if !n.Declaration && n.Key != "" {
			used[n.Key] = true
		}
	}
	var out []model.Diagnostic
	for _, t := range u.types {
		for _, m := range t.methods {
			if m.vis != model.VisibilityPrivate || used[m.key()] {
				continue
			}
			out = append(out, model.Diagnostic{
				Code:     CodeUnusedPrivateMethod,
				Severity: model.SeverityWarning,
				Message:  fmt.Sprintf("The method %s%s from the type %s is never used locally", m.name, m.signature(), t.name),
				Range:    m.nameRange,
			})
		}
	}
	return out
}
