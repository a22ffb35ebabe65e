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

	"github.com/AleutianAI/AleutianRename/services/rename/model"
)

// target is what an invocation bound to. At most one field is set.
type target struct {
	method  *methodDecl
	builtin *builtinMethod
}

func (t target) bound() bool { return t.method != nil || t.builtin != nil }

func (t target) key() model.BindingKey {
	switch {
	case t.method != nil:
		return t.method.key()
	case t.builtin != nil:
		return t.builtin.key()
	}
	return ""
}

// receiver is the static type a method search starts from.
type receiver struct {
	// types are searched in order; empty with known set means
	// java.lang.Object only.
	types []model.TypeID

	// known is false when the receiver type could not be resolved.
	known bool
}

// binder resolves the invocations of one unit against an index.
type binder struct {
	x     *index
	u     *unit
	calls map[*invocation]target
	diags []model.Diagnostic
}

func newBinder(x *index, u *unit) *binder {
	return &binder{x: x, u: u, calls: make(map[*invocation]target)}
}

// bindings returns every declaration and invocation name of the unit.
// Invocations that cannot be bound carry an empty key.
func (b *binder) bindings() []model.BoundName {
	var out []model.BoundName
	for _, t := range b.u.types {
		for _, m := range t.methods {
			out = append(out, model.BoundName{
				Range:       m.nameRange,
				Name:        m.name,
				Key:         m.key(),
				Declaration: true,
			})
		}
		for _, body := range t.bodies {
			for _, inv := range body.calls {
				out = append(out, model.BoundName{
					Range: inv.nameRange,
					Name:  inv.name,
					Key:   b.bind(inv).key(),
				})
			}
		}
	}
	return out
}

// bind resolves inv, memoized per invocation.
func (b *binder) bind(inv *invocation) target {
	if t, ok := b.calls[inv]; ok {
		return t
	}
	// Guard against receiver cycles on malformed trees.
	b.calls[inv] = target{}

	recv := b.receiverOf(inv)
	var found target
	for _, id := range recv.types {
		if m := b.x.findMethod(id, inv.name, inv.arity); m != nil {
			found = target{method: m}
			break
		}
	}
	if !found.bound() {
		if bm, ok := findBuiltin(inv.name, inv.arity); ok {
			found = target{builtin: &bm}
		}
	}
	if !found.bound() && b.definitelyUndefined(inv, recv) {
		b.diags = append(b.diags, model.Diagnostic{
			Code:     CodeUndefinedMethod,
			Severity: model.SeverityError,
			Message:  undefinedMessage(inv, recv),
			Range:    inv.nameRange,
		})
	}
	b.calls[inv] = found
	return found
}

// definitelyUndefined reports whether every type that could declare the
// method is fully known. Static imports may bring unqualified methods into
// scope, so their presence leaves unqualified calls unresolved.
func (b *binder) definitelyUndefined(inv *invocation, recv receiver) bool {
	if !recv.known {
		return false
	}
	if inv.recv == recvNone {
		for _, imp := range b.u.imports {
			if imp.static {
				return false
			}
		}
	}
	for _, id := range recv.types {
		if !b.x.isComplete(id) {
			return false
		}
	}
	return true
}

func undefinedMessage(inv *invocation, recv receiver) string {
	on := model.TypeID(objectType)
	if len(recv.types) > 0 {
		on = recv.types[0]
	}
	return fmt.Sprintf("The method %s with %d argument(s) is undefined for the type %s", inv.name, inv.arity, on.SimpleName())
}

// receiverOf computes the static receiver type of inv.
func (b *binder) receiverOf(inv *invocation) receiver {
	owner := inv.body.owner
	switch inv.recv {
	case recvNone:
		var types []model.TypeID
		for t := owner; t != nil; t = t.outer {
			types = append(types, t.id)
		}
		return receiver{types: types, known: true}
	case recvThis:
		return receiver{types: []model.TypeID{owner.id}, known: true}
	case recvSuper:
		if owner.superclass == nil {
			return receiver{known: owner.kind == kindClass}
		}
		if sup, ok := b.x.superclass[owner.id]; ok {
			return receiver{types: []model.TypeID{sup}, known: true}
		}
		return receiver{known: isObject(*owner.superclass)}
	case recvName:
		return b.nameReceiver(inv)
	case recvNew:
		return b.refReceiver(inv.recvType, owner)
	case recvCall:
		inner := b.bind(inv.recvCall)
		switch {
		case inner.method != nil:
			return b.refReceiver(inner.method.ret, inner.method.owner)
		case inner.builtin != nil:
			return b.refReceiver(inner.builtin.ret, nil)
		}
	}
	return receiver{}
}

// nameReceiver resolves an identifier receiver as a local, a field or a
// type name, in that order.
func (b *binder) nameReceiver(inv *invocation) receiver {
	name := inv.recvName
	if ref, ok := inv.body.locals[name]; ok {
		return b.refReceiver(ref, inv.body.owner)
	}
	if ref, decl, ok := b.findField(inv.body.owner, name); ok {
		return b.refReceiver(ref, decl)
	}
	if id, ok := b.x.resolve(name, inv.body.owner, b.u); ok {
		return receiver{types: []model.TypeID{id}, known: true}
	}
	return receiver{}
}

// findField looks name up in t, its enclosing types and their supertypes.
// It returns the declaring type so the field type resolves in its context.
func (b *binder) findField(t *typeDecl, name string) (typeRef, *typeDecl, bool) {
	for cur := t; cur != nil; cur = cur.outer {
		if ref, ok := cur.fields[name]; ok {
			return ref, cur, true
		}
		for _, id := range b.x.ancestorsOf(cur.id) {
			decl := b.x.types[id]
			if ref, ok := decl.fields[name]; ok {
				return ref, decl, true
			}
		}
	}
	return typeRef{}, nil, false
}

func (b *binder) refReceiver(ref typeRef, from *typeDecl) receiver {
	if isObject(ref) {
		return receiver{known: true}
	}
	if !ref.reference() {
		return receiver{}
	}
	var u *unit
	if from != nil {
		u = from.unit
	}
	id, ok := b.x.resolve(ref.name, from, u)
	if !ok {
		return receiver{}
	}
	return receiver{types: []model.TypeID{id}, known: true}
}

func isObject(ref typeRef) bool {
	return ref.dims == 0 && (ref.name == "Object" || ref.name == objectType)
}
