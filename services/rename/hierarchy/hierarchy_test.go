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
	"errors"
	"io"
	"math/rand"
	"reflect"
	"testing"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"github.com/AleutianAI/AleutianRename/services/rename/model/modeltest"
)

// =============================================================================
// HIERARCHY
// =============================================================================

func TestHierarchy_Memoizes(t *testing.T) {
	ws := modeltest.New().
		Extends("p.C", "p.B").
		Extends("p.B", "p.A")
	h := New(ws)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := h.AllSupertypes(ctx, "p.C")
		if err != nil {
			t.Fatalf("AllSupertypes: %v", err)
		}
		if want := []model.TypeID{"p.B", "p.A"}; !reflect.DeepEqual(got, want) {
			t.Errorf("AllSupertypes(C) = %v, want %v", got, want)
		}
	}
	if n := ws.Calls("SupertypesOf"); n != 3 {
		t.Errorf("SupertypesOf called %d times, want 3 (once per type)", n)
	}
}

func TestHierarchy_Subtypes(t *testing.T) {
	ws := modeltest.New().
		Extends("p.B", "p.A").
		Extends("p.C", "p.A").
		Extends("p.D", "p.B", "p.C")
	h := New(ws)

	got, err := h.AllSubtypes(context.Background(), "p.A")
	if err != nil {
		t.Fatalf("AllSubtypes: %v", err)
	}
	if want := []model.TypeID{"p.B", "p.C", "p.D"}; !reflect.DeepEqual(got, want) {
		t.Errorf("AllSubtypes(A) = %v, want %v", got, want)
	}
}

func TestHierarchy_ToleratesCycles(t *testing.T) {
	ws := modeltest.New().
		Extends("p.A", "p.B").
		Extends("p.B", "p.A")
	h := New(ws)

	got, err := h.AllSupertypes(context.Background(), "p.A")
	if err != nil {
		t.Fatalf("AllSupertypes: %v", err)
	}
	if want := []model.TypeID{"p.B"}; !reflect.DeepEqual(got, want) {
		t.Errorf("AllSupertypes(A) = %v, want %v", got, want)
	}
}

func TestHierarchy_UnresolvedIsIsolated(t *testing.T) {
	ws := modeltest.New().Type("p.A")
	h := New(ws)
	ctx := context.Background()

	supers, err := h.Supertypes(ctx, "p.Ghost")
	if err != nil {
		t.Fatalf("Supertypes: %v", err)
	}
	if len(supers) != 0 {
		t.Errorf("unknown type has supertypes %v", supers)
	}
	if h.Known("p.Ghost") {
		t.Error("unknown type reported known")
	}
	warnings := h.Warnings()
	if len(warnings) != 1 || warnings[0].Code != model.WarnUnresolvedType {
		t.Errorf("warnings = %+v, want one UNRESOLVED_TYPE", warnings)
	}

	_, ok, err := h.Describe(ctx, "p.Ghost")
	if err != nil || ok {
		t.Errorf("Describe(ghost) ok=%v err=%v, want false/nil", ok, err)
	}
}

func TestHierarchy_PartialKeepsKnownEdges(t *testing.T) {
	ws := modeltest.New().
		Extends("p.B", "p.A").
		Missing("p.B", "java.util.AbstractList")
	h := New(ws)

	supers, err := h.Supertypes(context.Background(), "p.B")
	if err != nil {
		t.Fatalf("Supertypes: %v", err)
	}
	if want := []model.TypeID{"p.A"}; !reflect.DeepEqual(supers, want) {
		t.Errorf("Supertypes(B) = %v, want %v", supers, want)
	}
	if h.Known("p.B") {
		t.Error("partially resolved type reported known")
	}
	if w := h.Warnings(); len(w) != 1 || w[0].Code != model.WarnPartialHierarchy {
		t.Errorf("warnings = %+v, want one PARTIAL_HIERARCHY", w)
	}
}

func TestHierarchy_ModelErrorPropagates(t *testing.T) {
	ws := modeltest.New().Extends("p.B", "p.A").Fail("SupertypesOf:p.B", io.ErrUnexpectedEOF)
	h := New(ws)

	_, err := h.AllSupertypes(context.Background(), "p.B")
	if !errors.Is(err, model.ErrModel) {
		t.Errorf("err = %v, want ErrModel", err)
	}
}

func TestHierarchy_DescribeModelErrorPropagates(t *testing.T) {
	ws := modeltest.New().Type("p.A").Fail("Describe:p.A", io.ErrUnexpectedEOF)
	h := New(ws)

	decl, ok, err := h.Describe(context.Background(), "p.A")
	if !errors.Is(err, model.ErrModel) {
		t.Fatalf("err = %v, want ErrModel", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("err = %v, want cause io.ErrUnexpectedEOF", err)
	}
	if ok {
		t.Error("ok = true, want false")
	}
	if decl.ID != "" {
		t.Errorf("decl = %+v, want zero value", decl)
	}
	if !h.Known("p.A") || len(h.Warnings()) != 0 {
		t.Error("a failing provider must not mark the type unresolved")
	}
}

func TestHierarchy_Cancelled(t *testing.T) {
	ws := modeltest.New().Extends("p.B", "p.A")
	h := New(ws)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.AllSupertypes(ctx, "p.B")
	if !errors.Is(err, model.ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
}

// =============================================================================
// PARTITION
// =============================================================================

func declsOf(t *testing.T, ws *modeltest.Workspace, name, sig string) []model.MethodDecl {
	t.Helper()
	decls, err := ws.Methods().FindDeclarations(context.Background(), name, sig)
	if err != nil {
		t.Fatalf("FindDeclarations: %v", err)
	}
	return decls
}

func TestPartition_ChainsThroughGaps(t *testing.T) {
	// I declares run, J extends I without declaring, C implements J and declares.
	ws := modeltest.New().
		Interface("p.I").Interface("p.J").
		Extends("p.J", "p.I").
		Extends("p.C", "p.J").
		Method("p.I", "run", "()").
		Method("p.C", "run", "()").
		Method("p.Other", "run", "()")

	parts, err := Partition(context.Background(), New(ws), declsOf(t, ws, "run", "()"))
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if parts.Root("p.C") != parts.Root("p.I") {
		t.Error("C and I should be related through J")
	}
	if parts.Root("p.Other") == parts.Root("p.I") {
		t.Error("Other should stay alone")
	}
	if parts.Count() != 2 {
		t.Errorf("Count() = %d, want 2", parts.Count())
	}
}

func TestPartition_PackageVisibilityBlocksEdge(t *testing.T) {
	// a.Base.run is package-private; b.Sub cannot override it.
	ws := modeltest.New().
		Extends("b.Sub", "a.Base").
		Extends("a.Leaf", "b.Sub").
		MethodWith("a.Base", "run", "()", model.VisibilityPackage, false).
		Method("b.Sub", "run", "()").
		Method("a.Leaf", "run", "()")

	parts, err := Partition(context.Background(), New(ws), declsOf(t, ws, "run", "()"))
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	// Leaf is in package a, so it sees Base.run and Sub.run: all three join.
	if parts.Count() != 1 {
		t.Errorf("Count() = %d, want 1 (joined through a.Leaf)", parts.Count())
	}

	ws2 := modeltest.New().
		Extends("b.Sub", "a.Base").
		MethodWith("a.Base", "run", "()", model.VisibilityPackage, false).
		Method("b.Sub", "run", "()")
	parts2, err := Partition(context.Background(), New(ws2), declsOf(t, ws2, "run", "()"))
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if parts2.Root("b.Sub") == parts2.Root("a.Base") {
		t.Error("cross-package override of package-private method must not join")
	}
}

func TestPartition_OrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		ws := randomWorkspace(rng, 12)
		decls := declsOf(t, ws, "m", "()")
		if len(decls) == 0 {
			continue
		}

		base, err := Partition(context.Background(), New(ws), decls)
		if err != nil {
			t.Fatalf("Partition: %v", err)
		}
		shuffled := append([]model.MethodDecl(nil), decls...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		again, err := Partition(context.Background(), New(ws), shuffled)
		if err != nil {
			t.Fatalf("Partition: %v", err)
		}

		for _, a := range decls {
			for _, b := range decls {
				x := base.Root(a.ID.Type) == base.Root(b.ID.Type)
				y := again.Root(a.ID.Type) == again.Root(b.ID.Type)
				if x != y {
					t.Fatalf("trial %d: %s~%s differs across orders", trial, a.ID.Type, b.ID.Type)
				}
			}
		}
	}
}

// randomWorkspace builds an acyclic hierarchy where type i may extend
// lower-numbered types and roughly half the types declare m().
func randomWorkspace(rng *rand.Rand, n int) *modeltest.Workspace {
	ws := modeltest.New()
	ids := make([]model.TypeID, n)
	for i := range ids {
		ids[i] = model.TypeID("p.T" + string(rune('A'+i)))
		ws.Type(ids[i])
	}
	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			if rng.Intn(4) == 0 {
				ws.Extends(ids[i], ids[j])
			}
		}
	}
	for i := range ids {
		if rng.Intn(2) == 0 {
			ws.Method(ids[i], "m", "()")
		}
	}
	return ws
}
