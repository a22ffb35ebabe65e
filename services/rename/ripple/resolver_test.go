// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ripple

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"github.com/AleutianAI/AleutianRename/services/rename/model/modeltest"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func mid(t model.TypeID, name string) model.MethodID {
	return model.MethodID{Type: t, Name: name, Signature: "()"}
}

func newTestResolver(t *testing.T, ws *modeltest.Workspace, opts ...Option) *Resolver {
	t.Helper()
	r, err := NewResolver(ws, ws.Methods(), opts...)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

func resolveTypes(t *testing.T, r *Resolver, m model.MethodID) []model.TypeID {
	t.Helper()
	res, err := r.Resolve(context.Background(), m)
	if err != nil {
		t.Fatalf("Resolve(%s): %v", m, err)
	}
	out := make([]model.TypeID, 0, len(res.Methods))
	for _, x := range res.Methods {
		out = append(out, x.Type)
	}
	return out
}

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func TestNewResolver_NilCollaborators(t *testing.T) {
	ws := modeltest.New()
	if _, err := NewResolver(nil, ws.Methods()); err == nil {
		t.Error("expected error for nil hierarchy provider")
	}
	if _, err := NewResolver(ws, nil); err == nil {
		t.Error("expected error for nil search service")
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestResolve_InterfaceDiamond(t *testing.T) {
	ws := modeltest.New().
		Interface("p.I1").Interface("p.I2").
		Extends("p.C", "p.I1", "p.I2").
		Method("p.I1", "foo", "()").
		Method("p.I2", "foo", "()").
		Method("p.C", "foo", "()")
	r := newTestResolver(t, ws)

	want := []model.TypeID{"p.C", "p.I1", "p.I2"}
	for _, start := range want {
		if got := resolveTypes(t, r, mid(start, "foo")); !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve(%s.foo) = %v, want %v", start, got, want)
		}
	}
}

func TestResolve_MarriedThroughUndeclaringSubtype(t *testing.T) {
	// Abstract C implements both interfaces but declares nothing itself.
	ws := modeltest.New().
		Interface("p.I1").Interface("p.I2").
		Extends("p.C", "p.I1", "p.I2").
		Method("p.I1", "foo", "()").
		Method("p.I2", "foo", "()").
		Method("p.Unrelated", "foo", "()")
	r := newTestResolver(t, ws, WithCheapPathRatio(0))

	res, err := r.Resolve(context.Background(), mid("p.I1", "foo"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []model.MethodID{mid("p.I1", "foo"), mid("p.I2", "foo")}
	if !reflect.DeepEqual(res.Methods, want) {
		t.Errorf("Methods = %v, want %v", res.Methods, want)
	}
	if res.Partitions != 3 || res.Married != 1 {
		t.Errorf("Partitions/Married = %d/%d, want 3/1", res.Partitions, res.Married)
	}
}

func TestResolve_ClassMethodImplementsInterfaceInSubclass(t *testing.T) {
	// A.run is inherited by X, which also implements I: A.run implements I.run there.
	ws := modeltest.New().
		Interface("p.I").
		Extends("p.X", "p.A", "p.I").
		Method("p.A", "run", "()").
		Method("p.I", "run", "()")
	r := newTestResolver(t, ws)

	if got, want := resolveTypes(t, r, mid("p.A", "run")), []model.TypeID{"p.A", "p.I"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve(A.run) = %v, want %v", got, want)
	}
}

func TestResolve_MarriageReachesFixedPoint(t *testing.T) {
	// Pass 1: X marries A to I. Pass 2: Y marries J to the grown set via A.
	ws := modeltest.New().
		Interface("p.I").Interface("p.J").
		Extends("p.X", "p.A", "p.I").
		Extends("p.Y", "p.A", "p.J").
		Method("p.I", "m", "()").
		Method("p.A", "m", "()").
		Method("p.J", "m", "()").
		Method("p.K", "m", "()")
	r := newTestResolver(t, ws, WithCheapPathRatio(0))

	res, err := r.Resolve(context.Background(), mid("p.I", "m"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []model.MethodID{mid("p.A", "m"), mid("p.I", "m"), mid("p.J", "m")}
	if !reflect.DeepEqual(res.Methods, want) {
		t.Errorf("Methods = %v, want %v", res.Methods, want)
	}
	if res.Married != 2 {
		t.Errorf("Married = %d, want 2", res.Married)
	}
}

func TestResolve_PackagePrivateDoesNotMarry(t *testing.T) {
	// a.A.run is package-private, so it cannot implement b.I.run in b.X.
	ws := modeltest.New().
		Interface("b.I").
		Extends("b.X", "a.A", "b.I").
		MethodWith("a.A", "run", "()", model.VisibilityPackage, false).
		Method("b.I", "run", "()")
	r := newTestResolver(t, ws)

	if got, want := resolveTypes(t, r, mid("b.I", "run")), []model.TypeID{"b.I"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve(I.run) = %v, want %v", got, want)
	}
	if got, want := resolveTypes(t, r, mid("a.A", "run")), []model.TypeID{"a.A"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve(A.run) = %v, want %v", got, want)
	}
}

func TestResolve_NonVirtualShortCircuits(t *testing.T) {
	tests := []struct {
		name   string
		vis    model.Visibility
		static bool
	}{
		{"private", model.VisibilityPrivate, false},
		{"static", model.VisibilityPublic, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := modeltest.New().
				Extends("p.Sub", "p.Base").
				MethodWith("p.Base", "helper", "()", tt.vis, tt.static).
				Method("p.Sub", "helper", "()")
			r := newTestResolver(t, ws)

			got := resolveTypes(t, r, mid("p.Base", "helper"))
			if want := []model.TypeID{"p.Base"}; !reflect.DeepEqual(got, want) {
				t.Errorf("Resolve = %v, want %v", got, want)
			}
			for _, op := range []string{"FindDeclarations", "SupertypesOf", "SubtypesOf"} {
				if n := ws.Calls(op); n != 0 {
					t.Errorf("%s called %d times, want 0", op, n)
				}
			}
		})
	}
}

func TestResolve_UnresolvedTargetDegrades(t *testing.T) {
	ws := modeltest.New()
	r := newTestResolver(t, ws)

	res, err := r.Resolve(context.Background(), mid("p.Ghost", "run"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Contains(mid("p.Ghost", "run")) || len(res.Methods) != 1 {
		t.Errorf("Methods = %v, want just the target", res.Methods)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != model.WarnUnresolvedBinding {
		t.Errorf("Warnings = %+v, want one UNRESOLVED_BINDING", res.Warnings)
	}
}

func TestResolve_PartialHierarchyWarns(t *testing.T) {
	ws := modeltest.New().
		Extends("p.Sub", "p.Base").
		Missing("p.Sub", "lib.Unknown").
		Method("p.Base", "run", "()").
		Method("p.Sub", "run", "()").
		Method("p.Other", "run", "()")
	r := newTestResolver(t, ws)

	res, err := r.Resolve(context.Background(), mid("p.Sub", "run"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []model.MethodID{mid("p.Base", "run"), mid("p.Sub", "run")}
	if !reflect.DeepEqual(res.Methods, want) {
		t.Errorf("Methods = %v, want %v", res.Methods, want)
	}
	found := false
	for _, w := range res.Warnings {
		if w.Code == model.WarnPartialHierarchy && w.Subject == "p.Sub" {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %+v, want PARTIAL_HIERARCHY for p.Sub", res.Warnings)
	}
}

func TestResolve_ModelErrorPropagates(t *testing.T) {
	ws := modeltest.New().
		Method("p.A", "run", "()").
		Method("p.B", "run", "()").
		Fail("FindDeclarations", io.ErrUnexpectedEOF)
	r := newTestResolver(t, ws)

	_, err := r.Resolve(context.Background(), mid("p.A", "run"))
	if !errors.Is(err, model.ErrModel) {
		t.Errorf("err = %v, want ErrModel", err)
	}
}

func TestResolve_Cancelled(t *testing.T) {
	ws := modeltest.New().
		Extends("p.B", "p.A").
		Method("p.A", "run", "()").
		Method("p.B", "run", "()")
	r := newTestResolver(t, ws)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, mid("p.A", "run"))
	if !errors.Is(err, model.ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
}

func TestResolve_BinaryMembers(t *testing.T) {
	build := func() *modeltest.Workspace {
		return modeltest.New().
			Binary("lib.Base").
			Extends("p.Sub", "lib.Base").
			Method("lib.Base", "run", "()").
			Method("p.Sub", "run", "()")
	}
	binary := model.MethodID{Type: "lib.Base", Name: "run", Signature: "()", Binary: true}

	t.Run("uncovered binary warns", func(t *testing.T) {
		r := newTestResolver(t, build())
		res, err := r.Resolve(context.Background(), mid("p.Sub", "run"))
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if !reflect.DeepEqual(res.Binary, []model.MethodID{binary}) {
			t.Errorf("Binary = %v, want [%v]", res.Binary, binary)
		}
		if len(res.RequiringRename()) != 2 {
			t.Errorf("RequiringRename = %v, want both", res.RequiringRename())
		}
		if len(res.Warnings) != 1 || res.Warnings[0].Code != model.WarnBinaryMember {
			t.Errorf("Warnings = %+v, want one BINARY_MEMBER", res.Warnings)
		}
	})

	t.Run("covered binary is skipped", func(t *testing.T) {
		r := newTestResolver(t, build(), WithCoveredBinaries(func(m model.MethodID) bool {
			return m == binary
		}))
		res, err := r.Resolve(context.Background(), mid("p.Sub", "run"))
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if !res.Contains(binary) {
			t.Error("covered binary must stay in the ripple set")
		}
		if got := res.RequiringRename(); !reflect.DeepEqual(got, []model.MethodID{mid("p.Sub", "run")}) {
			t.Errorf("RequiringRename = %v, want [p.Sub.run()]", got)
		}
		if len(res.Warnings) != 0 {
			t.Errorf("Warnings = %+v, want none", res.Warnings)
		}
	})
}

func TestResolve_CheapPathSelected(t *testing.T) {
	ws := modeltest.New().
		Interface("p.I").Interface("p.J").
		Extends("p.X", "p.I", "p.J").
		Method("p.I", "m", "()").
		Method("p.J", "m", "()")
	for i := 0; i < 10; i++ {
		ws.Extends(model.TypeID("p.Impl"+string(rune('A'+i))), "p.I")
	}
	r := newTestResolver(t, ws, WithCheapPathRatio(2))

	res, err := r.Resolve(context.Background(), mid("p.I", "m"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.CheapPath {
		t.Error("expected the alien-first search for a type with many subtypes")
	}
	if !res.Contains(mid("p.J", "m")) {
		t.Errorf("Methods = %v, want J.m married through X", res.Methods)
	}
}

func TestResolve_SpanRecorded(t *testing.T) {
	exporter := setupTestTracer(t)
	ws := modeltest.New().
		Extends("p.B", "p.A").
		Method("p.A", "run", "()").
		Method("p.B", "run", "()")
	r := newTestResolver(t, ws)

	if _, err := r.Resolve(context.Background(), mid("p.A", "run")); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	for _, s := range exporter.GetSpans() {
		if s.Name != "ripple.Resolver.Resolve" {
			continue
		}
		for _, attr := range s.Attributes {
			if string(attr.Key) == "ripple.methods" && attr.Value.AsInt64() == 2 {
				return
			}
		}
		t.Fatalf("span attributes = %v, want ripple.methods=2", s.Attributes)
	}
	t.Fatal("ripple.Resolver.Resolve span not recorded")
}
