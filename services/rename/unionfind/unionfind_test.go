// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package unionfind

import (
	"math/rand"
	"testing"
)

func TestUnionFind_Basic(t *testing.T) {
	u := New[string]()
	for _, k := range []string{"a", "b", "c", "d"} {
		u.Add(k)
	}
	if u.Sets() != 4 {
		t.Fatalf("Sets() = %d, want 4", u.Sets())
	}

	u.Union("a", "b")
	u.Union("c", "d")
	if !u.Same("a", "b") || !u.Same("c", "d") {
		t.Error("expected a~b and c~d")
	}
	if u.Same("a", "c") {
		t.Error("a and c should be disjoint")
	}
	if u.Sets() != 2 {
		t.Errorf("Sets() = %d, want 2", u.Sets())
	}

	u.Union("b", "d")
	if !u.Same("a", "c") {
		t.Error("expected a~c after b~d")
	}
	if got := u.Members("d"); len(got) != 4 || got[0] != "a" {
		t.Errorf("Members(d) = %v, want [a b c d]", got)
	}
	if u.Len() != 4 || u.Sets() != 1 {
		t.Errorf("Len/Sets = %d/%d, want 4/1", u.Len(), u.Sets())
	}
}

func TestUnionFind_FindAddsLazily(t *testing.T) {
	u := New[int]()
	if u.Contains(7) {
		t.Fatal("empty set contains 7")
	}
	if got := u.Find(7); got != 7 {
		t.Errorf("Find(7) = %d, want 7", got)
	}
	if !u.Contains(7) {
		t.Error("Find should add the key")
	}
}

func TestUnionFind_UnionIdempotent(t *testing.T) {
	u := New[string]()
	r1 := u.Union("x", "y")
	r2 := u.Union("y", "x")
	if r1 != r2 {
		t.Errorf("repeated union changed representative: %s vs %s", r1, r2)
	}
	if u.Sets() != 1 {
		t.Errorf("Sets() = %d, want 1", u.Sets())
	}
}

// Merging is monotone: once two keys share a set, further unions never split them.
func TestUnionFind_Monotone(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	u := New[int]()
	const n = 200
	for i := 0; i < n; i++ {
		u.Add(i)
	}

	type pair struct{ a, b int }
	var joined []pair
	for step := 0; step < 400; step++ {
		a, b := rng.Intn(n), rng.Intn(n)
		u.Union(a, b)
		joined = append(joined, pair{a, b})
		for _, p := range joined {
			if !u.Same(p.a, p.b) {
				t.Fatalf("step %d: %d and %d split", step, p.a, p.b)
			}
		}
	}

	total := 0
	for _, members := range u.Groups() {
		total += len(members)
	}
	if total != n {
		t.Errorf("groups cover %d keys, want %d", total, n)
	}
	if len(u.Roots()) != u.Sets() {
		t.Errorf("Roots() = %d, Sets() = %d", len(u.Roots()), u.Sets())
	}
}
