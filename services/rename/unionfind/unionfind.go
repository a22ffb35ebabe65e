// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package unionfind implements a disjoint-set forest keyed by value.
package unionfind

// UnionFind partitions keys into disjoint sets.
//
// Description:
//
//	Keys are added lazily by Find or explicitly by Add. Find compresses
//	paths; Union links the smaller tree under the larger one. Once two keys
//	share a representative they keep sharing it: there is no split.
//
// Thread Safety:
//
//	Not safe for concurrent use. Each resolution owns its own instance.
type UnionFind[K comparable] struct {
	parent map[K]K
	size   map[K]int
	order  []K
}

// New returns an empty UnionFind.
func New[K comparable]() *UnionFind[K] {
	return &UnionFind[K]{
		parent: make(map[K]K),
		size:   make(map[K]int),
	}
}

// Add registers k as a singleton set if it is not already present.
func (u *UnionFind[K]) Add(k K) {
	if _, ok := u.parent[k]; ok {
		return
	}
	u.parent[k] = k
	u.size[k] = 1
	u.order = append(u.order, k)
}

// Contains reports whether k has been added.
func (u *UnionFind[K]) Contains(k K) bool {
	_, ok := u.parent[k]
	return ok
}

// Find returns the representative of k's set, adding k if needed.
func (u *UnionFind[K]) Find(k K) K {
	u.Add(k)
	root := k
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for k != root {
		next := u.parent[k]
		u.parent[k] = root
		k = next
	}
	return root
}

// Union merges the sets of a and b and returns the new representative.
func (u *UnionFind[K]) Union(a, b K) K {
	ra, rb := u.Find(a), u.Find(b)
	if ra == rb {
		return ra
	}
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
	delete(u.size, rb)
	return ra
}

// Same reports whether a and b are in the same set.
func (u *UnionFind[K]) Same(a, b K) bool {
	return u.Find(a) == u.Find(b)
}

// Len returns the number of keys.
func (u *UnionFind[K]) Len() int { return len(u.order) }

// Sets returns the number of disjoint sets.
func (u *UnionFind[K]) Sets() int { return len(u.size) }

// Members returns the keys sharing k's set, in insertion order.
func (u *UnionFind[K]) Members(k K) []K {
	root := u.Find(k)
	var out []K
	for _, x := range u.order {
		if u.Find(x) == root {
			out = append(out, x)
		}
	}
	return out
}

// Groups returns every set keyed by its representative. Members keep
// insertion order.
func (u *UnionFind[K]) Groups() map[K][]K {
	out := make(map[K][]K, len(u.size))
	for _, x := range u.order {
		root := u.Find(x)
		out[root] = append(out[root], x)
	}
	return out
}

// Roots returns the representatives in order of first insertion of any member.
func (u *UnionFind[K]) Roots() []K {
	seen := make(map[K]bool, len(u.size))
	var out []K
	for _, x := range u.order {
		root := u.Find(x)
		if !seen[root] {
			seen[root] = true
			out = append(out, root)
		}
	}
	return out
}
