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

	"github.com/AleutianAI/AleutianRename/services/rename/hierarchy"
	"github.com/AleutianAI/AleutianRename/services/rename/model"
)

// =============================================================================
// MARRIED ALIENS
// =============================================================================
//
// An alien partition is married to the related partition when some type X
// that declares nothing itself inherits the method both from a related
// declaration and from an alien one. Renaming only one side would make X
// implement the two methods with different names, so the alien partition
// must be renamed too. Merging can expose further marriages, so both
// searches loop until a pass merges nothing.

// marryRelatedFirst walks down from the related partition and intersects
// with the subtypes of each alien partition.
func marryRelatedFirst(ctx context.Context, h *hierarchy.Hierarchy, parts *hierarchy.Partitions, target model.TypeID) (int, error) {
	married := 0
	for {
		if err := model.CheckCancelled(ctx); err != nil {
			return 0, err
		}
		relatedSubs, err := subtypeSet(ctx, h, parts.Types(target))
		if err != nil {
			return 0, err
		}

		merged := false
		for _, alien := range parts.Roots() {
			if parts.Root(alien) == parts.Root(target) {
				continue
			}
			if err := model.CheckCancelled(ctx); err != nil {
				return 0, err
			}
			alienSubs, err := subtypeList(ctx, h, parts.Types(alien))
			if err != nil {
				return 0, err
			}
			for _, x := range alienSubs {
				if !relatedSubs[x] || parts.Declares(x) {
					continue
				}
				ok, err := bindsBoth(ctx, h, parts, x, target, alien)
				if err != nil {
					return 0, err
				}
				if ok {
					parts.Merge(target, alien)
					married++
					merged = true
					break
				}
			}
		}
		if !merged {
			return married, nil
		}
	}
}

// marryAlienFirst walks down from each alien partition only, checking each
// alien subtype's supertypes for a related type. It never expands the
// subtypes of the related partition, which is what makes it cheap for
// targets with very many subtypes. If no alien subtype reaches a related
// type, no marriage is possible and the first pass returns immediately.
func marryAlienFirst(ctx context.Context, h *hierarchy.Hierarchy, parts *hierarchy.Partitions, target model.TypeID) (int, error) {
	married := 0
	for {
		if err := model.CheckCancelled(ctx); err != nil {
			return 0, err
		}
		related := make(map[model.TypeID]bool)
		for _, t := range parts.Types(target) {
			related[t] = true
		}

		merged := false
		for _, alien := range parts.Roots() {
			if parts.Root(alien) == parts.Root(target) {
				continue
			}
			if err := model.CheckCancelled(ctx); err != nil {
				return 0, err
			}
			alienSubs, err := subtypeList(ctx, h, parts.Types(alien))
			if err != nil {
				return 0, err
			}
			for _, x := range alienSubs {
				if parts.Declares(x) {
					continue
				}
				supers, err := h.AllSupertypes(ctx, x)
				if err != nil {
					return 0, err
				}
				if !anyIn(supers, related) {
					continue
				}
				ok, err := bindsBoth(ctx, h, parts, x, target, alien)
				if err != nil {
					return 0, err
				}
				if ok {
					parts.Merge(target, alien)
					married++
					merged = true
					break
				}
			}
		}
		if !merged {
			return married, nil
		}
	}
}

// bindsBoth reports whether x inherits the method from both partitions.
//
// Walks x's supertypes; on each path the first declaring type whose
// declaration is visible from x's package wins and the walk stops there.
// Declarations hidden by package visibility are walked through.
func bindsBoth(ctx context.Context, h *hierarchy.Hierarchy, parts *hierarchy.Partitions, x, related, alien model.TypeID) (bool, error) {
	decl, _, err := h.Describe(ctx, x)
	if err != nil {
		return false, err
	}
	pkg := decl.Package

	relatedRoot, alienRoot := parts.Root(related), parts.Root(alien)
	seenRelated, seenAlien := false, false

	visited := map[model.TypeID]bool{x: true}
	queue, err := h.Supertypes(ctx, x)
	if err != nil {
		return false, err
	}
	for _, s := range queue {
		visited[s] = true
	}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if parts.Declares(s) && parts.VisibleDeclaration(s, pkg) {
			switch parts.Root(s) {
			case relatedRoot:
				seenRelated = true
			case alienRoot:
				seenAlien = true
			}
			if seenRelated && seenAlien {
				return true, nil
			}
			continue
		}
		next, err := h.Supertypes(ctx, s)
		if err != nil {
			return false, err
		}
		for _, n := range next {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return false, nil
}

func subtypeSet(ctx context.Context, h *hierarchy.Hierarchy, types []model.TypeID) (map[model.TypeID]bool, error) {
	list, err := subtypeList(ctx, h, types)
	if err != nil {
		return nil, err
	}
	set := make(map[model.TypeID]bool, len(list))
	for _, t := range list {
		set[t] = true
	}
	return set, nil
}

// subtypeList returns the union of the transitive subtypes of types,
// deduplicated, in discovery order.
func subtypeList(ctx context.Context, h *hierarchy.Hierarchy, types []model.TypeID) ([]model.TypeID, error) {
	seen := make(map[model.TypeID]bool)
	var out []model.TypeID
	for _, t := range types {
		subs, err := h.AllSubtypes(ctx, t)
		if err != nil {
			return nil, err
		}
		for _, s := range subs {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func anyIn(types []model.TypeID, set map[model.TypeID]bool) bool {
	for _, t := range types {
		if set[t] {
			return true
		}
	}
	return false
}
