// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conflict

import (
	"sort"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
)

// DiagnosticDiff contains the differences between the diagnostics of an
// original snapshot and its edited copy.
type DiagnosticDiff struct {
	// Introduced are diagnostics of the edited copy with no counterpart in
	// the original.
	Introduced []model.Diagnostic `json:"introduced"`

	// Resolved are original diagnostics with no counterpart in the edited copy.
	Resolved []model.Diagnostic `json:"resolved"`

	// Unchanged is the number of diagnostics present on both sides.
	Unchanged int `json:"unchanged"`
}

// diagKey identifies a diagnostic across an edit. Offsets of original
// diagnostics are mapped into the edited text before comparison.
type diagKey struct {
	container model.ContainerID
	code      string
	offset    int
}

// DiffDiagnostics computes the diagnostics introduced and resolved by an edit.
//
// Description:
//
//	A diagnostic is identified by its container, code and start offset.
//	Original offsets are mapped through edits first, so a pre-existing
//	problem that merely moved because text before it changed length is not
//	reported. Identical keys are counted, so two equal problems before and
//	three after yield one introduced entry.
//
// Inputs:
//
//	before - Diagnostics of the original snapshot.
//	after - Diagnostics of the edited snapshot.
//	edits - Offset mapping of the applied edits. Nil means no edits.
//
// Outputs:
//
//	DiagnosticDiff - Introduced and resolved diagnostics, sorted by location.
//
// Complexity:
//
//	O(B·E + A) where E is the number of edits in a container.
func DiffDiagnostics(before, after []model.Diagnostic, edits *model.EditMap) DiagnosticDiff {
	diff := DiagnosticDiff{
		Introduced: []model.Diagnostic{},
		Resolved:   []model.Diagnostic{},
	}

	baseCounts := make(map[diagKey]int, len(before))
	for _, d := range before {
		baseCounts[mappedKey(d, edits)]++
	}

	for _, d := range after {
		key := diagKey{container: d.Range.Container, code: d.Code, offset: d.Range.Offset}
		if baseCounts[key] > 0 {
			baseCounts[key]--
			diff.Unchanged++
			continue
		}
		diff.Introduced = append(diff.Introduced, d)
	}

	for _, d := range before {
		key := mappedKey(d, edits)
		if baseCounts[key] > 0 {
			baseCounts[key]--
			diff.Resolved = append(diff.Resolved, d)
		}
	}

	sortDiagnostics(diff.Introduced)
	sortDiagnostics(diff.Resolved)
	return diff
}

func mappedKey(d model.Diagnostic, edits *model.EditMap) diagKey {
	return diagKey{
		container: d.Range.Container,
		code:      d.Code,
		offset:    edits.MapOffset(d.Range.Container, d.Range.Offset),
	}
}

func sortDiagnostics(ds []model.Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i].Range, ds[j].Range
		if a.Container != b.Container {
			return a.Container < b.Container
		}
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		return ds[i].Code < ds[j].Code
	})
}

// BindingDiff classifies the names of an edited snapshot against the
// renamed declarations.
type BindingDiff struct {
	// Dangling are names still bound to a renamed declaration at a position
	// no edit touched.
	Dangling []model.BoundName `json:"dangling"`

	// Captured are edited names that now bind to a declaration outside the
	// renamed set.
	Captured []model.BoundName `json:"captured"`

	// Renamed is the number of edited names bound to a renamed declaration.
	Renamed int `json:"renamed"`
}

// DiffBindings compares the names bound to targets with the names the
// edits touched.
//
// Description:
//
//	boundToTarget is every name whose key is in targets; edited is every
//	name overlapping a replaced range. boundToTarget minus edited is
//	dangling, edited minus boundToTarget is captured. Edited names with no
//	key are left to the diagnostics diff, which reports them as undefined.
//
// Inputs:
//
//	names - Bound names of the edited snapshot.
//	targets - Binding keys of the renamed declarations.
//	edits - Offset mapping of the applied edits.
//
// Outputs:
//
//	BindingDiff - Dangling and captured names in input order.
func DiffBindings(names []model.BoundName, targets map[model.BindingKey]bool, edits *model.EditMap) BindingDiff {
	diff := BindingDiff{
		Dangling: []model.BoundName{},
		Captured: []model.BoundName{},
	}
	for _, n := range names {
		bound := n.Key != "" && targets[n.Key]
		edited := edits.Touched(n.Range)
		switch {
		case bound && edited:
			diff.Renamed++
		case bound:
			diff.Dangling = append(diff.Dangling, n)
		case edited && n.Key != "":
			diff.Captured = append(diff.Captured, n)
		}
	}
	return diff
}
