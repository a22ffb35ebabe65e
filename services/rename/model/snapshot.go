// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"bytes"
	"fmt"
	"sort"
)

// TextEdit replaces Length bytes at Offset in Container with NewText.
type TextEdit struct {
	Container ContainerID `json:"container" binding:"required"`
	Offset    int         `json:"offset" binding:"gte=0"`
	Length    int         `json:"length" binding:"gte=0"`
	NewText   string      `json:"new_text"`
}

// Range is a half-open byte range in one container.
type Range struct {
	Container ContainerID `json:"container"`
	Offset    int         `json:"offset"`
	Length    int         `json:"length"`
}

// End returns the exclusive end offset.
func (r Range) End() int { return r.Offset + r.Length }

// Overlaps reports whether two ranges in the same container share a byte.
func (r Range) Overlaps(o Range) bool {
	return r.Container == o.Container && r.Offset < o.End() && o.Offset < r.End()
}

// Snapshot is an immutable copy of source text keyed by container.
//
// Thread Safety:
//
//	Safe for concurrent reads. Apply returns a new Snapshot and never
//	modifies the receiver.
type Snapshot struct {
	files map[ContainerID][]byte
}

// NewSnapshot copies files into a new snapshot.
func NewSnapshot(files map[ContainerID][]byte) Snapshot {
	copied := make(map[ContainerID][]byte, len(files))
	for c, content := range files {
		copied[c] = bytes.Clone(content)
	}
	return Snapshot{files: copied}
}

// Containers returns the snapshot's containers in sorted order.
func (s Snapshot) Containers() []ContainerID {
	out := make([]ContainerID, 0, len(s.files))
	for c := range s.files {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Content returns the bytes of a container. The returned slice must not be modified.
func (s Snapshot) Content(c ContainerID) ([]byte, bool) {
	content, ok := s.files[c]
	return content, ok
}

// Len returns the number of containers.
func (s Snapshot) Len() int { return len(s.files) }

// Equal reports whether two snapshots hold identical text.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.files) != len(o.files) {
		return false
	}
	for c, content := range s.files {
		other, ok := o.files[c]
		if !ok || !bytes.Equal(content, other) {
			return false
		}
	}
	return true
}

// Apply returns a new snapshot with the edits applied, plus the mapping
// between old and new offsets.
//
// Description:
//
//	Edits are grouped per container and applied in offset order. Edits in
//	one container must not overlap and must lie inside the original text.
//	Containers without edits share storage with the receiver.
//
// Outputs:
//
//	Snapshot - The edited copy.
//	*EditMap - Offset mapping for the applied edits.
//	error - ErrInvalidEdit for unknown containers, out-of-range or
//	        overlapping edits.
func (s Snapshot) Apply(edits []TextEdit) (Snapshot, *EditMap, error) {
	byContainer := make(map[ContainerID][]TextEdit)
	for _, e := range edits {
		byContainer[e.Container] = append(byContainer[e.Container], e)
	}

	files := make(map[ContainerID][]byte, len(s.files))
	for c, content := range s.files {
		files[c] = content
	}
	em := &EditMap{edits: make(map[ContainerID][]appliedEdit, len(byContainer))}

	for c, list := range byContainer {
		content, ok := s.files[c]
		if !ok {
			return Snapshot{}, nil, fmt.Errorf("%w: unknown container %s", ErrInvalidEdit, c)
		}
		sort.SliceStable(list, func(i, j int) bool { return list[i].Offset < list[j].Offset })

		var buf bytes.Buffer
		buf.Grow(len(content))
		prevEnd, delta := 0, 0
		applied := make([]appliedEdit, 0, len(list))
		for i, e := range list {
			if e.Offset < 0 || e.Length < 0 || e.Offset+e.Length > len(content) {
				return Snapshot{}, nil, fmt.Errorf("%w: %s [%d,+%d) outside %d bytes",
					ErrInvalidEdit, c, e.Offset, e.Length, len(content))
			}
			if i > 0 && e.Offset < prevEnd {
				return Snapshot{}, nil, fmt.Errorf("%w: %s edits overlap at offset %d", ErrInvalidEdit, c, e.Offset)
			}
			buf.Write(content[prevEnd:e.Offset])
			buf.WriteString(e.NewText)
			applied = append(applied, appliedEdit{
				oldOffset: e.Offset,
				oldLength: e.Length,
				newOffset: e.Offset + delta,
				newLength: len(e.NewText),
			})
			delta += len(e.NewText) - e.Length
			prevEnd = e.Offset + e.Length
		}
		buf.Write(content[prevEnd:])
		files[c] = buf.Bytes()
		em.edits[c] = applied
	}

	return Snapshot{files: files}, em, nil
}

type appliedEdit struct {
	oldOffset, oldLength int
	newOffset, newLength int
}

// EditMap translates offsets across an applied edit set.
type EditMap struct {
	edits map[ContainerID][]appliedEdit
}

// MapOffset translates an offset in the original text of c to the edited text.
//
// An offset inside a replaced range maps to the start of its replacement.
func (m *EditMap) MapOffset(c ContainerID, offset int) int {
	if m == nil {
		return offset
	}
	delta := 0
	for _, e := range m.edits[c] {
		if offset < e.oldOffset {
			break
		}
		if offset < e.oldOffset+e.oldLength {
			return e.newOffset
		}
		delta += e.newLength - e.oldLength
	}
	return offset + delta
}

// Touched reports whether a range in the edited text overlaps replacement text.
func (m *EditMap) Touched(r Range) bool {
	if m == nil {
		return false
	}
	for _, e := range m.edits[r.Container] {
		if e.newOffset >= r.End() {
			break
		}
		if r.Offset < e.newOffset+e.newLength {
			return true
		}
	}
	return false
}

// Replaced returns the edited ranges of c in new-text coordinates.
func (m *EditMap) Replaced(c ContainerID) []Range {
	if m == nil {
		return nil
	}
	out := make([]Range, 0, len(m.edits[c]))
	for _, e := range m.edits[c] {
		out = append(out, Range{Container: c, Offset: e.newOffset, Length: e.newLength})
	}
	return out
}

// EditedContainers returns the containers that received at least one edit, sorted.
func (m *EditMap) EditedContainers() []ContainerID {
	if m == nil {
		return nil
	}
	out := make([]ContainerID, 0, len(m.edits))
	for c := range m.edits {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
