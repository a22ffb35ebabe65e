// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rename

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"github.com/AleutianAI/AleutianRename/services/rename/ripple"
	"github.com/sourcegraph/go-diff/diff"
)

// previewContext is the number of unchanged lines around each hunk.
const previewContext = 2

// Plan is an evaluated rename.
type Plan struct {
	// ID is the journal record ID. Empty when the plan was not recorded.
	ID string `json:"id,omitempty"`

	Method  model.MethodID `json:"method"`
	NewName string         `json:"new_name"`

	Ripple      *ripple.Result        `json:"ripple"`
	Scope       model.SearchScope     `json:"scope"`
	Occurrences []model.Occurrence    `json:"occurrences"`
	Edits       []model.TextEdit      `json:"edits"`
	Report      *model.ConflictReport `json:"report"`
	Warnings    []model.Warning       `json:"warnings,omitempty"`

	original model.Snapshot
}

// Blocking reports whether the plan has a fatal or error-level conflict.
func (p *Plan) Blocking() bool {
	return p.Report.HasFatal() || p.Report.HasErrors()
}

// Preview renders the edits as a unified diff, one file per edited
// container in container order.
func (p *Plan) Preview() (string, error) {
	after, edits, err := p.original.Apply(p.Edits)
	if err != nil {
		return "", fmt.Errorf("preview: %w", err)
	}

	var files []*diff.FileDiff
	for _, c := range edits.EditedContainers() {
		before, _ := p.original.Content(c)
		changed, _ := after.Content(c)
		fd, err := fileDiff(c, string(before), string(changed))
		if err != nil {
			return "", err
		}
		if fd != nil {
			files = append(files, fd)
		}
	}
	if len(files) == 0 {
		return "", nil
	}
	out, err := diff.PrintMultiFileDiff(files)
	if err != nil {
		return "", fmt.Errorf("preview: %w", err)
	}
	return string(out), nil
}

// fileDiff diffs two versions of a container line by line. Renames never
// add or remove lines, so lines are compared pairwise.
func fileDiff(c model.ContainerID, before, after string) (*diff.FileDiff, error) {
	orig, next := splitLines(before), splitLines(after)
	if len(orig) != len(next) {
		return nil, fmt.Errorf("preview: %s: line count changed from %d to %d", c, len(orig), len(next))
	}

	changed := make([]bool, len(orig))
	dirty := false
	for i := range orig {
		if orig[i] != next[i] {
			changed[i] = true
			dirty = true
		}
	}
	if !dirty {
		return nil, nil
	}

	fd := &diff.FileDiff{
		OrigName: "a/" + string(c),
		NewName:  "b/" + string(c),
	}
	for i := 0; i < len(orig); {
		if !changed[i] {
			i++
			continue
		}
		start := max(i-previewContext, 0)
		end := hunkEnd(changed, i)
		fd.Hunks = append(fd.Hunks, hunk(orig, next, changed, start, end))
		i = end
	}
	return fd, nil
}

// hunkEnd returns the exclusive end of the hunk containing the change at i,
// merging changes separated by at most twice the context.
func hunkEnd(changed []bool, i int) int {
	last := i
	for j := i; j < len(changed) && j <= last+2*previewContext; j++ {
		if changed[j] {
			last = j
		}
	}
	return min(last+1+previewContext, len(changed))
}

func hunk(orig, next []string, changed []bool, start, end int) *diff.Hunk {
	var body strings.Builder
	for i := start; i < end; {
		if !changed[i] {
			body.WriteString(" " + orig[i] + "\n")
			i++
			continue
		}
		j := i
		for j < end && changed[j] {
			j++
		}
		for k := i; k < j; k++ {
			body.WriteString("-" + orig[k] + "\n")
		}
		for k := i; k < j; k++ {
			body.WriteString("+" + next[k] + "\n")
		}
		i = j
	}
	n := int32(end - start)
	return &diff.Hunk{
		OrigStartLine: int32(start + 1),
		OrigLines:     n,
		NewStartLine:  int32(start + 1),
		NewLines:      n,
		Body:          []byte(body.String()),
	}
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
