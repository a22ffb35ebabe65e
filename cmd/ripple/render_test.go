// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianRename/services/rename/journal"
	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"github.com/AleutianAI/AleutianRename/services/rename/ripple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRenderer_PlainForBuffers(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf)
	assert.False(t, r.styled)
}

func TestRenderer_Ripple(t *testing.T) {
	base := model.MethodID{Type: "a.Base", Name: "run", Signature: "()"}
	shaded := model.MethodID{Type: "a.Shaded", Name: "run", Signature: "()", Binary: true}

	var buf bytes.Buffer
	newRenderer(&buf).ripple(&ripple.Result{
		Target:     base,
		Methods:    []model.MethodID{base, shaded},
		Binary:     []model.MethodID{shaded},
		Covered:    []model.MethodID{shaded},
		Partitions: 1,
		CheapPath:  true,
		Warnings:   []model.Warning{{Code: "UNRESOLVED_TYPE", Message: "x.Missing not found"}},
	})

	out := buf.String()
	assert.Contains(t, out, "Ripple set of a.Base.run()")
	assert.Contains(t, out, "1 partitions, 0 married, cheap path")
	assert.Contains(t, out, "  a.Base.run()\n")
	assert.Contains(t, out, "a.Shaded.run() (binary, covered)")
	assert.Contains(t, out, "warning UNRESOLVED_TYPE: x.Missing not found")
	assert.NotContains(t, out, "\x1b[", "no escapes when not a terminal")
}

func TestRenderer_Conflicts(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		newRenderer(&buf).conflicts(&model.ConflictReport{})
		assert.Equal(t, "No conflicts.\n", buf.String())
	})

	t.Run("entries", func(t *testing.T) {
		var buf bytes.Buffer
		newRenderer(&buf).conflicts(&model.ConflictReport{Entries: []model.Conflict{
			{Kind: "SHADOWING", Severity: model.SeverityError, Message: "run is shadowed",
				Location: model.Range{Container: "core/src/a/Sub.java", Offset: 42, Length: 3}},
			{Kind: "DANGLING_REFERENCE", Severity: model.SeverityError, Fatal: true, Message: "reference lost"},
		}})
		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "  ERROR [SHADOWING] run is shadowed core/src/a/Sub.java@42", lines[0])
		assert.Contains(t, lines[1], "[DANGLING_REFERENCE, fatal]")
	})
}

func TestRenderer_History(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		newRenderer(&buf).history(nil)
		assert.Equal(t, "No recorded plans.\n", buf.String())
	})

	t.Run("entries", func(t *testing.T) {
		var buf bytes.Buffer
		newRenderer(&buf).history([]*journal.Metadata{
			{ID: "p1", Method: "a.Base.run()", NewName: "execute", Edits: 5},
			{ID: "p2", Method: "p.Person.getName()", NewName: "getLabel", Edits: 2, Conflicts: 1, Blocking: true},
		})
		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "p1  "))
		assert.Contains(t, lines[0], "a.Base.run() -> execute  5 edits, 0 conflicts  clean")
		assert.Contains(t, lines[1], "blocked")
	})
}

func TestRenderer_Record(t *testing.T) {
	base := model.MethodID{Type: "a.Base", Name: "run", Signature: "()"}
	var buf bytes.Buffer
	newRenderer(&buf).record(&journal.Record{
		ID:      "p1",
		Method:  base,
		NewName: "execute",
		Methods: []model.MethodID{base},
		Edits: []model.TextEdit{
			{Container: "core/src/a/Base.java", Offset: 10, Length: 3, NewText: "execute"},
			{Container: "app/src/a/App.java", Offset: 20, Length: 3, NewText: "execute"},
			{Container: "app/src/a/App.java", Offset: 40, Length: 3, NewText: "execute"},
		},
		Report: &model.ConflictReport{},
	})
	out := buf.String()
	assert.Contains(t, out, "Plan p1 a.Base.run() -> execute")
	assert.Contains(t, out, "1 methods, 3 edits in 2 containers")
	assert.Contains(t, out, "No conflicts.")
}

func TestRenderer_DiffKeepsText(t *testing.T) {
	preview := "--- a/x.java\n+++ b/x.java\n@@ -1,1 +1,1 @@\n-run();\n+execute();\n"
	var buf bytes.Buffer
	newRenderer(&buf).diff(preview)
	assert.Equal(t, preview, buf.String())
}
