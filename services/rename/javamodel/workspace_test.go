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
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
)

const testManifest = `
projects:
  - id: core
    roots:
      - path: core/src
      - path: core/lib
        archive: true
  - id: app
    roots:
      - path: app/src
    depends:
      - project: core
        exported: true
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(testManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if len(m.Projects) != 2 {
		t.Fatalf("projects = %d, want 2", len(m.Projects))
	}
	if !m.Projects[0].Roots[1].Archive {
		t.Error("core/lib should be an archive root")
	}
	if dep := m.Projects[1].Depends[0]; dep.Project != "core" || !dep.Exported {
		t.Errorf("app depends = %+v, want exported core", dep)
	}
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no projects", "projects: []\n", "validating manifest"},
		{"missing id", "projects:\n  - roots: [{path: a}]\n", "validating manifest"},
		{"missing root path", "projects:\n  - id: a\n    roots: [{archive: true}]\n", "validating manifest"},
		{"duplicate project", "projects:\n  - id: a\n  - id: a\n", "duplicate project"},
		{"shared root", "projects:\n  - id: a\n    roots: [{path: src}]\n  - id: b\n    roots: [{path: ./src}]\n", "claimed by"},
		{"unknown dependency", "projects:\n  - id: a\n    depends: [{project: z}]\n", "unknown project"},
		{"bad yaml", "projects: [", "parsing manifest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestWorkspace_Add(t *testing.T) {
	m, err := ParseManifest([]byte(`
projects:
  - id: outer
    roots: [{path: src}]
  - id: inner
    roots: [{path: src/gen, archive: true}]
`))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	w, err := NewWorkspace(m)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}

	tests := []struct {
		container model.ContainerID
		project   model.ProjectID
		archive   bool
	}{
		{"src/a/A.java", "outer", false},
		{"src/gen/a/G.java", "inner", true},
		{"src/generated/H.java", "outer", false},
	}
	for _, tt := range tests {
		if err := w.Add(tt.container, []byte("class X {}")); err != nil {
			t.Fatalf("Add(%s): %v", tt.container, err)
		}
		src, ok := w.Source(tt.container)
		if !ok {
			t.Fatalf("Source(%s) missing", tt.container)
		}
		if src.Project != tt.project || src.Archive != tt.archive {
			t.Errorf("%s: project = %s archive = %v, want %s %v",
				tt.container, src.Project, src.Archive, tt.project, tt.archive)
		}
	}

	if err := w.Add("lib/B.java", nil); err == nil {
		t.Error("expected error for container outside every root")
	}
	sources := w.Sources()
	for i := 1; i < len(sources); i++ {
		if sources[i-1].Container >= sources[i].Container {
			t.Errorf("Sources not sorted: %s before %s", sources[i-1].Container, sources[i].Container)
		}
	}
}

func TestWorkspace_Dependents(t *testing.T) {
	m, err := ParseManifest([]byte(testManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	w, err := NewWorkspace(m)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	deps := w.Dependents("core")
	if len(deps) != 1 || deps[0].Project != "app" || !deps[0].Exported {
		t.Errorf("Dependents(core) = %+v, want [{app true}]", deps)
	}
	if deps := w.Dependents("app"); len(deps) != 0 {
		t.Errorf("Dependents(app) = %+v, want none", deps)
	}
	if got := w.Projects(); len(got) != 2 || got[0] != "core" || got[1] != "app" {
		t.Errorf("Projects = %v, want [core app]", got)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ManifestFile), testManifest)
	writeFile(t, filepath.Join(dir, "core/src/a/Base.java"), "package a; public class Base {}")
	writeFile(t, filepath.Join(dir, "core/src/a/notes.txt"), "not java")
	writeFile(t, filepath.Join(dir, "core/src/.cache/Stale.java"), "class Stale {}")
	writeFile(t, filepath.Join(dir, "core/lib/a/Shaded.java"), "package a; public class Shaded {}")
	writeFile(t, filepath.Join(dir, "core/src/a/Huge.java"), "package a; public class Huge {"+strings.Repeat(" ", 200)+"}")

	w, err := Open(context.Background(), dir, 100, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var got []string
	for _, src := range w.Sources() {
		got = append(got, string(src.Container))
	}
	want := []string{"core/lib/a/Shaded.java", "core/src/a/Base.java"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("containers = %v, want %v", got, want)
	}
	if src, _ := w.Source("core/lib/a/Shaded.java"); !src.Archive {
		t.Error("Shaded.java should come from an archive root")
	}
}

func TestOpen_MissingRootIsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ManifestFile), testManifest)
	writeFile(t, filepath.Join(dir, "core/src/a/Base.java"), "package a; public class Base {}")

	w, err := Open(context.Background(), dir, 0, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(w.Sources()) != 1 {
		t.Errorf("sources = %d, want 1", len(w.Sources()))
	}
}

func TestOpen_Errors(t *testing.T) {
	t.Run("no manifest", func(t *testing.T) {
		if _, err := Open(context.Background(), t.TempDir(), 0, nil); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, ManifestFile), testManifest)
		writeFile(t, filepath.Join(dir, "core/src/a/Base.java"), "package a; public class Base {}")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Open(ctx, dir, 0, nil)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want context.Canceled", err)
		}
	})
}
