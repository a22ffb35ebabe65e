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
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the workspace manifest looked up by Open.
const ManifestFile = "ripple.workspace.yaml"

// DefaultMaxFileSize is the largest compilation unit Open will read.
const DefaultMaxFileSize = 2 * 1024 * 1024

// ErrFileTooLarge indicates a compilation unit above the parser limit.
var ErrFileTooLarge = errors.New("file too large")

// =============================================================================
// Manifest
// =============================================================================

// Manifest lists the projects of a workspace.
type Manifest struct {
	Projects []ProjectManifest `yaml:"projects" validate:"required,min=1,dive"`
}

// ProjectManifest describes one project.
type ProjectManifest struct {
	ID      string               `yaml:"id" validate:"required"`
	Roots   []RootManifest       `yaml:"roots" validate:"dive"`
	Depends []DependencyManifest `yaml:"depends" validate:"dive"`
}

// RootManifest is a source root relative to the workspace directory.
// Archive roots hold read-only library sources.
type RootManifest struct {
	Path    string `yaml:"path" validate:"required"`
	Archive bool   `yaml:"archive"`
}

// DependencyManifest is an edge to another project. Exported dependencies
// are visible to the dependents of the depending project.
type DependencyManifest struct {
	Project  string `yaml:"project" validate:"required"`
	Exported bool   `yaml:"exported"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseManifest parses and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := validate.Struct(&m); err != nil {
		return nil, fmt.Errorf("validating manifest: %w", err)
	}
	ids := make(map[string]bool, len(m.Projects))
	roots := make(map[string]string)
	for _, p := range m.Projects {
		if ids[p.ID] {
			return nil, fmt.Errorf("validating manifest: duplicate project %q", p.ID)
		}
		ids[p.ID] = true
		for _, r := range p.Roots {
			clean := path.Clean(filepath.ToSlash(r.Path))
			if owner, ok := roots[clean]; ok {
				return nil, fmt.Errorf("validating manifest: root %q claimed by %q and %q", clean, owner, p.ID)
			}
			roots[clean] = p.ID
		}
	}
	for _, p := range m.Projects {
		for _, d := range p.Depends {
			if !ids[d.Project] {
				return nil, fmt.Errorf("validating manifest: project %q depends on unknown project %q", p.ID, d.Project)
			}
		}
	}
	return &m, nil
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(file string) (*Manifest, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data)
}

// =============================================================================
// Workspace
// =============================================================================

// Source is one compilation unit of a workspace.
type Source struct {
	Container model.ContainerID
	Project   model.ProjectID
	Archive   bool
	Content   []byte
}

type root struct {
	path    string
	project model.ProjectID
	archive bool
}

// Workspace holds the projects, dependency edges and compilation units a
// Model is built from. Container IDs are "<root>/<path below root>" with
// forward slashes.
//
// Thread Safety:
//
//	Populate from one goroutine; read-only afterwards.
type Workspace struct {
	projects   []model.ProjectID
	dependents map[model.ProjectID][]model.Dependent
	roots      []root
	sources    map[model.ContainerID]*Source
}

// NewWorkspace creates an empty workspace with the projects and roots of m.
func NewWorkspace(m *Manifest) (*Workspace, error) {
	if m == nil {
		return nil, fmt.Errorf("manifest must not be nil")
	}
	w := &Workspace{
		dependents: make(map[model.ProjectID][]model.Dependent),
		sources:    make(map[model.ContainerID]*Source),
	}
	for _, p := range m.Projects {
		w.projects = append(w.projects, model.ProjectID(p.ID))
		for _, r := range p.Roots {
			w.roots = append(w.roots, root{
				path:    path.Clean(filepath.ToSlash(r.Path)),
				project: model.ProjectID(p.ID),
				archive: r.Archive,
			})
		}
	}
	for _, p := range m.Projects {
		for _, d := range p.Depends {
			dep := model.ProjectID(d.Project)
			w.dependents[dep] = append(w.dependents[dep], model.Dependent{
				Project:  model.ProjectID(p.ID),
				Exported: d.Exported,
			})
		}
	}
	return w, nil
}

// Add registers a compilation unit. The container must lie below a root.
func (w *Workspace) Add(container model.ContainerID, content []byte) error {
	c := path.Clean(filepath.ToSlash(string(container)))
	r, ok := w.rootOf(c)
	if !ok {
		return fmt.Errorf("container %s is not below any source root", container)
	}
	w.sources[model.ContainerID(c)] = &Source{
		Container: model.ContainerID(c),
		Project:   r.project,
		Archive:   r.archive,
		Content:   content,
	}
	return nil
}

// rootOf returns the longest root containing c.
func (w *Workspace) rootOf(c string) (root, bool) {
	var best root
	found := false
	for _, r := range w.roots {
		if r.path == "." || strings.HasPrefix(c, r.path+"/") {
			if !found || len(r.path) > len(best.path) {
				best, found = r, true
			}
		}
	}
	return best, found
}

// Sources returns every compilation unit sorted by container.
func (w *Workspace) Sources() []*Source {
	out := make([]*Source, 0, len(w.sources))
	for _, s := range w.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Container < out[j].Container })
	return out
}

// Source returns the unit stored under c.
func (w *Workspace) Source(c model.ContainerID) (*Source, bool) {
	s, ok := w.sources[c]
	return s, ok
}

// Projects returns the project IDs in manifest order.
func (w *Workspace) Projects() []model.ProjectID {
	return append([]model.ProjectID(nil), w.projects...)
}

// Dependents returns the projects depending directly on p.
func (w *Workspace) Dependents(p model.ProjectID) []model.Dependent {
	return append([]model.Dependent(nil), w.dependents[p]...)
}

// Open loads dir/ripple.workspace.yaml and reads every .java file below the
// manifest roots.
//
// Inputs:
//
//	ctx - Context for cancellation, checked per file.
//	dir - Workspace directory; roots are relative to it.
//	maxFileSize - Files above this size are skipped with a warning.
//	              Zero means DefaultMaxFileSize.
//	logger - Receives skip warnings. Nil means slog.Default().
//
// Outputs:
//
//	*Workspace - The loaded workspace.
//	error - Manifest or I/O errors, or ctx.Err().
func Open(ctx context.Context, dir string, maxFileSize int64, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	m, err := LoadManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	w, err := NewWorkspace(m)
	if err != nil {
		return nil, err
	}

	for _, r := range w.roots {
		base := filepath.Join(dir, filepath.FromSlash(r.path))
		err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				if p != base && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(p, ".java") {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			if info.Size() > maxFileSize {
				logger.Warn("skipping large compilation unit",
					slog.String("file", p),
					slog.Int64("size_bytes", info.Size()),
					slog.Int64("limit", maxFileSize))
				return nil
			}
			content, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			return w.Add(model.ContainerID(filepath.ToSlash(rel)), content)
		})
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("source root does not exist", slog.String("root", base))
				continue
			}
			return nil, fmt.Errorf("reading root %s: %w", r.path, err)
		}
	}

	logger.Info("workspace loaded",
		slog.String("dir", dir),
		slog.Int("projects", len(w.projects)),
		slog.Int("units", len(w.sources)))
	return w, nil
}
