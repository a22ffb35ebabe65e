// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package modeltest provides an in-memory workspace that implements the
// rename collaborator interfaces for tests.
package modeltest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
)

// Workspace is a hand-built type hierarchy, method index and project graph.
//
// Types are created on first mention. Every type lives in project "p" and
// container "<TypeID>.java" unless placed elsewhere with Place.
//
// Thread Safety:
//
//	Build the workspace from one goroutine, then query it from any number.
type Workspace struct {
	mu sync.Mutex

	types      map[model.TypeID]*fakeType
	methods    []model.MethodDecl
	projects   []model.ProjectID
	dependents map[model.ProjectID][]model.Dependent
	containers map[model.ProjectID][]fakeContainer
	refs       []model.Occurrence

	failures map[string]error
	calls    map[string]int

	// ParseFunc backs the SourceModel implementation.
	ParseFunc func(ctx context.Context, snap model.Snapshot) (*model.Compilation, error)

	// Files backs SourceModel.Snapshot.
	Files map[model.ContainerID][]byte
}

type fakeType struct {
	decl    model.TypeDecl
	supers  []model.TypeID
	subs    []model.TypeID
	missing []string
}

type fakeContainer struct {
	id      model.ContainerID
	pkg     string
	archive bool
}

// New returns an empty workspace with a single project "p".
func New() *Workspace {
	return &Workspace{
		types:      make(map[model.TypeID]*fakeType),
		projects:   []model.ProjectID{"p"},
		dependents: make(map[model.ProjectID][]model.Dependent),
		containers: make(map[model.ProjectID][]fakeContainer),
		failures:   make(map[string]error),
		calls:      make(map[string]int),
		Files:      make(map[model.ContainerID][]byte),
	}
}

// =============================================================================
// BUILDING
// =============================================================================

// Type declares t (if new) and returns the workspace for chaining.
func (w *Workspace) Type(t model.TypeID) *Workspace {
	w.typ(t)
	return w
}

// Interface declares t as an interface.
func (w *Workspace) Interface(t model.TypeID) *Workspace {
	w.typ(t).decl.Interface = true
	return w
}

// Binary marks t and its container as living in an archive. Call it after
// Place.
func (w *Workspace) Binary(t model.TypeID) *Workspace {
	ft := w.typ(t)
	ft.decl.Binary = true
	cs := w.containers[ft.decl.Project]
	for i := range cs {
		if cs[i].id == ft.decl.Container {
			cs[i].archive = true
		}
	}
	return w
}

// Extends adds the direct edges sub -> supers.
func (w *Workspace) Extends(sub model.TypeID, supers ...model.TypeID) *Workspace {
	s := w.typ(sub)
	for _, sup := range supers {
		w.typ(sup).subs = append(w.typ(sup).subs, sub)
		s.supers = append(s.supers, sup)
	}
	return w
}

// Missing records supertype references of t that cannot be resolved.
func (w *Workspace) Missing(t model.TypeID, names ...string) *Workspace {
	w.typ(t).missing = append(w.typ(t).missing, names...)
	return w
}

// Place moves t into a project and container.
func (w *Workspace) Place(t model.TypeID, p model.ProjectID, c model.ContainerID) *Workspace {
	ft := w.typ(t)
	w.removeContainer(ft.decl.Project, ft.decl.Container)
	ft.decl.Project = p
	ft.decl.Container = c
	w.addProject(p)
	w.AddContainer(p, c, ft.decl.Package, false)
	return w
}

// Method declares a public instance method on t.
func (w *Workspace) Method(t model.TypeID, name, sig string) *Workspace {
	return w.MethodWith(t, name, sig, model.VisibilityPublic, false)
}

// MethodWith declares a method with explicit visibility and static flag.
func (w *Workspace) MethodWith(t model.TypeID, name, sig string, vis model.Visibility, static bool) *Workspace {
	ft := w.typ(t)
	w.methods = append(w.methods, model.MethodDecl{
		ID:         model.MethodID{Type: t, Name: name, Signature: sig, Binary: ft.decl.Binary},
		Visibility: vis,
		Static:     static,
		Package:    ft.decl.Package,
		Project:    ft.decl.Project,
		Container:  ft.decl.Container,
	})
	return w
}

// Project declares a project.
func (w *Workspace) Project(p model.ProjectID) *Workspace {
	w.addProject(p)
	return w
}

// Depends records that dependent depends on p, optionally re-exporting it.
func (w *Workspace) Depends(dependent, p model.ProjectID, exported bool) *Workspace {
	w.addProject(dependent)
	w.addProject(p)
	w.dependents[p] = append(w.dependents[p], model.Dependent{Project: dependent, Exported: exported})
	return w
}

// AddContainer registers a compilation unit in a project.
func (w *Workspace) AddContainer(p model.ProjectID, c model.ContainerID, pkg string, archive bool) *Workspace {
	w.addProject(p)
	for _, existing := range w.containers[p] {
		if existing.id == c {
			return w
		}
	}
	w.containers[p] = append(w.containers[p], fakeContainer{id: c, pkg: pkg, archive: archive})
	return w
}

// Reference records an occurrence returned by FindReferences.
func (w *Workspace) Reference(occ model.Occurrence) *Workspace {
	w.refs = append(w.refs, occ)
	return w
}

// Fail makes the named operation ("SubtypesOf:p.A", "Describe:p.A",
// "FindDeclarations", "Dependents:p") return err.
func (w *Workspace) Fail(op string, err error) *Workspace {
	w.failures[op] = err
	return w
}

// Calls returns how many times an operation ("SupertypesOf", "SubtypesOf",
// "FindDeclarations", ...) was invoked.
func (w *Workspace) Calls(op string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[op]
}

func (w *Workspace) typ(t model.TypeID) *fakeType {
	if ft, ok := w.types[t]; ok {
		return ft
	}
	ft := &fakeType{decl: model.TypeDecl{
		ID:        t,
		Package:   t.Package(),
		Project:   "p",
		Container: model.ContainerID(string(t) + ".java"),
	}}
	w.types[t] = ft
	w.AddContainer("p", ft.decl.Container, ft.decl.Package, false)
	return ft
}

func (w *Workspace) addProject(p model.ProjectID) {
	for _, existing := range w.projects {
		if existing == p {
			return
		}
	}
	w.projects = append(w.projects, p)
}

func (w *Workspace) removeContainer(p model.ProjectID, c model.ContainerID) {
	list := w.containers[p]
	for i, existing := range list {
		if existing.id == c {
			w.containers[p] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (w *Workspace) enter(op, subject string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls[op]++
	if err, ok := w.failures[op+":"+subject]; ok {
		return err
	}
	if err, ok := w.failures[op]; ok {
		return err
	}
	return nil
}

// =============================================================================
// model.TypeHierarchyProvider
// =============================================================================

// Describe implements model.TypeHierarchyProvider.
func (w *Workspace) Describe(ctx context.Context, t model.TypeID) (model.TypeDecl, error) {
	if err := w.enter("Describe", string(t)); err != nil {
		return model.TypeDecl{}, err
	}
	ft, ok := w.types[t]
	if !ok {
		return model.TypeDecl{}, &model.UnresolvedTypeError{Type: t}
	}
	return ft.decl, nil
}

// SupertypesOf implements model.TypeHierarchyProvider.
func (w *Workspace) SupertypesOf(ctx context.Context, t model.TypeID) ([]model.TypeID, error) {
	if err := w.enter("SupertypesOf", string(t)); err != nil {
		return nil, err
	}
	ft, ok := w.types[t]
	if !ok {
		return nil, &model.UnresolvedTypeError{Type: t}
	}
	out := append([]model.TypeID(nil), ft.supers...)
	if len(ft.missing) > 0 {
		return out, &model.UnresolvedTypeError{Type: t, Missing: ft.missing}
	}
	return out, nil
}

// SubtypesOf implements model.TypeHierarchyProvider.
func (w *Workspace) SubtypesOf(ctx context.Context, t model.TypeID) ([]model.TypeID, error) {
	if err := w.enter("SubtypesOf", string(t)); err != nil {
		return nil, err
	}
	ft, ok := w.types[t]
	if !ok {
		return nil, &model.UnresolvedTypeError{Type: t}
	}
	return append([]model.TypeID(nil), ft.subs...), nil
}

// =============================================================================
// model.NameSearchService
// =============================================================================

// Methods adapts the workspace to model.NameSearchService; the method set of
// Workspace already carries Describe for types.
func (w *Workspace) Methods() *MethodIndex { return &MethodIndex{w: w} }

// MethodIndex implements model.NameSearchService over a Workspace.
type MethodIndex struct{ w *Workspace }

// Describe implements model.NameSearchService.
func (mi *MethodIndex) Describe(ctx context.Context, m model.MethodID) (model.MethodDecl, error) {
	if err := mi.w.enter("DescribeMethod", m.String()); err != nil {
		return model.MethodDecl{}, err
	}
	for _, d := range mi.w.methods {
		if d.ID.Type == m.Type && d.ID.SameSignature(m) {
			return d, nil
		}
	}
	return model.MethodDecl{}, fmt.Errorf("%w: %s", model.ErrUnresolvedBinding, m)
}

// FindDeclarations implements model.NameSearchService.
func (mi *MethodIndex) FindDeclarations(ctx context.Context, name, sig string) ([]model.MethodDecl, error) {
	if err := mi.w.enter("FindDeclarations", name+sig); err != nil {
		return nil, err
	}
	var out []model.MethodDecl
	for _, d := range mi.w.methods {
		if d.ID.Name == name && d.ID.Signature == sig {
			out = append(out, d)
		}
	}
	return out, nil
}

// FindReferences implements model.NameSearchService.
func (mi *MethodIndex) FindReferences(ctx context.Context, scope model.SearchScope, methods []model.MethodID) ([]model.Occurrence, error) {
	if err := mi.w.enter("FindReferences", ""); err != nil {
		return nil, err
	}
	wanted := make(map[model.MethodID]bool, len(methods))
	for _, m := range methods {
		wanted[m] = true
	}
	var out []model.Occurrence
	for _, occ := range mi.w.refs {
		if wanted[occ.Method] && scope.Contains(occ.Container) {
			out = append(out, occ)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Container != out[j].Container {
			return out[i].Container < out[j].Container
		}
		return out[i].Offset < out[j].Offset
	})
	return out, nil
}

// =============================================================================
// model.ProjectGraph
// =============================================================================

// Projects implements model.ProjectGraph.
func (w *Workspace) Projects(ctx context.Context) ([]model.ProjectID, error) {
	if err := w.enter("Projects", ""); err != nil {
		return nil, err
	}
	return append([]model.ProjectID(nil), w.projects...), nil
}

// Dependents implements model.ProjectGraph.
func (w *Workspace) Dependents(ctx context.Context, p model.ProjectID) ([]model.Dependent, error) {
	if err := w.enter("Dependents", string(p)); err != nil {
		return nil, err
	}
	return append([]model.Dependent(nil), w.dependents[p]...), nil
}

// SourceContainers implements model.ProjectGraph.
func (w *Workspace) SourceContainers(ctx context.Context, p model.ProjectID) ([]model.ContainerID, error) {
	if err := w.enter("SourceContainers", string(p)); err != nil {
		return nil, err
	}
	var out []model.ContainerID
	for _, c := range w.containers[p] {
		if !c.archive {
			out = append(out, c.id)
		}
	}
	return out, nil
}

// PackageContainers implements model.ProjectGraph.
func (w *Workspace) PackageContainers(ctx context.Context, p model.ProjectID, pkg string) ([]model.ContainerID, error) {
	if err := w.enter("PackageContainers", string(p)); err != nil {
		return nil, err
	}
	var out []model.ContainerID
	for _, c := range w.containers[p] {
		if !c.archive && c.pkg == pkg {
			out = append(out, c.id)
		}
	}
	return out, nil
}

// =============================================================================
// model.SourceModel
// =============================================================================

// Snapshot implements model.SourceModel over Files.
func (w *Workspace) Snapshot(ctx context.Context, containers ...model.ContainerID) (model.Snapshot, error) {
	if err := w.enter("Snapshot", ""); err != nil {
		return model.Snapshot{}, err
	}
	if len(containers) == 0 {
		return model.NewSnapshot(w.Files), nil
	}
	files := make(map[model.ContainerID][]byte, len(containers))
	for _, c := range containers {
		if content, ok := w.Files[c]; ok {
			files[c] = content
		}
	}
	return model.NewSnapshot(files), nil
}

// Parse implements model.SourceModel by delegating to ParseFunc.
func (w *Workspace) Parse(ctx context.Context, snap model.Snapshot) (*model.Compilation, error) {
	if err := w.enter("Parse", ""); err != nil {
		return nil, err
	}
	if w.ParseFunc == nil {
		return &model.Compilation{}, nil
	}
	return w.ParseFunc(ctx, snap)
}

// KeyOf implements model.SourceModel using MethodID.String as the key.
func (w *Workspace) KeyOf(ctx context.Context, m model.MethodID) (model.BindingKey, error) {
	return model.BindingKey(m.String()), nil
}
