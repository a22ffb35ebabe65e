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

// SearchScope is an ordered set of compilation units plus the closure of
// projects they were drawn from.
//
// Build scopes with a ScopeBuilder; a built scope never has duplicate
// containers or projects.
type SearchScope struct {
	Containers []ContainerID `json:"containers"`
	Projects   []ProjectID   `json:"projects"`
	Warnings   []Warning     `json:"warnings,omitempty"`
}

// Contains reports whether a container is part of the scope.
func (s SearchScope) Contains(c ContainerID) bool {
	for _, x := range s.Containers {
		if x == c {
			return true
		}
	}
	return false
}

// Encloses reports whether every container and project of other is also in s.
func (s SearchScope) Encloses(other SearchScope) bool {
	containers := make(map[ContainerID]bool, len(s.Containers))
	for _, c := range s.Containers {
		containers[c] = true
	}
	for _, c := range other.Containers {
		if !containers[c] {
			return false
		}
	}
	projects := make(map[ProjectID]bool, len(s.Projects))
	for _, p := range s.Projects {
		projects[p] = true
	}
	for _, p := range other.Projects {
		if !projects[p] {
			return false
		}
	}
	return true
}

// ScopeBuilder accumulates containers and projects in first-seen order.
type ScopeBuilder struct {
	scope      SearchScope
	containers map[ContainerID]bool
	projects   map[ProjectID]bool
}

// NewScopeBuilder returns an empty builder.
func NewScopeBuilder() *ScopeBuilder {
	return &ScopeBuilder{
		containers: make(map[ContainerID]bool),
		projects:   make(map[ProjectID]bool),
	}
}

// AddContainers appends containers not already present.
func (b *ScopeBuilder) AddContainers(cs ...ContainerID) {
	for _, c := range cs {
		if c == "" || b.containers[c] {
			continue
		}
		b.containers[c] = true
		b.scope.Containers = append(b.scope.Containers, c)
	}
}

// AddProjects appends projects not already present.
func (b *ScopeBuilder) AddProjects(ps ...ProjectID) {
	for _, p := range ps {
		if p == "" || b.projects[p] {
			continue
		}
		b.projects[p] = true
		b.scope.Projects = append(b.scope.Projects, p)
	}
}

// AddWarning records a degradation.
func (b *ScopeBuilder) AddWarning(w Warning) {
	b.scope.Warnings = append(b.scope.Warnings, w)
}

// Merge adds everything from another scope.
func (b *ScopeBuilder) Merge(s SearchScope) {
	b.AddContainers(s.Containers...)
	b.AddProjects(s.Projects...)
	b.scope.Warnings = append(b.scope.Warnings, s.Warnings...)
}

// Build returns the accumulated scope. The builder must not be reused.
func (b *ScopeBuilder) Build() SearchScope {
	return b.scope
}
