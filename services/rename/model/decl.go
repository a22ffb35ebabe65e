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
	"encoding/json"
	"fmt"
)

// Visibility is the declared accessibility of a member.
//
// The zero value is VisibilityPackage, the Java default.
type Visibility int

const (
	VisibilityPackage Visibility = iota
	VisibilityPrivate
	VisibilityProtected
	VisibilityPublic
)

// String returns the Java keyword for the visibility ("package" for the default).
func (v Visibility) String() string {
	switch v {
	case VisibilityPrivate:
		return "private"
	case VisibilityProtected:
		return "protected"
	case VisibilityPublic:
		return "public"
	default:
		return "package"
	}
}

// ParseVisibility is the inverse of Visibility.String.
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "private":
		return VisibilityPrivate, nil
	case "protected":
		return VisibilityProtected, nil
	case "public":
		return VisibilityPublic, nil
	case "package", "":
		return VisibilityPackage, nil
	}
	return VisibilityPackage, fmt.Errorf("unknown visibility %q", s)
}

// MarshalJSON encodes the visibility as its keyword.
func (v Visibility) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON decodes a visibility keyword.
func (v *Visibility) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseVisibility(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// VisibleFrom reports whether a member with this visibility, declared in
// package declPkg, can be overridden or referenced from package fromPkg.
//
// Private members are never visible outside their declaring type, so they
// always report false here; callers handle the declaring type itself.
func (v Visibility) VisibleFrom(declPkg, fromPkg string) bool {
	switch v {
	case VisibilityPublic, VisibilityProtected:
		return true
	case VisibilityPackage:
		return declPkg == fromPkg
	default:
		return false
	}
}

// TypeDecl describes a declared type.
type TypeDecl struct {
	ID        TypeID      `json:"id"`
	Package   string      `json:"package"`
	Project   ProjectID   `json:"project"`
	Container ContainerID `json:"container"`
	Interface bool        `json:"interface,omitempty"`
	Binary    bool        `json:"binary,omitempty"`
}

// MethodDecl describes a method declaration as reported by a NameSearchService.
type MethodDecl struct {
	ID         MethodID    `json:"id"`
	Visibility Visibility  `json:"visibility"`
	Static     bool        `json:"static,omitempty"`
	Package    string      `json:"package"`
	Project    ProjectID   `json:"project"`
	Container  ContainerID `json:"container"`
}

// Virtual reports whether the method participates in dynamic dispatch.
func (d MethodDecl) Virtual() bool {
	return !d.Static && d.Visibility != VisibilityPrivate
}

// Occurrence is a located name that binds to one of the searched methods.
type Occurrence struct {
	Method      MethodID    `json:"method"`
	Container   ContainerID `json:"container"`
	Offset      int         `json:"offset"`
	Length      int         `json:"length"`
	Declaration bool        `json:"declaration,omitempty"`
}

// Dependent is one edge of the project dependency graph, seen from the
// project being depended on.
type Dependent struct {
	Project ProjectID `json:"project"`

	// Exported is true when Project re-exports the dependency to its own
	// dependents.
	Exported bool `json:"exported"`
}

// Warning is a non-fatal condition that degraded a result.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Subject string `json:"subject,omitempty"`
}

const (
	WarnUnresolvedType    = "UNRESOLVED_TYPE"
	WarnUnresolvedBinding = "UNRESOLVED_BINDING"
	WarnPartialHierarchy  = "PARTIAL_HIERARCHY"
	WarnBinaryMember      = "BINARY_MEMBER"
)
