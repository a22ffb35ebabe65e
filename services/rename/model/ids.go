// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the value types shared by the rename decision
// components and the collaborator interfaces they consume.
//
// Everything in this package is immutable once constructed and safe to
// share across goroutines.
package model

import (
	"fmt"
	"sort"
	"strings"
)

// TypeID is the fully qualified identity of a declared type, e.g. "com.acme.Base".
type TypeID string

// Package returns the package portion of a qualified type name.
//
// Nested types are written with '$' ("p.Outer$Inner") so the last '.'
// always separates the package.
func (t TypeID) Package() string {
	s := string(t)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return ""
}

// SimpleName returns the unqualified name of the type.
func (t TypeID) SimpleName() string {
	s := string(t)
	if i := strings.LastIndexAny(s, ".$"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// DeclaringType implements Member.
func (t TypeID) DeclaringType() TypeID { return t }

// ProjectID identifies a project in the workspace.
type ProjectID string

// ContainerID identifies a compilation unit (source file) in the workspace.
type ContainerID string

// BindingKey is the identity a source model assigns to a resolved
// declaration. Keys are stable across renames of the declaration.
type BindingKey string

// MethodID identifies a method declaration by its declaring type, its name
// and its erased parameter list.
//
// Signature is the erased parameter list in parentheses, e.g. "(int,String)".
// Binary is true when the declaration lives in a read-only archive.
type MethodID struct {
	Type      TypeID `json:"type"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Binary    bool   `json:"binary,omitempty"`
}

// DeclaringType implements Member.
func (m MethodID) DeclaringType() TypeID { return m.Type }

// String returns "Type.name(sig)".
func (m MethodID) String() string {
	return fmt.Sprintf("%s.%s%s", m.Type, m.Name, m.Signature)
}

// SameSignature reports whether two methods have the same name and erased
// parameters, regardless of declaring type.
func (m MethodID) SameSignature(other MethodID) bool {
	return m.Name == other.Name && m.Signature == other.Signature
}

// Member is anything whose search scope can be computed: a type or a method.
type Member interface {
	DeclaringType() TypeID
}

// SortMethods orders methods by declaring type, then name, then signature.
func SortMethods(methods []MethodID) {
	sort.Slice(methods, func(i, j int) bool {
		a, b := methods[i], methods[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Signature < b.Signature
	})
}

// ParseMethodID parses "pkg.Type.name(sig)" as produced by MethodID.String.
func ParseMethodID(s string) (MethodID, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return MethodID{}, fmt.Errorf("method %q: missing parameter list", s)
	}
	head := s[:open]
	dot := strings.LastIndexByte(head, '.')
	if dot <= 0 || dot == len(head)-1 {
		return MethodID{}, fmt.Errorf("method %q: want Type.name(params)", s)
	}
	return MethodID{
		Type:      TypeID(head[:dot]),
		Name:      head[dot+1:],
		Signature: s[open:],
	}, nil
}
