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

import "context"

// =============================================================================
// COLLABORATORS
// =============================================================================

// TypeHierarchyProvider answers direct hierarchy queries for declared types.
//
// Description:
//
//	SupertypesOf may return a partial list together with an
//	*UnresolvedTypeError when some supertype references cannot be
//	resolved. Callers must treat the missing edges as unknown, not absent.
//	Unknown types fail with ErrUnresolvedType.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use.
type TypeHierarchyProvider interface {
	Describe(ctx context.Context, t TypeID) (TypeDecl, error)
	SupertypesOf(ctx context.Context, t TypeID) ([]TypeID, error)
	SubtypesOf(ctx context.Context, t TypeID) ([]TypeID, error)
}

// NameSearchService finds method declarations and their references.
//
// Description:
//
//	FindDeclarations returns every declaration in the workspace with the
//	given name and erased signature, including private, static and binary
//	ones. Describe fails with ErrUnresolvedBinding for unknown methods.
//	FindReferences returns occurrences inside the scope's containers,
//	declarations included, ordered by container then offset.
type NameSearchService interface {
	Describe(ctx context.Context, m MethodID) (MethodDecl, error)
	FindDeclarations(ctx context.Context, name, signature string) ([]MethodDecl, error)
	FindReferences(ctx context.Context, scope SearchScope, methods []MethodID) ([]Occurrence, error)
}

// SourceModel parses and binds source snapshots.
//
// Description:
//
//	Snapshot with no containers returns the whole workspace. Parse fails
//	with ErrReparseFailed (usually a *ReparseError) when any unit does not
//	parse. KeyOf returns the binding key of a method; keys are stable
//	across renames so a key computed on the original text identifies the
//	same declaration in an edited snapshot.
type SourceModel interface {
	Snapshot(ctx context.Context, containers ...ContainerID) (Snapshot, error)
	Parse(ctx context.Context, snap Snapshot) (*Compilation, error)
	KeyOf(ctx context.Context, m MethodID) (BindingKey, error)
}

// ProjectGraph exposes projects, their dependents and their source containers.
//
// Description:
//
//	Dependents returns every project that depends directly on p, flagging
//	whether that dependency is exported. SourceContainers and
//	PackageContainers never include containers from archive roots.
type ProjectGraph interface {
	Projects(ctx context.Context) ([]ProjectID, error)
	Dependents(ctx context.Context, p ProjectID) ([]Dependent, error)
	SourceContainers(ctx context.Context, p ProjectID) ([]ContainerID, error)
	PackageContainers(ctx context.Context, p ProjectID, pkg string) ([]ContainerID, error)
}
