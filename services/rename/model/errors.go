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
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by all rename components.
var (
	// ErrUnresolvedType indicates a type reference the model cannot resolve.
	// Non-fatal: results degrade toward over-inclusion.
	ErrUnresolvedType = errors.New("unresolved type")

	// ErrUnresolvedBinding indicates a member the model does not know.
	ErrUnresolvedBinding = errors.New("unresolved binding")

	// ErrReparseFailed indicates the simulated edit produced an unparsable unit.
	ErrReparseFailed = errors.New("reparse failed")

	// ErrCancelled indicates the caller's context was cancelled. It is an
	// outcome distinct from every other error.
	ErrCancelled = errors.New("operation cancelled")

	// ErrModel wraps any other collaborator failure (I/O, corrupt model).
	ErrModel = errors.New("model error")

	// ErrInvalidEdit indicates overlapping or out-of-range text edits.
	ErrInvalidEdit = errors.New("invalid edit")
)

// UnresolvedTypeError reports a type whose hierarchy is only partly known.
//
// Providers return it next to the edges they could resolve; Missing names
// the type references that could not. An empty Missing means the type
// itself is unknown.
type UnresolvedTypeError struct {
	Type    TypeID
	Missing []string
}

func (e *UnresolvedTypeError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("unresolved type %s", e.Type)
	}
	return fmt.Sprintf("type %s: unresolved supertypes %s", e.Type, strings.Join(e.Missing, ", "))
}

// Is makes errors.Is(err, ErrUnresolvedType) true.
func (e *UnresolvedTypeError) Is(target error) bool { return target == ErrUnresolvedType }

// ReparseError reports where a compilation unit stopped parsing.
type ReparseError struct {
	Container ContainerID
	Offset    int
	Message   string
}

func (e *ReparseError) Error() string {
	return fmt.Sprintf("reparse failed: %s at offset %d: %s", e.Container, e.Offset, e.Message)
}

// Is makes errors.Is(err, ErrReparseFailed) true.
func (e *ReparseError) Is(target error) bool { return target == ErrReparseFailed }

// Cancelled converts a context error into ErrCancelled while keeping the
// original cause reachable through errors.Is.
func Cancelled(ctx context.Context) error {
	cause := ctx.Err()
	if cause == nil {
		cause = context.Canceled
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// CheckCancelled returns Cancelled(ctx) if ctx is done, nil otherwise.
func CheckCancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return Cancelled(ctx)
	}
	return nil
}

// Classify wraps a collaborator error with ErrModel unless it already
// belongs to the rename taxonomy. Context errors become ErrCancelled.
func Classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrCancelled),
		errors.Is(err, ErrUnresolvedType),
		errors.Is(err, ErrUnresolvedBinding),
		errors.Is(err, ErrReparseFailed),
		errors.Is(err, ErrInvalidEdit),
		errors.Is(err, ErrModel):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, Cancelled(ctx))
	}
	return fmt.Errorf("%s: %w: %w", op, ErrModel, err)
}
