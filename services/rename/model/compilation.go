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

// Severity orders diagnostics and conflicts. Higher is worse.
type Severity int

const (
	SeverityWarning Severity = iota + 1
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalJSON encodes the severity name.
func (s Severity) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// UnmarshalJSON decodes a severity name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "warning":
		*s = SeverityWarning
	case "error":
		*s = SeverityError
	default:
		return fmt.Errorf("unknown severity %q", name)
	}
	return nil
}

// Diagnostic is a problem reported by a source model for one location.
type Diagnostic struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Range    Range    `json:"range"`
}

// BoundName is one identifier occurrence in a binding graph.
//
// Key is empty when the name could not be resolved.
type BoundName struct {
	Range       Range      `json:"range"`
	Name        string     `json:"name"`
	Key         BindingKey `json:"key,omitempty"`
	Declaration bool       `json:"declaration,omitempty"`
}

// Compilation is the result of parsing and binding a snapshot.
type Compilation struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
	Bindings    []BoundName  `json:"bindings"`
}

// ConflictKind classifies a conflict entry.
type ConflictKind string

const (
	ConflictNewProblem    ConflictKind = "NEW_PROBLEM"
	ConflictDangling      ConflictKind = "DANGLING_REFERENCE"
	ConflictShadowing     ConflictKind = "SHADOWING"
	ConflictReparseFailed ConflictKind = "REPARSE_FAILED"
)

// Conflict is one entry of a ConflictReport.
//
// Fatal entries describe a rename that cannot be performed as given; they
// always carry SeverityError.
type Conflict struct {
	Kind     ConflictKind `json:"kind"`
	Severity Severity     `json:"severity"`
	Fatal    bool         `json:"fatal,omitempty"`
	Code     string       `json:"code,omitempty"`
	Message  string       `json:"message"`
	Location Range        `json:"location"`
}

// ConflictReport lists everything a proposed edit set would break.
type ConflictReport struct {
	Entries []Conflict `json:"entries"`
}

// Empty reports whether the report has no entries.
func (r *ConflictReport) Empty() bool { return r == nil || len(r.Entries) == 0 }

// HasFatal reports whether any entry is fatal.
func (r *ConflictReport) HasFatal() bool {
	if r == nil {
		return false
	}
	for _, e := range r.Entries {
		if e.Fatal {
			return true
		}
	}
	return false
}

// HasErrors reports whether any entry has SeverityError.
func (r *ConflictReport) HasErrors() bool {
	if r == nil {
		return false
	}
	for _, e := range r.Entries {
		if e.Severity >= SeverityError {
			return true
		}
	}
	return false
}

// Count returns the number of entries of a kind.
func (r *ConflictReport) Count(kind ConflictKind) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, e := range r.Entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
