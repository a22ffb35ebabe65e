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
	"io"
	"testing"
)

func TestClassify(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"io becomes model error", io.ErrUnexpectedEOF, ErrModel},
		{"unresolved type kept", &UnresolvedTypeError{Type: "p.A"}, ErrUnresolvedType},
		{"reparse kept", &ReparseError{Container: "a.java"}, ErrReparseFailed},
		{"context cancel becomes cancelled", context.Canceled, ErrCancelled},
		{"cancelled kept", Cancelled(ctx), ErrCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(ctx, "op", tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("Classify(%v) = %v, want wrapping %v", tt.err, got, tt.want)
			}
		})
	}

	if Classify(ctx, "op", nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestCancelled_KeepsCause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := CheckCancelled(ctx)
	if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want ErrCancelled wrapping context.Canceled", err)
	}
	if CheckCancelled(context.Background()) != nil {
		t.Error("live context reported cancelled")
	}
}

func TestUnresolvedTypeError_Message(t *testing.T) {
	err := &UnresolvedTypeError{Type: "p.A", Missing: []string{"Foo", "Bar"}}
	if err.Error() != "type p.A: unresolved supertypes Foo, Bar" {
		t.Errorf("Error() = %q", err.Error())
	}
}
