// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rename

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevant(t *testing.T) {
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"java write", fsnotify.Event{Name: "core/src/a/Base.java", Op: fsnotify.Write}, true},
		{"java remove", fsnotify.Event{Name: "core/src/a/Base.java", Op: fsnotify.Remove}, true},
		{"manifest", fsnotify.Event{Name: "ripple.workspace.yaml", Op: fsnotify.Write}, true},
		{"chmod only", fsnotify.Event{Name: "a/Base.java", Op: fsnotify.Chmod}, false},
		{"other file", fsnotify.Event{Name: "README.md", Op: fsnotify.Write}, false},
		{"editor swap", fsnotify.Event{Name: "a/.Base.java", Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relevant(tt.ev))
		})
	}
}

func TestNewWatcher_Errors(t *testing.T) {
	_, err := NewWatcher(t.TempDir(), nil, 0, nil)
	assert.Error(t, err, "nil reload")

	_, err = NewWatcher(filepath.Join(t.TempDir(), "missing"), func(context.Context) error { return nil }, 0, nil)
	assert.Error(t, err, "missing directory")
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "a"), 0o755))

	reloads := make(chan struct{}, 8)
	w, err := NewWatcher(dir, func(context.Context) error {
		reloads <- struct{}{}
		return nil
	}, 20*time.Millisecond, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "a", "Base.java"), []byte("class Base {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "a", "Sub.java"), []byte("class Sub {}"), 0o644))

	select {
	case <-reloads:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after writing a compilation unit")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
