// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package journal

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"github.com/dgraph-io/badger/v4"
)

// newTestDB creates an in-memory BadgerDB for testing.
func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("failed to open in-memory badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestJournal(t *testing.T, maxRecords int) *Journal {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	j, err := New(newTestDB(t), maxRecords, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func testRecord(name string) *Record {
	return &Record{
		Method:  model.MethodID{Type: "a.Base", Name: "run", Signature: "()"},
		NewName: name,
		Methods: []model.MethodID{
			{Type: "a.Base", Name: "run", Signature: "()"},
			{Type: "a.Sub", Name: "run", Signature: "()"},
		},
		Edits: []model.TextEdit{{Container: "a/Base.java", Offset: 10, Length: 3, NewText: name}},
		Report: &model.ConflictReport{Entries: []model.Conflict{{
			Kind:     model.ConflictShadowing,
			Severity: model.SeverityWarning,
			Message:  "captured",
		}}},
	}
}

func TestNew_NilArguments(t *testing.T) {
	if _, err := New(nil, 0, slog.Default()); err == nil {
		t.Error("expected error for nil DB")
	}
	if _, err := New(newTestDB(t), 0, nil); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestJournal_SaveAndLoad(t *testing.T) {
	j := newTestJournal(t, 0)
	ctx := context.Background()

	rec := testRecord("execute")
	meta, err := j.Save(ctx, rec)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.ID == "" || meta.ID != rec.ID {
		t.Fatalf("ID = %q, metadata ID = %q", rec.ID, meta.ID)
	}
	if meta.Method != "a.Base.run()" || meta.Methods != 2 || meta.Edits != 1 || meta.Conflicts != 1 {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.CompressedSize <= 0 || meta.ContentHash == "" {
		t.Errorf("missing payload info: %+v", meta)
	}

	loaded, loadedMeta, err := j.Load(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.NewName != "execute" || len(loaded.Methods) != 2 {
		t.Errorf("loaded = %+v", loaded)
	}
	if got := loaded.Report.Entries[0]; got.Kind != model.ConflictShadowing || got.Severity != model.SeverityWarning {
		t.Errorf("loaded conflict = %+v", got)
	}
	if loadedMeta.ContentHash != meta.ContentHash {
		t.Errorf("content hash = %s, want %s", loadedMeta.ContentHash, meta.ContentHash)
	}
}

func TestJournal_LoadNotFound(t *testing.T) {
	j := newTestJournal(t, 0)
	if _, _, err := j.Load(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if _, _, err := j.Load(context.Background(), ""); err == nil {
		t.Error("expected error for empty ID")
	}
}

func TestJournal_ListNewestFirst(t *testing.T) {
	j := newTestJournal(t, 0)
	ctx := context.Background()
	for _, name := range []string{"first", "second", "third"} {
		if _, err := j.Save(ctx, testRecord(name)); err != nil {
			t.Fatalf("Save(%s): %v", name, err)
		}
	}

	all, err := j.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i, want := range []string{"third", "second", "first"} {
		if all[i].NewName != want {
			t.Errorf("all[%d] = %s, want %s", i, all[i].NewName, want)
		}
	}

	limited, err := j.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(limited) != 2 || limited[0].NewName != "third" {
		t.Errorf("limited = %v", limited)
	}
}

func TestJournal_Delete(t *testing.T) {
	j := newTestJournal(t, 0)
	ctx := context.Background()
	rec := testRecord("execute")
	if _, err := j.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := j.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := j.Load(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete error = %v, want ErrNotFound", err)
	}
	if err := j.Delete(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestJournal_PrunesOldest(t *testing.T) {
	j := newTestJournal(t, 2)
	ctx := context.Background()
	var first string
	for i, name := range []string{"a", "b", "c"} {
		rec := testRecord(name)
		if _, err := j.Save(ctx, rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if i == 0 {
			first = rec.ID
		}
	}
	all, err := j.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[0].NewName != "c" || all[1].NewName != "b" {
		t.Errorf("kept = %+v, want c and b", all)
	}
	if _, _, err := j.Load(ctx, first); !errors.Is(err, ErrNotFound) {
		t.Errorf("oldest plan should be pruned, Load error = %v", err)
	}
}

func TestJournal_Cancelled(t *testing.T) {
	j := newTestJournal(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := j.Save(ctx, testRecord("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("Save error = %v, want context.Canceled", err)
	}
}

func TestOpen_InMemory(t *testing.T) {
	j, err := Open("", 0, slog.Default())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := j.Save(context.Background(), testRecord("x")); err != nil {
		t.Errorf("Save: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
