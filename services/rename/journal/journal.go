// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package journal stores evaluated rename plans in BadgerDB.
package journal

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// BadgerDB key layout.
const (
	keyPrefixPlan = "plan:"
	keySequence   = "seq:plan"
	keySuffixData = ":data"
	keySuffixMeta = ":meta"
)

// ErrNotFound indicates an unknown plan ID.
var ErrNotFound = errors.New("plan not found")

// Record is one evaluated rename plan.
type Record struct {
	ID       string                `json:"id"`
	Method   model.MethodID        `json:"method"`
	NewName  string                `json:"new_name"`
	Methods  []model.MethodID      `json:"methods"`
	Edits    []model.TextEdit      `json:"edits"`
	Report   *model.ConflictReport `json:"report"`
	Warnings []model.Warning       `json:"warnings,omitempty"`
	Blocking bool                  `json:"blocking"`
}

// Metadata summarizes a stored Record for listing.
type Metadata struct {
	ID             string `json:"id"`
	Method         string `json:"method"`
	NewName        string `json:"new_name"`
	Sequence       uint64 `json:"sequence"`
	CreatedAtMilli int64  `json:"created_at_milli"`
	Methods        int    `json:"methods"`
	Edits          int    `json:"edits"`
	Conflicts      int    `json:"conflicts"`
	Blocking       bool   `json:"blocking"`
	CompressedSize int64  `json:"compressed_size"`
	ContentHash    string `json:"content_hash"`
}

// Journal persists rename plans.
//
// Description:
//
//	Records are stored as gzip-compressed JSON next to a JSON metadata
//	entry. A badger sequence orders records; when MaxRecords is positive
//	Save prunes the oldest records beyond it.
//
// Thread Safety:
//
//	Safe for concurrent use. BadgerDB handles its own concurrency control.
type Journal struct {
	db         *badger.DB
	seq        *badger.Sequence
	logger     *slog.Logger
	maxRecords int
	ownsDB     bool
}

// New creates a Journal over an opened BadgerDB. The caller keeps
// ownership of db.
func New(db *badger.DB, maxRecords int, logger *slog.Logger) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	seq, err := db.GetSequence([]byte(keySequence), 64)
	if err != nil {
		return nil, fmt.Errorf("acquiring plan sequence: %w", err)
	}
	return &Journal{db: db, seq: seq, logger: logger, maxRecords: maxRecords}, nil
}

// Open opens a BadgerDB at dir, in memory when dir is empty, and wraps it
// in a Journal that closes the database on Close.
func Open(dir string, maxRecords int, logger *slog.Logger) (*Journal, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening journal %q: %w", dir, err)
	}
	j, err := New(db, maxRecords, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	j.ownsDB = true
	return j, nil
}

// Close releases the sequence and, for journals created by Open, the database.
func (j *Journal) Close() error {
	err := j.seq.Release()
	if j.ownsDB {
		err = errors.Join(err, j.db.Close())
	}
	return err
}

// Save stores rec, assigning a new ID when rec.ID is empty.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	rec - The plan to store. rec.ID is set on return.
//
// Outputs:
//
//	*Metadata - Metadata of the stored record.
//	error - Non-nil if encoding or storage fails.
//
// Key Schema:
//
//	plan:{id}:data → gzip(JSON(Record))
//	plan:{id}:meta → JSON(Metadata)
func (j *Journal) Save(ctx context.Context, rec *Record) (*Metadata, error) {
	if rec == nil {
		return nil, fmt.Errorf("record must not be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	jsonData, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling plan: %w", err)
	}
	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(jsonData); err != nil {
		return nil, fmt.Errorf("compressing plan: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	data := compressed.Bytes()

	seq, err := j.seq.Next()
	if err != nil {
		return nil, fmt.Errorf("next plan sequence: %w", err)
	}
	conflicts := 0
	if rec.Report != nil {
		conflicts = len(rec.Report.Entries)
	}
	meta := &Metadata{
		ID:             rec.ID,
		Method:         rec.Method.String(),
		NewName:        rec.NewName,
		Sequence:       seq,
		CreatedAtMilli: time.Now().UnixMilli(),
		Methods:        len(rec.Methods),
		Edits:          len(rec.Edits),
		Conflicts:      conflicts,
		Blocking:       rec.Blocking,
		CompressedSize: int64(len(data)),
		ContentHash:    hashBytes(data),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	err = j.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(dataKey(rec.ID), data); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set(metaKey(rec.ID), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing plan to badger: %w", err)
	}

	j.logger.Info("plan saved",
		slog.String("plan_id", rec.ID),
		slog.String("method", meta.Method),
		slog.Int("edits", meta.Edits),
		slog.Int("conflicts", meta.Conflicts),
		slog.Int64("compressed_size", meta.CompressedSize),
	)

	if j.maxRecords > 0 {
		if err := j.prune(ctx); err != nil {
			j.logger.Warn("pruning plan journal failed", slog.String("error", err.Error()))
		}
	}
	return meta, nil
}

// Load returns a stored record by ID.
func (j *Journal) Load(ctx context.Context, id string) (*Record, *Metadata, error) {
	if id == "" {
		return nil, nil, fmt.Errorf("plan ID must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var data, metaJSON []byte
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dataKey(id))
		if err != nil {
			return err
		}
		if data, err = item.ValueCopy(nil); err != nil {
			return err
		}
		item, err = txn.Get(metaKey(id))
		if err != nil {
			return err
		}
		metaJSON, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading plan %s: %w", id, err)
	}

	var meta Metadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling metadata for %s: %w", id, err)
	}
	if actual := hashBytes(data); meta.ContentHash != "" && meta.ContentHash != actual {
		return nil, nil, fmt.Errorf("integrity check failed for %s: expected hash %s, got %s", id, meta.ContentHash, actual)
	}

	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing plan %s: %w", id, err)
	}
	defer gr.Close()
	jsonData, err := io.ReadAll(gr)
	if err != nil {
		return nil, nil, fmt.Errorf("reading decompressed plan %s: %w", id, err)
	}
	var rec Record
	if err := json.Unmarshal(jsonData, &rec); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling plan %s: %w", id, err)
	}
	return &rec, &meta, nil
}

// List returns metadata for stored plans, newest first. A limit of zero or
// less means 100.
func (j *Journal) List(ctx context.Context, limit int) ([]*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	all, err := j.metadata()
	if err != nil {
		return nil, err
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Delete removes a stored plan.
func (j *Journal) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("plan ID must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := j.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(metaKey(id)); err != nil {
			return err
		}
		if err := txn.Delete(dataKey(id)); err != nil {
			return fmt.Errorf("deleting data: %w", err)
		}
		if err := txn.Delete(metaKey(id)); err != nil {
			return fmt.Errorf("deleting metadata: %w", err)
		}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("deleting plan %s: %w", id, err)
	}
	j.logger.Info("plan deleted", slog.String("plan_id", id))
	return nil
}

// prune deletes the oldest plans beyond maxRecords.
func (j *Journal) prune(ctx context.Context) error {
	all, err := j.metadata()
	if err != nil {
		return err
	}
	for _, meta := range all[min(len(all), j.maxRecords):] {
		if err := j.Delete(ctx, meta.ID); err != nil {
			return err
		}
	}
	return nil
}

// metadata reads every metadata entry, newest first.
func (j *Journal) metadata() ([]*Metadata, error) {
	var results []*Metadata
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixPlan)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if !strings.HasSuffix(key, keySuffixMeta) {
				continue
			}
			var meta Metadata
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &meta) }); err != nil {
				j.logger.Warn("skipping corrupt plan metadata", slog.String("key", key), slog.Any("error", err))
				continue
			}
			results = append(results, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	sort.Slice(results, func(a, b int) bool { return results[a].Sequence > results[b].Sequence })
	return results, nil
}

func dataKey(id string) []byte { return []byte(keyPrefixPlan + id + keySuffixData) }
func metaKey(id string) []byte { return []byte(keyPrefixPlan + id + keySuffixMeta) }

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
