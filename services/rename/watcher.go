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
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianRename/services/rename/javamodel"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads the model when workspace sources change.
//
// Description:
//
//	Watches every non-hidden directory under the workspace. A change to a
//	.java file or to the manifest schedules a reload; changes arriving
//	within the debounce window are folded into one reload. Directories
//	created later are added to the watch.
//
// Thread Safety:
//
//	Run must be called at most once. Close is safe to call concurrently
//	with Run.
type Watcher struct {
	dir      string
	reload   func(context.Context) error
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// NewWatcher creates a watcher over dir that calls reload on changes.
//
// Inputs:
//
//	dir - Workspace directory.
//	reload - Called after changes settle. Must not be nil.
//	debounce - Settle time. Zero means DefaultDebounce.
//	logger - Logger. Nil means slog.Default().
//
// Outputs:
//
//	*Watcher - The watcher. Call Run to start it and Close to release it.
//	error - Non-nil if the directory tree cannot be watched.
func NewWatcher(dir string, reload func(context.Context) error, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if reload == nil {
		return nil, fmt.Errorf("reload must not be nil")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{dir: dir, reload: reload, debounce: debounce, logger: logger, fsw: fsw}
	if err := w.addTree(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	pending := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !hidden(info.Name()) {
					if err := w.addTree(ev.Name); err != nil {
						w.logger.Warn("failed to watch new directory",
							slog.String("dir", ev.Name), slog.String("error", err.Error()))
					}
				}
			}
			if !relevant(ev) {
				continue
			}
			pending++
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			w.logger.Debug("workspace changed, reloading", slog.Int("events", pending))
			pending = 0
			if err := w.reload(ctx); err != nil && ctx.Err() == nil {
				w.logger.Warn("reload after change failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

// relevant reports whether ev can change the model.
func relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(ev.Name)
	if hidden(base) {
		return false
	}
	return strings.HasSuffix(base, ".java") || base == javamodel.ManifestFile
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
