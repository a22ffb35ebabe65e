// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/AleutianRename/services/rename"
	"github.com/AleutianAI/AleutianRename/services/rename/config"
	"github.com/AleutianAI/AleutianRename/services/rename/journal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// parseLevel maps a --log-level value to a slog level.
func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

func newLogger() (*slog.Logger, error) {
	level, err := parseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, nil
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(workspaceDir, config.FileName)
	}
	return config.Load(path)
}

// setupTracing installs a stdout span exporter when --trace is set. The
// returned function flushes and shuts it down.
func setupTracing() (func(context.Context) error, error) {
	if !traceEnabled {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating span exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// session is everything a command needs, released by close.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	svc     *rename.Service
	journal *journal.Journal
	stop    func(context.Context) error
}

// openSession loads configuration and the workspace. With record set and
// the journal enabled, plans are recorded.
func openSession(ctx context.Context, record bool) (*session, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	stop, err := setupTracing()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: logger, stop: stop}

	opts := []rename.Option{rename.WithLogger(logger)}
	if record && cfg.Journal.Enabled {
		j, err := openJournal(cfg, logger)
		if err != nil {
			s.close(ctx)
			return nil, err
		}
		s.journal = j
		opts = append(opts, rename.WithJournal(j))
	}

	svc, err := rename.NewService(ctx, cfg, rename.DirLoader(workspaceDir, cfg.JavaModel, logger), opts...)
	if err != nil {
		s.close(ctx)
		return nil, err
	}
	s.svc = svc
	return s, nil
}

// openJournal opens the configured journal. A relative path is resolved
// against the workspace directory.
func openJournal(cfg *config.Config, logger *slog.Logger) (*journal.Journal, error) {
	path := cfg.Journal.Path
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(workspaceDir, path)
	}
	return journal.Open(path, cfg.Journal.MaxRecords, logger)
}

func (s *session) close(ctx context.Context) {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Warn("failed to close journal", slog.String("error", err.Error()))
		}
	}
	if err := s.stop(ctx); err != nil {
		s.logger.Warn("failed to flush spans", slog.String("error", err.Error()))
	}
}
