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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/AleutianRename/services/rename"
	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Command flag values.
var (
	scopeRipple  bool
	planPreview  bool
	planNoRecord bool
	serveAddr    string
	serveWatch   bool
	historyLimit int
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <Type.method(params)>",
	Short: "List the methods that must be renamed together",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolveCommand,
}

var scopeCmd = &cobra.Command{
	Use:   "scope <Type.method(params)>",
	Short: "List the containers that may reference a method",
	Args:  cobra.ExactArgs(1),
	RunE:  runScopeCommand,
}

var planCmd = &cobra.Command{
	Use:   "plan <Type.method(params)> <new-name>",
	Short: "Evaluate a rename without applying it",
	Long: `Evaluate a rename without applying it.

Exits with status 2 when the rename has blocking conflicts.`,
	Args: cobra.ExactArgs(2),
	RunE: runPlanCommand,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the rename API over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServeCommand,
}

var historyCmd = &cobra.Command{
	Use:   "history [plan-id]",
	Short: "List recorded plans, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistoryCommand,
}

func runResolveCommand(cmd *cobra.Command, args []string) error {
	id, err := model.ParseMethodID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := openSession(ctx, false)
	if err != nil {
		return err
	}
	defer s.close(context.WithoutCancel(ctx))

	res, err := s.svc.Resolve(ctx, id)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	newRenderer(cmd.OutOrStdout()).ripple(res)
	return nil
}

func runScopeCommand(cmd *cobra.Command, args []string) error {
	id, err := model.ParseMethodID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := openSession(ctx, false)
	if err != nil {
		return err
	}
	defer s.close(context.WithoutCancel(ctx))

	res, err := s.svc.Scope(ctx, id, scopeRipple)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	newRenderer(cmd.OutOrStdout()).scope(res)
	return nil
}

func runPlanCommand(cmd *cobra.Command, args []string) error {
	id, err := model.ParseMethodID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := openSession(ctx, !planNoRecord)
	if err != nil {
		return err
	}
	defer s.close(context.WithoutCancel(ctx))

	plan, err := s.svc.Plan(ctx, rename.PlanRequest{Method: id, NewName: args[1]})
	if err != nil {
		return err
	}
	var preview string
	if planPreview {
		if preview, err = plan.Preview(); err != nil {
			return err
		}
	}

	if jsonOutput {
		err = writeJSON(cmd.OutOrStdout(), rename.PlanResponse{Plan: plan, Blocking: plan.Blocking(), Preview: preview})
	} else {
		newRenderer(cmd.OutOrStdout()).plan(plan, preview)
	}
	if err != nil {
		return err
	}
	if plan.Blocking() {
		return errBlocked
	}
	return nil
}

func runHistoryCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Journal.Enabled || cfg.Journal.Path == "" {
		return errors.New("history needs journal.enabled and a journal.path in the configuration")
	}
	j, err := openJournal(cfg, logger)
	if err != nil {
		return err
	}
	defer j.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		rec, _, err := j.Load(ctx, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(out, rec)
		}
		newRenderer(out).record(rec)
		return nil
	}

	metas, err := j.List(ctx, historyLimit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(out, metas)
	}
	newRenderer(out).history(metas)
	return nil
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.close(context.WithoutCancel(ctx))

	addr := s.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	gin.SetMode(gin.ReleaseMode)
	router := rename.NewRouter(s.svc, s.cfg.Server)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if serveWatch {
		w, err := rename.NewWatcher(workspaceDir, s.svc.Reload, 0, s.logger)
		if err != nil {
			return err
		}
		defer w.Close()
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	return serve(ctx, s.logger, addr, router)
}

func serve(ctx context.Context, logger *slog.Logger, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting rename server", slog.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down rename server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
