// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command ripple plans method renames over a Java workspace.
//
// The workspace directory holds a ripple.workspace.yaml manifest listing
// projects, their source roots and their dependencies, plus an optional
// ripple.yaml configuration.
//
// Usage:
//
//	ripple resolve 'a.Base.run()'
//	ripple scope --ripple 'a.Base.run()'
//	ripple plan --preview 'a.Base.run()' execute
//	ripple history
//	ripple serve --watch
//
// Example requests against serve:
//
//	# Health check
//	curl http://127.0.0.1:8089/v1/rename/health
//
//	# Evaluate a rename
//	curl -X POST http://127.0.0.1:8089/v1/rename/plan \
//	  -H "Content-Type: application/json" \
//	  -d '{"method": "a.Base.run()", "new_name": "execute", "preview": true}'
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errBlocked is returned by plan when the rename has blocking conflicts.
var errBlocked = errors.New("rename has blocking conflicts")

// Global flag values.
var (
	workspaceDir string
	configPath   string
	traceEnabled bool
	jsonOutput   bool
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:           "ripple",
	Short:         "Plan method renames over a Java workspace",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, errBlocked) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspaceDir, "workspace", "w", ".", "Workspace directory containing ripple.workspace.yaml")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default <workspace>/ripple.yaml)")
	rootCmd.PersistentFlags().BoolVar(&traceEnabled, "trace", false, "Print OpenTelemetry spans to stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	scopeCmd.Flags().BoolVar(&scopeRipple, "ripple", false, "Scope of the whole ripple set")

	planCmd.Flags().BoolVar(&planPreview, "preview", false, "Print the unified diff of the edits")
	planCmd.Flags().BoolVar(&planNoRecord, "no-record", false, "Do not record the plan in the journal")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from configuration)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "Reload the model when sources change")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum plans to list")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(scopeCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
}
