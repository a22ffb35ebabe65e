// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, DefaultCheapPathRatio, cfg.Ripple.CheapPathRatio)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.True(t, cfg.Journal.Enabled)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
ripple:
  cheap_path_ratio: 0
  exclude_binaries: true
conflict:
  allow_capture: true
javamodel:
  parse_workers: 4
server:
  addr: ":9000"
journal:
  path: /tmp/plans
  max_records: 10
`))
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Ripple.CheapPathRatio)
	assert.True(t, cfg.Ripple.ExcludeBinaries)
	assert.True(t, cfg.Conflict.AllowCapture)
	assert.False(t, cfg.Conflict.ReportWarnings)
	assert.Equal(t, 4, cfg.JavaModel.ParseWorkers)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.JavaModel.MaxFileSize, "unset keys keep defaults")
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, DefaultRateLimitBurst, cfg.Server.RateLimitBurst)
	assert.Equal(t, "/tmp/plans", cfg.Journal.Path)
	assert.Equal(t, 10, cfg.Journal.MaxRecords)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "ripple: [", "parsing YAML"},
		{"negative workers", "javamodel:\n  parse_workers: -1\n", "validation"},
		{"empty addr", "server:\n  addr: \"\"\n", "validation"},
		{"negative burst", "server:\n  rate_limit_burst: -5\n", "validation"},
		{"negative records", "journal:\n  max_records: -1\n", "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_TooLarge(t *testing.T) {
	_, err := Parse([]byte(strings.Repeat("#", MaxFileSize+1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum size")
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("RIPPLE_RIPPLE_CHEAP_PATH_RATIO", "2.5")
	t.Setenv("RIPPLE_CONFLICT_REPORT_WARNINGS", "true")
	t.Setenv("RIPPLE_SERVER_ADDR", ":7000")
	t.Setenv("RIPPLE_JOURNAL_ENABLED", "false")
	t.Setenv("RIPPLE_JAVAMODEL_MAX_FILE_SIZE", "1024")

	cfg, err := Parse([]byte("server:\n  addr: \":9000\"\n"))
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.Ripple.CheapPathRatio)
	assert.True(t, cfg.Conflict.ReportWarnings)
	assert.Equal(t, ":7000", cfg.Server.Addr, "environment wins over the file")
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, int64(1024), cfg.JavaModel.MaxFileSize)
}

func TestParse_BadEnv(t *testing.T) {
	t.Setenv("RIPPLE_SERVER_RATE_LIMIT_BURST", "lots")
	_, err := Parse(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RIPPLE_SERVER_RATE_LIMIT_BURST")
}

func TestLoad(t *testing.T) {
	t.Run("missing file gives defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), FileName))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)
		require.NoError(t, os.WriteFile(path, []byte("conflict:\n  allow_capture: true\n"), 0o644))
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.True(t, cfg.Conflict.AllowCapture)
	})

	t.Run("directory is an error", func(t *testing.T) {
		_, err := Load(t.TempDir())
		require.Error(t, err)
	})
}
