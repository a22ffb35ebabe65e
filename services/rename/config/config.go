// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the ripple.yaml configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the workspace directory.
const FileName = "ripple.yaml"

// MaxFileSize bounds the configuration file.
const MaxFileSize = 1 << 20

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the full rename service configuration.
//
// Description:
//
//	Every section has usable defaults, so an absent file yields Default().
//	Environment variables named RIPPLE_<SECTION>_<KEY> override the file.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	Ripple    RippleConfig    `yaml:"ripple"`
	Conflict  ConflictConfig  `yaml:"conflict"`
	JavaModel JavaModelConfig `yaml:"javamodel"`
	Server    ServerConfig    `yaml:"server"`
	Journal   JournalConfig   `yaml:"journal"`
}

// RippleConfig tunes ripple resolution.
type RippleConfig struct {
	// CheapPathRatio is the subtypes-per-declaration ratio above which the
	// marriage search runs alien-first. Zero disables it; negative forces it.
	CheapPathRatio float64 `yaml:"cheap_path_ratio"`

	// ExcludeBinaries treats every archive declaration as already covered,
	// so plans never edit library sources.
	ExcludeBinaries bool `yaml:"exclude_binaries"`
}

// ConflictConfig tunes conflict analysis.
type ConflictConfig struct {
	// AllowCapture reports shadowing as a warning instead of an error.
	AllowCapture bool `yaml:"allow_capture"`

	// ReportWarnings includes introduced warning diagnostics.
	ReportWarnings bool `yaml:"report_warnings"`
}

// JavaModelConfig tunes workspace parsing.
type JavaModelConfig struct {
	// ParseWorkers bounds concurrent unit parses. Zero means GOMAXPROCS.
	ParseWorkers int `yaml:"parse_workers" validate:"gte=0,lte=256"`

	// MaxFileSize skips larger compilation units, in bytes.
	MaxFileSize int64 `yaml:"max_file_size" validate:"gte=0"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`

	// RateLimitRPS is the sustained request rate. Zero disables limiting.
	RateLimitRPS float64 `yaml:"rate_limit_rps" validate:"gte=0"`

	// RateLimitBurst is the token bucket size.
	RateLimitBurst int `yaml:"rate_limit_burst" validate:"gte=0"`
}

// JournalConfig configures the plan journal.
type JournalConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the badger directory. Empty keeps the journal in memory.
	Path string `yaml:"path"`

	// MaxRecords prunes the oldest plans beyond this count. Zero keeps all.
	MaxRecords int `yaml:"max_records" validate:"gte=0"`
}

// =============================================================================
// Defaults
// =============================================================================

const (
	DefaultCheapPathRatio = 8.0
	DefaultMaxFileSize    = 2 * 1024 * 1024
	DefaultAddr           = "127.0.0.1:8089"
	DefaultRateLimitRPS   = 20.0
	DefaultRateLimitBurst = 40
	DefaultMaxRecords     = 500
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Ripple: RippleConfig{CheapPathRatio: DefaultCheapPathRatio},
		JavaModel: JavaModelConfig{
			MaxFileSize: DefaultMaxFileSize,
		},
		Server: ServerConfig{
			Addr:           DefaultAddr,
			RateLimitRPS:   DefaultRateLimitRPS,
			RateLimitBurst: DefaultRateLimitBurst,
		},
		Journal: JournalConfig{
			Enabled:    true,
			MaxRecords: DefaultMaxRecords,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// =============================================================================
// Loading
// =============================================================================

// Load reads a configuration file, applies environment overrides and validates.
//
// Inputs:
//
//	path - File to read. A missing file is not an error.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Non-nil if the file cannot be read or parsed, or is invalid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Debug("no configuration file, using defaults", slog.String("path", path))
		data = nil
	case err != nil:
		return nil, fmt.Errorf("config.Load: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults, applies environment overrides and
// validates the result. Empty data yields the defaults.
func Parse(data []byte) (*Config, error) {
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("config.Parse: file exceeds maximum size (%d > %d)", len(data), MaxFileSize)
	}
	cfg := Default()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Parse: parsing YAML: %w", err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("config.Parse: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config.Parse: validation: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides cfg from RIPPLE_* variables.
func applyEnv(cfg *Config) error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	collect(envFloat("RIPPLE_RIPPLE_CHEAP_PATH_RATIO", &cfg.Ripple.CheapPathRatio))
	collect(envBool("RIPPLE_RIPPLE_EXCLUDE_BINARIES", &cfg.Ripple.ExcludeBinaries))
	collect(envBool("RIPPLE_CONFLICT_ALLOW_CAPTURE", &cfg.Conflict.AllowCapture))
	collect(envBool("RIPPLE_CONFLICT_REPORT_WARNINGS", &cfg.Conflict.ReportWarnings))
	collect(envInt("RIPPLE_JAVAMODEL_PARSE_WORKERS", &cfg.JavaModel.ParseWorkers))
	collect(envInt64("RIPPLE_JAVAMODEL_MAX_FILE_SIZE", &cfg.JavaModel.MaxFileSize))
	envString("RIPPLE_SERVER_ADDR", &cfg.Server.Addr)
	collect(envFloat("RIPPLE_SERVER_RATE_LIMIT_RPS", &cfg.Server.RateLimitRPS))
	collect(envInt("RIPPLE_SERVER_RATE_LIMIT_BURST", &cfg.Server.RateLimitBurst))
	collect(envBool("RIPPLE_JOURNAL_ENABLED", &cfg.Journal.Enabled))
	envString("RIPPLE_JOURNAL_PATH", &cfg.Journal.Path)
	collect(envInt("RIPPLE_JOURNAL_MAX_RECORDS", &cfg.Journal.MaxRecords))
	return errors.Join(errs...)
}

func envString(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
	}
}

func envBool(key string, dst *bool) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envInt(key string, dst *int) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envInt64(key string, dst *int64) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}
