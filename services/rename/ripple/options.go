// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ripple

import (
	"log/slog"

	"github.com/AleutianAI/AleutianRename/services/rename/model"
)

// DefaultCheapPathRatio is the subtypes-per-declaration ratio above which
// the marriage search runs alien-first.
const DefaultCheapPathRatio = 8.0

// Options configures a Resolver.
type Options struct {
	// CheapPathRatio switches to the alien-first marriage search when the
	// target type has more direct subtypes than CheapPathRatio times the
	// number of candidate declarations. Zero disables the switch.
	CheapPathRatio float64

	// Covered reports whether a binary declaration is already accounted for
	// by a known prior reference. Covered binaries stay in the ripple set but
	// are excluded from Result.RequiringRename.
	Covered func(model.MethodID) bool

	// Logger receives per-resolution diagnostics.
	Logger *slog.Logger
}

// Option is a functional option for Resolver.
type Option func(*Options)

// DefaultOptions returns the default resolver options.
func DefaultOptions() Options {
	return Options{
		CheapPathRatio: DefaultCheapPathRatio,
		Logger:         slog.Default(),
	}
}

// WithCheapPathRatio sets the alien-first threshold. Zero disables it; a
// negative ratio forces the alien-first search for every resolution.
func WithCheapPathRatio(ratio float64) Option {
	return func(o *Options) {
		o.CheapPathRatio = ratio
	}
}

// WithCoveredBinaries sets the predicate for binary declarations that need
// no rename.
func WithCoveredBinaries(covered func(model.MethodID) bool) Option {
	return func(o *Options) {
		o.Covered = covered
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}
