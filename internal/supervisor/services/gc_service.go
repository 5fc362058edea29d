// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ValueLogGC is the store's garbage collection surface.
type ValueLogGC interface {
	RunGC()
}

// GCService periodically runs Badger value-log garbage collection so the
// store footprint stays bounded on long-running installs.
type GCService struct {
	store    ValueLogGC
	interval time.Duration
	logger   zerolog.Logger
}

// NewGCService creates the GC service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewGCService(store ValueLogGC, interval time.Duration, logger zerolog.Logger) *GCService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &GCService{
		store:    store,
		interval: interval,
		logger:   logger.With().Str("service", "store-gc").Logger(),
	}
}

// Serve implements suture.Service.
func (s *GCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.logger.Debug().Msg("Running value log GC")
			s.store.RunGC()
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *GCService) String() string {
	return "store-gc"
}
