// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

// Package store persists the recommendation core's own data in BadgerDB:
// hosting records and per-agent aggregate stats.
//
// Hosting records are keyed by open house ID, which makes the at-most-one-
// record-per-open-house rule a key constraint rather than application
// bookkeeping. Aggregates are replaced wholesale inside the same
// transaction that appends the record, so readers see either the old or
// the new aggregate, never a partial update.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tlogandesigns/open-pair/internal/models"
)

// Key prefixes for BadgerDB storage.
const (
	recordKeyPrefix      = "record:"
	recordAgentKeyPrefix = "record_agent:"
	aggregateKeyPrefix   = "aggregate:"
)

// Sentinel errors.
var (
	// ErrDuplicateRecord indicates the open house already has a hosting record.
	ErrDuplicateRecord = errors.New("hosting record already exists for open house")

	// ErrAggregateNotFound indicates the agent has no aggregate stats yet.
	ErrAggregateNotFound = errors.New("aggregate stats not found")
)

// Options configures the store.
type Options struct {
	// Dir is the Badger data directory. Ignored when InMemory is set.
	Dir string

	// InMemory runs Badger without disk persistence. Used in tests.
	InMemory bool
}

// Store is a BadgerDB-backed store for hosting records and aggregates.
// Safe for concurrent use.
type Store struct {
	db     *badger.DB
	logger zerolog.Logger
}

// Open opens the store at the configured location.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(opts Options, logger zerolog.Logger) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Dir).
		WithInMemory(opts.InMemory).
		WithLogger(nil)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying Badger database so sibling stores (directory,
// calendar) can share one instance and one data directory.
func (s *Store) DB() *badger.DB {
	return s.db
}

// AppendOutcome writes a hosting record and the agent's recomputed
// aggregate in one transaction. Returns ErrDuplicateRecord without
// modifying anything when the open house already has a record.
func (s *Store) AppendOutcome(ctx context.Context, rec *models.HostingRecord, agg *models.AggregateStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	recData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal hosting record: %w", err)
	}
	aggData, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("marshal aggregate: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		recordKey := []byte(recordKeyPrefix + rec.OpenHouseID)

		_, err := txn.Get(recordKey)
		if err == nil {
			return ErrDuplicateRecord
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check hosting record: %w", err)
		}

		if err := txn.Set(recordKey, recData); err != nil {
			return fmt.Errorf("set hosting record: %w", err)
		}

		// Agent index entry for per-agent history scans.
		agentKey := []byte(recordAgentKeyPrefix + rec.AgentID + ":" + rec.OpenHouseID)
		if err := txn.Set(agentKey, []byte(rec.OpenHouseID)); err != nil {
			return fmt.Errorf("set agent index: %w", err)
		}

		aggKey := []byte(aggregateKeyPrefix + agg.AgentID)
		if err := txn.Set(aggKey, aggData); err != nil {
			return fmt.Errorf("set aggregate: %w", err)
		}

		return nil
	})
}

// GetHostingRecord returns the hosting record for an open house, or
// badger.ErrKeyNotFound wrapped when none exists.
func (s *Store) GetHostingRecord(ctx context.Context, openHouseID string) (*models.HostingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec models.HostingRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordKeyPrefix + openHouseID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get hosting record %s: %w", openHouseID, err)
	}
	return &rec, nil
}

// HasHostingRecord reports whether the open house already has an outcome.
func (s *Store) HasHostingRecord(ctx context.Context, openHouseID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(recordKeyPrefix + openHouseID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check hosting record %s: %w", openHouseID, err)
	}
	return true, nil
}

// ListHostingRecords returns every hosting record from a single read
// transaction, giving the retrainer a point-in-time copy of history.
func (s *Store) ListHostingRecords(ctx context.Context) ([]models.HostingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []models.HostingRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec models.HostingRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode hosting record: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list hosting records: %w", err)
	}
	return records, nil
}

// CountAgentRecords returns how many hosting records an agent has.
func (s *Store) CountAgentRecords(ctx context.Context, agentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordAgentKeyPrefix + agentID + ":")
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count records for agent %s: %w", agentID, err)
	}
	return count, nil
}

// GetAggregate returns the agent's aggregate stats, or ErrAggregateNotFound.
func (s *Store) GetAggregate(ctx context.Context, agentID string) (*models.AggregateStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var agg models.AggregateStats
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(aggregateKeyPrefix + agentID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrAggregateNotFound
		}
		if err != nil {
			return fmt.Errorf("get aggregate: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &agg)
		})
	})
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

// PutAggregate replaces an agent's aggregate stats. Used by the ingestor
// for period rollovers that happen outside outcome submission.
func (s *Store) PutAggregate(ctx context.Context, agg *models.AggregateStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("marshal aggregate: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(aggregateKeyPrefix+agg.AgentID), data)
	})
}

// ListAggregates returns every agent aggregate, for the fairness report.
func (s *Store) ListAggregates(ctx context.Context) ([]models.AggregateStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []models.AggregateStats
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(aggregateKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var agg models.AggregateStats
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &agg)
			}); err != nil {
				return fmt.Errorf("decode aggregate: %w", err)
			}
			out = append(out, agg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}
	return out, nil
}

// Sync flushes pending writes to disk. No-op for in-memory stores.
func (s *Store) Sync() error {
	if s.db.Opts().InMemory {
		return nil
	}
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("sync store: %w", err)
	}
	return nil
}

// RunGC runs one Badger value-log GC cycle. Intended to be called
// periodically by a background service.
func (s *Store) RunGC() {
	if s.db.Opts().InMemory {
		return
	}
	start := time.Now()
	err := s.db.RunValueLogGC(0.5)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		s.logger.Warn().Err(err).Msg("value log GC failed")
		return
	}
	s.logger.Debug().Dur("took", time.Since(start)).Msg("value log GC complete")
}
