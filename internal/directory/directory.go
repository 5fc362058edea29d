// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

// Package directory stores agent, listing, and open house records.
//
// The recommendation core treats this data as an external collaborator's:
// it only reads snapshots. The directory owns the schema and offers
// fetch-by-id plus simple filtered listing, backed by the same BadgerDB
// instance as the rest of the application.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tlogandesigns/open-pair/internal/models"
)

// Key prefixes for BadgerDB storage.
const (
	agentKeyPrefix     = "agent:"
	listingKeyPrefix   = "listing:"
	openHouseKeyPrefix = "openhouse:"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("directory record not found")

// Directory is a BadgerDB-backed store for reference records.
// Safe for concurrent use.
type Directory struct {
	db *badger.DB
}

// New creates a directory over an open Badger database.
func New(db *badger.DB) *Directory {
	return &Directory{db: db}
}

// put marshals and stores a record under prefix+id.
func (d *Directory) put(prefix, id string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s%s: %w", prefix, id, err)
	}
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefix+id), data)
	})
}

// get loads the record under prefix+id into v.
func (d *Directory) get(prefix, id string, v interface{}) error {
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%s%s: %w", prefix, id, ErrNotFound)
		}
		return fmt.Errorf("get %s%s: %w", prefix, id, err)
	}
	return nil
}

// SaveAgent stores an agent, assigning an ID when absent.
func (d *Directory) SaveAgent(ctx context.Context, agent *models.Agent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now().UTC()
	}
	agent.UpdatedAt = time.Now().UTC()
	return d.put(agentKeyPrefix, agent.ID, agent)
}

// GetAgent returns the agent with the given ID.
func (d *Directory) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var agent models.Agent
	if err := d.get(agentKeyPrefix, id, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// ListAgents returns all agents, optionally restricted to active ones.
func (d *Directory) ListAgents(ctx context.Context, activeOnly bool) ([]models.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var agents []models.Agent
	err := d.scan(agentKeyPrefix, func(val []byte) error {
		var agent models.Agent
		if err := json.Unmarshal(val, &agent); err != nil {
			return err
		}
		if !activeOnly || agent.Active {
			agents = append(agents, agent)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return agents, nil
}

// SaveListing stores a listing, assigning an ID when absent.
func (d *Directory) SaveListing(ctx context.Context, listing *models.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if listing.ID == "" {
		listing.ID = uuid.NewString()
	}
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = time.Now().UTC()
	}
	return d.put(listingKeyPrefix, listing.ID, listing)
}

// GetListing returns the listing with the given ID.
func (d *Directory) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var listing models.Listing
	if err := d.get(listingKeyPrefix, id, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// ListListings returns all listings, optionally filtered by status.
func (d *Directory) ListListings(ctx context.Context, status models.ListingStatus) ([]models.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var listings []models.Listing
	err := d.scan(listingKeyPrefix, func(val []byte) error {
		var listing models.Listing
		if err := json.Unmarshal(val, &listing); err != nil {
			return err
		}
		if status == "" || listing.Status == status {
			listings = append(listings, listing)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return listings, nil
}

// SaveOpenHouse stores an open house, assigning an ID when absent.
func (d *Directory) SaveOpenHouse(ctx context.Context, oh *models.OpenHouse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if oh.ID == "" {
		oh.ID = uuid.NewString()
	}
	if oh.CreatedAt.IsZero() {
		oh.CreatedAt = time.Now().UTC()
	}
	if oh.Status == "" {
		oh.Status = models.OpenHouseScheduled
	}
	return d.put(openHouseKeyPrefix, oh.ID, oh)
}

// GetOpenHouse returns the open house with the given ID.
func (d *Directory) GetOpenHouse(ctx context.Context, id string) (*models.OpenHouse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var oh models.OpenHouse
	if err := d.get(openHouseKeyPrefix, id, &oh); err != nil {
		return nil, err
	}
	return &oh, nil
}

// ListOpenHouses returns all open houses, optionally filtered by status.
func (d *Directory) ListOpenHouses(ctx context.Context, status models.OpenHouseStatus) ([]models.OpenHouse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []models.OpenHouse
	err := d.scan(openHouseKeyPrefix, func(val []byte) error {
		var oh models.OpenHouse
		if err := json.Unmarshal(val, &oh); err != nil {
			return err
		}
		if status == "" || oh.Status == status {
			out = append(out, oh)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list open houses: %w", err)
	}
	return out, nil
}

// scan iterates every value under a prefix inside one read transaction.
func (d *Directory) scan(prefix string, fn func(val []byte) error) error {
	return d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				key := string(it.Item().Key())
				return fmt.Errorf("decode %s: %w", strings.TrimPrefix(key, prefix), err)
			}
		}
		return nil
	})
}
