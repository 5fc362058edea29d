// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tlogandesigns/open-pair/internal/calendar"
	"github.com/tlogandesigns/open-pair/internal/directory"
	"github.com/tlogandesigns/open-pair/internal/models"
	"github.com/tlogandesigns/open-pair/internal/recommend"
	"github.com/tlogandesigns/open-pair/internal/store"
)

// engineProvider adapts the directory and store to the engine's
// DataProvider interface, translating storage sentinels into the engine's
// error vocabulary.
type engineProvider struct {
	dir   *directory.Directory
	store *store.Store
}

func (p *engineProvider) GetOpenHouse(ctx context.Context, id string) (*models.OpenHouse, error) {
	oh, err := p.dir.GetOpenHouse(ctx, id)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return oh, nil
}

func (p *engineProvider) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	listing, err := p.dir.GetListing(ctx, id)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return listing, nil
}

func (p *engineProvider) ListActiveAgents(ctx context.Context) ([]models.Agent, error) {
	return p.dir.ListAgents(ctx, true)
}

func (p *engineProvider) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	agent, err := p.dir.GetAgent(ctx, id)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return agent, nil
}

func (p *engineProvider) GetAggregate(ctx context.Context, agentID string) (*models.AggregateStats, error) {
	agg, err := p.store.GetAggregate(ctx, agentID)
	if err != nil {
		if errors.Is(err, store.ErrAggregateNotFound) {
			// Never hosted; the engine substitutes documented defaults.
			return nil, nil
		}
		return nil, err
	}
	return agg, nil
}

func (p *engineProvider) ListRecords(ctx context.Context) ([]models.HostingRecord, error) {
	return p.store.ListHostingRecords(ctx)
}

func translateNotFound(err error) error {
	if errors.Is(err, directory.ErrNotFound) {
		return fmt.Errorf("%w: %s", recommend.ErrNotFound, err)
	}
	return err
}

// availabilityAdapter bridges the calendar service to the engine's
// AvailabilityChecker.
type availabilityAdapter struct {
	cal *calendar.Service
}

func (a *availabilityAdapter) Check(ctx context.Context, agentID string, start, end time.Time) (bool, string, error) {
	res, err := a.cal.Check(ctx, agentID, start, end)
	if err != nil {
		return false, "", err
	}
	return res.Available, res.Reason, nil
}
