// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

// Package feedback ingests open house outcomes into the hosting history.
//
// Ingestion is idempotent per open house: the first submission wins, and
// every later submission for the same open house returns the stored record
// unchanged. Writes for one agent are serialized so the agent's aggregate
// is always the fold of exactly the records that exist.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tlogandesigns/open-pair/internal/metrics"
	"github.com/tlogandesigns/open-pair/internal/models"
	"github.com/tlogandesigns/open-pair/internal/store"
	"github.com/tlogandesigns/open-pair/internal/validation"
)

// Sentinel errors.
var (
	// ErrOpenHouseNotFound means the referenced open house does not exist.
	ErrOpenHouseNotFound = errors.New("open house not found")

	// ErrNoHostAgent means neither the submission nor the open house names
	// the hosting agent.
	ErrNoHostAgent = errors.New("no host agent for outcome")
)

// Directory is the reference-data surface the ingestor needs.
type Directory interface {
	GetOpenHouse(ctx context.Context, id string) (*models.OpenHouse, error)
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	SaveOpenHouse(ctx context.Context, oh *models.OpenHouse) error
}

// OutcomeInput is one outcome submission.
type OutcomeInput struct {
	// OpenHouseID references the completed open house.
	OpenHouseID string `json:"open_house_id" validate:"required"`

	// AgentID overrides the open house's assigned host when set.
	AgentID string `json:"agent_id,omitempty"`

	// Outcome counters.
	Attendees int `json:"attendees" validate:"min=0"`
	Leads     int `json:"leads" validate:"min=0"`
	FollowUps int `json:"follow_ups" validate:"min=0"`
	Offers    int `json:"offers" validate:"min=0"`

	// FeedbackScore is average visitor feedback, 1-5, 0 for none.
	FeedbackScore float64 `json:"feedback_score" validate:"min=0,max=5"`
}

// Ingestor folds outcome submissions into hosting records and per-agent
// aggregates. Safe for concurrent use.
type Ingestor struct {
	store      *store.Store
	directory  Directory
	periodDays int
	logger     zerolog.Logger

	// onIngest runs after every successful ingest (cache invalidation).
	onIngest func()

	// agentLocks serializes aggregate read-modify-write per agent.
	agentLocks map[string]*sync.Mutex
	locksMu    sync.Mutex
}

// New creates an Ingestor.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(st *store.Store, dir Directory, periodDays int, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		store:      st,
		directory:  dir,
		periodDays: periodDays,
		logger:     logger.With().Str("component", "feedback").Logger(),
		agentLocks: make(map[string]*sync.Mutex),
	}
}

// OnIngest registers a hook run after each successful ingest.
func (in *Ingestor) OnIngest(fn func()) {
	in.onIngest = fn
}

// RecordOutcome ingests one outcome. created is false when a record for the
// open house already existed; the returned record is then the stored one and
// no aggregate changes.
func (in *Ingestor) RecordOutcome(ctx context.Context, input OutcomeInput) (rec *models.HostingRecord, created bool, err error) {
	if err := validation.ValidateStruct(&input); err != nil {
		return nil, false, err
	}

	oh, err := in.directory.GetOpenHouse(ctx, input.OpenHouseID)
	if err != nil {
		return nil, false, fmt.Errorf("open house %s: %w", input.OpenHouseID, ErrOpenHouseNotFound)
	}

	agentID := input.AgentID
	if agentID == "" {
		agentID = oh.HostAgentID
	}
	if agentID == "" {
		return nil, false, fmt.Errorf("open house %s: %w", input.OpenHouseID, ErrNoHostAgent)
	}

	// Fast path for replays: no lock needed to return the stored record.
	if existing, err := in.store.GetHostingRecord(ctx, input.OpenHouseID); err == nil {
		metrics.OutcomesDuplicate.Inc()
		return existing, false, nil
	}

	listing, err := in.directory.GetListing(ctx, oh.ListingID)
	if err != nil {
		return nil, false, fmt.Errorf("listing %s: %w", oh.ListingID, err)
	}

	rec = &models.HostingRecord{
		ID:           uuid.NewString(),
		OpenHouseID:  oh.ID,
		AgentID:      agentID,
		ListingID:    listing.ID,
		ZipCode:      listing.ZipCode,
		Price:        listing.Price,
		PropertyType: listing.PropertyType,
		HostedAt:     oh.StartTime,
		Outcome: models.OutcomeMetrics{
			Attendees:     input.Attendees,
			Leads:         input.Leads,
			FollowUps:     input.FollowUps,
			Offers:        input.Offers,
			FeedbackScore: input.FeedbackScore,
		},
		RecordedAt: time.Now().UTC(),
	}

	lock := in.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()

	agg, err := in.store.GetAggregate(ctx, agentID)
	if err != nil {
		if !errors.Is(err, store.ErrAggregateNotFound) {
			return nil, false, fmt.Errorf("aggregate for %s: %w", agentID, err)
		}
		agg = &models.AggregateStats{AgentID: agentID}
	}
	agg.Apply(rec, in.periodDays)

	if err := in.store.AppendOutcome(ctx, rec, agg); err != nil {
		if errors.Is(err, store.ErrDuplicateRecord) {
			// Lost a race with a concurrent submission for the same open
			// house; the stored record wins.
			metrics.OutcomesDuplicate.Inc()
			existing, getErr := in.store.GetHostingRecord(ctx, input.OpenHouseID)
			if getErr != nil {
				return nil, false, fmt.Errorf("load winning record: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("append outcome: %w", err)
	}

	in.completeOpenHouse(ctx, oh, agentID)

	metrics.OutcomesIngested.Inc()
	if in.onIngest != nil {
		in.onIngest()
	}
	in.logger.Info().
		Str("open_house_id", oh.ID).
		Str("agent_id", agentID).
		Int("attendees", input.Attendees).
		Int("leads", input.Leads).
		Int("offers", input.Offers).
		Msg("Outcome recorded")
	return rec, true, nil
}

// completeOpenHouse marks the open house completed and pins the host. A
// failure here is logged, not returned: the record and aggregate are already
// durable and a replayed submission will not double-count.
func (in *Ingestor) completeOpenHouse(ctx context.Context, oh *models.OpenHouse, agentID string) {
	oh.Status = models.OpenHouseCompleted
	oh.HostAgentID = agentID
	if err := in.directory.SaveOpenHouse(ctx, oh); err != nil {
		in.logger.Warn().Err(err).Str("open_house_id", oh.ID).Msg("Open house status update failed")
	}
}

func (in *Ingestor) lockFor(agentID string) *sync.Mutex {
	in.locksMu.Lock()
	defer in.locksMu.Unlock()
	lock, ok := in.agentLocks[agentID]
	if !ok {
		lock = &sync.Mutex{}
		in.agentLocks[agentID] = lock
	}
	return lock
}
