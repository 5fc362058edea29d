// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

// Package notify delivers human-facing summaries of engine activity.
//
// The Sink interface decouples the engine from delivery: the default
// LogSink renders summaries into the structured log, and an email or chat
// sink can be dropped in without touching callers. Delivery is best-effort;
// a failed notification never fails the operation that produced it.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tlogandesigns/open-pair/internal/models"
	"github.com/tlogandesigns/open-pair/internal/recommend"
)

// Sink receives engine notifications.
type Sink interface {
	// RecommendationsReady announces a freshly generated host list.
	RecommendationsReady(ctx context.Context, listing *models.Listing, list *recommend.RankedList) error

	// OutcomeRecorded announces an ingested open house outcome.
	OutcomeRecorded(ctx context.Context, rec *models.HostingRecord) error
}

// LogSink renders notifications into the structured log.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a LogSink.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "notify").Logger()}
}

// RecommendationsReady logs a one-line summary per recommended host.
func (s *LogSink) RecommendationsReady(_ context.Context, listing *models.Listing, list *recommend.RankedList) error {
	summary := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		line := fmt.Sprintf("#%d %s (%s, score %.2f)", item.Rank, item.AgentName, item.Tier, item.FairnessScore)
		if len(item.KeyFactors) > 0 {
			line += ": " + strings.Join(item.KeyFactors, ", ")
		}
		summary = append(summary, line)
	}
	s.logger.Info().
		Str("open_house_id", list.OpenHouseID).
		Str("address", listing.Address).
		Strs("hosts", summary).
		Msg("Host recommendations ready")
	return nil
}

// OutcomeRecorded logs the ingested outcome.
func (s *LogSink) OutcomeRecorded(_ context.Context, rec *models.HostingRecord) error {
	s.logger.Info().
		Str("open_house_id", rec.OpenHouseID).
		Str("agent_id", rec.AgentID).
		Int("attendees", rec.Outcome.Attendees).
		Int("leads", rec.Outcome.Leads).
		Int("offers", rec.Outcome.Offers).
		Float64("feedback", rec.Outcome.FeedbackScore).
		Msg("Open house outcome recorded")
	return nil
}
