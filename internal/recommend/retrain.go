// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tlogandesigns/open-pair/internal/metrics"
	"github.com/tlogandesigns/open-pair/internal/models"
)

// Retrain refits the scoring model from the full hosting-record history and
// promotes the result only when it validates against a held-out slice.
//
// The run is serialized: a second concurrent call fails fast with
// ErrTrainingInProgress rather than queueing. A run that fails validation
// returns ErrRetrainValidationFailed and leaves the active model untouched;
// scoring is never interrupted either way.
func (e *Engine) Retrain(ctx context.Context) (RetrainStatus, error) {
	if !e.trainMu.TryLock() {
		return RetrainStatus{}, ErrTrainingInProgress
	}
	defer e.trainMu.Unlock()

	start := time.Now()
	status, err := e.retrain(ctx)
	status.Duration = time.Since(start)
	status.ModelVersion = e.scorer.ActiveVersion()

	switch {
	case err == nil:
		metrics.RetrainRuns.WithLabelValues(string(status.Outcome)).Inc()
	case errors.Is(err, ErrRetrainValidationFailed):
		metrics.RetrainRuns.WithLabelValues(string(RetrainRejected)).Inc()
	default:
		metrics.RetrainRuns.WithLabelValues("error").Inc()
	}

	e.statusMu.Lock()
	e.lastTrain = status
	e.statusMu.Unlock()
	return status, err
}

// LastRetrain returns the status of the most recent retraining run.
func (e *Engine) LastRetrain() RetrainStatus {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.lastTrain
}

func (e *Engine) retrain(ctx context.Context) (RetrainStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Training.Timeout)
	defer cancel()

	records, err := e.provider.ListRecords(ctx)
	if err != nil {
		return RetrainStatus{}, fmt.Errorf("list records: %w", err)
	}

	status := RetrainStatus{SampleCount: len(records)}
	if len(records) < e.config.Training.MinRecords {
		e.logger.Info().
			Err(ErrInsufficientData).
			Int("records", len(records)).
			Int("min_records", e.config.Training.MinRecords).
			Msg("Retraining skipped")
		status.Outcome = RetrainSkipped
		return status, nil
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].HostedAt.Before(records[j].HostedAt)
	})

	features, targets, err := e.buildTrainingSet(ctx, records)
	if err != nil {
		return status, err
	}

	// Chronological split: the newest slice is held out so validation
	// measures forward prediction, not interpolation.
	holdoutN := int(math.Round(float64(len(records)) * e.config.Training.HoldoutFraction))
	if holdoutN < 1 {
		holdoutN = 1
	}
	trainN := len(records) - holdoutN
	if trainN < 1 {
		status.Outcome = RetrainSkipped
		return status, nil
	}
	status.TrainCount = trainN
	status.HoldoutCount = holdoutN

	candidate, err := FitRidge(features[:trainN], targets[:trainN], e.config.Training.Ridge)
	if err != nil {
		return status, fmt.Errorf("fit model: %w", err)
	}
	candidate.HoldoutMSE = candidate.Evaluate(features[trainN:], targets[trainN:])
	status.CandidateMSE = candidate.HoldoutMSE

	if active := e.scorer.Active(); active != nil {
		status.ActiveMSE = active.Evaluate(features[trainN:], targets[trainN:])
		if candidate.HoldoutMSE > status.ActiveMSE+e.config.Training.ErrorTolerance {
			e.logger.Warn().
				Float64("candidate_mse", candidate.HoldoutMSE).
				Float64("active_mse", status.ActiveMSE).
				Float64("tolerance", e.config.Training.ErrorTolerance).
				Msg("Candidate model rejected, keeping active model")
			status.Outcome = RetrainRejected
			return status, fmt.Errorf("candidate mse %.4f vs active %.4f: %w",
				candidate.HoldoutMSE, status.ActiveMSE, ErrRetrainValidationFailed)
		}
	}

	e.scorer.Promote(candidate)
	e.InvalidateCache()
	status.Outcome = RetrainPromoted
	return status, nil
}

// buildTrainingSet replays records chronologically, extracting each example's
// features from the aggregates as they stood BEFORE that record landed. This
// reconstructs what the engine would have seen at recommendation time, so the
// model learns from pre-outcome state rather than leaking the outcome into
// its own features.
func (e *Engine) buildTrainingSet(ctx context.Context, records []models.HostingRecord) ([]FeatureVector, []float64, error) {
	aggs := make(map[string]*models.AggregateStats)
	agentCache := make(map[string]*models.Agent)

	features := make([]FeatureVector, 0, len(records))
	targets := make([]float64, 0, len(records))

	for i := range records {
		rec := &records[i]
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		agent, err := e.trainingAgent(ctx, agentCache, rec.AgentID)
		if err != nil {
			return nil, nil, err
		}

		// The record's listing snapshot stands in for the listing itself,
		// which may have been edited or deleted since.
		listing := &models.Listing{
			ID:           rec.ListingID,
			ZipCode:      rec.ZipCode,
			Price:        rec.Price,
			PropertyType: rec.PropertyType,
		}

		features = append(features, e.extractor.Extract(agent, aggs[rec.AgentID], listing, rec.HostedAt))
		targets = append(targets, TargetScore(rec.Outcome))

		agg := aggs[rec.AgentID]
		if agg == nil {
			agg = &models.AggregateStats{AgentID: rec.AgentID}
			aggs[rec.AgentID] = agg
		}
		agg.Apply(rec, e.config.PeriodDays)
	}
	return features, targets, nil
}

// trainingAgent resolves an agent for replay. Records whose agent has been
// deleted still train, against a blank profile.
func (e *Engine) trainingAgent(ctx context.Context, cache map[string]*models.Agent, agentID string) (*models.Agent, error) {
	if agent, ok := cache[agentID]; ok {
		return agent, nil
	}
	agent, err := e.provider.GetAgent(ctx, agentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			agent = &models.Agent{ID: agentID}
		} else {
			return nil, fmt.Errorf("agent %s: %w", agentID, err)
		}
	}
	cache[agentID] = agent
	return agent, nil
}
