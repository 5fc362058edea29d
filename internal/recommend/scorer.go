// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package recommend

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/tlogandesigns/open-pair/internal/logging"
	"github.com/tlogandesigns/open-pair/internal/metrics"
)

// Cold-start heuristic weights. The heuristic approximates what the trained
// model learns from history, anchored at a neutral base so sparse-history
// agents land mid-range rather than at the extremes.
const (
	heuristicBase           = 0.50
	heuristicConversionW    = 0.30
	heuristicSuccessW       = 0.20
	heuristicFeedbackW      = 0.10
	heuristicAreaMatchW     = 0.15
	heuristicPriceAlignW    = 0.10
	heuristicTierW          = 0.04
	heuristicPropertyTypeW  = 0.02
	heuristicPropertyTypeMx = 0.06
)

// Scorer produces raw success-likelihood scores. It routes each candidate to
// the trained model or the cold-start heuristic based on how much history the
// candidate has, and degrades to the heuristic when no model is loaded.
//
// The active model is held behind an atomic pointer: Promote installs a new
// model without blocking in-flight scoring, and every score within one
// request batch reads the same snapshot.
type Scorer struct {
	coldStartThreshold int

	active   atomic.Pointer[Model]
	mu       sync.Mutex // guards previous and the version counter
	previous *Model
	version  int

	logger zerolog.Logger
}

// NewScorer returns a Scorer with no model loaded. Until a model is promoted
// every candidate scores through the heuristic path.
func NewScorer(coldStartThreshold int) *Scorer {
	return &Scorer{
		coldStartThreshold: coldStartThreshold,
		logger:             logging.With().Str("component", "scorer").Logger(),
	}
}

// Active returns the current model snapshot, or nil when scoring is
// heuristic-only. Callers must treat the model as read-only.
func (s *Scorer) Active() *Model {
	return s.active.Load()
}

// ActiveVersion returns the active model version, 0 when none is loaded.
func (s *Scorer) ActiveVersion() int {
	if m := s.active.Load(); m != nil {
		return m.Version
	}
	return 0
}

// Promote installs a trained model as the active scorer, assigning it the
// next version. The displaced model is retained for Rollback.
func (s *Scorer) Promote(m *Model) {
	s.mu.Lock()
	s.version++
	m.Version = s.version
	s.previous = s.active.Swap(m)
	s.mu.Unlock()

	metrics.ActiveModelVersion.Set(float64(m.Version))
	s.logger.Info().
		Int("version", m.Version).
		Int("samples", m.SampleCount).
		Float64("holdout_mse", m.HoldoutMSE).
		Msg("Model promoted")
}

// Restore installs a previously persisted model, keeping its stored version
// and advancing the version counter past it. Used at startup so versions
// stay monotonic across restarts.
func (s *Scorer) Restore(m *Model) {
	s.mu.Lock()
	if m.Version > s.version {
		s.version = m.Version
	}
	s.previous = s.active.Swap(m)
	s.mu.Unlock()

	metrics.ActiveModelVersion.Set(float64(m.Version))
	s.logger.Info().Int("version", m.Version).Msg("Model restored from disk")
}

// Rollback reinstates the previously active model. It is a no-op when no
// previous model exists.
func (s *Scorer) Rollback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.previous == nil {
		return false
	}
	s.active.Store(s.previous)
	s.previous = nil

	metrics.ActiveModelVersion.Set(float64(s.active.Load().Version))
	s.logger.Warn().Int("version", s.active.Load().Version).Msg("Model rolled back")
	return true
}

// Score produces the raw score for one candidate. historyCount is the
// candidate's lifetime hosting-record count; candidates below the cold-start
// threshold always take the heuristic path. model is the snapshot the caller
// pinned for the whole batch (may be nil).
func (s *Scorer) Score(model *Model, fv FeatureVector, historyCount int) ScoreResult {
	if historyCount >= s.coldStartThreshold {
		if model != nil {
			metrics.ScorerPath.WithLabelValues(string(PathModel)).Inc()
			return ScoreResult{Raw: model.Predict(fv), Path: PathModel}
		}
		// Enough history for the model path, but nothing is promoted.
		s.logger.Debug().Err(ErrModelUnavailable).Int("history", historyCount).Msg("Scoring through heuristic")
	}
	metrics.ScorerPath.WithLabelValues(string(PathHeuristic)).Inc()
	return ScoreResult{Raw: heuristicScore(fv), Path: PathHeuristic}
}

// heuristicScore is the cold-start scoring rule: a fixed weighted blend of
// the same features the model consumes, clipped to [0,1]. Feedback enters as
// a signed deviation from the scale midpoint.
func heuristicScore(fv FeatureVector) float64 {
	score := heuristicBase +
		heuristicConversionW*fv.ConversionRate +
		heuristicSuccessW*fv.SuccessRate +
		heuristicFeedbackW*(fv.AvgFeedback-3.0) +
		heuristicAreaMatchW*fv.AreaMatch +
		heuristicPriceAlignW*fv.PriceAlignment +
		heuristicTierW*fv.TierOrdinal

	typeBreadth := heuristicPropertyTypeW * fv.PropertyTypeCount
	if typeBreadth > heuristicPropertyTypeMx {
		typeBreadth = heuristicPropertyTypeMx
	}
	return clip01(score + typeBreadth)
}
