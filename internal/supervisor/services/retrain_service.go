// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tlogandesigns/open-pair/internal/recommend"
)

// Trainer is the retraining surface of the engine. An interface keeps this
// package testable without the concrete engine.
type Trainer interface {
	Retrain(ctx context.Context) (recommend.RetrainStatus, error)
}

// ModelSaver persists promoted models. Optional.
type ModelSaver interface {
	Save(m *recommend.Model) error
}

// RetrainConfig holds the retraining schedule.
type RetrainConfig struct {
	// TrainOnStartup runs one retraining pass when the service starts.
	TrainOnStartup bool

	// Interval is the time between scheduled runs.
	Interval time.Duration
}

// RetrainService runs the retraining lifecycle under supervision: an
// optional startup pass, then a fixed-interval schedule. A rejected or
// skipped run is logged and the schedule continues; the service itself only
// exits on context cancellation.
type RetrainService struct {
	trainer Trainer
	scorer  interface{ Active() *recommend.Model }
	saver   ModelSaver
	config  RetrainConfig
	logger  zerolog.Logger
}

// NewRetrainService creates the retraining service. saver may be nil when
// model persistence is disabled.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRetrainService(trainer Trainer, scorer interface{ Active() *recommend.Model }, saver ModelSaver, cfg RetrainConfig, logger zerolog.Logger) *RetrainService {
	return &RetrainService{
		trainer: trainer,
		scorer:  scorer,
		saver:   saver,
		config:  cfg,
		logger:  logger.With().Str("service", "retrain").Logger(),
	}
}

// Serve implements suture.Service.
func (s *RetrainService) Serve(ctx context.Context) error {
	interval := s.config.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	s.logger.Info().
		Bool("train_on_startup", s.config.TrainOnStartup).
		Dur("interval", interval).
		Msg("Retraining service starting")

	if s.config.TrainOnStartup {
		s.run(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Retraining service shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *RetrainService) run(ctx context.Context) {
	status, err := s.trainer.Retrain(ctx)
	switch {
	case err == nil:
		s.logger.Info().
			Str("outcome", string(status.Outcome)).
			Int("samples", status.SampleCount).
			Int("model_version", status.ModelVersion).
			Msg("Retraining run finished")
		if status.Outcome == recommend.RetrainPromoted {
			s.persist()
		}
	case errors.Is(err, recommend.ErrRetrainValidationFailed):
		s.logger.Warn().
			Float64("candidate_mse", status.CandidateMSE).
			Float64("active_mse", status.ActiveMSE).
			Msg("Retraining rejected, previous model retained")
	case errors.Is(err, recommend.ErrTrainingInProgress):
		s.logger.Debug().Msg("Retraining already in progress, skipping")
	default:
		s.logger.Error().Err(err).Msg("Retraining failed")
	}
}

// persist writes the newly promoted model to disk so it survives restarts.
func (s *RetrainService) persist() {
	if s.saver == nil || s.scorer == nil {
		return
	}
	model := s.scorer.Active()
	if model == nil {
		return
	}
	if err := s.saver.Save(model); err != nil {
		s.logger.Warn().Err(err).Int("version", model.Version).Msg("Model persistence failed")
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *RetrainService) String() string {
	return "retrain-service"
}
