// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

// Package main is the entry point for the open-pair server.
//
// Open-Pair recommends which agent should host each open house, balancing
// predicted success against fair rotation of hosting opportunities.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered koanf sources (defaults, config.yaml, OPENPAIR_* env)
//  2. Store: Badger database for hosting records, aggregates, and reference data
//  3. Engine: feature extraction, scoring, fairness adjustment, tier diversity
//  4. Model store: restore the last promoted scoring model, if any
//  5. Feedback ingestor: idempotent outcome ingestion wired to cache invalidation
//  6. Supervisor tree: HTTP server plus retraining and store GC jobs under suture
//
// # Configuration
//
// Set OPENPAIR_CONFIG to point at a YAML config file, or override individual
// keys with OPENPAIR_* environment variables (OPENPAIR_SERVER_PORT=8080).
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: in-flight requests drain
// within the configured timeout, then the store closes.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tlogandesigns/open-pair/internal/api"
	"github.com/tlogandesigns/open-pair/internal/calendar"
	"github.com/tlogandesigns/open-pair/internal/config"
	"github.com/tlogandesigns/open-pair/internal/directory"
	"github.com/tlogandesigns/open-pair/internal/feedback"
	"github.com/tlogandesigns/open-pair/internal/logging"
	"github.com/tlogandesigns/open-pair/internal/models"
	"github.com/tlogandesigns/open-pair/internal/notify"
	"github.com/tlogandesigns/open-pair/internal/recommend"
	"github.com/tlogandesigns/open-pair/internal/recommend/reranking"
	"github.com/tlogandesigns/open-pair/internal/recommend/storage"
	"github.com/tlogandesigns/open-pair/internal/store"
	"github.com/tlogandesigns/open-pair/internal/supervisor"
	"github.com/tlogandesigns/open-pair/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Configuration load failed")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Timestamp: true,
	})
	logger := logging.Logger()
	logger.Info().
		Str("addr", cfg.Server.Addr()).
		Bool("in_memory", cfg.Storage.InMemory).
		Msg("Starting open-pair")

	st, err := store.Open(store.Options{Dir: cfg.Storage.Dir, InMemory: cfg.Storage.InMemory}, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Store open failed")
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("Store close failed")
		}
	}()

	dir := directory.New(st.DB())
	cal := calendar.New(st.DB(), dir)

	engine, err := recommend.NewEngine(engineConfig(cfg), logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Engine init failed")
	}
	engine.SetDataProvider(&engineProvider{dir: dir, store: st})
	engine.SetAvailabilityChecker(&availabilityAdapter{cal: cal})
	engine.RegisterReranker(reranking.NewTierDiversity(cfg.Fairness.MaxPerTier, cfg.Fairness.DiversityTolerance))

	modelStore := restoreModel(cfg, engine, logger)

	ingestor := feedback.New(st, dir, cfg.Fairness.PeriodDays, logger)
	ingestor.OnIngest(engine.InvalidateCache)

	sink := notify.NewLogSink(logger)
	server := api.NewServer(engine, dir, cal, ingestor, sink, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAPIService(services.NewHTTPService(httpServer, cfg.Server.ShutdownTimeout))
	var saver services.ModelSaver
	if modelStore != nil {
		saver = modelStore
	}
	tree.AddJobService(services.NewRetrainService(engine, engine.Scorer(), saver, services.RetrainConfig{
		TrainOnStartup: cfg.Training.TrainOnStartup,
		Interval:       cfg.Training.Interval,
	}, logger))
	tree.AddJobService(services.NewGCService(st, time.Hour, logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Msg("Supervisor tree starting")
	if err := tree.Serve(ctx); err != nil && !isShutdown(err) {
		logger.Error().Err(err).Msg("Supervisor tree exited")
	}
	logger.Info().Msg("Shutdown complete")
}

func isShutdown(err error) bool {
	return err == context.Canceled || err == context.DeadlineExceeded //nolint:errorlint // suture returns the root context error unchanged
}

// engineConfig bridges the koanf configuration into the engine's config.
func engineConfig(cfg *config.Config) *recommend.Config {
	ec := recommend.DefaultConfig()
	ec.TopN = cfg.Recommend.TopN
	ec.ColdStartThreshold = cfg.Recommend.ColdStartThreshold
	ec.MaxCandidates = cfg.Recommend.MaxCandidates
	ec.RecencyHalfLifeDays = cfg.Recommend.RecencyHalfLifeDays
	ec.Quotas = map[models.Tier]recommend.Quota{
		models.TierJunior: {Min: cfg.Fairness.Junior.Min, Max: cfg.Fairness.Junior.Max},
		models.TierMid:    {Min: cfg.Fairness.Mid.Min, Max: cfg.Fairness.Mid.Max},
		models.TierSenior: {Min: cfg.Fairness.Senior.Min, Max: cfg.Fairness.Senior.Max},
	}
	ec.PeriodDays = cfg.Fairness.PeriodDays
	ec.DeficitBonusPerSlot = cfg.Fairness.DeficitBonusPerSlot
	ec.DeficitBonusCap = cfg.Fairness.DeficitBonusCap
	ec.OverloadPenaltyPerSlot = cfg.Fairness.OverloadPenaltyPerSlot
	ec.OverloadPenaltyCap = cfg.Fairness.OverloadPenaltyCap
	ec.RecencyBonusPerDay = cfg.Fairness.RecencyBonusPerDay
	ec.RecencyGraceDays = cfg.Fairness.RecencyGraceDays
	ec.RecencyBonusCap = cfg.Fairness.RecencyBonusCap
	ec.NeverHostedBonus = cfg.Fairness.NeverHostedBonus
	ec.MaxPerTier = cfg.Fairness.MaxPerTier
	ec.DiversityTolerance = cfg.Fairness.DiversityTolerance
	ec.Training = recommend.TrainingConfig{
		Timeout:         cfg.Training.Timeout,
		MinRecords:      cfg.Training.MinRecords,
		HoldoutFraction: cfg.Training.HoldoutFraction,
		ErrorTolerance:  cfg.Training.ErrorTolerance,
		Ridge:           cfg.Training.Ridge,
	}
	return ec
}

// restoreModel opens the model store and reinstalls the latest persisted
// model. Failures downgrade to heuristic scoring rather than aborting boot.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func restoreModel(cfg *config.Config, engine *recommend.Engine, logger zerolog.Logger) *storage.Store {
	if cfg.Storage.ModelDir == "" {
		return nil
	}
	modelStore, err := storage.NewStore(cfg.Storage.ModelDir)
	if err != nil {
		logger.Warn().Err(err).Msg("Model store unavailable, heuristic scoring only")
		return nil
	}
	if modelStore.Latest() > 0 {
		model, meta, err := modelStore.Load(0)
		if err != nil {
			logger.Warn().Err(err).Msg("Stored model load failed, heuristic scoring until retrain")
		} else {
			engine.Scorer().Restore(model)
			logger.Info().
				Int("version", meta.Version).
				Time("trained_at", meta.TrainedAt).
				Msg("Scoring model restored")
		}
	}
	return modelStore
}
