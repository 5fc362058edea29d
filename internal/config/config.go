// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

// Package config loads and validates the open-pair configuration.
//
// Configuration is layered with koanf: built-in defaults, then an optional
// YAML file, then environment variables (highest priority). The resulting
// Config is immutable after load; nothing in the application mutates it.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure.
type Config struct {
	// Server holds HTTP server settings.
	Server ServerConfig `koanf:"server"`

	// Logging holds log output settings.
	Logging LoggingConfig `koanf:"logging"`

	// Storage holds BadgerDB settings.
	Storage StorageConfig `koanf:"storage"`

	// Recommend holds recommendation engine settings.
	Recommend RecommendConfig `koanf:"recommend"`

	// Fairness holds rotation quota and adjustment settings.
	Fairness FairnessConfig `koanf:"fairness"`

	// Training holds model retraining settings.
	Training TrainingConfig `koanf:"training"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address.
	Host string `koanf:"host"`

	// Port is the listen port.
	Port int `koanf:"port"`

	// ReadTimeout bounds request header+body reads.
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// WriteTimeout bounds response writes.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimit is the per-IP request limit per minute. Zero disables.
	RateLimit int `koanf:"rate_limit"`

	// CORSOrigins lists allowed CORS origins.
	CORSOrigins []string `koanf:"cors_origins"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`
}

// StorageConfig holds BadgerDB settings.
type StorageConfig struct {
	// Dir is the data directory for the Badger store.
	Dir string `koanf:"dir"`

	// InMemory runs Badger without disk persistence. Used in tests.
	InMemory bool `koanf:"in_memory"`

	// ModelDir is where trained model artifacts are persisted.
	ModelDir string `koanf:"model_dir"`
}

// RecommendConfig holds recommendation engine settings.
type RecommendConfig struct {
	// TopN is the number of agents returned per recommendation list.
	TopN int `koanf:"top_n"`

	// ColdStartThreshold is the minimum hosting records before the trained
	// model is used. Agents below it are scored by the heuristic.
	ColdStartThreshold int `koanf:"cold_start_threshold"`

	// MaxCandidates caps how many agents are considered per request.
	MaxCandidates int `koanf:"max_candidates"`

	// RecencyHalfLifeDays shapes the recency-decay feature: days since
	// last hosting at which the feature reaches 0.5.
	RecencyHalfLifeDays float64 `koanf:"recency_half_life_days"`
}

// TierQuota is the rotation quota for one tier: hosting opportunities per
// rolling period.
type TierQuota struct {
	// Min is the minimum monthly hosting count before deficit bonuses apply.
	Min int `koanf:"min"`

	// Max is the maximum monthly hosting count before overload penalties apply.
	Max int `koanf:"max"`
}

// FairnessConfig holds rotation quota tables and adjustment magnitudes.
// All bonus and penalty values live on the same [0,1] scale as scores.
type FairnessConfig struct {
	// Junior, Mid, and Senior are the per-tier monthly quotas.
	Junior TierQuota `koanf:"junior"`
	Mid    TierQuota `koanf:"mid"`
	Senior TierQuota `koanf:"senior"`

	// PeriodDays is the rolling rotation period length.
	PeriodDays int `koanf:"period_days"`

	// DeficitBonusPerSlot is the bonus per missing hosting below the
	// tier minimum.
	DeficitBonusPerSlot float64 `koanf:"deficit_bonus_per_slot"`

	// DeficitBonusCap bounds the total deficit bonus.
	DeficitBonusCap float64 `koanf:"deficit_bonus_cap"`

	// OverloadPenaltyPerSlot is the penalty per hosting above the tier
	// maximum.
	OverloadPenaltyPerSlot float64 `koanf:"overload_penalty_per_slot"`

	// OverloadPenaltyCap bounds the total overload penalty.
	OverloadPenaltyCap float64 `koanf:"overload_penalty_cap"`

	// RecencyBonusPerDay is the bonus per day since last hosting, counted
	// after RecencyGraceDays.
	RecencyBonusPerDay float64 `koanf:"recency_bonus_per_day"`

	// RecencyGraceDays is how long after a hosting no recency bonus accrues.
	RecencyGraceDays int `koanf:"recency_grace_days"`

	// RecencyBonusCap bounds the recency bonus.
	RecencyBonusCap float64 `koanf:"recency_bonus_cap"`

	// NeverHostedBonus applies to agents with no hosting history at all.
	NeverHostedBonus float64 `koanf:"never_hosted_bonus"`

	// MaxPerTier caps how many of the top-N may share one tier before the
	// diversity pass substitutes.
	MaxPerTier int `koanf:"max_per_tier"`

	// DiversityTolerance is the widest fairness-score gap a diversity
	// substitution may bridge. A substitute more than this much weaker
	// than the agent it displaces is rejected.
	DiversityTolerance float64 `koanf:"diversity_tolerance"`
}

// Quota returns the quota for the named tier string (junior, mid, senior).
func (f FairnessConfig) Quota(tier string) TierQuota {
	switch tier {
	case "junior":
		return f.Junior
	case "senior":
		return f.Senior
	default:
		return f.Mid
	}
}

// TrainingConfig holds model retraining settings.
type TrainingConfig struct {
	// Interval is how often the retrain service runs. Zero disables the
	// schedule; retraining can still be triggered through the API.
	Interval time.Duration `koanf:"interval"`

	// Timeout bounds a single retraining run.
	Timeout time.Duration `koanf:"timeout"`

	// MinRecords is the minimum hosting records before a refit is attempted.
	MinRecords int `koanf:"min_records"`

	// HoldoutFraction is the share of records held out for validation.
	HoldoutFraction float64 `koanf:"holdout_fraction"`

	// ErrorTolerance is how much worse (in held-out MSE) a candidate model
	// may be than the active one and still be promoted.
	ErrorTolerance float64 `koanf:"error_tolerance"`

	// Ridge is the L2 regularization strength for the regression fit.
	Ridge float64 `koanf:"ridge"`

	// TrainOnStartup triggers a training pass when the service starts.
	TrainOnStartup bool `koanf:"train_on_startup"`
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Recommend.TopN <= 0 {
		return fmt.Errorf("recommend.top_n must be positive, got %d", c.Recommend.TopN)
	}
	if c.Recommend.ColdStartThreshold < 0 {
		return fmt.Errorf("recommend.cold_start_threshold must be non-negative, got %d", c.Recommend.ColdStartThreshold)
	}
	if c.Recommend.RecencyHalfLifeDays <= 0 {
		return fmt.Errorf("recommend.recency_half_life_days must be positive, got %g", c.Recommend.RecencyHalfLifeDays)
	}

	for tier, q := range map[string]TierQuota{
		"junior": c.Fairness.Junior,
		"mid":    c.Fairness.Mid,
		"senior": c.Fairness.Senior,
	} {
		if q.Min < 0 || q.Max < 0 {
			return fmt.Errorf("fairness.%s quota must be non-negative, got min=%d max=%d", tier, q.Min, q.Max)
		}
		if q.Min > q.Max {
			return fmt.Errorf("fairness.%s quota min %d exceeds max %d", tier, q.Min, q.Max)
		}
	}

	if c.Fairness.PeriodDays <= 0 {
		return fmt.Errorf("fairness.period_days must be positive, got %d", c.Fairness.PeriodDays)
	}
	for name, v := range map[string]float64{
		"deficit_bonus_cap":    c.Fairness.DeficitBonusCap,
		"overload_penalty_cap": c.Fairness.OverloadPenaltyCap,
		"recency_bonus_cap":    c.Fairness.RecencyBonusCap,
		"never_hosted_bonus":   c.Fairness.NeverHostedBonus,
		"diversity_tolerance":  c.Fairness.DiversityTolerance,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("fairness.%s %g outside [0,1]", name, v)
		}
	}
	if c.Fairness.MaxPerTier <= 0 {
		return fmt.Errorf("fairness.max_per_tier must be positive, got %d", c.Fairness.MaxPerTier)
	}

	if c.Training.HoldoutFraction <= 0 || c.Training.HoldoutFraction >= 1 {
		return fmt.Errorf("training.holdout_fraction %g outside (0,1)", c.Training.HoldoutFraction)
	}
	if c.Training.ErrorTolerance < 0 {
		return fmt.Errorf("training.error_tolerance must be non-negative, got %g", c.Training.ErrorTolerance)
	}
	if c.Training.MinRecords < 2 {
		return fmt.Errorf("training.min_records must be at least 2, got %d", c.Training.MinRecords)
	}

	return nil
}
