// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package recommend

import (
	"fmt"
	"time"

	"github.com/tlogandesigns/open-pair/internal/models"
)

// Quota is the rotation quota for one tier: minimum and maximum hosting
// opportunities per rolling period, min at most max, both non-negative.
type Quota struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Config contains all configuration for the recommendation engine.
// It is immutable once the engine is constructed.
type Config struct {
	// TopN is the length of a produced recommendation list.
	TopN int `json:"top_n"`

	// ColdStartThreshold is the minimum hosting records before the
	// trained model is used for an agent.
	ColdStartThreshold int `json:"cold_start_threshold"`

	// MaxCandidates caps how many agents are considered per request.
	MaxCandidates int `json:"max_candidates"`

	// RecencyHalfLifeDays shapes the recency-decay feature.
	RecencyHalfLifeDays float64 `json:"recency_half_life_days"`

	// Quotas maps each tier to its rotation quota.
	Quotas map[models.Tier]Quota `json:"quotas"`

	// PeriodDays is the rolling rotation period length.
	PeriodDays int `json:"period_days"`

	// DeficitBonusPerSlot and DeficitBonusCap control the below-minimum
	// rotation bonus.
	DeficitBonusPerSlot float64 `json:"deficit_bonus_per_slot"`
	DeficitBonusCap     float64 `json:"deficit_bonus_cap"`

	// OverloadPenaltyPerSlot and OverloadPenaltyCap control the
	// above-maximum rotation penalty.
	OverloadPenaltyPerSlot float64 `json:"overload_penalty_per_slot"`
	OverloadPenaltyCap     float64 `json:"overload_penalty_cap"`

	// RecencyBonusPerDay, RecencyGraceDays, and RecencyBonusCap control
	// the time-since-last-hosting bonus.
	RecencyBonusPerDay float64 `json:"recency_bonus_per_day"`
	RecencyGraceDays   int     `json:"recency_grace_days"`
	RecencyBonusCap    float64 `json:"recency_bonus_cap"`

	// NeverHostedBonus applies to agents with no history at all.
	NeverHostedBonus float64 `json:"never_hosted_bonus"`

	// MaxPerTier caps top-N entries per tier before diversity substitution.
	MaxPerTier int `json:"max_per_tier"`

	// DiversityTolerance is the widest fairness-score gap a diversity
	// substitution may bridge.
	DiversityTolerance float64 `json:"diversity_tolerance"`

	// Training holds retraining parameters.
	Training TrainingConfig `json:"training"`

	// CacheTTL bounds how long a recommendation list may be served from
	// cache. Zero disables caching.
	CacheTTL time.Duration `json:"cache_ttl"`
}

// TrainingConfig holds retraining parameters.
type TrainingConfig struct {
	// Timeout bounds one retraining run.
	Timeout time.Duration `json:"timeout"`

	// MinRecords is the minimum hosting records before a refit.
	MinRecords int `json:"min_records"`

	// HoldoutFraction is the share of records held out for validation.
	HoldoutFraction float64 `json:"holdout_fraction"`

	// ErrorTolerance is how much worse (held-out MSE) a candidate may be
	// than the active model and still be promoted.
	ErrorTolerance float64 `json:"error_tolerance"`

	// Ridge is the L2 regularization strength for the regression fit.
	Ridge float64 `json:"ridge"`
}

// DefaultConfig returns the calibrated default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		TopN:                3,
		ColdStartThreshold:  3,
		MaxCandidates:       500,
		RecencyHalfLifeDays: 14,
		Quotas: map[models.Tier]Quota{
			models.TierJunior: {Min: 2, Max: 8},
			models.TierMid:    {Min: 3, Max: 12},
			models.TierSenior: {Min: 4, Max: 16},
		},
		PeriodDays:             30,
		DeficitBonusPerSlot:    0.15,
		DeficitBonusCap:        0.30,
		OverloadPenaltyPerSlot: 0.10,
		OverloadPenaltyCap:     0.30,
		RecencyBonusPerDay:     0.01,
		RecencyGraceDays:       14,
		RecencyBonusCap:        0.20,
		NeverHostedBonus:       0.20,
		MaxPerTier:             2,
		DiversityTolerance:     0.10,
		Training: TrainingConfig{
			Timeout:         5 * time.Minute,
			MinRecords:      20,
			HoldoutFraction: 0.2,
			ErrorTolerance:  0.01,
			Ridge:           1.0,
		},
		CacheTTL: 5 * time.Minute,
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.TopN <= 0 {
		return fmt.Errorf("top_n must be positive, got %d", c.TopN)
	}
	if c.ColdStartThreshold < 0 {
		return fmt.Errorf("cold_start_threshold must be non-negative, got %d", c.ColdStartThreshold)
	}
	if c.RecencyHalfLifeDays <= 0 {
		return fmt.Errorf("recency_half_life_days must be positive, got %g", c.RecencyHalfLifeDays)
	}
	if c.PeriodDays <= 0 {
		return fmt.Errorf("period_days must be positive, got %d", c.PeriodDays)
	}
	if len(c.Quotas) == 0 {
		return fmt.Errorf("quotas must cover at least one tier")
	}
	for tier, q := range c.Quotas {
		if q.Min < 0 || q.Max < 0 {
			return fmt.Errorf("%s quota must be non-negative, got min=%d max=%d", tier, q.Min, q.Max)
		}
		if q.Min > q.Max {
			return fmt.Errorf("%s quota min %d exceeds max %d", tier, q.Min, q.Max)
		}
	}
	for name, v := range map[string]float64{
		"deficit_bonus_cap":    c.DeficitBonusCap,
		"overload_penalty_cap": c.OverloadPenaltyCap,
		"recency_bonus_cap":    c.RecencyBonusCap,
		"never_hosted_bonus":   c.NeverHostedBonus,
		"diversity_tolerance":  c.DiversityTolerance,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s %g outside [0,1]", name, v)
		}
	}
	if c.MaxPerTier <= 0 {
		return fmt.Errorf("max_per_tier must be positive, got %d", c.MaxPerTier)
	}
	if c.Training.HoldoutFraction <= 0 || c.Training.HoldoutFraction >= 1 {
		return fmt.Errorf("training holdout_fraction %g outside (0,1)", c.Training.HoldoutFraction)
	}
	if c.Training.MinRecords < 2 {
		return fmt.Errorf("training min_records must be at least 2, got %d", c.Training.MinRecords)
	}
	if c.Training.ErrorTolerance < 0 {
		return fmt.Errorf("training error_tolerance must be non-negative, got %g", c.Training.ErrorTolerance)
	}
	return nil
}

// QuotaFor returns the rotation quota for a tier. Tiers missing from the
// table get a zero quota, which disables both bonus and penalty.
func (c *Config) QuotaFor(tier models.Tier) Quota {
	return c.Quotas[tier]
}
