// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package recommend

import (
	"math"
	"time"

	"github.com/tlogandesigns/open-pair/internal/models"
)

// Adjuster applies the rotation-fairness adjustment to raw scores. It is a
// pure function of its inputs and the immutable config, so the same rotation
// state always yields the same adjusted score and explanation.
type Adjuster struct {
	cfg *Config
}

// NewAdjuster returns an Adjuster over the given configuration.
func NewAdjuster(cfg *Config) *Adjuster {
	return &Adjuster{cfg: cfg}
}

// Adjust applies deficit bonus, recency bonus, and overload penalty to a raw
// score and returns the clipped fairness score with a full explanation.
func (a *Adjuster) Adjust(tier models.Tier, raw float64, ps PeriodStats, now time.Time) (float64, FairnessExplanation) {
	exp := FairnessExplanation{RawScore: raw, Dominant: "none"}
	quota := a.cfg.QuotaFor(tier)

	// Below-minimum deficit bonus, scaled by how far under quota the agent
	// sits.
	if ps.HostedThisPeriod < quota.Min {
		deficit := quota.Min - ps.HostedThisPeriod
		exp.DeficitBonus = math.Min(float64(deficit)*a.cfg.DeficitBonusPerSlot, a.cfg.DeficitBonusCap)
		exp.Notes = append(exp.Notes, "below minimum monthly opportunities")
	}

	// Recency bonus: never-hosted agents get the flat bonus; otherwise the
	// bonus accrues per day past the grace window.
	if ps.HostedTotal == 0 {
		exp.RecencyBonus = a.cfg.NeverHostedBonus
		exp.Notes = append(exp.Notes, "never hosted an open house")
	} else if !ps.LastHostedAt.IsZero() {
		days := int(now.Sub(ps.LastHostedAt).Hours() / 24)
		if days > a.cfg.RecencyGraceDays {
			over := float64(days - a.cfg.RecencyGraceDays)
			exp.RecencyBonus = math.Min(over*a.cfg.RecencyBonusPerDay, a.cfg.RecencyBonusCap)
			exp.Notes = append(exp.Notes, "no recent hosting opportunities")
		}
	}

	// Above-maximum overload penalty, scaled by how far over quota.
	if quota.Max > 0 && ps.HostedThisPeriod > quota.Max {
		overload := ps.HostedThisPeriod - quota.Max
		exp.OverloadPenalty = math.Min(float64(overload)*a.cfg.OverloadPenaltyPerSlot, a.cfg.OverloadPenaltyCap)
		exp.Notes = append(exp.Notes, "above maximum monthly opportunities")
	}

	exp.FairnessScore = clip01(raw + exp.DeficitBonus + exp.RecencyBonus - exp.OverloadPenalty)
	exp.Dominant = dominantTerm(exp)
	return exp.FairnessScore, exp
}

// RotationScore is the fairness adjustment applied to a neutral base,
// exposing how strongly rotation currently favors an agent. Used by the
// fairness report, not by ranking.
func (a *Adjuster) RotationScore(tier models.Tier, ps PeriodStats, now time.Time) float64 {
	score, _ := a.Adjust(tier, 0.5, ps, now)
	return score - 0.5
}

func dominantTerm(exp FairnessExplanation) string {
	name, mag := "none", 0.0
	if exp.DeficitBonus > mag {
		name, mag = "deficit_bonus", exp.DeficitBonus
	}
	if exp.RecencyBonus > mag {
		name, mag = "recency_bonus", exp.RecencyBonus
	}
	if exp.OverloadPenalty > mag {
		name = "overload_penalty"
	}
	return name
}
