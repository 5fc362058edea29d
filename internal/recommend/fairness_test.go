// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package recommend

import (
	"testing"

	"github.com/tlogandesigns/open-pair/internal/models"
)

func TestAdjustDeterministic(t *testing.T) {
	a := NewAdjuster(DefaultConfig())
	ps := PeriodStats{HostedThisPeriod: 1, HostedTotal: 5, LastHostedAt: testNow.AddDate(0, 0, -20)}

	s1, e1 := a.Adjust(models.TierMid, 0.6, ps, testNow)
	s2, e2 := a.Adjust(models.TierMid, 0.6, ps, testNow)

	if s1 != s2 {
		t.Errorf("same inputs gave %g and %g", s1, s2)
	}
	if e1.FairnessScore != e2.FairnessScore || e1.Dominant != e2.Dominant {
		t.Errorf("explanations differ: %+v vs %+v", e1, e2)
	}
}

func TestAdjustDeficitBonus(t *testing.T) {
	cfg := DefaultConfig()
	a := NewAdjuster(cfg)

	tests := []struct {
		name      string
		tier      models.Tier
		hosted    int
		wantBonus float64
	}{
		{"mid two below minimum", models.TierMid, 1, 0.30}, // 2*0.15 capped at 0.30
		{"mid one below minimum", models.TierMid, 2, 0.15},
		{"mid at minimum", models.TierMid, 3, 0},
		{"senior far below, capped", models.TierSenior, 0, 0.30},
		{"junior one below", models.TierJunior, 1, 0.15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := PeriodStats{HostedThisPeriod: tt.hosted, HostedTotal: 10, LastHostedAt: testNow.AddDate(0, 0, -1)}
			_, exp := a.Adjust(tt.tier, 0.5, ps, testNow)
			if !almostEqual(exp.DeficitBonus, tt.wantBonus) {
				t.Errorf("DeficitBonus = %g, want %g", exp.DeficitBonus, tt.wantBonus)
			}
		})
	}
}

func TestAdjustOverloadPenalty(t *testing.T) {
	a := NewAdjuster(DefaultConfig())

	tests := []struct {
		name        string
		hosted      int
		wantPenalty float64
	}{
		{"at maximum", 12, 0},
		{"one over", 13, 0.10},
		{"two over", 14, 0.20},
		{"far over, capped", 20, 0.30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := PeriodStats{HostedThisPeriod: tt.hosted, HostedTotal: 40, LastHostedAt: testNow.AddDate(0, 0, -1)}
			_, exp := a.Adjust(models.TierMid, 0.5, ps, testNow)
			if !almostEqual(exp.OverloadPenalty, tt.wantPenalty) {
				t.Errorf("OverloadPenalty = %g, want %g", exp.OverloadPenalty, tt.wantPenalty)
			}
		})
	}
}

func TestAdjustRecencyBonus(t *testing.T) {
	a := NewAdjuster(DefaultConfig())

	t.Run("never hosted gets flat bonus", func(t *testing.T) {
		_, exp := a.Adjust(models.TierJunior, 0.5, PeriodStats{}, testNow)
		if !almostEqual(exp.RecencyBonus, 0.20) {
			t.Errorf("RecencyBonus = %g, want never-hosted 0.20", exp.RecencyBonus)
		}
	})

	t.Run("inside grace window", func(t *testing.T) {
		ps := PeriodStats{HostedThisPeriod: 5, HostedTotal: 5, LastHostedAt: testNow.AddDate(0, 0, -7)}
		_, exp := a.Adjust(models.TierMid, 0.5, ps, testNow)
		if exp.RecencyBonus != 0 {
			t.Errorf("RecencyBonus = %g inside grace, want 0", exp.RecencyBonus)
		}
	})

	t.Run("past grace window accrues per day", func(t *testing.T) {
		ps := PeriodStats{HostedThisPeriod: 5, HostedTotal: 5, LastHostedAt: testNow.AddDate(0, 0, -24)}
		_, exp := a.Adjust(models.TierMid, 0.5, ps, testNow)
		if !almostEqual(exp.RecencyBonus, 0.10) { // 10 days past grace * 0.01
			t.Errorf("RecencyBonus = %g, want 0.10", exp.RecencyBonus)
		}
	})

	t.Run("capped", func(t *testing.T) {
		ps := PeriodStats{HostedThisPeriod: 5, HostedTotal: 5, LastHostedAt: testNow.AddDate(0, -6, 0)}
		_, exp := a.Adjust(models.TierMid, 0.5, ps, testNow)
		if !almostEqual(exp.RecencyBonus, 0.20) {
			t.Errorf("RecencyBonus = %g, want cap 0.20", exp.RecencyBonus)
		}
	})
}

func TestAdjustBounds(t *testing.T) {
	a := NewAdjuster(DefaultConfig())

	// Every combination of extremes stays in [0,1].
	raws := []float64{0, 0.5, 1}
	states := []PeriodStats{
		{},
		{HostedThisPeriod: 0, HostedTotal: 0},
		{HostedThisPeriod: 50, HostedTotal: 500, LastHostedAt: testNow},
		{HostedThisPeriod: 1, HostedTotal: 3, LastHostedAt: testNow.AddDate(-1, 0, 0)},
	}
	for _, raw := range raws {
		for _, ps := range states {
			for _, tier := range models.AllTiers() {
				score, _ := a.Adjust(tier, raw, ps, testNow)
				if score < 0 || score > 1 {
					t.Errorf("score %g outside [0,1] for raw=%g tier=%v ps=%+v", score, raw, tier, ps)
				}
			}
		}
	}
}

func TestAdjustMonotonicInDeficit(t *testing.T) {
	a := NewAdjuster(DefaultConfig())
	last := testNow.AddDate(0, 0, -1)

	// Fewer hostings this period never scores lower, all else equal.
	prev := -1.0
	for hosted := 16; hosted >= 0; hosted-- {
		ps := PeriodStats{HostedThisPeriod: hosted, HostedTotal: 50, LastHostedAt: last}
		score, _ := a.Adjust(models.TierSenior, 0.5, ps, testNow)
		if score < prev {
			t.Fatalf("score dropped to %g at hosted=%d (prev %g)", score, hosted, prev)
		}
		prev = score
	}
}

func TestAdjustDominantTerm(t *testing.T) {
	a := NewAdjuster(DefaultConfig())

	_, exp := a.Adjust(models.TierMid, 0.5, PeriodStats{}, testNow)
	if exp.Dominant != "deficit_bonus" && exp.Dominant != "recency_bonus" {
		t.Errorf("Dominant = %q, want a bonus term", exp.Dominant)
	}

	balanced := PeriodStats{HostedThisPeriod: 5, HostedTotal: 20, LastHostedAt: testNow.AddDate(0, 0, -2)}
	_, exp = a.Adjust(models.TierMid, 0.5, balanced, testNow)
	if exp.Dominant != "none" {
		t.Errorf("Dominant = %q for balanced agent, want none", exp.Dominant)
	}
}

func TestRotationScore(t *testing.T) {
	a := NewAdjuster(DefaultConfig())

	deserving := a.RotationScore(models.TierJunior, PeriodStats{}, testNow)
	overloaded := a.RotationScore(models.TierJunior, PeriodStats{
		HostedThisPeriod: 20, HostedTotal: 100, LastHostedAt: testNow,
	}, testNow)

	if deserving <= 0 {
		t.Errorf("never-hosted rotation score = %g, want positive", deserving)
	}
	if overloaded >= 0 {
		t.Errorf("overloaded rotation score = %g, want negative", overloaded)
	}
}

// Regression: the period anchor must be respected when projecting stats.
func TestEffectivePeriodStats(t *testing.T) {
	stats := &models.AggregateStats{
		HostedTotal:      10,
		HostedThisPeriod: 4,
		PeriodStart:      testNow.AddDate(0, 0, -45),
		LastHostedAt:     testNow.AddDate(0, 0, -40),
	}
	ps := effectivePeriodStats(stats, testNow, 30)
	if ps.HostedThisPeriod != 0 {
		t.Errorf("HostedThisPeriod = %d after expired period, want 0", ps.HostedThisPeriod)
	}
	if ps.HostedTotal != 10 {
		t.Errorf("HostedTotal = %d, want 10", ps.HostedTotal)
	}

	fresh := &models.AggregateStats{HostedThisPeriod: 4, HostedTotal: 10, PeriodStart: testNow.AddDate(0, 0, -10)}
	if got := effectivePeriodStats(fresh, testNow, 30); got.HostedThisPeriod != 4 {
		t.Errorf("HostedThisPeriod = %d inside period, want 4", got.HostedThisPeriod)
	}

	if got := effectivePeriodStats(nil, testNow, 30); got.HostedTotal != 0 {
		t.Errorf("nil stats should project to zero values")
	}
}
