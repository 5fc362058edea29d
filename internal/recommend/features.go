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

// Default values substituted when an agent has no history for a signal.
// Conversion and success priors are deliberately low so that sparse history
// does not outrank demonstrated performance; feedback defaults to the scale
// midpoint.
const (
	defaultConversionRate = 0.10
	defaultSuccessRate    = 0.05
	defaultFeedbackScore  = 3.0
	neutralPriceAlignment = 0.5
)

// Extractor derives a fixed-width feature vector from an agent's profile,
// aggregate history, and the listing under consideration. Extraction is pure
// and never fails: missing history produces documented defaults, not errors.
type Extractor struct {
	halfLifeDays float64
}

// NewExtractor returns an Extractor with the given recency half-life in days.
func NewExtractor(halfLifeDays float64) *Extractor {
	if halfLifeDays <= 0 {
		halfLifeDays = 14
	}
	return &Extractor{halfLifeDays: halfLifeDays}
}

// Extract builds the feature vector for one agent/listing pair. stats may be
// nil for an agent with no hosting history.
func (e *Extractor) Extract(agent *models.Agent, stats *models.AggregateStats, listing *models.Listing, now time.Time) FeatureVector {
	fv := FeatureVector{
		ConversionRate: defaultConversionRate,
		SuccessRate:    defaultSuccessRate,
		AvgFeedback:    defaultFeedbackScore,
		RecencyDecay:   1.0,
		PriceAlignment: neutralPriceAlignment,
		TierOrdinal:    float64(agent.Tier()),
	}

	fv.AreaMatch = areaMatchFromProfile(agent, listing)

	if stats == nil {
		return fv
	}

	if stats.TotalAttendees > 0 {
		fv.ConversionRate = stats.ConversionRate
	}
	if stats.TotalLeads > 0 {
		fv.SuccessRate = stats.SuccessRate
	}
	if stats.FeedbackCount > 0 {
		fv.AvgFeedback = stats.AvgFeedback
	}

	fv.RecencyDecay = e.recencyDecay(stats.LastHostedAt, now)
	fv.AreaMatch = math.Max(fv.AreaMatch, historicalZipFraction(stats, listing.ZipCode))
	fv.PriceAlignment = priceAlignment(stats, listing.Price)
	fv.PropertyTypeCount = float64(len(stats.PropertyTypeCounts))
	fv.PeriodHostingCount = float64(stats.HostedThisPeriod)

	return fv
}

// recencyDecay maps time since last hosting into [0,1]: 0 immediately after
// hosting, approaching 1 as the gap grows, exactly 1 when the agent has never
// hosted. Uses days/(days+halfLife) so the value is 0.5 at the half-life.
func (e *Extractor) recencyDecay(last time.Time, now time.Time) float64 {
	if last.IsZero() {
		return 1.0
	}
	days := now.Sub(last).Hours() / 24
	if days <= 0 {
		return 0
	}
	return days / (days + e.halfLifeDays)
}

// areaMatchFromProfile is 1 when the listing's zip appears in the agent's
// declared expertise areas, 0 otherwise.
func areaMatchFromProfile(agent *models.Agent, listing *models.Listing) float64 {
	for _, zip := range agent.AreasOfExpertise {
		if zip == listing.ZipCode {
			return 1.0
		}
	}
	return 0
}

// historicalZipFraction is the share of the agent's hostings that took place
// in the listing's zip code.
func historicalZipFraction(stats *models.AggregateStats, zip string) float64 {
	if stats.HostedTotal == 0 {
		return 0
	}
	return float64(stats.ZipCounts[zip]) / float64(stats.HostedTotal)
}

// priceAlignment is 1 when the listing price falls inside the agent's
// historical hosting price range, decaying with the relative distance outside
// it. With no price history the value is neutral.
func priceAlignment(stats *models.AggregateStats, price float64) float64 {
	if stats.MinPrice <= 0 || stats.MaxPrice <= 0 || price <= 0 {
		return neutralPriceAlignment
	}
	if price >= stats.MinPrice && price <= stats.MaxPrice {
		return 1.0
	}
	var dist float64
	if price < stats.MinPrice {
		dist = (stats.MinPrice - price) / stats.MinPrice
	} else {
		dist = (price - stats.MaxPrice) / stats.MaxPrice
	}
	v := 1.0 - dist
	if v < 0 {
		return 0
	}
	return v
}
