// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

// Package models defines the domain types shared across open-pair.
//
// Agents, listings, and open houses are reference data owned by the
// directory store; hosting records and aggregate stats are owned by the
// feedback pipeline and are the only data the recommendation core writes.
package models

import "time"

// Tier is the coarse experience bucket derived from years of experience.
// It is a pure, monotonic function of experience: more years never yields
// a lower tier.
type Tier int

const (
	// TierJunior covers agents with less than 2 years of experience.
	TierJunior Tier = iota
	// TierMid covers agents with 2 to 4 years of experience.
	TierMid
	// TierSenior covers agents with 5 or more years of experience.
	TierSenior
)

// tier thresholds in years of experience
const (
	midTierYears    = 2
	seniorTierYears = 5
)

// TierForExperience derives the tier from years of experience.
func TierForExperience(years int) Tier {
	switch {
	case years < midTierYears:
		return TierJunior
	case years < seniorTierYears:
		return TierMid
	default:
		return TierSenior
	}
}

// String returns a human-readable name for the tier.
func (t Tier) String() string {
	switch t {
	case TierJunior:
		return "junior"
	case TierMid:
		return "mid"
	case TierSenior:
		return "senior"
	default:
		return "unknown"
	}
}

// AllTiers lists every tier in ascending order.
func AllTiers() []Tier {
	return []Tier{TierJunior, TierMid, TierSenior}
}

// PriceRange is a historical buyer price band an agent has worked in.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Agent is a snapshot of a worker who can host open houses.
// Owned by the directory store; the recommendation core only reads it.
type Agent struct {
	// ID is the unique agent identifier.
	ID string `json:"id"`

	// Name is the agent's display name.
	Name string `json:"name"`

	// Email is the agent's contact address.
	Email string `json:"email"`

	// LicenseNumber is the agent's real estate license number.
	LicenseNumber string `json:"license_number,omitempty"`

	// ExperienceYears is the agent's years of experience.
	ExperienceYears int `json:"experience_years"`

	// AreasOfExpertise lists zip codes the agent knows well.
	AreasOfExpertise []string `json:"areas_of_expertise,omitempty"`

	// BuyerPriceRanges lists historical buyer price bands.
	BuyerPriceRanges []PriceRange `json:"buyer_price_ranges,omitempty"`

	// Active indicates whether the agent can be recommended.
	Active bool `json:"active"`

	// CreatedAt is when the agent record was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the agent record was last modified.
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Tier returns the agent's experience tier. It is recomputed from
// ExperienceYears on every call so it can never go stale.
func (a *Agent) Tier() Tier {
	return TierForExperience(a.ExperienceYears)
}

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

// Listing statuses.
const (
	ListingActive  ListingStatus = "active"
	ListingPending ListingStatus = "pending"
	ListingSold    ListingStatus = "sold"
	ListingExpired ListingStatus = "expired"
)

// Listing is a property that open houses are scheduled for.
type Listing struct {
	// ID is the unique listing identifier.
	ID string `json:"id"`

	// MLSNumber is the MLS listing number.
	MLSNumber string `json:"mls_number"`

	// Address is the street address.
	Address string `json:"address"`

	// City and State locate the property.
	City  string `json:"city"`
	State string `json:"state"`

	// ZipCode is the area code used for expertise matching.
	ZipCode string `json:"zip_code"`

	// Price is the asking price.
	Price float64 `json:"price"`

	// Bedrooms and Bathrooms describe the property.
	Bedrooms  int     `json:"bedrooms,omitempty"`
	Bathrooms float64 `json:"bathrooms,omitempty"`

	// SquareFeet is the interior size.
	SquareFeet int `json:"square_feet,omitempty"`

	// PropertyType is the property category (single_family, condo, ...).
	PropertyType string `json:"property_type"`

	// Status is the listing lifecycle state.
	Status ListingStatus `json:"status"`

	// CreatedAt is when the listing record was created.
	CreatedAt time.Time `json:"created_at"`
}

// OpenHouseStatus is the lifecycle state of an open house.
type OpenHouseStatus string

// Open house statuses.
const (
	OpenHouseScheduled OpenHouseStatus = "scheduled"
	OpenHouseCompleted OpenHouseStatus = "completed"
	OpenHouseCancelled OpenHouseStatus = "cancelled"
)

// OpenHouse is a scheduled hosting event for a listing.
type OpenHouse struct {
	// ID is the unique open house identifier.
	ID string `json:"id"`

	// ListingID references the listing being shown.
	ListingID string `json:"listing_id"`

	// HostAgentID is the agent assigned to host, if any.
	HostAgentID string `json:"host_agent_id,omitempty"`

	// StartTime and EndTime bound the scheduled window.
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// Status is the open house lifecycle state.
	Status OpenHouseStatus `json:"status"`

	// CreatedAt is when the open house record was created.
	CreatedAt time.Time `json:"created_at"`

	// Notes holds free-form scheduling notes.
	Notes string `json:"notes,omitempty"`
}

// OutcomeMetrics captures the measured results of a completed open house.
// All counts are non-negative; FeedbackScore is on a 1-5 scale, zero when
// no feedback was collected.
type OutcomeMetrics struct {
	// Attendees is the number of visitors.
	Attendees int `json:"attendees"`

	// Leads is the number of leads generated.
	Leads int `json:"leads"`

	// FollowUps is the number of follow-up appointments scheduled.
	FollowUps int `json:"follow_ups"`

	// Offers is the number of offers received.
	Offers int `json:"offers"`

	// FeedbackScore is the average visitor feedback (1-5, 0 = none).
	FeedbackScore float64 `json:"feedback_score"`
}

// HostingRecord is the append-only outcome record for a completed open
// house. At most one record exists per open house.
type HostingRecord struct {
	// ID is the unique record identifier.
	ID string `json:"id"`

	// OpenHouseID references the completed open house.
	OpenHouseID string `json:"open_house_id"`

	// AgentID references the hosting agent.
	AgentID string `json:"agent_id"`

	// ListingID references the listing, captured for training features.
	ListingID string `json:"listing_id"`

	// ZipCode, Price, and PropertyType snapshot the listing attributes at
	// completion time so history survives listing edits.
	ZipCode      string  `json:"zip_code"`
	Price        float64 `json:"price"`
	PropertyType string  `json:"property_type"`

	// HostedAt is the start time of the hosted open house.
	HostedAt time.Time `json:"hosted_at"`

	// Outcome holds the measured results.
	Outcome OutcomeMetrics `json:"outcome"`

	// RecordedAt is when the record was ingested.
	RecordedAt time.Time `json:"recorded_at"`
}

// AggregateStats is the rolling per-agent aggregate derived exclusively
// from hosting records. It is never edited directly; the feedback ingestor
// is its sole writer and replaces it wholesale on each update.
type AggregateStats struct {
	// AgentID references the agent.
	AgentID string `json:"agent_id"`

	// HostedTotal is the lifetime number of hosting records.
	HostedTotal int `json:"hosted_total"`

	// HostedThisPeriod is the hosting count in the current rotation period.
	HostedThisPeriod int `json:"hosted_this_period"`

	// PeriodStart anchors the current rotation period.
	PeriodStart time.Time `json:"period_start"`

	// TotalAttendees, TotalLeads, and TotalOffers are lifetime sums used
	// to derive the rolling rates.
	TotalAttendees int `json:"total_attendees"`
	TotalLeads     int `json:"total_leads"`
	TotalOffers    int `json:"total_offers"`

	// ConversionRate is leads/attendees over all records.
	ConversionRate float64 `json:"conversion_rate"`

	// SuccessRate is offers/leads over all records.
	SuccessRate float64 `json:"success_rate"`

	// FeedbackSum and FeedbackCount back the rolling feedback average.
	FeedbackSum   float64 `json:"feedback_sum"`
	FeedbackCount int     `json:"feedback_count"`

	// AvgFeedback is the rolling average feedback score.
	AvgFeedback float64 `json:"avg_feedback"`

	// LastHostedAt is the start time of the most recent hosted open house.
	// Zero when the agent has never hosted.
	LastHostedAt time.Time `json:"last_hosted_at,omitempty"`

	// ZipCounts counts hosted open houses per zip code.
	ZipCounts map[string]int `json:"zip_counts,omitempty"`

	// PropertyTypeCounts counts hosted open houses per property type.
	PropertyTypeCounts map[string]int `json:"property_type_counts,omitempty"`

	// MinPrice and MaxPrice bound the prices the agent has hosted at.
	MinPrice float64 `json:"min_price,omitempty"`
	MaxPrice float64 `json:"max_price,omitempty"`

	// UpdatedAt is when the aggregate was last rewritten.
	UpdatedAt time.Time `json:"updated_at"`
}

// Apply folds one hosting record into the aggregate. The record's HostedAt
// is the clock: a record past the current rotation period re-anchors the
// period before counting. Both the feedback ingestor and training replay use
// this so live aggregates and reconstructed ones never diverge.
func (s *AggregateStats) Apply(rec *HostingRecord, periodDays int) {
	if s.PeriodStart.IsZero() {
		s.PeriodStart = rec.HostedAt
	} else if rec.HostedAt.Sub(s.PeriodStart) >= time.Duration(periodDays)*24*time.Hour {
		s.PeriodStart = rec.HostedAt
		s.HostedThisPeriod = 0
	}

	s.HostedTotal++
	s.HostedThisPeriod++

	s.TotalAttendees += rec.Outcome.Attendees
	s.TotalLeads += rec.Outcome.Leads
	s.TotalOffers += rec.Outcome.Offers
	if s.TotalAttendees > 0 {
		s.ConversionRate = float64(s.TotalLeads) / float64(s.TotalAttendees)
	}
	if s.TotalLeads > 0 {
		s.SuccessRate = float64(s.TotalOffers) / float64(s.TotalLeads)
	}

	if rec.Outcome.FeedbackScore > 0 {
		s.FeedbackSum += rec.Outcome.FeedbackScore
		s.FeedbackCount++
		s.AvgFeedback = s.FeedbackSum / float64(s.FeedbackCount)
	}

	if rec.HostedAt.After(s.LastHostedAt) {
		s.LastHostedAt = rec.HostedAt
	}

	if rec.ZipCode != "" {
		if s.ZipCounts == nil {
			s.ZipCounts = make(map[string]int)
		}
		s.ZipCounts[rec.ZipCode]++
	}
	if rec.PropertyType != "" {
		if s.PropertyTypeCounts == nil {
			s.PropertyTypeCounts = make(map[string]int)
		}
		s.PropertyTypeCounts[rec.PropertyType]++
	}
	if rec.Price > 0 {
		if s.MinPrice == 0 || rec.Price < s.MinPrice {
			s.MinPrice = rec.Price
		}
		if rec.Price > s.MaxPrice {
			s.MaxPrice = rec.Price
		}
	}

	s.UpdatedAt = rec.RecordedAt
}

// Clone returns a deep copy of the stats. Readers hold clones so the
// ingestor can replace the stored value without racing them.
func (s *AggregateStats) Clone() *AggregateStats {
	if s == nil {
		return nil
	}
	out := *s
	if s.ZipCounts != nil {
		out.ZipCounts = make(map[string]int, len(s.ZipCounts))
		for k, v := range s.ZipCounts {
			out.ZipCounts[k] = v
		}
	}
	if s.PropertyTypeCounts != nil {
		out.PropertyTypeCounts = make(map[string]int, len(s.PropertyTypeCounts))
		for k, v := range s.PropertyTypeCounts {
			out.PropertyTypeCounts[k] = v
		}
	}
	return &out
}
