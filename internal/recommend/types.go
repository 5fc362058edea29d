// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package recommend

import (
	"time"

	"github.com/tlogandesigns/open-pair/internal/models"
)

// FeatureCount is the fixed length of the feature vector.
const FeatureCount = 9

// FeatureVector is the fixed-schema numeric input to the scorer.
// Every field has a documented default so extraction never fails on
// sparse history; see the Extractor for the default policy.
type FeatureVector struct {
	// ConversionRate is leads/attendees over the agent's history.
	ConversionRate float64 `json:"conversion_rate"`

	// SuccessRate is offers/leads over the agent's history.
	SuccessRate float64 `json:"success_rate"`

	// AvgFeedback is the rolling average feedback score (1-5 scale).
	AvgFeedback float64 `json:"avg_feedback"`

	// RecencyDecay saturates toward 1 as days since last hosting grow.
	// Larger means more "due" for an opportunity.
	RecencyDecay float64 `json:"recency_decay"`

	// AreaMatch is the overlap between the agent's known areas and the
	// listing's zip code, in [0,1].
	AreaMatch float64 `json:"area_match"`

	// PriceAlignment is 1 when the listing price sits inside the agent's
	// historical buyer price range, decaying toward 0 with distance.
	PriceAlignment float64 `json:"price_alignment"`

	// PropertyTypeCount is how many open houses of this property type the
	// agent has hosted.
	PropertyTypeCount float64 `json:"property_type_count"`

	// TierOrdinal is the experience tier as 0 (junior), 1 (mid), 2 (senior).
	TierOrdinal float64 `json:"tier_ordinal"`

	// PeriodHostingCount is the hosting count in the current rotation period.
	PeriodHostingCount float64 `json:"period_hosting_count"`
}

// Vector returns the features in their fixed schema order.
func (f FeatureVector) Vector() []float64 {
	return []float64{
		f.ConversionRate,
		f.SuccessRate,
		f.AvgFeedback,
		f.RecencyDecay,
		f.AreaMatch,
		f.PriceAlignment,
		f.PropertyTypeCount,
		f.TierOrdinal,
		f.PeriodHostingCount,
	}
}

// FeatureNames returns the schema names in vector order.
func FeatureNames() []string {
	return []string{
		"conversion_rate",
		"success_rate",
		"avg_feedback",
		"recency_decay",
		"area_match",
		"price_alignment",
		"property_type_count",
		"tier_ordinal",
		"period_hosting_count",
	}
}

// ScorePath tags which scoring path produced a raw score. It is required
// output, consumed by explanations, logging, and metrics.
type ScorePath string

// Scoring paths.
const (
	// PathModel means the trained regression model produced the score.
	PathModel ScorePath = "model"

	// PathHeuristic means the cold-start heuristic produced the score.
	PathHeuristic ScorePath = "heuristic"
)

// ScoreResult is the raw prediction for one candidate.
type ScoreResult struct {
	// Raw is the predicted success likelihood in [0,1].
	Raw float64 `json:"raw"`

	// Path tags which scorer produced the value.
	Path ScorePath `json:"path"`
}

// PeriodStats is the rotation state the fairness adjuster reads.
// It is a plain value so the adjustment stays pure and reproducible.
type PeriodStats struct {
	// HostedThisPeriod is the hosting count in the current rotation period.
	HostedThisPeriod int `json:"hosted_this_period"`

	// HostedTotal is the lifetime hosting count. Zero means never hosted.
	HostedTotal int `json:"hosted_total"`

	// LastHostedAt is when the agent last hosted. Ignored when HostedTotal
	// is zero.
	LastHostedAt time.Time `json:"last_hosted_at"`
}

// FairnessExplanation records how the fairness adjustment was built, so
// downstream messaging can state why an agent was boosted or penalized.
type FairnessExplanation struct {
	// RawScore is the scorer output before adjustment.
	RawScore float64 `json:"raw_score"`

	// DeficitBonus is the applied below-minimum rotation bonus.
	DeficitBonus float64 `json:"deficit_bonus"`

	// RecencyBonus is the applied time-since-last-hosting bonus.
	RecencyBonus float64 `json:"recency_bonus"`

	// OverloadPenalty is the applied above-maximum rotation penalty.
	OverloadPenalty float64 `json:"overload_penalty"`

	// FairnessScore is the final clipped score.
	FairnessScore float64 `json:"fairness_score"`

	// Dominant names the adjustment term with the largest magnitude, or
	// "none" when no adjustment applied.
	Dominant string `json:"dominant"`

	// Notes are human-readable fairness factors ("below minimum monthly
	// opportunities", ...).
	Notes []string `json:"notes,omitempty"`
}

// Recommendation is one ranked entry in a recommendation list.
type Recommendation struct {
	// Rank is the 1-based position in the list.
	Rank int `json:"rank"`

	// AgentID and AgentName identify the recommended agent.
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`

	// Tier is the agent's experience tier.
	Tier models.Tier `json:"tier"`

	// RawScore is the predicted success likelihood before fairness.
	RawScore float64 `json:"raw_score"`

	// FairnessScore is the final ranking score.
	FairnessScore float64 `json:"fairness_score"`

	// Path tags which scoring path produced RawScore.
	Path ScorePath `json:"path"`

	// KeyFactors names the dominant contributing features.
	KeyFactors []string `json:"key_factors,omitempty"`

	// Fairness explains the rotation adjustment.
	Fairness FairnessExplanation `json:"fairness"`
}

// RankedList is the ephemeral output of one recommendation request.
// It is not a system of record; cached copies are invalidated whenever
// aggregates change.
type RankedList struct {
	// OpenHouseID references the event the list was generated for.
	OpenHouseID string `json:"open_house_id"`

	// ListingID references the listing shown.
	ListingID string `json:"listing_id"`

	// Items is the ordered top-N list, fairness score non-increasing.
	Items []Recommendation `json:"items"`

	// TotalCandidates is how many agents were considered before filtering.
	TotalCandidates int `json:"total_candidates"`

	// ModelVersion is the scoring model version used throughout the list
	// (0 = heuristic only).
	ModelVersion int `json:"model_version"`

	// GeneratedAt is when the list was produced.
	GeneratedAt time.Time `json:"generated_at"`
}

// AgentFairness is one agent's row in the fairness report.
type AgentFairness struct {
	// AgentID and AgentName identify the agent.
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`

	// Tier is the agent's experience tier.
	Tier models.Tier `json:"tier"`

	// HostedThisPeriod is the hosting count in the current period.
	HostedThisPeriod int `json:"hosted_this_period"`

	// QuotaMin and QuotaMax are the tier's rotation quota.
	QuotaMin int `json:"quota_min"`
	QuotaMax int `json:"quota_max"`

	// RotationScore is the fairness adjustment applied to a neutral 0.5
	// base, showing how strongly rotation currently favors the agent.
	RotationScore float64 `json:"rotation_score"`

	// Status is below_minimum, above_maximum, or balanced.
	Status string `json:"status"`
}

// FairnessReport is the aggregate rotation view across agents.
type FairnessReport struct {
	// GeneratedAt is when the report was produced.
	GeneratedAt time.Time `json:"generated_at"`

	// Agents lists per-agent rotation state, most deserving first.
	Agents []AgentFairness `json:"agents"`

	// ActiveAgents is the number of active agents covered.
	ActiveAgents int `json:"active_agents"`

	// BelowMinimum and AboveMaximum count agents outside their quota.
	BelowMinimum int `json:"below_minimum"`
	AboveMaximum int `json:"above_maximum"`

	// TierDistribution counts active agents per tier name.
	TierDistribution map[string]int `json:"tier_distribution"`
}

// RetrainOutcome classifies the result of a retraining run.
type RetrainOutcome string

// Retraining outcomes.
const (
	// RetrainPromoted means the candidate model passed validation and is
	// now active.
	RetrainPromoted RetrainOutcome = "promoted"

	// RetrainRejected means validation failed and the previous model was
	// retained.
	RetrainRejected RetrainOutcome = "rejected"

	// RetrainSkipped means there was not enough data to attempt a refit.
	RetrainSkipped RetrainOutcome = "skipped"
)

// RetrainStatus reports one retraining run.
type RetrainStatus struct {
	// Outcome classifies the run.
	Outcome RetrainOutcome `json:"outcome"`

	// SampleCount, TrainCount, and HoldoutCount describe the data split.
	SampleCount  int `json:"sample_count"`
	TrainCount   int `json:"train_count"`
	HoldoutCount int `json:"holdout_count"`

	// CandidateMSE is the held-out error of the refit model.
	CandidateMSE float64 `json:"candidate_mse"`

	// ActiveMSE is the held-out error of the previously active model, or
	// 0 when none existed.
	ActiveMSE float64 `json:"active_mse"`

	// ModelVersion is the active model version after the run.
	ModelVersion int `json:"model_version"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`
}
