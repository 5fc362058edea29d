// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

// Package metrics exposes Prometheus instrumentation for open-pair.
//
// Covered surfaces:
//   - Recommendation request latency and candidate funnel counts
//   - Scorer path split (trained model vs. cold-start heuristic)
//   - Feedback ingest totals and duplicate submissions
//   - Retraining outcomes and the active model version
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecommendDuration tracks end-to-end recommendation latency.
	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "openpair_recommend_duration_seconds",
			Help:    "Duration of recommendation requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RecommendRequests counts recommendation requests by result.
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openpair_recommend_requests_total",
			Help: "Total recommendation requests by result",
		},
		[]string{"result"}, // "ok", "no_eligible_agents", "error"
	)

	// CandidatesFiltered counts candidates dropped per filter reason.
	CandidatesFiltered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openpair_candidates_filtered_total",
			Help: "Candidates dropped during eligibility filtering",
		},
		[]string{"reason"}, // "inactive", "unavailable", "score_failed"
	)

	// ScorerPath counts scores produced per scoring path.
	ScorerPath = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openpair_scorer_path_total",
			Help: "Scores produced by path (model or heuristic)",
		},
		[]string{"path"},
	)

	// DiversitySwaps counts diversity-pass substitutions applied.
	DiversitySwaps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openpair_diversity_swaps_total",
			Help: "Top-N entries swapped by the tier diversity pass",
		},
	)

	// OutcomesIngested counts hosting outcomes recorded.
	OutcomesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openpair_outcomes_ingested_total",
			Help: "Hosting outcomes recorded",
		},
	)

	// OutcomesDuplicate counts idempotent re-submissions that were ignored.
	OutcomesDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openpair_outcomes_duplicate_total",
			Help: "Outcome submissions ignored because the open house already had a record",
		},
	)

	// RetrainRuns counts retraining runs by outcome.
	RetrainRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openpair_retrain_runs_total",
			Help: "Model retraining runs by outcome",
		},
		[]string{"outcome"}, // "promoted", "rejected", "skipped", "error"
	)

	// ActiveModelVersion reports the currently serving model version.
	ActiveModelVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "openpair_active_model_version",
			Help: "Version of the model currently used for scoring (0 = heuristic only)",
		},
	)

	// HTTPRequestDuration tracks API endpoint latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openpair_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
