// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package recommend

import "errors"

// Sentinel errors for the recommendation core.
var (
	// ErrNotFound indicates an unknown agent or open house identifier.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or out-of-range input that was
	// rejected before scoring.
	ErrInvalidInput = errors.New("invalid input")

	// ErrModelUnavailable indicates the trained model artifact is missing
	// or failed to evaluate. It is internal: the scorer falls back to the
	// heuristic and the error is only logged, never returned to callers.
	ErrModelUnavailable = errors.New("trained model unavailable")

	// ErrNoEligibleAgents indicates every candidate was filtered out.
	// Distinct from an empty-but-valid result when no agents are
	// configured at all.
	ErrNoEligibleAgents = errors.New("no eligible agents")

	// ErrRetrainValidationFailed indicates a candidate model was rejected
	// during validation and the previously active model was retained.
	ErrRetrainValidationFailed = errors.New("retrain validation failed")

	// ErrTrainingInProgress indicates a retraining run is already active.
	ErrTrainingInProgress = errors.New("training already in progress")

	// ErrInsufficientData indicates too few hosting records to refit.
	ErrInsufficientData = errors.New("insufficient training data")
)
