// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tlogandesigns/open-pair/internal/feedback"
	"github.com/tlogandesigns/open-pair/internal/recommend"
	"github.com/tlogandesigns/open-pair/internal/validation"
)

// GetRecommendations handles GET /api/v1/open-houses/{openHouseID}/recommendations.
//
// Query parameter top_n overrides the configured list length.
func (s *Server) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	req := recommend.Request{OpenHouseID: chi.URLParam(r, "openHouseID")}
	if v := r.URL.Query().Get("top_n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "top_n must be a positive integer", nil)
			return
		}
		req.TopN = n
	}

	list, err := s.engine.Recommend(r.Context(), req)
	if err != nil {
		s.respondRecommendError(w, err)
		return
	}

	if s.notifier != nil && len(list.Items) > 0 {
		if listing, lerr := s.directory.GetListing(r.Context(), list.ListingID); lerr == nil {
			if nerr := s.notifier.RecommendationsReady(r.Context(), listing, list); nerr != nil {
				s.logger.Warn().Err(nerr).Msg("Recommendation notification failed")
			}
		}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) respondRecommendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recommend.ErrNotFound):
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Open house or listing not found", nil)
	case errors.Is(err, recommend.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
	case errors.Is(err, recommend.ErrNoEligibleAgents):
		respondError(w, http.StatusConflict, ErrCodeNoEligibleAgents, "No agent can take this slot", nil)
	default:
		s.internalError(w, err, "recommend")
	}
}

// RecordOutcome handles POST /api/v1/outcomes.
//
// Submissions are idempotent per open house: a replay returns the stored
// record with 200 instead of 201.
func (s *Server) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	var in feedback.OutcomeInput
	if !decodeJSON(w, r, &in) {
		return
	}

	rec, created, err := s.ingestor.RecordOutcome(r.Context(), in)
	if err != nil {
		s.respondOutcomeError(w, err)
		return
	}

	if created && s.notifier != nil {
		if nerr := s.notifier.OutcomeRecorded(r.Context(), rec); nerr != nil {
			s.logger.Warn().Err(nerr).Msg("Outcome notification failed")
		}
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, map[string]interface{}{
		"record":  rec,
		"created": created,
	})
}

func (s *Server) respondOutcomeError(w http.ResponseWriter, err error) {
	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, "Validation failed", verr.Errors())
	case errors.Is(err, feedback.ErrOpenHouseNotFound):
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Open house not found", nil)
	case errors.Is(err, feedback.ErrNoHostAgent):
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "Outcome names no host agent", nil)
	default:
		s.internalError(w, err, "record outcome")
	}
}

// GetFairnessReport handles GET /api/v1/fairness/report.
//
// Query parameter agent_id narrows the report to one agent's rotation row.
func (s *Server) GetFairnessReport(w http.ResponseWriter, r *http.Request) {
	if agentID := r.URL.Query().Get("agent_id"); agentID != "" {
		row, err := s.engine.FairnessFor(r.Context(), agentID)
		if err != nil {
			if errors.Is(err, recommend.ErrNotFound) {
				respondError(w, http.StatusNotFound, ErrCodeNotFound, "Agent not found", nil)
				return
			}
			s.internalError(w, err, "agent fairness")
			return
		}
		respondJSON(w, http.StatusOK, row)
		return
	}

	report, err := s.engine.FairnessReport(r.Context())
	if err != nil {
		s.internalError(w, err, "fairness report")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Retrain handles POST /api/v1/admin/retrain.
//
// A run that fails validation is not an internal failure: the previous model
// stays active and the rejection is reported in the payload.
func (s *Server) Retrain(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Retrain(r.Context())
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, status)
	case errors.Is(err, recommend.ErrTrainingInProgress):
		respondError(w, http.StatusConflict, ErrCodeTrainingBusy, "A training run is already in progress", nil)
	case errors.Is(err, recommend.ErrRetrainValidationFailed):
		respondJSON(w, http.StatusOK, status)
	default:
		s.internalError(w, err, "retrain")
	}
}

// GetRetrainStatus handles GET /api/v1/admin/retrain.
func (s *Server) GetRetrainStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.LastRetrain())
}
