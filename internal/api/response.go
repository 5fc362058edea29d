// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

// Package api exposes the recommendation engine over HTTP.
//
// All endpoints use a standardized response wrapper so clients can handle
// success and failure uniformly.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tlogandesigns/open-pair/internal/logging"
)

// APIResponse is the standardized wrapper for all endpoints.
type APIResponse struct {
	// Success indicates whether the request was successful.
	Success bool `json:"success"`

	// Data contains the response payload (null on error).
	Data interface{} `json:"data,omitempty"`

	// Error contains error details (null on success).
	Error *APIError `json:"error,omitempty"`
}

// APIError is the error payload.
type APIError struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Details carries additional context, typically field errors.
	Details interface{} `json:"details,omitempty"`
}

// Error codes.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeNoEligibleAgents = "NO_ELIGIBLE_AGENTS"
	ErrCodeTrainingBusy     = "TRAINING_IN_PROGRESS"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// respondJSON writes a success response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data}); err != nil {
		logging.Error().Err(err).Msg("Response encode failed")
	}
}

// respondError writes an error response.
func respondError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload := APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message, Details: details},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error().Err(err).Msg("Error response encode failed")
	}
}

// decodeJSON decodes a request body, reporting malformed input as a client
// error payload.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body", err.Error())
		return false
	}
	return true
}
