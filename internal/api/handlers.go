// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tlogandesigns/open-pair/internal/calendar"
	"github.com/tlogandesigns/open-pair/internal/directory"
	"github.com/tlogandesigns/open-pair/internal/feedback"
	"github.com/tlogandesigns/open-pair/internal/models"
	"github.com/tlogandesigns/open-pair/internal/notify"
	"github.com/tlogandesigns/open-pair/internal/recommend"
	"github.com/tlogandesigns/open-pair/internal/validation"
)

// Server hosts the HTTP handlers over the engine and its data layers.
type Server struct {
	engine    *recommend.Engine
	directory *directory.Directory
	calendar  *calendar.Service
	ingestor  *feedback.Ingestor
	notifier  notify.Sink
	logger    zerolog.Logger
}

// NewServer creates the handler set.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewServer(engine *recommend.Engine, dir *directory.Directory, cal *calendar.Service, ing *feedback.Ingestor, notifier notify.Sink, logger zerolog.Logger) *Server {
	return &Server{
		engine:    engine,
		directory: dir,
		calendar:  cal,
		ingestor:  ing,
		notifier:  notifier,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// validateOrRespond runs struct validation and writes the error payload on
// failure.
func validateOrRespond(w http.ResponseWriter, v interface{}) bool {
	if verr := validation.ValidateStruct(v); verr != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, "Validation failed", verr.Errors())
		return false
	}
	return true
}

// AgentInput is the create/update payload for an agent.
type AgentInput struct {
	Name             string              `json:"name" validate:"required,max=200"`
	Email            string              `json:"email" validate:"required,email"`
	LicenseNumber    string              `json:"license_number,omitempty" validate:"max=50"`
	ExperienceYears  int                 `json:"experience_years" validate:"min=0,max=80"`
	AreasOfExpertise []string            `json:"areas_of_expertise,omitempty" validate:"dive,max=10"`
	BuyerPriceRanges []models.PriceRange `json:"buyer_price_ranges,omitempty"`
	Active           *bool               `json:"active,omitempty"`
}

func (in *AgentInput) apply(agent *models.Agent) {
	agent.Name = in.Name
	agent.Email = in.Email
	agent.LicenseNumber = in.LicenseNumber
	agent.ExperienceYears = in.ExperienceYears
	agent.AreasOfExpertise = in.AreasOfExpertise
	agent.BuyerPriceRanges = in.BuyerPriceRanges
	if in.Active != nil {
		agent.Active = *in.Active
	}
}

// CreateAgent handles POST /api/v1/agents.
func (s *Server) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var in AgentInput
	if !decodeJSON(w, r, &in) || !validateOrRespond(w, &in) {
		return
	}

	agent := &models.Agent{Active: true, CreatedAt: time.Now().UTC()}
	in.apply(agent)
	if err := s.directory.SaveAgent(r.Context(), agent); err != nil {
		s.internalError(w, err, "save agent")
		return
	}
	s.engine.InvalidateCache()
	respondJSON(w, http.StatusCreated, agent)
}

// UpdateAgent handles PUT /api/v1/agents/{agentID}.
func (s *Server) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.loadAgent(w, r)
	if !ok {
		return
	}

	var in AgentInput
	if !decodeJSON(w, r, &in) || !validateOrRespond(w, &in) {
		return
	}
	in.apply(agent)
	agent.UpdatedAt = time.Now().UTC()
	if err := s.directory.SaveAgent(r.Context(), agent); err != nil {
		s.internalError(w, err, "save agent")
		return
	}
	s.engine.InvalidateCache()
	respondJSON(w, http.StatusOK, agent)
}

// GetAgent handles GET /api/v1/agents/{agentID}.
func (s *Server) GetAgent(w http.ResponseWriter, r *http.Request) {
	if agent, ok := s.loadAgent(w, r); ok {
		respondJSON(w, http.StatusOK, agent)
	}
}

// ListAgents handles GET /api/v1/agents.
func (s *Server) ListAgents(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	agents, err := s.directory.ListAgents(r.Context(), activeOnly)
	if err != nil {
		s.internalError(w, err, "list agents")
		return
	}
	respondJSON(w, http.StatusOK, agents)
}

func (s *Server) loadAgent(w http.ResponseWriter, r *http.Request) (*models.Agent, bool) {
	agent, err := s.directory.GetAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Agent not found", nil)
		} else {
			s.internalError(w, err, "get agent")
		}
		return nil, false
	}
	return agent, true
}

// AvailabilityInput is the payload for PUT availability.
type AvailabilityInput struct {
	Windows []calendar.Window `json:"windows" validate:"required,dive"`
}

// SetAvailability handles PUT /api/v1/agents/{agentID}/availability.
func (s *Server) SetAvailability(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.loadAgent(w, r)
	if !ok {
		return
	}

	var in AvailabilityInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := s.calendar.SetWindows(r.Context(), agent.ID, in.Windows); err != nil {
		s.internalError(w, err, "set availability")
		return
	}
	s.engine.InvalidateCache()
	respondJSON(w, http.StatusOK, map[string]int{"windows": len(in.Windows)})
}

// GetAvailability handles GET /api/v1/agents/{agentID}/availability.
func (s *Server) GetAvailability(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.loadAgent(w, r)
	if !ok {
		return
	}
	windows, err := s.calendar.Windows(r.Context(), agent.ID)
	if err != nil {
		s.internalError(w, err, "get availability")
		return
	}
	if windows == nil {
		windows = []calendar.Window{}
	}
	respondJSON(w, http.StatusOK, windows)
}

// ListingInput is the create payload for a listing.
type ListingInput struct {
	MLSNumber    string  `json:"mls_number" validate:"required,max=50"`
	Address      string  `json:"address" validate:"required,max=300"`
	City         string  `json:"city" validate:"required,max=100"`
	State        string  `json:"state" validate:"required,max=50"`
	ZipCode      string  `json:"zip_code" validate:"required,max=10"`
	Price        float64 `json:"price" validate:"required,gt=0"`
	Bedrooms     int     `json:"bedrooms,omitempty" validate:"min=0"`
	Bathrooms    float64 `json:"bathrooms,omitempty" validate:"min=0"`
	SquareFeet   int     `json:"square_feet,omitempty" validate:"min=0"`
	PropertyType string  `json:"property_type" validate:"required,max=50"`
}

// CreateListing handles POST /api/v1/listings.
func (s *Server) CreateListing(w http.ResponseWriter, r *http.Request) {
	var in ListingInput
	if !decodeJSON(w, r, &in) || !validateOrRespond(w, &in) {
		return
	}

	listing := &models.Listing{
		MLSNumber:    in.MLSNumber,
		Address:      in.Address,
		City:         in.City,
		State:        in.State,
		ZipCode:      in.ZipCode,
		Price:        in.Price,
		Bedrooms:     in.Bedrooms,
		Bathrooms:    in.Bathrooms,
		SquareFeet:   in.SquareFeet,
		PropertyType: in.PropertyType,
		Status:       models.ListingActive,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.directory.SaveListing(r.Context(), listing); err != nil {
		s.internalError(w, err, "save listing")
		return
	}
	respondJSON(w, http.StatusCreated, listing)
}

// GetListing handles GET /api/v1/listings/{listingID}.
func (s *Server) GetListing(w http.ResponseWriter, r *http.Request) {
	listing, err := s.directory.GetListing(r.Context(), chi.URLParam(r, "listingID"))
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Listing not found", nil)
		} else {
			s.internalError(w, err, "get listing")
		}
		return
	}
	respondJSON(w, http.StatusOK, listing)
}

// ListListings handles GET /api/v1/listings.
func (s *Server) ListListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.directory.ListListings(r.Context(), models.ListingStatus(r.URL.Query().Get("status")))
	if err != nil {
		s.internalError(w, err, "list listings")
		return
	}
	respondJSON(w, http.StatusOK, listings)
}

// OpenHouseInput is the create payload for an open house.
type OpenHouseInput struct {
	ListingID   string    `json:"listing_id" validate:"required"`
	HostAgentID string    `json:"host_agent_id,omitempty"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Notes       string    `json:"notes,omitempty" validate:"max=2000"`
}

// CreateOpenHouse handles POST /api/v1/open-houses.
func (s *Server) CreateOpenHouse(w http.ResponseWriter, r *http.Request) {
	var in OpenHouseInput
	if !decodeJSON(w, r, &in) || !validateOrRespond(w, &in) {
		return
	}

	if _, err := s.directory.GetListing(r.Context(), in.ListingID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Listing not found", nil)
		} else {
			s.internalError(w, err, "get listing")
		}
		return
	}

	oh := &models.OpenHouse{
		ListingID:   in.ListingID,
		HostAgentID: in.HostAgentID,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Status:      models.OpenHouseScheduled,
		Notes:       in.Notes,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.directory.SaveOpenHouse(r.Context(), oh); err != nil {
		s.internalError(w, err, "save open house")
		return
	}
	respondJSON(w, http.StatusCreated, oh)
}

// GetOpenHouse handles GET /api/v1/open-houses/{openHouseID}.
func (s *Server) GetOpenHouse(w http.ResponseWriter, r *http.Request) {
	oh, err := s.directory.GetOpenHouse(r.Context(), chi.URLParam(r, "openHouseID"))
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Open house not found", nil)
		} else {
			s.internalError(w, err, "get open house")
		}
		return
	}
	respondJSON(w, http.StatusOK, oh)
}

// ListOpenHouses handles GET /api/v1/open-houses.
func (s *Server) ListOpenHouses(w http.ResponseWriter, r *http.Request) {
	items, err := s.directory.ListOpenHouses(r.Context(), models.OpenHouseStatus(r.URL.Query().Get("status")))
	if err != nil {
		s.internalError(w, err, "list open houses")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"model_version": s.engine.Scorer().ActiveVersion(),
	})
}

func (s *Server) internalError(w http.ResponseWriter, err error, op string) {
	s.logger.Error().Err(err).Str("op", op).Msg("Request failed")
	respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error", nil)
}
