// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tlogandesigns/open-pair/internal/metrics"
)

// requestsPerMinute is the per-client rate limit on API endpoints.
const requestsPerMinute = 300

// Router builds the HTTP routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(requestsPerMinute, time.Minute))
		r.Use(s.observe)

		r.Route("/agents", func(r chi.Router) {
			r.Post("/", s.CreateAgent)
			r.Get("/", s.ListAgents)
			r.Get("/{agentID}", s.GetAgent)
			r.Put("/{agentID}", s.UpdateAgent)
			r.Get("/{agentID}/availability", s.GetAvailability)
			r.Put("/{agentID}/availability", s.SetAvailability)
		})

		r.Route("/listings", func(r chi.Router) {
			r.Post("/", s.CreateListing)
			r.Get("/", s.ListListings)
			r.Get("/{listingID}", s.GetListing)
		})

		r.Route("/open-houses", func(r chi.Router) {
			r.Post("/", s.CreateOpenHouse)
			r.Get("/", s.ListOpenHouses)
			r.Get("/{openHouseID}", s.GetOpenHouse)
			r.Get("/{openHouseID}/recommendations", s.GetRecommendations)
		})

		r.Post("/outcomes", s.RecordOutcome)
		r.Get("/fairness/report", s.GetFairnessReport)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/retrain", s.Retrain)
			r.Get("/retrain", s.GetRetrainStatus)
		})
	})

	return r
}

// observe records per-route request duration with the final status code.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		metrics.HTTPRequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}
