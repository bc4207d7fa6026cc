// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the ops surface of a vodladder process: probes,
// Prometheus metrics and the read-only job status endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/vodladder/internal/api/middleware"
	"github.com/ManuGH/vodladder/internal/health"
	"github.com/ManuGH/vodladder/internal/job"
	"github.com/ManuGH/vodladder/internal/log"
	"github.com/ManuGH/vodladder/internal/status"
)

// maxJobIDLen bounds path parameters before they reach a backend.
const maxJobIDLen = 1024

// JobReader reads job records; status.Store and status.Recorder satisfy it.
type JobReader interface {
	Get(ctx context.Context, jobID string) (job.Record, error)
}

// Config tunes the router.
type Config struct {
	// RateLimit is requests per minute per client IP on /api; zero disables it.
	RateLimit int
	// TracingService enables otelhttp spans under this name.
	TracingService string
}

// Server is the ops HTTP handler.
type Server struct {
	jobs   JobReader
	health *health.Manager
	router chi.Router
}

// New wires the router. health may be nil, in which case probes always pass.
func New(cfg Config, jobs JobReader, hm *health.Manager) *Server {
	if hm == nil {
		hm = health.NewManager("")
	}
	s := &Server{jobs: jobs, health: hm}

	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: cfg.TracingService,
		EnableLogging:  true,
	})
	r.Get("/healthz", hm.ServeHealth)
	r.Get("/readyz", hm.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(middleware.PerMinute(cfg.RateLimit))
		}
		r.Get("/jobs/{jobID}", s.handleGetJob)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { writeNotFound(w) })

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	if id == "" || len(id) > maxJobIDLen {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid job id"})
		return
	}

	rec, err := s.jobs.Get(r.Context(), id)
	switch {
	case errors.Is(err, status.ErrNotFound):
		writeNotFound(w)
		return
	case err != nil:
		logger := log.WithComponentFromContext(log.ContextWithJobID(r.Context(), id), "api")
		logger.Warn().Err(err).
			Str(log.FieldEvent, "api.status_read_failed").
			Msg("status store read failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "status store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

// NewHTTPServer returns an http.Server with conservative timeouts for addr.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
