// Package api provides the REST API serving the analytics pipeline.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mbeckert/sitepulse/internal/aggregator"
	"github.com/mbeckert/sitepulse/internal/litecache"
	"github.com/mbeckert/sitepulse/internal/logstore"
	"github.com/mbeckert/sitepulse/internal/snapshot"
	"github.com/mbeckert/sitepulse/pkg/models"
)

// Server is the REST API server.
type Server struct {
	orchestrator *snapshot.Orchestrator
	logs         *logstore.Store
	lite         *litecache.Manager
	router       *chi.Mux
	server       *http.Server
}

// NewServer creates a new API server.
func NewServer(addr string, orch *snapshot.Orchestrator, logs *logstore.Store, lite *litecache.Manager) *Server {
	s := &Server{
		orchestrator: orch,
		logs:         logs,
		lite:         lite,
		router:       chi.NewRouter(),
	}

	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.health)

		// Analytics endpoints
		r.Get("/analytics/snapshot", s.getSnapshot)
		r.Post("/analytics/aggregate", s.aggregateSamples)
		r.Get("/analytics/insights", s.getInsights)

		// Log issue endpoints
		r.Post("/logs/events", s.recordLogEvent)
		r.Get("/logs/issues", s.listLogIssues)
		r.Get("/logs/issues/{id}", s.getLogIssue)
		r.Put("/logs/issues/{id}/status", s.setLogIssueStatus)

		// Lightweight snapshot endpoints
		r.Get("/lite/snapshot", s.getLiteSnapshot)
		r.Post("/lite/refresh", s.refreshLiteSnapshot)
	})

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	return s
}

// Start starts the API server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// getSnapshot returns the full analytics snapshot. The orchestrator
// degrades through its fallback chain internally, so this endpoint
// always answers 200 with trust metadata in the payload.
func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.orchestrator.Collect(r.Context())
	s.respondJSON(w, http.StatusOK, snap)
}

// aggregateSamples runs the pure aggregation over a posted sample batch.
func (s *Server) aggregateSamples(w http.ResponseWriter, r *http.Request) {
	var samples []models.MetricSample
	if err := json.NewDecoder(r.Body).Decode(&samples); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid sample batch: "+err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, aggregator.Aggregate(samples))
}

// getInsights derives insights from the current snapshot data.
func (s *Server) getInsights(w http.ResponseWriter, r *http.Request) {
	snap := s.orchestrator.Collect(r.Context())
	s.respondJSON(w, http.StatusOK, map[string]any{
		"insights": snap.Insights,
		"meta":     snap.Meta,
	})
}

// recordLogEvent folds one structured log event into the issue store.
func (s *Server) recordLogEvent(w http.ResponseWriter, r *http.Request) {
	var ev models.LogEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid log event: "+err.Error())
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	issue, err := s.logs.Record(r.Context(), &ev)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, issue)
}

// listLogIssues returns recent issues.
// Query parameters:
//   - limit: max results (default: 50, max: 500)
//   - window: trailing window like "24h" (default: 24h)
func (s *Server) listLogIssues(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 500 {
				limit = 500
			}
		}
	}

	window := 24 * time.Hour
	if windowStr := r.URL.Query().Get("window"); windowStr != "" {
		parsed, err := time.ParseDuration(windowStr)
		if err != nil || parsed <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid window duration")
			return
		}
		window = parsed
	}

	issues := s.logs.ListRecent(r.Context(), limit, window)
	s.respondJSON(w, http.StatusOK, map[string]any{
		"data":  issues,
		"total": len(issues),
	})
}

// getLogIssue returns one issue by fingerprint.
func (s *Server) getLogIssue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	issue, err := s.logs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, logstore.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "issue not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, issue)
}

// setLogIssueStatus moves an issue to a new status.
func (s *Server) setLogIssueStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Status models.IssueStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid status body: "+err.Error())
		return
	}

	if err := s.logs.SetStatus(r.Context(), id, body.Status); err != nil {
		switch {
		case errors.Is(err, logstore.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "issue not found")
		case errors.Is(err, logstore.ErrInvalidStatus):
			s.respondError(w, http.StatusBadRequest, err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	issue, err := s.logs.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, issue)
}

// getLiteSnapshot serves the lightweight cached snapshot.
func (s *Server) getLiteSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.lite.GetSnapshot(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, snap)
}

// refreshLiteSnapshot forces a lightweight cache rebuild.
func (s *Server) refreshLiteSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.lite.Refresh(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, snap)
}

// health returns the health status of the API.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// respondJSON writes a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}
