// Package server provides the HTTP server for the ShoulderCare service.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/app"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/pose"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/scoring"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/server/api"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/store"
)

// Config holds the server configuration. Routes are registered only for
// the components that are set.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       *app.App
	Analyzer  *app.Analyzer
	// Scoring is served at scoring.SubmissionsPath.
	Scoring     scoring.Submitter
	DefaultSide pose.Side
}

// Server represents the HTTP server for the ShoulderCare application.
type Server struct {
	config Config
	router *chi.Mux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)

	if s.config.Store != nil {
		r.Route("/api/exercises", api.NewExerciseHandler(s.config.Store).Routes)
	}

	if s.config.App != nil && s.config.Store != nil {
		rom := api.NewROMHandler(s.config.App, s.config.Store, s.config.DefaultSide)
		r.Route("/api/rom", func(r chi.Router) {
			rom.Routes(r)
			r.Get("/events", NewEventsHandler(s.config.App).ServeHTTP)
		})
		r.Get("/api/stream", NewStreamHandler(s.config.App).ServeHTTP)
	}

	if s.config.Analyzer != nil {
		r.Route("/api/analyses", api.NewAnalysisHandler(s.config.Analyzer).Routes)
	}

	if s.config.Scoring != nil {
		api.NewScoringHandler(s.config.Scoring).Routes(r)
	}

	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.App != nil {
		response["capture_active"] = s.config.App.Active()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
