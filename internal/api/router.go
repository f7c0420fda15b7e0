package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Fleet queries
		r.Get("/etiquetas", s.handleListLabels)
		r.Get("/etiquetas/{id}", s.handleGetLabel)
		r.Get("/stats", s.handleStats)

		// Label operations
		r.Post("/test", s.handleTestUpdate)
		r.Post("/etiqueta", s.handleCreateLabel)

		// Runtime mode switch
		r.Post("/mode", s.handleSetMode)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.super.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"status":           "ok",
		"version":          s.version,
		"mode":             snap.Mode,
		"connectionStatus": snap.ConnectionStatus,
	})
}
