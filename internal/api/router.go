package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.withRequestID)
	r.Use(s.accessLog)
	r.Use(s.recoverPanic)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/zones", func(r chi.Router) {
			r.Get("/", s.handleListZones)
			r.Post("/{controller}/{zone}/commands", s.handleZoneCommand)
		})

		if s.history != nil {
			r.Get("/commands", s.handleListCommands)
		}
	})

	return r
}
