package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wandero/matching/internal/config"
	"github.com/wandero/matching/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, cfg config.Server) {
	r.Get("/healthz", h.Health)

	// Live status stream for traveler and agent frontends.
	r.Get("/ws", h.Hub.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Travel requests
		r.Post("/requests", h.CreateRequest)
		r.Get("/requests/{id}", h.GetRequest)
		r.Post("/requests/{id}/cancel", h.CancelRequest)

		// Agent decisions on proposed matches
		r.Post("/matches/{id}/accept", h.AcceptMatch)
		r.Post("/matches/{id}/decline", h.DeclineMatch)

		// Admin override surface (bearer token, reason-mandatory actions)
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminAuth(cfg.AdminToken))
			r.Post("/requests/{id}/override", h.ApplyOverride)
			r.Get("/requests/{id}/audit", h.GetAuditTrail)
		})
	})
}
