package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all environment inspection routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/env", func(r chi.Router) {
		r.Get("/status", h.HandleStatus)
		r.Get("/wigner", h.HandleWigner)
	})
}
