package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all market data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/market-data", func(r chi.Router) {
		r.Post("/batch", h.HandleBatch)
		r.Get("/{category}/{symbol}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetLatest(w, r, chi.URLParam(r, "category"), chi.URLParam(r, "symbol"))
		})
	})
}
