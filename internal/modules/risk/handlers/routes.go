package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all risk metrics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk", func(r chi.Router) {
		// Calculations
		r.Post("/var", h.HandleVaR)
		r.Post("/sharpe", h.HandleSharpe)
		r.Post("/treynor", h.HandleTreynor)
		r.Post("/volatility", h.HandleVolatility)

		// Run history
		r.Get("/runs", h.HandleListRuns)
		r.Get("/runs/{id}", h.HandleGetRun)
	})
}
