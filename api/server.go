/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for operator tooling

ROUTE GROUPS:
  /api/costing/*       Costing runs and re-costs
  /api/groups/*        Per-group balances and ledger
  /api/transactions/*  Lot attribution traces
  /api/adjustments/*   Manual adjustment workflow

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Costing routes
		r.Route("/costing", func(r chi.Router) {
			r.Post("/run", h.RunCosting)
			r.Get("/groups", h.ListGroups)
			r.Post("/groups/{key}/recost", h.RecostGroup)
		})

		// Group routes
		r.Route("/groups/{key}", func(r chi.Router) {
			r.Get("/balance", h.GetRunningBalance)
			r.Get("/daily", h.GetDailyBalances)
			r.Get("/ledger", h.GetLedger)
		})

		// Trace routes
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/{id}/traces", h.GetTraces)
		})

		// Adjustment routes
		r.Route("/adjustments", func(r chi.Router) {
			r.Post("/", h.CreateAdjustment)
			r.Post("/propose", h.ProposeAdjustment)
		})
	})

	return r
}
