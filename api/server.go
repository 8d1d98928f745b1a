/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for reporting dashboards

ROUTE GROUPS:
  /api/trueup     Calculation runs
  /api/ledger     Audit trail
  /api/ibnr       Reserve snapshots
  /api/splits     Resolved carrier participation
  /api/cohorts    Underwriting years
  /api/schemes    Registered scheme types
  /api/health     Liveness probe

SECURITY NOTE:
  No authentication middleware. The engine is expected to run behind an
  internal gateway.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

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
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/trueup", h.RunTrueUp)

		r.Get("/ledger", h.GetLedger)
		r.Get("/ibnr", h.GetIBNR)
		r.Get("/splits", h.GetSplits)
		r.Get("/cohorts", h.GetCohorts)
		r.Get("/schemes", h.GetSchemes)

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
