/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:      Request logging
  2. Recoverer:   Panic recovery (500 instead of crash)
  3. RequestID:   Unique ID per request for tracing
  4. CORS:        Cross-origin requests for the browser client
  5. Auth:        Bearer token check on /api (when configured)
  6. Idempotency: POST replay by Idempotency-Key on /api

ROUTE GROUPS:
  /api/accounts/*       Account ledger
  /api/transactions/*   Transaction journal
  /api/investments/*    Investments, credits and their payments
  /api/summary          Aggregates
  /metrics              Prometheus
  /health               Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds the cross-cutting router settings.
type RouterConfig struct {
	AllowedOrigins []string
	AuthToken      string // empty disables auth
}

// DefaultAllowedOrigins are the local dev server origins.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	replay := NewReplayCache()

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(RequireToken(cfg.AuthToken))
		r.Use(replay.Middleware)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Patch("/{id}", h.UpdateAccount)
			r.Delete("/{id}", h.DeleteAccount)
		})
		r.Get("/account-types", h.ListAccountTypes)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
			r.Patch("/{id}", h.UpdateTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
		})
		r.Get("/transaction-categories", h.ListCategories)

		r.Route("/investments", func(r chi.Router) {
			r.Get("/", h.ListInvestments)
			r.Post("/", h.CreateInvestment)
			r.Get("/{id}", h.GetInvestment)
			r.Patch("/{id}", h.UpdateInvestment)
			r.Delete("/{id}", h.DeleteInvestment)
			r.Post("/{id}/finalize", h.FinalizeInvestment)

			r.Get("/{id}/payments", h.ListPayments)
			r.Post("/{id}/payments", h.CreatePayment)
			r.Patch("/{id}/payments/{paymentID}", h.UpdatePayment)
			r.Delete("/{id}/payments/{paymentID}", h.DeletePayment)
		})
		r.Get("/investment-types", h.ListInvestmentTypes)

		r.Get("/summary", h.GetSummary)
	})

	return r
}
