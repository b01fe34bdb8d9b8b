/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for a dashboard

ROUTE GROUPS:
  /api/tenants/*        Tenants, cycles, preferences, karma, attendance
  /api/policy           Room policy
  /api/scenarios/*      Demo weeks
  /healthz              Liveness probe

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

// DefaultAllowedOrigins are the dashboard origins accepted when none are
// configured.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured. With no
// origins, DefaultAllowedOrigins apply.
func NewRouter(h *Handler, allowedOrigins ...string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/policy", h.GetPolicy)

		// Tenant routes
		r.Route("/tenants", func(r chi.Router) {
			r.Post("/", h.RegisterTenant)

			r.Route("/{tenant}", func(r chi.Router) {
				r.Delete("/", h.UnregisterTenant)
				r.Post("/cycles", h.StartCycle)

				r.Route("/cycle", func(r chi.Router) {
					r.Get("/", h.GetCycle)
					r.Put("/slots/{slot}/preferences/{participant}", h.DeclarePreference)
					r.Post("/allocation", h.RunAllocation)
				})

				r.Get("/participants", h.ListParticipants)
				r.Get("/participants/{participant}/karma-events", h.GetKarmaEvents)
				r.Get("/verdict", h.GetVerdict)
				r.Get("/attendance", h.ListAttendance)
				r.Post("/attendance", h.ConfirmAttendance)
			})
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
