package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the API routes.
func NewRouter(deps Deps, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	h := &handlers{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)

	r.Route("/api/runs", func(r chi.Router) {
		r.Get("/", h.listRuns)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", h.getRun)
			r.Get("/comparison", h.comparison)
			r.Get("/comparison.csv", h.comparisonCSV)
			r.Post("/ask", h.ask)
		})
	})

	return r
}
