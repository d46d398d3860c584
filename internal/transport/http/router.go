// Package http wires the chi router for the scraper API: health, run
// management, branch registry access, and report generation.
package http

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// RouterDeps carries the handler dependencies.
type RouterDeps struct {
	Operations *OperationsHandler
	Branches   *BranchesHandler
	Reports    *ReportsHandler
	Health     *HealthHandler
	Logger     *slog.Logger
}

// NewRouter builds the API router.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", deps.Health.Get)

		r.Route("/operations", func(r chi.Router) {
			r.Post("/broker-flows", deps.Operations.Start)
			r.Get("/", deps.Operations.List)
			r.Get("/{runID}", deps.Operations.Get)
		})

		r.Route("/branches", func(r chi.Router) {
			r.Get("/", deps.Branches.List)
			r.Get("/{systemKey}/summary", deps.Reports.CounterpartySummary)
		})
	})

	return r
}
