// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/pulse/internal/config"
	"github.com/tomtom215/pulse/internal/middleware"
)

// MiddlewareConfigFrom maps application config onto middleware settings.
func MiddlewareConfigFrom(cfg *config.Config) *ChiMiddlewareConfig {
	mc := DefaultChiMiddlewareConfig()
	mc.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mc.IngestRequests = cfg.Ingest.RateLimitRequests
	mc.IngestWindow = cfg.Ingest.RateLimitWindow
	mc.RateLimitDisabled = cfg.Security.RateLimitDisabled
	return mc
}

// NewRouter mounts every endpoint on a chi router.
func NewRouter(h *Handler, mc *ChiMiddlewareConfig) http.Handler {
	mw := NewChiMiddleware(mc)
	r := chi.NewRouter()

	// Applied to all routes, in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogging())
	r.Use(mw.CORS()) // global so OPTIONS preflight is answered

	r.Route("/health", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)

		r.With(mw.RateLimitIngest()).Post("/events", h.IngestEvents)
		r.Get("/aggregates", h.Aggregates)
		r.Get("/cohorts", h.Cohorts)

		r.Route("/customers/{id}", func(r chi.Router) {
			r.Get("/metrics", h.CustomerMetrics)
			r.Get("/profile", h.GetProfile)
			r.Put("/profile", h.UpdateProfile)
		})

		r.Route("/segments", func(r chi.Router) {
			r.Get("/", h.ListSegments)
			r.Post("/", h.CreateSegment)
			r.Post("/preview", h.PreviewSegment)
			r.Get("/{id}", h.GetSegment)
			r.Put("/{id}", h.UpdateSegment)
			r.Delete("/{id}", h.DeleteSegment)
			r.Get("/{id}/members", h.SegmentMembers)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/aggregate", h.AdminAggregate)
			r.Post("/cleanup", h.AdminCleanup)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})
	return r
}
