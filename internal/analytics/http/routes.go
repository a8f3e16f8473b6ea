// Package analytichttp exposes the finance dashboard over HTTP.
package analytichttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/fiscalia/fiscalia/internal/platform/httpx"
)

// ExportLimit is the number of CSV exports a client may request per minute.
const ExportLimit = 10

// MountRoutes registers finance analytics endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(ExportLimit, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export rate limit exceeded")
		}),
	)

	r.Get("/dashboard", h.handleDashboard)
	r.Get("/aging/{role}", h.handleAging)
	r.Get("/schedule", h.handleSchedule)
	r.Get("/metrics", h.handleMetrics)
	r.Get("/forecast", h.handleForecast)
	r.Get("/health", h.handleHealth)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/export/aging.csv", h.handleAgingCSV)
		gr.Get("/export/forecast.csv", h.handleForecastCSV)
	})
}

// rateLimitKey buckets exports per API key when the caller sends one, per
// client IP otherwise.
func rateLimitKey(r *http.Request) (string, error) {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return "key:" + key, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
