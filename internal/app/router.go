package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	analytichttp "github.com/fiscalia/fiscalia/internal/analytics/http"
	"github.com/fiscalia/fiscalia/internal/ap"
	"github.com/fiscalia/fiscalia/internal/ar"
	"github.com/fiscalia/fiscalia/internal/automation"
	"github.com/fiscalia/fiscalia/internal/observability"
	"github.com/fiscalia/fiscalia/internal/platform/httpx"
	"github.com/fiscalia/fiscalia/jobs"
)

// HealthCheck probes one dependency for /healthz.
type HealthCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	ARHandler         *ar.Handler
	APHandler         *ap.Handler
	AutomationHandler *automation.Handler
	AnalyticsHandler  *analytichttp.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
	HealthChecks      map[string]HealthCheck
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthz(params.HealthChecks))

	if params.ARHandler != nil {
		r.Route("/ar", params.ARHandler.MountRoutes)
	}
	if params.APHandler != nil {
		r.Route("/ap", params.APHandler.MountRoutes)
	}
	if params.AnalyticsHandler != nil {
		r.Route("/finance", params.AnalyticsHandler.MountRoutes)
	}
	if params.AutomationHandler != nil {
		r.Route("/automation", params.AutomationHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not supported on "+r.URL.Path)
	})

	return r
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		body := map[string]any{"status": "ok"}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		if len(results) > 0 {
			body["checks"] = results
		}
		httpx.JSON(w, status, body)
	}
}
