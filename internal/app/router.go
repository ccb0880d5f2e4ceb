package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rh-console/rh-console/internal/auth"
	"github.com/rh-console/rh-console/internal/console"
	"github.com/rh-console/rh-console/internal/observability"
	"github.com/rh-console/rh-console/internal/platform/httpx"
	"github.com/rh-console/rh-console/internal/shared"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(r *http.Request) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	AuthHandler    *auth.Handler
	ConsoleHandler *console.Handler
	Metrics        *observability.Metrics
	Health         map[string]HealthCheck
}

// NewRouter constructs the chi.Router with console defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", healthHandler(params.Health, params.Logger))
	r.Handle("/metrics", params.Metrics.Handler())

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}
		if !params.Config.IsProduction() {
			r.Use(chimw.Logger)
		}

		r.Route("/auth", func(r chi.Router) {
			r.Use(LoginLimiter(params.Config))
			params.AuthHandler.MountRoutes(r)
		})
		r.Route("/api", params.ConsoleHandler.MountRoutes)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, httpx.ErrNotFound)
	})
	return r
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		report := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(r); err != nil {
				logger.Warn("health check failed", slog.String("check", name), slog.Any("error", err))
				report[name] = "down"
				report["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}
		httpx.JSON(w, status, report)
	}
}
