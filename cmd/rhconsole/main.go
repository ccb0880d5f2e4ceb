package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rh-console/rh-console/internal/access"
	"github.com/rh-console/rh-console/internal/app"
	"github.com/rh-console/rh-console/internal/auth"
	"github.com/rh-console/rh-console/internal/console"
	"github.com/rh-console/rh-console/internal/identity"
	"github.com/rh-console/rh-console/internal/nav"
	"github.com/rh-console/rh-console/internal/observability"
	"github.com/rh-console/rh-console/internal/platform/cache"
	"github.com/rh-console/rh-console/internal/platform/db"
	"github.com/rh-console/rh-console/internal/shared"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	fetchMetrics, err := access.NewFetchMetrics(metrics.Registerer())
	if err != nil {
		logger.Error("register fetch metrics", slog.Any("error", err))
		os.Exit(1)
	}

	fetcher, err := newFetcher(cfg, dbpool)
	if err != nil {
		logger.Error("permission source", slog.Any("error", err))
		os.Exit(1)
	}
	fetcher = access.Instrument(access.NewCoalescingFetcher(fetcher), fetchMetrics)

	hub := identity.NewHub()
	relay := identity.NewRedisRelay(redisClient, hub, logger.With(slog.String("component", "relay"))).
		WithChannel(cfg.RelayChannel)

	registry := console.NewRegistry(relay, relay, fetcher, logger.With(slog.String("component", "console")),
		access.WithFetchTimeout(cfg.PermissionsTimeout))
	defer registry.Close()
	relay.OnRefresh(registry.RefreshPrincipal)
	metrics.TrackWorkspaces(registry.Len)

	if err := relay.Listen(ctx); err != nil {
		logger.Error("identity relay", slog.Any("error", err))
		os.Exit(1)
	}
	go pruneWorkspaces(ctx, registry, cfg.WorkspaceIdle, logger)

	catalog, err := nav.DefaultCatalog()
	if err != nil {
		logger.Error("navigation catalog", slog.Any("error", err))
		os.Exit(1)
	}

	sessionManager := shared.NewSessionManager(redisClient, "rh_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	authHandler := auth.NewHandler(logger, auth.NewService(auth.NewRepository(dbpool)), sessionManager, relay)
	consoleHandler := console.NewHandler(registry, nav.NewGate(catalog, logger), logger, cfg.LoadingWait)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		AuthHandler:    authHandler,
		ConsoleHandler: consoleHandler,
		Metrics:        metrics,
		Health: map[string]app.HealthCheck{
			"postgres": func(r *http.Request) error { return dbpool.Ping(r.Context()) },
			"redis":    func(r *http.Request) error { return redisClient.Ping(r.Context()).Err() },
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("rh console listening", slog.String("addr", cfg.AppAddr), slog.String("permissions", cfg.PermissionsSource))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func newFetcher(cfg *app.Config, pool *pgxpool.Pool) (access.Fetcher, error) {
	switch cfg.PermissionsSource {
	case app.SourceHTTP:
		client := &http.Client{Timeout: cfg.PermissionsTimeout}
		return access.NewHTTPFetcher(cfg.PermissionsURL, cfg.PermissionsJWTSecret, client), nil
	case app.SourcePostgres:
		return access.NewPGFetcher(pool), nil
	default:
		return nil, errors.New("unknown permissions source " + cfg.PermissionsSource)
	}
}

func pruneWorkspaces(ctx context.Context, registry *console.Registry, idle time.Duration, logger *slog.Logger) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.Prune(idle); n > 0 {
				logger.Info("pruned idle workspaces", slog.Int("count", n))
			}
		}
	}
}
