package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	analytichttp "github.com/fiscalia/fiscalia/internal/analytics/http"
	"github.com/fiscalia/fiscalia/internal/ap"
	"github.com/fiscalia/fiscalia/internal/app"
	"github.com/fiscalia/fiscalia/internal/ar"
	"github.com/fiscalia/fiscalia/internal/automation"
	"github.com/fiscalia/fiscalia/internal/observability"
	"github.com/fiscalia/fiscalia/jobs"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if app.DryRun() {
		logger.Info("configuration valid, dry run requested", slog.String("addr", cfg.AppAddr))
		return
	}
	lang, _ := cfg.Language()

	services, err := app.BuildServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("build services", slog.Any("error", err))
		os.Exit(1)
	}
	defer services.Close(logger)

	metrics := observability.NewMetrics()

	redisOpts := cfg.Redis().Asynq()
	jobClient, err := jobs.NewClient(redisOpts, services.Location)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	runner := automation.NewRunner(services.Rules, services.Ledger, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		ARHandler:         ar.NewHandler(logger, services.AR),
		APHandler:         ap.NewHandler(logger, services.AP),
		AnalyticsHandler:  analytichttp.NewHandler(logger, services.Analytics, lang),
		AutomationHandler: automation.NewHandler(logger, services.Rules, runner, jobClient, services.Location),
		JobHandler:        jobs.NewHandler(inspector, jobClient, logger),
		Metrics:           metrics,
		HealthChecks:      services.HealthChecks(),
	})

	// Other API instances bump the cache version after writes; log it so
	// stale reads can be traced.
	if err := services.Cache.ListenForInvalidation(ctx, func(version int64) {
		logger.Debug("finance cache invalidated", slog.Int64("version", version))
	}); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
