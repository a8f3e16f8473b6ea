package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/fiscalia/fiscalia/internal/app"
	"github.com/fiscalia/fiscalia/internal/automation"
	jobmetrics "github.com/fiscalia/fiscalia/internal/jobs"
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
		logger.Info("configuration valid, dry run requested", slog.String("metrics_addr", cfg.WorkerMetricsAddr))
		return
	}

	services, err := app.BuildServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("build services", slog.Any("error", err))
		os.Exit(1)
	}
	defer services.Close(logger)

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

	registry := observability.NewMetrics()
	metrics := jobmetrics.NewMetrics(registry.Registerer())
	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: registry.Handler()}
		go func() {
			logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			_ = metricsServer.Close()
		}()
	}
	runner := automation.NewRunner(services.Rules, services.Ledger, jobClient, logger)

	automationJob := jobs.NewAutomationRunJob(runner, services.Location, logger, metrics)
	healthJob := jobs.NewHealthScanJob(services.Analytics, logger, metrics)
	warmupJob := jobs.NewDashboardWarmupJob(services.Analytics, logger, metrics)
	reminderJob := jobs.NewReminderJob(nil, logger, metrics)

	automationTask, err := jobs.NewTaskByName(jobs.TaskAutomationRun)
	if err != nil {
		logger.Error("build automation task", slog.Any("error", err))
		os.Exit(1)
	}
	healthTask, err := jobs.NewTaskByName(jobs.TaskHealthScan)
	if err != nil {
		logger.Error("build health task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewTaskByName(jobs.TaskDashboardWarmup)
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Location:    services.Location,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAutomationRun, Handler: automationJob.Handle},
			{Type: jobs.TaskHealthScan, Handler: healthJob.Handle},
			{Type: jobs.TaskDashboardWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskSendReminder, Handler: reminderJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 6 * * *", Task: automationTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 7 * * *", Task: healthTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "5 * * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
