package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fiscalia/fiscalia/internal/analytics"
	"github.com/fiscalia/fiscalia/internal/finance"
	jobmetrics "github.com/fiscalia/fiscalia/internal/jobs"
)

// HealthReporter computes health indicators and alerts.
type HealthReporter interface {
	Health(ctx context.Context, q analytics.Query) (analytics.HealthReport, error)
}

// HealthScanJob logs and counts the alerts of today's health report.
type HealthScanJob struct {
	Analytics HealthReporter
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewHealthScanJob initialises the health scan handler.
func NewHealthScanJob(reporter HealthReporter, logger *slog.Logger, metrics *jobmetrics.Metrics) *HealthScanJob {
	return &HealthScanJob{Analytics: reporter, Logger: logger, Metrics: metrics}
}

// Handle processes TaskHealthScan tasks.
func (j *HealthScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Analytics == nil {
		return errors.New("health scan: handler not configured")
	}
	var payload HealthScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("health scan: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.HorizonDays < 0 || payload.HorizonDays > analytics.MaxHorizonDays {
		return fmt.Errorf("health scan: horizon %d: %w", payload.HorizonDays, asynq.SkipRetry)
	}

	start := time.Now()
	metrics := metricsOrDefault(j.Metrics)
	tracker := metrics.Track(TaskHealthScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := jobLogger(j.Logger, TaskHealthScan)
	report, err := j.Analytics.Health(ctx, analytics.Query{HorizonDays: payload.HorizonDays})
	if err != nil {
		logger.Error("health scan failed", slog.Any("error", err))
		return err
	}

	metrics.SetHealthScore(report.Indicators.HealthScore)
	for _, alert := range report.Alerts {
		level := slog.LevelWarn
		if alert.Severity == finance.SeverityCritical {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "finance alert",
			slog.String("kind", string(alert.Kind)),
			slog.String("severity", string(alert.Severity)),
			slog.String("message", alert.Message),
		)
		metrics.AddAlerts(string(alert.Kind), string(alert.Severity), 1)
	}

	logger.Info("completed health scan",
		slog.String("as_of", report.AsOf.Format(time.DateOnly)),
		slog.Int("score", report.Indicators.HealthScore),
		slog.String("level", string(report.Indicators.HealthLevel)),
		slog.Int("alerts", len(report.Alerts)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}
