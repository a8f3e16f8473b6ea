package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fiscalia/fiscalia/internal/automation"
	"github.com/fiscalia/fiscalia/internal/finance"
	jobmetrics "github.com/fiscalia/fiscalia/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AutomationRunner is the slice of automation.Runner the job drives.
type AutomationRunner interface {
	Run(ctx context.Context, today time.Time) (automation.RunSummary, error)
}

// AutomationRunJob executes recurring invoice and reminder rules.
type AutomationRunJob struct {
	Runner   AutomationRunner
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Location *time.Location
	clock    func() time.Time
}

// NewAutomationRunJob wires dependencies for the automation handler.
func NewAutomationRunJob(runner AutomationRunner, loc *time.Location, logger *slog.Logger, metrics *jobmetrics.Metrics) *AutomationRunJob {
	return &AutomationRunJob{
		Runner:   runner,
		Logger:   logger,
		Metrics:  metrics,
		Location: loc,
		clock:    time.Now,
	}
}

// Handle processes TaskAutomationRun tasks.
func (j *AutomationRunJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Runner == nil {
		return errors.New("automation run: handler not configured")
	}
	var payload AutomationRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("automation run: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	today := businessToday(j.clock, j.Location)
	if payload.Date != "" {
		parsed, err := time.Parse(time.DateOnly, payload.Date)
		if err != nil {
			return fmt.Errorf("automation run: date %q: %w", payload.Date, asynq.SkipRetry)
		}
		today = parsed
	}

	metrics := metricsOrDefault(j.Metrics)
	tracker := metrics.Track(TaskAutomationRun)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := jobLogger(j.Logger, TaskAutomationRun).With(slog.String("date", today.Format(time.DateOnly)))
	logger.Info("starting automation run")

	summary, err := j.Runner.Run(ctx, today)
	metrics.AddInvoices(summary.InvoicesCreated)
	if err != nil {
		logger.Error("automation run failed", slog.Any("error", err))
		return err
	}
	logger.Info("completed automation run",
		slog.Int("rules", summary.RulesEvaluated),
		slog.Int("invoices", summary.InvoicesCreated),
		slog.Int("deactivated", summary.RulesDeactivated),
		slog.Int("reminders", summary.RemindersQueued),
		slog.Int("failures", summary.Failures),
	)
	return nil
}

func businessToday(clock func() time.Time, loc *time.Location) time.Time {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return finance.Day(clock().In(loc))
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}
