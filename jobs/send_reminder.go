package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/fiscalia/fiscalia/internal/automation"
	jobmetrics "github.com/fiscalia/fiscalia/internal/jobs"
)

// Deliverer sends a reminder through its channel.
type Deliverer interface {
	Deliver(ctx context.Context, reminder automation.Reminder) error
}

// LogDeliverer writes reminders to the log. It stands in until an email or
// push provider is configured.
type LogDeliverer struct {
	Logger *slog.Logger
}

// Deliver implements Deliverer.
func (d LogDeliverer) Deliver(ctx context.Context, reminder automation.Reminder) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "reminder",
		slog.String("rule_id", reminder.RuleID),
		slog.String("channel", string(reminder.Channel)),
		slog.String("target", string(reminder.Target)),
		slog.String("record_id", reminder.Record.ID),
		slog.String("counterparty", reminder.Record.CounterpartyName),
		slog.String("amount", reminder.Record.Amount.StringFixed(2)),
		slog.Int("days_until_due", reminder.DaysUntilDue),
	)
	return nil
}

// ReminderJob delivers reminders queued by the automation runner.
type ReminderJob struct {
	Deliverer Deliverer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewReminderJob wires dependencies for the reminder handler. A nil
// deliverer logs the reminder.
func NewReminderJob(deliverer Deliverer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReminderJob {
	if deliverer == nil {
		deliverer = LogDeliverer{Logger: logger}
	}
	return &ReminderJob{Deliverer: deliverer, Logger: logger, Metrics: metrics}
}

// Handle processes TaskSendReminder tasks.
func (j *ReminderJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Deliverer == nil {
		return errors.New("send reminder: handler not configured")
	}
	var reminder automation.Reminder
	if err := json.Unmarshal(t.Payload(), &reminder); err != nil {
		return fmt.Errorf("send reminder: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if reminder.RuleID == "" || reminder.Record.ID == "" {
		return fmt.Errorf("send reminder: missing rule or record id: %w", asynq.SkipRetry)
	}

	metrics := metricsOrDefault(j.Metrics)
	tracker := metrics.Track(TaskSendReminder)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if err := j.Deliverer.Deliver(ctx, reminder); err != nil {
		jobLogger(j.Logger, TaskSendReminder).Warn("reminder delivery failed",
			slog.String("rule_id", reminder.RuleID),
			slog.String("record_id", reminder.Record.ID),
			slog.Any("error", err),
		)
		return err
	}
	metrics.AddReminder(string(reminder.Channel))
	return nil
}
