package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fiscalia/fiscalia/internal/automation"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries reminder delivery ahead of batch work.
	QueueCritical = "critical"

	// TaskAutomationRun runs due recurring invoice rules and reminder rules.
	TaskAutomationRun = "automation:run"
	// TaskSendReminder delivers one reminder produced by a rule.
	TaskSendReminder = "automation:send_reminder"
	// TaskHealthScan computes health indicators and records the alerts.
	TaskHealthScan = "finance:health_scan"
	// TaskDashboardWarmup fills the dashboard cache for today.
	TaskDashboardWarmup = "finance:dashboard_warmup"
)

// TaskNames lists the task types operators may trigger by hand.
var TaskNames = []string{TaskAutomationRun, TaskHealthScan, TaskDashboardWarmup}

// AutomationRunPayload selects the business date to run for. An empty Date
// means today.
type AutomationRunPayload struct {
	Date string `json:"date,omitempty"`
}

// HealthScanPayload tunes the forecast used by the scan.
type HealthScanPayload struct {
	HorizonDays int `json:"horizon_days,omitempty"`
}

// DashboardWarmupPayload is empty; the warmup always targets today.
type DashboardWarmupPayload struct{}

// NewAutomationRunTask builds an automation run for date. A zero date
// defers to the worker's today.
func NewAutomationRunTask(date time.Time) (*asynq.Task, error) {
	payload := AutomationRunPayload{}
	if !date.IsZero() {
		payload.Date = date.Format(time.DateOnly)
	}
	return newTask(TaskAutomationRun, payload)
}

// NewHealthScanTask builds a health scan task.
func NewHealthScanTask(payload HealthScanPayload) (*asynq.Task, error) {
	return newTask(TaskHealthScan, payload)
}

// NewDashboardWarmupTask builds a dashboard warmup task.
func NewDashboardWarmupTask() (*asynq.Task, error) {
	return newTask(TaskDashboardWarmup, DashboardWarmupPayload{})
}

// NewSendReminderTask wraps a reminder for delivery.
func NewSendReminderTask(reminder automation.Reminder) (*asynq.Task, error) {
	return newTask(TaskSendReminder, reminder)
}

// NewTaskByName builds an empty-payload task for one of TaskNames.
func NewTaskByName(name string) (*asynq.Task, error) {
	switch name {
	case TaskAutomationRun:
		return NewAutomationRunTask(time.Time{})
	case TaskHealthScan:
		return NewHealthScanTask(HealthScanPayload{})
	case TaskDashboardWarmup:
		return NewDashboardWarmupTask()
	default:
		return nil, fmt.Errorf("jobs: unknown task %q", name)
	}
}

// ReminderTaskID identifies a reminder delivery by rule, record and run date
// so a rerun for the same date does not send it twice.
func ReminderTaskID(reminder automation.Reminder) string {
	return fmt.Sprintf("reminder:%s:%s:%s", reminder.RuleID, reminder.Record.ID, reminder.AsOf.Format("20060102"))
}

func newTask(taskType string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, data), nil
}
