package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fiscalia/fiscalia/internal/analytics"
	"github.com/fiscalia/fiscalia/internal/automation"
	"github.com/fiscalia/fiscalia/internal/finance"
	jobmetrics "github.com/fiscalia/fiscalia/internal/jobs"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubRunner struct {
	gotToday time.Time
	summary  automation.RunSummary
	err      error
}

func (s *stubRunner) Run(_ context.Context, today time.Time) (automation.RunSummary, error) {
	s.gotToday = today
	return s.summary, s.err
}

func TestAutomationRunUsesPayloadDate(t *testing.T) {
	runner := &stubRunner{summary: automation.RunSummary{InvoicesCreated: 2}}
	job := NewAutomationRunJob(runner, time.UTC, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewAutomationRunTask(time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC), runner.gotToday)
}

func TestAutomationRunDefaultsToBusinessToday(t *testing.T) {
	loc := time.FixedZone("CST", -6*3600)
	runner := &stubRunner{}
	job := NewAutomationRunJob(runner, loc, quietLogger(), nil)
	job.clock = func() time.Time { return time.Date(2024, 3, 14, 3, 0, 0, 0, time.UTC) }

	task, err := NewAutomationRunTask(time.Time{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC), runner.gotToday)
}

func TestAutomationRunSkipsRetryOnBadPayload(t *testing.T) {
	job := NewAutomationRunJob(&stubRunner{}, nil, quietLogger(), nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskAutomationRun, []byte(`{`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskAutomationRun, []byte(`{"date":"13/03/2024"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAutomationRunPropagatesRunnerError(t *testing.T) {
	boom := errors.New("store down")
	job := NewAutomationRunJob(&stubRunner{err: boom}, nil, quietLogger(), nil)

	task, err := NewAutomationRunTask(time.Time{})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), boom)
}

type stubHealth struct {
	gotQuery analytics.Query
	report   analytics.HealthReport
	err      error
}

func (s *stubHealth) Health(_ context.Context, q analytics.Query) (analytics.HealthReport, error) {
	s.gotQuery = q
	return s.report, s.err
}

func TestHealthScanRecordsAlerts(t *testing.T) {
	reporter := &stubHealth{report: analytics.HealthReport{
		AsOf:       time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC),
		Indicators: finance.HealthIndicators{HealthScore: 40, HealthLevel: finance.HealthPoor},
		Alerts: []finance.Alert{
			{Kind: finance.AlertCashCrunch, Severity: finance.SeverityCritical, Message: "saldo negativo"},
			{Kind: finance.AlertHighDSO, Severity: finance.SeverityWarning, Message: "DSO alto"},
		},
	}}
	job := NewHealthScanJob(reporter, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewHealthScanTask(HealthScanPayload{HorizonDays: 60})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 60, reporter.gotQuery.HorizonDays)
}

func TestHealthScanRejectsHorizon(t *testing.T) {
	job := NewHealthScanJob(&stubHealth{}, quietLogger(), nil)

	task, err := NewHealthScanTask(HealthScanPayload{HorizonDays: analytics.MaxHorizonDays + 1})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

type stubWarmer struct {
	calls int
	err   error
}

func (s *stubWarmer) Warm(ctx context.Context) error {
	s.calls++
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing deadline")
	}
	return s.err
}

func TestDashboardWarmup(t *testing.T) {
	warmer := &stubWarmer{}
	job := NewDashboardWarmupJob(warmer, quietLogger(), nil)
	task, err := NewDashboardWarmupTask()
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, warmer.calls)

	warmer.err = errors.New("redis down")
	require.Error(t, job.Handle(context.Background(), task))
}

type recordingDeliverer struct {
	got []automation.Reminder
	err error
}

func (d *recordingDeliverer) Deliver(_ context.Context, reminder automation.Reminder) error {
	d.got = append(d.got, reminder)
	return d.err
}

func sampleReminder() automation.Reminder {
	return automation.Reminder{
		RuleID:  "rule-1",
		Kind:    automation.RulePaymentReminder,
		Channel: automation.ReminderEmail,
		Target:  automation.TargetReceivables,
		Record: finance.Record{
			ID:               "rec-1",
			CounterpartyName: "Abarrotes Lupita",
			Amount:           decimal.NewFromInt(1200),
			DueDate:          time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
		},
		DaysUntilDue: 3,
		AsOf:         time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC),
	}
}

func TestReminderJobDelivers(t *testing.T) {
	deliverer := &recordingDeliverer{}
	job := NewReminderJob(deliverer, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewSendReminderTask(sampleReminder())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, deliverer.got, 1)
	require.Equal(t, "rec-1", deliverer.got[0].Record.ID)
	require.True(t, decimal.NewFromInt(1200).Equal(deliverer.got[0].Record.Amount))
}

func TestReminderJobRejectsIncompletePayload(t *testing.T) {
	job := NewReminderJob(nil, quietLogger(), nil)
	task, err := NewSendReminderTask(automation.Reminder{RuleID: "rule-1"})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

type enqueueCall struct {
	task *asynq.Task
	opts []asynq.Option
}

type stubEnqueuer struct {
	calls []enqueueCall
	err   error
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.calls = append(s.calls, enqueueCall{task: task, opts: opts})
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault, Type: task.Type()}, nil
}

func optionValue(opts []asynq.Option, typ asynq.OptionType) (any, bool) {
	for _, opt := range opts {
		if opt.Type() == typ {
			return opt.Value(), true
		}
	}
	return nil, false
}

func TestClientNotifyDeduplicatesPerDay(t *testing.T) {
	enq := &stubEnqueuer{}
	client := newClient(enq, time.UTC)
	// The wall clock has moved on; the key follows the reminder's run date.
	client.now = func() time.Time { return time.Date(2024, 3, 14, 0, 30, 0, 0, time.UTC) }

	require.NoError(t, client.Notify(context.Background(), sampleReminder()))
	require.Len(t, enq.calls, 1)
	require.Equal(t, TaskSendReminder, enq.calls[0].task.Type())

	id, ok := optionValue(enq.calls[0].opts, asynq.TaskIDOpt)
	require.True(t, ok)
	require.Equal(t, "reminder:rule-1:rec-1:20240313", id)
	queue, ok := optionValue(enq.calls[0].opts, asynq.QueueOpt)
	require.True(t, ok)
	require.Equal(t, QueueCritical, queue)

	enq.err = asynq.ErrTaskIDConflict
	require.NoError(t, client.Notify(context.Background(), sampleReminder()))

	enq.err = errors.New("redis down")
	require.Error(t, client.Notify(context.Background(), sampleReminder()))
}

func TestClientNotifyDefaultsToBusinessToday(t *testing.T) {
	enq := &stubEnqueuer{}
	client := newClient(enq, time.FixedZone("CST", -6*60*60))
	client.now = func() time.Time { return time.Date(2024, 3, 14, 3, 0, 0, 0, time.UTC) }

	reminder := sampleReminder()
	reminder.AsOf = time.Time{}
	require.NoError(t, client.Notify(context.Background(), reminder))
	id, ok := optionValue(enq.calls[0].opts, asynq.TaskIDOpt)
	require.True(t, ok)
	require.Equal(t, "reminder:rule-1:rec-1:20240313", id)
}

type singleRuleStore struct {
	rules []automation.Rule
}

func (s singleRuleStore) ListRules(context.Context, automation.Filter) ([]automation.Rule, error) {
	return s.rules, nil
}

func (s singleRuleStore) AdvanceRule(context.Context, string, time.Time, *time.Time, bool) error {
	return nil
}

type openLedger struct {
	records []finance.Record
}

func (l openLedger) OpenRecords(context.Context, automation.Target) ([]finance.Record, error) {
	return l.records, nil
}

func (l openLedger) CreateReceivable(_ context.Context, rec finance.Record) (finance.Record, error) {
	return rec, nil
}

func TestBackdatedRunKeysRemindersOnRunDate(t *testing.T) {
	enq := &stubEnqueuer{}
	client := newClient(enq, time.UTC)
	client.now = func() time.Time { return time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC) }

	store := singleRuleStore{rules: []automation.Rule{{
		ID: "rule-1", Name: "Vencidas", RuleType: automation.RuleOverdueAlert, IsActive: true,
		ReminderType: automation.ReminderNotification, DaysBeforeDue: 1,
	}}}
	ledger := openLedger{records: []finance.Record{{
		ID: "rec-1", DocumentNumber: "F-1", Amount: decimal.NewFromInt(500),
		DueDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Status: finance.StatusOverdue,
	}}}
	runner := automation.NewRunner(store, ledger, client, quietLogger())

	for _, date := range []time.Time{
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC),
	} {
		summary, err := runner.Run(context.Background(), date)
		require.NoError(t, err)
		require.Equal(t, 1, summary.RemindersQueued)
	}

	require.Len(t, enq.calls, 2)
	first, _ := optionValue(enq.calls[0].opts, asynq.TaskIDOpt)
	second, _ := optionValue(enq.calls[1].opts, asynq.TaskIDOpt)
	require.Equal(t, "reminder:rule-1:rec-1:20240310", first)
	require.Equal(t, "reminder:rule-1:rec-1:20240313", second)
}

func TestClientEnqueueAutomationRun(t *testing.T) {
	enq := &stubEnqueuer{}
	client := newClient(enq, nil)

	id, err := client.EnqueueAutomationRun(context.Background(), time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "task-1", id)

	var payload AutomationRunPayload
	require.NoError(t, json.Unmarshal(enq.calls[0].task.Payload(), &payload))
	require.Equal(t, "2024-03-13", payload.Date)
}

func TestNewTaskByName(t *testing.T) {
	for _, name := range TaskNames {
		task, err := NewTaskByName(name)
		require.NoError(t, err)
		require.Equal(t, name, task.Type())
	}
	_, err := NewTaskByName("inventory:revaluation")
	require.Error(t, err)
}

type stubInspector struct {
	infos map[string]*asynq.QueueInfo
	err   error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	info, ok := s.infos[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func TestHandlerHealthReportsQueues(t *testing.T) {
	inspector := stubInspector{infos: map[string]*asynq.QueueInfo{
		QueueDefault: {Queue: QueueDefault, Size: 3, Pending: 2, Active: 1, Processed: 10},
	}}
	h := NewHandler(inspector, nil, quietLogger())
	r := chi.NewRouter()
	h.MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Queues []QueueStats `json:"queues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Queues, 2)
	require.Equal(t, 2, body.Queues[0].Pending)
	require.Equal(t, QueueCritical, body.Queues[1].Queue)
	require.Zero(t, body.Queues[1].Size)
}

func TestHandlerHealthUnavailable(t *testing.T) {
	h := NewHandler(stubInspector{err: errors.New("redis down")}, nil, quietLogger())
	r := chi.NewRouter()
	h.MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestHandlerTrigger(t *testing.T) {
	enq := &stubEnqueuer{}
	h := NewHandler(nil, newClient(enq, nil), quietLogger())
	r := chi.NewRouter()
	h.MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger/"+TaskHealthScan, nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, enq.calls, 1)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger/unknown", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
