package automation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fiscalia/fiscalia/internal/finance"
	"github.com/fiscalia/fiscalia/internal/platform/httpx"
)

type memoryRuleStore struct {
	rules    map[string]Rule
	order    []string
	advances int
	listErr  error
}

func newMemoryRuleStore(rules ...Rule) *memoryRuleStore {
	s := &memoryRuleStore{rules: make(map[string]Rule)}
	for _, rule := range rules {
		s.rules[rule.ID] = rule
		s.order = append(s.order, rule.ID)
	}
	return s
}

func (s *memoryRuleStore) ListRules(ctx context.Context, filter Filter) ([]Rule, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]Rule, 0, len(s.order))
	for _, id := range s.order {
		rule := s.rules[id]
		if filter.ActiveOnly && !rule.IsActive {
			continue
		}
		if len(filter.Types) > 0 && !containsType(filter.Types, rule.RuleType) {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func containsType(list []RuleType, t RuleType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func (s *memoryRuleStore) GetRule(ctx context.Context, id string) (Rule, error) {
	rule, ok := s.rules[id]
	if !ok {
		return Rule{}, fmt.Errorf("automation: rule %s: %w", id, httpx.ErrNotFound)
	}
	return rule, nil
}

func (s *memoryRuleStore) AdvanceRule(ctx context.Context, id string, from time.Time, next *time.Time, active bool) error {
	rule := s.rules[id]
	if rule.NextGenerationDate == nil || !rule.NextGenerationDate.Equal(from) {
		return fmt.Errorf("automation: advance rule %s: %w", id, ErrStaleRule)
	}
	s.advances++
	rule.NextGenerationDate = next
	rule.IsActive = active
	s.rules[id] = rule
	return nil
}

type memoryLedger struct {
	receivables []finance.Record
	payables    []finance.Record
	created     []finance.Record
}

func (l *memoryLedger) OpenRecords(ctx context.Context, target Target) ([]finance.Record, error) {
	if target == TargetPayables {
		return l.payables, nil
	}
	return l.receivables, nil
}

func (l *memoryLedger) CreateReceivable(ctx context.Context, rec finance.Record) (finance.Record, error) {
	for _, existing := range l.created {
		if existing.DocumentNumber == rec.DocumentNumber {
			return finance.Record{}, fmt.Errorf("ar: invoice %s: %w", rec.DocumentNumber, httpx.ErrDuplicate)
		}
	}
	l.created = append(l.created, rec)
	return rec, nil
}

type recordingNotifier struct {
	sent []Reminder
	fail map[string]bool
}

func (n *recordingNotifier) Notify(ctx context.Context, reminder Reminder) error {
	if n.fail[reminder.Record.ID] {
		return errors.New("queue unavailable")
	}
	n.sent = append(n.sent, reminder)
	return nil
}

var runNow = time.Date(2024, time.March, 13, 6, 0, 0, 0, time.UTC)

func newTestRunner(store RuleStore, ledger Ledger, notifier Notifier) *Runner {
	runner := NewRunner(store, ledger, notifier, slog.New(slog.NewTextHandler(io.Discard, nil)))
	runner.WithNow(func() time.Time { return runNow })
	return runner
}

func TestRunCatchesUpMissedPeriods(t *testing.T) {
	rule := recurringRule("5f0c2a9e-71d4-4b5e-9a61-0d3c2b1a9e77", day(2024, time.January, 13))
	store := newMemoryRuleStore(rule)
	ledger := &memoryLedger{}

	summary, err := newTestRunner(store, ledger, nil).Run(context.Background(), today)
	require.NoError(t, err)
	require.Equal(t, 1, summary.RulesEvaluated)
	require.Equal(t, 3, summary.InvoicesCreated)
	require.Zero(t, summary.Failures)
	require.Len(t, summary.CreatedReceivables, 3)

	require.Len(t, ledger.created, 3)
	first := ledger.created[0]
	require.Equal(t, "AUT-5F0C2A9E-20240113", first.DocumentNumber)
	require.Equal(t, day(2024, time.January, 13), first.DocumentDate)
	require.Equal(t, day(2024, time.January, 28), first.DueDate)
	require.Equal(t, finance.StatusPending, first.Status)
	require.True(t, first.Amount.Equal(decimal.RequireFromString("8500")))
	require.Equal(t, runNow, first.UpdatedAt)
	require.Equal(t, "AUT-5F0C2A9E-20240313", ledger.created[2].DocumentNumber)

	stored := store.rules[rule.ID]
	require.True(t, stored.IsActive)
	require.Equal(t, day(2024, time.April, 13), *stored.NextGenerationDate)
	require.Equal(t, 3, store.advances)
}

func TestRunIsIdempotentForExistingInvoices(t *testing.T) {
	rule := recurringRule("rule-dup", today)
	store := newMemoryRuleStore(rule)
	ledger := &memoryLedger{created: []finance.Record{{DocumentNumber: InvoiceNumber(rule, today)}}}

	summary, err := newTestRunner(store, ledger, nil).Run(context.Background(), today)
	require.NoError(t, err)
	require.Zero(t, summary.InvoicesCreated)
	require.Zero(t, summary.Failures)
	require.Equal(t, day(2024, time.April, 13), *store.rules[rule.ID].NextGenerationDate)

	summary, err = newTestRunner(store, ledger, nil).Run(context.Background(), today)
	require.NoError(t, err)
	require.Zero(t, summary.InvoicesCreated)
	require.Equal(t, 1, store.advances)
}

func TestRunDeactivatesRulePastEndDate(t *testing.T) {
	rule := recurringRule("rule-end", today)
	rule.EndDate = ptr(day(2024, time.March, 31))
	store := newMemoryRuleStore(rule)
	ledger := &memoryLedger{}

	summary, err := newTestRunner(store, ledger, nil).Run(context.Background(), today)
	require.NoError(t, err)
	require.Equal(t, 1, summary.InvoicesCreated)
	require.Equal(t, 1, summary.RulesDeactivated)
	require.False(t, store.rules[rule.ID].IsActive)
	require.Equal(t, day(2024, time.April, 13), *store.rules[rule.ID].NextGenerationDate)
}

func TestRunCountsInvalidFrequencyAndContinues(t *testing.T) {
	broken := recurringRule("rule-broken", today)
	broken.Frequency = "biweekly"
	healthy := recurringRule("rule-ok", today)
	store := newMemoryRuleStore(broken, healthy)
	ledger := &memoryLedger{}

	summary, err := newTestRunner(store, ledger, nil).Run(context.Background(), today)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failures)
	require.Equal(t, 1, summary.InvoicesCreated)
	require.Equal(t, today, *store.rules[broken.ID].NextGenerationDate)
}

func TestRunDispatchesReminders(t *testing.T) {
	reminder := Rule{ID: "rem", Name: "Aviso", RuleType: RulePaymentReminder, IsActive: true, DaysBeforeDue: 3, ReminderType: ReminderEmail}
	alert := Rule{ID: "alert", Name: "Pagos vencidos", RuleType: RuleOverdueAlert, IsActive: true, ReminderType: ReminderNotification, Target: TargetPayables}
	store := newMemoryRuleStore(reminder, alert)
	ledger := &memoryLedger{
		receivables: reminderRecords(),
		payables: []finance.Record{
			{ID: "bill-late", DueDate: day(2024, time.March, 1), Amount: decimal.NewFromInt(900), Status: finance.StatusPending},
			{ID: "bill-fail", DueDate: day(2024, time.March, 2), Amount: decimal.NewFromInt(300), Status: finance.StatusPending},
		},
	}
	notifier := &recordingNotifier{fail: map[string]bool{"bill-fail": true}}

	summary, err := newTestRunner(store, ledger, notifier).Run(context.Background(), today)
	require.NoError(t, err)
	require.Equal(t, 2, summary.RemindersQueued)
	require.Equal(t, 1, summary.Failures)
	require.Len(t, notifier.sent, 2)
	require.Equal(t, "in-3", notifier.sent[0].Record.ID)
	require.Equal(t, TargetReceivables, notifier.sent[0].Target)
	require.Equal(t, "bill-late", notifier.sent[1].Record.ID)
	require.Equal(t, TargetPayables, notifier.sent[1].Target)
}

func TestRunPropagatesStoreFailure(t *testing.T) {
	store := newMemoryRuleStore()
	store.listErr = errors.New("connection refused")
	_, err := newTestRunner(store, &memoryLedger{}, nil).Run(context.Background(), today)
	require.ErrorContains(t, err, "load rules")
}

func TestDueRules(t *testing.T) {
	reminder := Rule{ID: "rem", Name: "Aviso", RuleType: RulePaymentReminder, IsActive: true, DaysBeforeDue: 3}
	store := newMemoryRuleStore(recurringRule("due", today), recurringRule("later", day(2024, time.May, 1)), reminder)
	due, err := newTestRunner(store, &memoryLedger{}, nil).DueRules(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "due", due[0].ID)
}

type stubReceivables struct{ created []finance.Record }

func (s *stubReceivables) OpenReceivables(context.Context) ([]finance.Record, error) {
	return []finance.Record{{ID: "r-1"}}, nil
}

func (s *stubReceivables) CreateRecord(_ context.Context, rec finance.Record) (finance.Record, error) {
	s.created = append(s.created, rec)
	return rec, nil
}

type stubPayables struct{}

func (stubPayables) OpenPayables(context.Context) ([]finance.Record, error) {
	return []finance.Record{{ID: "p-1"}, {ID: "p-2"}}, nil
}

func TestServiceLedger(t *testing.T) {
	receivables := &stubReceivables{}
	ledger := ServiceLedger{Receivables: receivables, Payables: stubPayables{}}
	ctx := context.Background()

	recs, err := ledger.OpenRecords(ctx, TargetReceivables)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	recs, err = ledger.OpenRecords(ctx, TargetPayables)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	_, err = ledger.OpenRecords(ctx, Target("inventory"))
	require.Error(t, err)

	_, err = ledger.CreateReceivable(ctx, finance.Record{ID: "new"})
	require.NoError(t, err)
	require.Len(t, receivables.created, 1)
}
