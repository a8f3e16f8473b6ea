package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fiscalia/fiscalia/internal/finance"
	"github.com/fiscalia/fiscalia/internal/platform/httpx"
)

// maxCatchUp bounds how many missed periods one rule may generate in a
// single run.
const maxCatchUp = 400

// RuleStore is the persistence the runner needs.
type RuleStore interface {
	ListRules(ctx context.Context, filter Filter) ([]Rule, error)
	AdvanceRule(ctx context.Context, id string, from time.Time, next *time.Time, active bool) error
}

// Ledger exposes the receivables and payables the runner reads and writes.
type Ledger interface {
	OpenRecords(ctx context.Context, target Target) ([]finance.Record, error)
	CreateReceivable(ctx context.Context, rec finance.Record) (finance.Record, error)
}

// Notifier delivers reminders.
type Notifier interface {
	Notify(ctx context.Context, reminder Reminder) error
}

// Runner executes due automation rules.
type Runner struct {
	store    RuleStore
	ledger   Ledger
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewRunner wires a runner. notifier may be nil to skip reminders.
func NewRunner(store RuleStore, ledger Ledger, notifier Notifier, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{store: store, ledger: ledger, notifier: notifier, logger: logger, now: time.Now}
}

// WithNow overrides the runner clock for testing.
func (r *Runner) WithNow(fn func() time.Time) {
	if fn != nil {
		r.now = fn
	}
}

// DueRules lists active rules that would generate an invoice on today.
func (r *Runner) DueRules(ctx context.Context, today time.Time) ([]Rule, error) {
	rules, err := r.store.ListRules(ctx, Filter{ActiveOnly: true, Types: []RuleType{RuleRecurringInvoice}})
	if err != nil {
		return nil, err
	}
	return RulesToExecute(rules, today), nil
}

// Run generates invoices for every due recurring rule and dispatches the
// reminders matched by reminder and alert rules. A failing rule is logged
// and counted; it does not stop the others.
func (r *Runner) Run(ctx context.Context, today time.Time) (RunSummary, error) {
	today = finance.Day(today)
	summary := RunSummary{AsOf: today, CreatedReceivables: []string{}}

	rules, err := r.store.ListRules(ctx, Filter{ActiveOnly: true})
	if err != nil {
		return summary, fmt.Errorf("automation: load rules: %w", err)
	}
	summary.RulesEvaluated = len(rules)

	for _, rule := range RulesToExecute(rules, today) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := r.generate(ctx, rule, today, &summary); err != nil {
			summary.Failures++
			r.logger.Error("automation rule failed",
				slog.String("rule_id", rule.ID),
				slog.String("rule", rule.Name),
				slog.Any("error", err))
		}
	}

	if r.notifier == nil {
		return summary, nil
	}
	open := make(map[Target][]finance.Record)
	for _, rule := range rules {
		if rule.RuleType != RulePaymentReminder && rule.RuleType != RuleOverdueAlert {
			continue
		}
		target := rule.TargetOrDefault()
		records, ok := open[target]
		if !ok {
			records, err = r.ledger.OpenRecords(ctx, target)
			if err != nil {
				return summary, fmt.Errorf("automation: load %s: %w", target, err)
			}
			open[target] = records
		}
		for _, reminder := range BuildReminders(rule, records, today) {
			if err := r.notifier.Notify(ctx, reminder); err != nil {
				summary.Failures++
				r.logger.Warn("automation reminder failed",
					slog.String("rule_id", rule.ID),
					slog.String("record_id", reminder.Record.ID),
					slog.Any("error", err))
				continue
			}
			summary.RemindersQueued++
		}
	}
	return summary, nil
}

// generate creates one invoice per missed period and advances the rule after
// each one, so a crash mid-way resumes where it stopped.
func (r *Runner) generate(ctx context.Context, rule Rule, today time.Time, summary *RunSummary) error {
	for i := 0; i < maxCatchUp && ShouldTrigger(rule, today); i++ {
		genDate := finance.Day(*rule.NextGenerationDate)
		next, err := NextDate(genDate, rule.Frequency)
		if err != nil {
			return err
		}

		rec, err := r.ledger.CreateReceivable(ctx, r.invoiceFor(rule, genDate))
		switch {
		case errors.Is(err, httpx.ErrDuplicate):
			r.logger.Info("automation invoice already exists",
				slog.String("rule_id", rule.ID),
				slog.String("generation_date", genDate.Format(time.DateOnly)))
		case err != nil:
			return fmt.Errorf("automation: create invoice: %w", err)
		default:
			summary.InvoicesCreated++
			summary.CreatedReceivables = append(summary.CreatedReceivables, rec.ID)
		}

		active := rule.EndDate == nil || rule.EndDate.IsZero() || !next.After(finance.Day(*rule.EndDate))
		if err := r.store.AdvanceRule(ctx, rule.ID, genDate, &next, active); err != nil {
			return err
		}
		if !active {
			summary.RulesDeactivated++
		}
		rule.NextGenerationDate = &next
		rule.IsActive = active
	}
	return nil
}

func (r *Runner) invoiceFor(rule Rule, genDate time.Time) finance.Record {
	return finance.Record{
		ID:                uuid.NewString(),
		CounterpartyName:  rule.CustomerName,
		CounterpartyTaxID: rule.CustomerTaxID,
		DocumentNumber:    InvoiceNumber(rule, genDate),
		DocumentDate:      genDate,
		DueDate:           genDate.AddDate(0, 0, rule.PaymentTerms),
		Amount:            rule.Amount,
		AmountPaid:        decimal.Zero,
		Status:            finance.StatusPending,
		PaymentTerms:      rule.PaymentTerms,
		UpdatedAt:         r.now(),
	}
}

// InvoiceNumber derives a stable document number for a rule's generation
// date, which makes repeated runs idempotent.
func InvoiceNumber(rule Rule, genDate time.Time) string {
	prefix := strings.ToUpper(strings.ReplaceAll(rule.ID, "-", ""))
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("AUT-%s-%s", prefix, genDate.Format("20060102"))
}
