// Package automation schedules recurring invoices and evaluates payment
// reminder rules.
package automation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fiscalia/fiscalia/internal/finance"
)

// RuleType identifies what a rule does when it fires.
type RuleType string

const (
	RuleRecurringInvoice RuleType = "recurring_invoice"
	RulePaymentReminder  RuleType = "payment_reminder"
	RuleOverdueAlert     RuleType = "overdue_alert"
)

// Frequency is the generation cadence of a recurring invoice.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// ReminderType is the delivery channel of reminders and alerts.
type ReminderType string

const (
	ReminderEmail        ReminderType = "email"
	ReminderNotification ReminderType = "notification"
)

// Target selects which ledger a reminder rule inspects.
type Target string

const (
	TargetReceivables Target = "receivables"
	TargetPayables    Target = "payables"
)

// Rule is a stored automation rule. Recurring fields apply to
// recurring_invoice; DaysBeforeDue, ReminderType and Target apply to the
// reminder and alert types.
type Rule struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	RuleType RuleType `json:"ruleType"`
	IsActive bool     `json:"isActive"`

	CustomerName       string          `json:"customerName,omitempty"`
	CustomerTaxID      string          `json:"customerTaxId,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Frequency          Frequency       `json:"frequency,omitempty"`
	StartDate          time.Time       `json:"startDate"`
	EndDate            *time.Time      `json:"endDate,omitempty"`
	NextGenerationDate *time.Time      `json:"nextGenerationDate,omitempty"`
	PaymentTerms       int             `json:"paymentTerms"`

	DaysBeforeDue int          `json:"daysBeforeDue"`
	ReminderType  ReminderType `json:"reminderType,omitempty"`
	Target        Target       `json:"target,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// TargetOrDefault returns the rule target, defaulting to receivables.
func (r Rule) TargetOrDefault() Target {
	if r.Target == "" {
		return TargetReceivables
	}
	return r.Target
}

// Filter narrows rule listings.
type Filter struct {
	Types      []RuleType
	ActiveOnly bool
	Limit      int
}

// Reminder is a notification produced by a reminder or alert rule for one
// open record.
type Reminder struct {
	RuleID       string         `json:"ruleId"`
	RuleName     string         `json:"ruleName"`
	Kind         RuleType       `json:"kind"`
	Channel      ReminderType   `json:"channel"`
	Target       Target         `json:"target"`
	Record       finance.Record `json:"record"`
	DaysUntilDue int            `json:"daysUntilDue"`
	// AsOf is the run date the record was matched on.
	AsOf time.Time `json:"asOf"`
}

// RunSummary reports what a Runner pass did.
type RunSummary struct {
	AsOf               time.Time `json:"asOf"`
	RulesEvaluated     int       `json:"rulesEvaluated"`
	InvoicesCreated    int       `json:"invoicesCreated"`
	RulesDeactivated   int       `json:"rulesDeactivated"`
	RemindersQueued    int       `json:"remindersQueued"`
	Failures           int       `json:"failures"`
	CreatedReceivables []string  `json:"createdReceivables"`
}
