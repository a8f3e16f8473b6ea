// Package finance holds the pure calculation engines behind the receivables and
// payables dashboards: aging, payment schedule, collection metrics, cash-flow
// forecast and health scoring. Every entry point takes "today" explicitly.
package finance

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the lifecycle states of a receivable or payable.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPartial   Status = "partial"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPartial, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the record no longer carries an outstanding balance.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// Record is the shape shared by receivables (customer invoices) and payables
// (vendor bills). DocumentDate and DueDate are calendar dates.
type Record struct {
	ID                string          `json:"id"`
	CounterpartyName  string          `json:"counterpartyName"`
	CounterpartyTaxID string          `json:"counterpartyTaxId"`
	DocumentNumber    string          `json:"documentNumber"`
	DocumentDate      time.Time       `json:"documentDate"`
	DueDate           time.Time       `json:"dueDate"`
	Amount            decimal.Decimal `json:"amount"`
	AmountPaid        decimal.Decimal `json:"amountPaid"`
	Status            Status          `json:"status"`
	PaymentTerms      int             `json:"paymentTerms"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	// PaidAt is the settlement date when the source system records one.
	PaidAt *time.Time `json:"paidAt,omitempty"`
}

// Outstanding returns Amount - AmountPaid. Negative balances are not clamped.
func (r Record) Outstanding() decimal.Decimal {
	return r.Amount.Sub(r.AmountPaid)
}

// SettledAt returns the best known settlement timestamp: PaidAt when present,
// otherwise UpdatedAt.
func (r Record) SettledAt() time.Time {
	if r.PaidAt != nil && !r.PaidAt.IsZero() {
		return *r.PaidAt
	}
	return r.UpdatedAt
}

// HasDueDate reports whether the record carries a usable due date.
func (r Record) HasDueDate() bool {
	return !r.DueDate.IsZero()
}

// ErrInvalidPayment is returned by ApplyPayment for non-positive amounts or
// settled records.
var ErrInvalidPayment = errors.New("finance: invalid payment")

// ApplyPayment adds a payment and derives the resulting status. Reaching the
// full amount marks the record paid and stamps PaidAt.
func (r Record) ApplyPayment(amount decimal.Decimal, at time.Time) (Record, error) {
	if !amount.IsPositive() {
		return r, fmt.Errorf("%w: amount must be positive", ErrInvalidPayment)
	}
	if r.Status.IsTerminal() {
		return r, fmt.Errorf("%w: record is %s", ErrInvalidPayment, r.Status)
	}
	r.AmountPaid = r.AmountPaid.Add(amount)
	r.UpdatedAt = at
	if r.AmountPaid.GreaterThanOrEqual(r.Amount) {
		r.Status = StatusPaid
		paidAt := at
		r.PaidAt = &paidAt
	} else {
		r.Status = StatusPartial
	}
	return r, nil
}
