// Package ar reads and writes customer receivables.
package ar

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fiscalia/fiscalia/internal/finance"
)

// Filter narrows receivable listings. Zero values mean "no constraint".
type Filter struct {
	Statuses      []finance.Status
	DueFrom       *time.Time
	DueTo         *time.Time
	CustomerTaxID string
	Limit         int
}

// CreateInput is the payload for a new receivable.
type CreateInput struct {
	ID            string          `json:"id" validate:"omitempty,max=64"`
	CustomerName  string          `json:"customerName" validate:"required,max=200"`
	CustomerTaxID string          `json:"customerTaxId" validate:"omitempty,min=12,max=13"`
	InvoiceNumber string          `json:"invoiceNumber" validate:"required,max=64"`
	InvoiceDate   string          `json:"invoiceDate" validate:"required,datetime=2006-01-02"`
	DueDate       string          `json:"dueDate" validate:"required,datetime=2006-01-02"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	PaymentTerms  int             `json:"paymentTerms" validate:"gte=0,lte=365"`
}

// PaymentInput registers a collection against a receivable.
type PaymentInput struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	PaidAt *time.Time      `json:"paidAt,omitempty"`
}
