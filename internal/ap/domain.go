// Package ap reads and writes vendor payables.
package ap

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fiscalia/fiscalia/internal/finance"
)

// Filter narrows payable listings. Zero values mean "no constraint".
type Filter struct {
	Statuses    []finance.Status
	DueFrom     *time.Time
	DueTo       *time.Time
	VendorTaxID string
	Limit       int
}

// CreateInput is the payload for a new vendor bill.
type CreateInput struct {
	ID           string          `json:"id" validate:"omitempty,max=64"`
	VendorName   string          `json:"vendorName" validate:"required,max=200"`
	VendorTaxID  string          `json:"vendorTaxId" validate:"omitempty,min=12,max=13"`
	BillNumber   string          `json:"billNumber" validate:"required,max=64"`
	BillDate     string          `json:"billDate" validate:"required,datetime=2006-01-02"`
	DueDate      string          `json:"dueDate" validate:"required,datetime=2006-01-02"`
	Amount       decimal.Decimal `json:"amount" validate:"gt=0"`
	PaymentTerms int             `json:"paymentTerms" validate:"gte=0,lte=365"`
}

// PaymentInput registers a payment made to a vendor.
type PaymentInput struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	PaidAt *time.Time      `json:"paidAt,omitempty"`
}
