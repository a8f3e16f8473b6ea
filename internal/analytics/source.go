package analytics

import (
	"context"

	"github.com/fiscalia/fiscalia/internal/ap"
	"github.com/fiscalia/fiscalia/internal/ar"
	"github.com/fiscalia/fiscalia/internal/finance"
)

// ReceivableLister is the AR read used by LedgerSource.
type ReceivableLister interface {
	ListReceivables(ctx context.Context, filter ar.Filter) ([]finance.Record, error)
}

// PayableLister is the AP read used by LedgerSource.
type PayableLister interface {
	ListPayables(ctx context.Context, filter ap.Filter) ([]finance.Record, error)
}

// LedgerSource reads both ledgers unfiltered.
type LedgerSource struct {
	AR ReceivableLister
	AP PayableLister
}

// Receivables implements Source.
func (l LedgerSource) Receivables(ctx context.Context) ([]finance.Record, error) {
	return l.AR.ListReceivables(ctx, ar.Filter{})
}

// Payables implements Source.
func (l LedgerSource) Payables(ctx context.Context) ([]finance.Record, error) {
	return l.AP.ListPayables(ctx, ap.Filter{})
}
