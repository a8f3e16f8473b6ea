package automation

import (
	"context"
	"fmt"

	"github.com/fiscalia/fiscalia/internal/finance"
)

// Receivables is the slice of the AR service the runner uses.
type Receivables interface {
	OpenReceivables(ctx context.Context) ([]finance.Record, error)
	CreateRecord(ctx context.Context, rec finance.Record) (finance.Record, error)
}

// Payables is the slice of the AP service the runner uses.
type Payables interface {
	OpenPayables(ctx context.Context) ([]finance.Record, error)
}

// ServiceLedger adapts the AR and AP services to Ledger.
type ServiceLedger struct {
	Receivables Receivables
	Payables    Payables
}

// OpenRecords returns the open records of the requested ledger.
func (l ServiceLedger) OpenRecords(ctx context.Context, target Target) ([]finance.Record, error) {
	switch target {
	case TargetReceivables:
		return l.Receivables.OpenReceivables(ctx)
	case TargetPayables:
		return l.Payables.OpenPayables(ctx)
	default:
		return nil, fmt.Errorf("automation: unknown target %q", target)
	}
}

// CreateReceivable stores a generated invoice.
func (l ServiceLedger) CreateReceivable(ctx context.Context, rec finance.Record) (finance.Record, error) {
	return l.Receivables.CreateRecord(ctx, rec)
}
