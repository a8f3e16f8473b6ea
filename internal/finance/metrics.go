package finance

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CollectionMetrics summarises receivables performance.
type CollectionMetrics struct {
	TotalInvoiced        decimal.Decimal `json:"totalInvoiced"`
	TotalCollected       decimal.Decimal `json:"totalCollected"`
	TotalOutstanding     decimal.Decimal `json:"totalOutstanding"`
	CollectionRate       float64         `json:"collectionRate"`
	PaidCount            int             `json:"paidCount"`
	OverdueCount         int             `json:"overdueCount"`
	PendingCount         int             `json:"pendingCount"`
	PartialCount         int             `json:"partialCount"`
	AverageDaysToCollect int             `json:"averageDaysToCollect"`
}

// PaymentMetrics summarises payables performance.
type PaymentMetrics struct {
	TotalBilled       decimal.Decimal `json:"totalBilled"`
	TotalPaid         decimal.Decimal `json:"totalPaid"`
	TotalOutstanding  decimal.Decimal `json:"totalOutstanding"`
	PaymentRate       float64         `json:"paymentRate"`
	PaidCount         int             `json:"paidCount"`
	OverdueCount      int             `json:"overdueCount"`
	PendingCount      int             `json:"pendingCount"`
	PartialCount      int             `json:"partialCount"`
	AverageDaysToPay  int             `json:"averageDaysToPay"`
	OnTimePaymentRate float64         `json:"onTimePaymentRate"`
}

// totals is the part of the computation shared by both roles.
type totals struct {
	amount      decimal.Decimal
	paid        decimal.Decimal
	outstanding decimal.Decimal
	paidCount   int
	overdue     int
	pending     int
	partial     int
	settleDays  int
	onTime      int
}

func accumulate(records []Record, today time.Time) totals {
	t := totals{amount: decimal.Zero, paid: decimal.Zero, outstanding: decimal.Zero}
	for _, rec := range records {
		t.amount = t.amount.Add(rec.Amount)
		t.paid = t.paid.Add(rec.AmountPaid)
		if !rec.Status.IsTerminal() {
			t.outstanding = t.outstanding.Add(rec.Outstanding())
		}
		switch rec.Status {
		case StatusPaid:
			t.paidCount++
			settled := rec.SettledAt()
			t.settleDays += DaysBetween(rec.DocumentDate, settled)
			if rec.HasDueDate() && !Day(settled).After(Day(rec.DueDate)) {
				t.onTime++
			}
		case StatusPending:
			t.pending++
		case StatusPartial:
			t.partial++
		}
		if isOverdue(rec, today) {
			t.overdue++
		}
	}
	return t
}

// isOverdue trusts an explicit overdue status and otherwise derives it from
// the due date.
func isOverdue(rec Record, today time.Time) bool {
	if rec.Status.IsTerminal() {
		return false
	}
	if rec.Status == StatusOverdue {
		return true
	}
	return rec.HasDueDate() && DaysOverdue(rec.DueDate, today) > 0
}

func percent(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(hundred).InexactFloat64()
}

func averageDays(sum, n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(n)))
}

// CollectionMetricsFor computes receivables KPIs.
func CollectionMetricsFor(receivables []Record, today time.Time) CollectionMetrics {
	t := accumulate(receivables, today)
	return CollectionMetrics{
		TotalInvoiced:        t.amount,
		TotalCollected:       t.paid,
		TotalOutstanding:     t.outstanding,
		CollectionRate:       percent(t.paid, t.amount),
		PaidCount:            t.paidCount,
		OverdueCount:         t.overdue,
		PendingCount:         t.pending,
		PartialCount:         t.partial,
		AverageDaysToCollect: averageDays(t.settleDays, t.paidCount),
	}
}

// PaymentMetricsFor computes payables KPIs. The bill date is the record's
// DocumentDate.
func PaymentMetricsFor(payables []Record, today time.Time) PaymentMetrics {
	t := accumulate(payables, today)
	onTime := 0.0
	if t.paidCount > 0 {
		onTime = float64(t.onTime) / float64(t.paidCount) * 100
	}
	return PaymentMetrics{
		TotalBilled:       t.amount,
		TotalPaid:         t.paid,
		TotalOutstanding:  t.outstanding,
		PaymentRate:       percent(t.paid, t.amount),
		PaidCount:         t.paidCount,
		OverdueCount:      t.overdue,
		PendingCount:      t.pending,
		PartialCount:      t.partial,
		AverageDaysToPay:  averageDays(t.settleDays, t.paidCount),
		OnTimePaymentRate: onTime,
	}
}
