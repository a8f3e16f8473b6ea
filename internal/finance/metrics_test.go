package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCollectionMetricsFor(t *testing.T) {
	paid := Record{
		ID:           "r1",
		DocumentDate: date(2024, time.January, 1),
		DueDate:      date(2024, time.January, 31),
		Amount:       dec("1000"),
		AmountPaid:   dec("1000"),
		Status:       StatusPaid,
		UpdatedAt:    date(2024, time.January, 31).Add(15 * time.Hour),
	}
	partial := open("r2", date(2024, time.March, 1), "500", "200")
	partial.Status = StatusPartial
	pending := open("r3", date(2024, time.April, 1), "300", "0")
	cancelled := open("r4", date(2024, time.February, 1), "200", "0")
	cancelled.Status = StatusCancelled

	m := CollectionMetricsFor([]Record{paid, partial, pending, cancelled}, testToday)

	requireDecimal(t, "2000", m.TotalInvoiced)
	requireDecimal(t, "1200", m.TotalCollected)
	requireDecimal(t, "600", m.TotalOutstanding)
	require.InDelta(t, 60.0, m.CollectionRate, 0.0001)
	require.Equal(t, 1, m.PaidCount)
	require.Equal(t, 1, m.PartialCount)
	require.Equal(t, 1, m.PendingCount)
	require.Equal(t, 1, m.OverdueCount)
	require.Equal(t, 30, m.AverageDaysToCollect)
}

func TestCollectionMetricsPrefersPaidAt(t *testing.T) {
	paidAt := date(2024, time.January, 11)
	rec := Record{
		DocumentDate: date(2024, time.January, 1),
		DueDate:      date(2024, time.January, 31),
		Amount:       dec("10"),
		AmountPaid:   dec("10"),
		Status:       StatusPaid,
		UpdatedAt:    date(2024, time.March, 1),
		PaidAt:       &paidAt,
	}
	m := CollectionMetricsFor([]Record{rec}, testToday)
	require.Equal(t, 10, m.AverageDaysToCollect)
}

func TestOverdueStatusIsTrustedWithoutPastDueDate(t *testing.T) {
	flagged := open("flagged", date(2024, time.April, 1), "100", "0")
	flagged.Status = StatusOverdue
	m := CollectionMetricsFor([]Record{flagged}, testToday)
	require.Equal(t, 1, m.OverdueCount)
	require.Zero(t, m.PendingCount)
}

func TestPaymentMetricsFor(t *testing.T) {
	early := Record{
		DocumentDate: date(2024, time.January, 1),
		DueDate:      date(2024, time.January, 20),
		Amount:       dec("400"),
		AmountPaid:   dec("400"),
		Status:       StatusPaid,
		UpdatedAt:    date(2024, time.January, 15),
	}
	late := Record{
		DocumentDate: date(2024, time.February, 1),
		DueDate:      date(2024, time.February, 15),
		Amount:       dec("600"),
		AmountPaid:   dec("600"),
		Status:       StatusPaid,
		UpdatedAt:    date(2024, time.February, 20),
	}
	overdue := open("p3", date(2024, time.March, 1), "1000", "0")

	m := PaymentMetricsFor([]Record{early, late, overdue}, testToday)

	requireDecimal(t, "2000", m.TotalBilled)
	requireDecimal(t, "1000", m.TotalPaid)
	requireDecimal(t, "1000", m.TotalOutstanding)
	require.InDelta(t, 50.0, m.PaymentRate, 0.0001)
	require.Equal(t, 2, m.PaidCount)
	require.Equal(t, 1, m.OverdueCount)
	require.Equal(t, 17, m.AverageDaysToPay)
	require.InDelta(t, 50.0, m.OnTimePaymentRate, 0.0001)
}

func TestPaidOnDueDateIsOnTime(t *testing.T) {
	rec := Record{
		DocumentDate: date(2024, time.January, 1),
		DueDate:      date(2024, time.January, 20),
		Amount:       dec("1"),
		AmountPaid:   dec("1"),
		Status:       StatusPaid,
		UpdatedAt:    time.Date(2024, time.January, 20, 22, 30, 0, 0, time.UTC),
	}
	m := PaymentMetricsFor([]Record{rec}, testToday)
	require.InDelta(t, 100.0, m.OnTimePaymentRate, 0.0001)
}

func TestMetricsZeroGuards(t *testing.T) {
	c := CollectionMetricsFor(nil, testToday)
	require.Zero(t, c.CollectionRate)
	require.Zero(t, c.AverageDaysToCollect)
	require.True(t, c.TotalInvoiced.IsZero())

	p := PaymentMetricsFor([]Record{open("x", testToday, "0", "0")}, testToday)
	require.Zero(t, p.PaymentRate)
	require.Zero(t, p.OnTimePaymentRate)
	require.Zero(t, p.AverageDaysToPay)
	require.Zero(t, p.OverdueCount)
}
