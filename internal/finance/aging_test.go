package finance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "expected %s got %s", want, got.String())
}

func open(id string, due time.Time, amount, paid string) Record {
	return Record{
		ID:         id,
		DueDate:    due,
		Amount:     dec(amount),
		AmountPaid: dec(paid),
		Status:     StatusPending,
	}
}

func agingFixture() []Record {
	paid := open("paid", date(2024, time.January, 1), "999", "999")
	paid.Status = StatusPaid
	cancelled := open("cancelled", date(2023, time.June, 1), "555", "0")
	cancelled.Status = StatusCancelled
	partial := open("partial", date(2024, time.February, 12), "500", "200")
	partial.Status = StatusPartial

	return []Record{
		open("future", date(2024, time.March, 20), "100", "0"),
		open("today", testToday, "50", "0"),
		partial,
		open("d31", date(2024, time.February, 11), "70", "0"),
		open("d60", date(2024, time.January, 13), "80", "0"),
		open("d90", date(2023, time.December, 14), "90", "10"),
		open("d91", date(2023, time.December, 13), "1000", "0"),
		paid,
		cancelled,
	}
}

func TestAgeReceivablesBuckets(t *testing.T) {
	report := AgeReceivables(agingFixture(), testToday)

	require.Equal(t, 7, report.TotalCount)
	requireDecimal(t, "1680", report.TotalOutstanding)

	current := report.Bucket(BucketCurrent)
	require.Equal(t, 2, current.Count)
	requireDecimal(t, "150", current.Total)

	b30 := report.Bucket(Bucket1To30)
	require.Equal(t, 1, b30.Count)
	requireDecimal(t, "300", b30.Total)
	require.Equal(t, 30, b30.Items[0].DaysOverdue)
	requireDecimal(t, "300", b30.Items[0].Outstanding)

	b60 := report.Bucket(Bucket31To60)
	require.Equal(t, 2, b60.Count)
	requireDecimal(t, "150", b60.Total)

	b90 := report.Bucket(Bucket61To90)
	require.Equal(t, 1, b90.Count)
	requireDecimal(t, "80", b90.Total)

	over := report.Bucket(BucketOver90Days)
	require.Equal(t, 1, over.Count)
	require.Equal(t, 91, over.Items[0].DaysOverdue)
}

func TestAgingCompletenessAndExclusion(t *testing.T) {
	for name, report := range map[string]AgingReport{
		"receivables": AgeReceivables(agingFixture(), testToday),
		"payables":    AgePayables(agingFixture(), testToday),
		"strict":      Age(agingFixture(), testToday, StrictCurrent),
	} {
		sum := decimal.Zero
		count := 0
		for _, key := range AllAgingKeys() {
			b := report.Bucket(key)
			sum = sum.Add(b.Total)
			count += b.Count
			for _, item := range b.Items {
				require.False(t, item.Status.IsTerminal(), "%s: terminal record %s in %s", name, item.ID, key)
			}
		}
		require.True(t, sum.Equal(report.TotalOutstanding), name)
		require.Equal(t, report.TotalCount, count, name)
	}
}

func TestDueTodayIsCurrentForBothRoles(t *testing.T) {
	records := []Record{open("due-today", testToday, "10", "0")}

	ar := AgeReceivables(records, testToday)
	require.Equal(t, 1, ar.Bucket(BucketCurrent).Count)

	ap := AgePayables(records, testToday)
	require.Equal(t, 1, ap.Bucket(BucketCurrent).Count)

	strict := Age(records, testToday, StrictCurrent)
	require.Equal(t, 0, strict.Bucket(BucketCurrent).Count)
	require.Equal(t, 1, strict.Bucket(Bucket1To30).Count)
}

func TestAgeSkipsUndatedAndKeepsNegativeBalances(t *testing.T) {
	overpaid := open("overpaid", date(2024, time.March, 1), "100", "120")
	undated := open("undated", time.Time{}, "40", "0")

	report := AgeReceivables([]Record{overpaid, undated}, testToday)
	require.Equal(t, 1, report.Skipped)
	require.Equal(t, 1, report.TotalCount)
	requireDecimal(t, "-20", report.TotalOutstanding)
}

func TestAgeEmptyInput(t *testing.T) {
	report := AgePayables(nil, testToday)
	require.Zero(t, report.TotalCount)
	require.True(t, report.TotalOutstanding.IsZero())
	for _, key := range AllAgingKeys() {
		require.NotNil(t, report.Bucket(key).Items)
	}
}
