package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgedItem is a record annotated with the values used to bucket it.
type AgedItem struct {
	Record
	Outstanding  decimal.Decimal `json:"outstanding"`
	DaysOverdue  int             `json:"daysOverdue"`
	DaysUntilDue int             `json:"daysUntilDue"`
}

// AgingBucket aggregates outstanding balances inside one bucket.
type AgingBucket struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
	Items []AgedItem      `json:"items"`
}

func (b *AgingBucket) add(item AgedItem) {
	b.Count++
	b.Total = b.Total.Add(item.Outstanding)
	b.Items = append(b.Items, item)
}

// AgingReport groups open records by days overdue.
type AgingReport struct {
	AsOf             time.Time                      `json:"asOf"`
	Buckets          map[AgingBucketKey]AgingBucket `json:"buckets"`
	TotalCount       int                            `json:"totalCount"`
	TotalOutstanding decimal.Decimal                `json:"totalOutstanding"`
	// Skipped counts open records ignored because they have no due date.
	Skipped int `json:"skipped"`
}

// Bucket returns the bucket stored under key, or an empty one.
func (r AgingReport) Bucket(key AgingBucketKey) AgingBucket {
	return r.Buckets[key]
}

// AgeReceivables builds the receivables aging report.
func AgeReceivables(records []Record, today time.Time) AgingReport {
	return Age(records, today, ReceivablesPolicy)
}

// AgePayables builds the payables aging report.
func AgePayables(records []Record, today time.Time) AgingReport {
	return Age(records, today, PayablesPolicy)
}

// Age buckets every non-terminal record by calendar days past its due date.
func Age(records []Record, today time.Time, policy AgingPolicy) AgingReport {
	buckets := make(map[AgingBucketKey]*AgingBucket, 5)
	for _, key := range AllAgingKeys() {
		buckets[key] = &AgingBucket{Items: []AgedItem{}}
	}

	report := AgingReport{AsOf: Day(today)}
	for _, rec := range records {
		if rec.Status.IsTerminal() {
			continue
		}
		if !rec.HasDueDate() {
			report.Skipped++
			continue
		}
		report.TotalCount++
		overdue := DaysOverdue(rec.DueDate, today)
		buckets[policy.Classify(overdue)].add(AgedItem{
			Record:       rec,
			Outstanding:  rec.Outstanding(),
			DaysOverdue:  overdue,
			DaysUntilDue: -overdue,
		})
	}

	report.Buckets = make(map[AgingBucketKey]AgingBucket, len(buckets))
	total := decimal.Zero
	for _, key := range AllAgingKeys() {
		b := *buckets[key]
		report.Buckets[key] = b
		total = total.Add(b.Total)
	}
	report.TotalOutstanding = total
	return report
}
