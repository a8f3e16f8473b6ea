package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentSchedule groups open payables by how soon they fall due.
type PaymentSchedule struct {
	AsOf        time.Time                         `json:"asOf"`
	Buckets     map[ScheduleBucketKey]AgingBucket `json:"buckets"`
	TotalCount  int                               `json:"totalCount"`
	TotalAmount decimal.Decimal                   `json:"totalAmount"`
	Skipped     int                               `json:"skipped"`
}

// Bucket returns the bucket stored under key, or an empty one.
func (s PaymentSchedule) Bucket(key ScheduleBucketKey) AgingBucket {
	return s.Buckets[key]
}

// Schedule places every open payable into overdue / this week / this month /
// next month / future windows.
func Schedule(payables []Record, today time.Time) PaymentSchedule {
	buckets := make(map[ScheduleBucketKey]*AgingBucket, 5)
	for _, key := range AllScheduleKeys() {
		buckets[key] = &AgingBucket{Items: []AgedItem{}}
	}

	out := PaymentSchedule{AsOf: Day(today)}
	for _, rec := range payables {
		if rec.Status.IsTerminal() {
			continue
		}
		if !rec.HasDueDate() {
			out.Skipped++
			continue
		}
		out.TotalCount++
		until := DaysUntilDue(rec.DueDate, today)
		buckets[ClassifySchedule(rec.DueDate, today)].add(AgedItem{
			Record:       rec,
			Outstanding:  rec.Outstanding(),
			DaysOverdue:  -until,
			DaysUntilDue: until,
		})
	}

	out.Buckets = make(map[ScheduleBucketKey]AgingBucket, len(buckets))
	total := decimal.Zero
	for _, key := range AllScheduleKeys() {
		b := *buckets[key]
		out.Buckets[key] = b
		total = total.Add(b.Total)
	}
	out.TotalAmount = total
	return out
}
