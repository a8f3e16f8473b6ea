package finance

import "time"

const day = 24 * time.Hour

// Day truncates t to its calendar date. The result is expressed at UTC
// midnight so that day arithmetic is immune to DST shifts.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from "from" to "to".
func DaysBetween(from, to time.Time) int {
	return int(Day(to).Sub(Day(from)) / day)
}

// DaysOverdue is positive once the due date has passed.
func DaysOverdue(due, today time.Time) int {
	return DaysBetween(due, today)
}

// DaysUntilDue is positive while the due date lies ahead.
func DaysUntilDue(due, today time.Time) int {
	return DaysBetween(today, due)
}

// AgingBucketKey identifies a days-overdue range.
type AgingBucketKey string

const (
	BucketCurrent    AgingBucketKey = "current"
	Bucket1To30      AgingBucketKey = "days_1_30"
	Bucket31To60     AgingBucketKey = "days_31_60"
	Bucket61To90     AgingBucketKey = "days_61_90"
	BucketOver90Days AgingBucketKey = "days_90_plus"
)

// AllAgingKeys lists the aging buckets in report order.
func AllAgingKeys() []AgingBucketKey {
	return []AgingBucketKey{BucketCurrent, Bucket1To30, Bucket31To60, Bucket61To90, BucketOver90Days}
}

// AgingPolicy decides where the "current" bucket ends.
type AgingPolicy struct {
	// DueDateIsCurrent keeps records due today in the current bucket.
	DueDateIsCurrent bool
}

var (
	// InclusiveCurrent treats daysOverdue <= 0 as current.
	InclusiveCurrent = AgingPolicy{DueDateIsCurrent: true}
	// StrictCurrent treats only daysOverdue < 0 as current.
	StrictCurrent = AgingPolicy{DueDateIsCurrent: false}

	// ReceivablesPolicy and PayablesPolicy are the policies used by
	// AgeReceivables and AgePayables. Receivables historically used
	// StrictCurrent; pass it to Age to get that classification back.
	ReceivablesPolicy = InclusiveCurrent
	PayablesPolicy    = InclusiveCurrent
)

// Classify maps a days-overdue value to its aging bucket.
func (p AgingPolicy) Classify(daysOverdue int) AgingBucketKey {
	switch {
	case daysOverdue < 0, daysOverdue == 0 && p.DueDateIsCurrent:
		return BucketCurrent
	case daysOverdue <= 30:
		return Bucket1To30
	case daysOverdue <= 60:
		return Bucket31To60
	case daysOverdue <= 90:
		return Bucket61To90
	default:
		return BucketOver90Days
	}
}

// ScheduleBucketKey identifies a time-to-due window for payables.
type ScheduleBucketKey string

const (
	ScheduleOverdue   ScheduleBucketKey = "overdue"
	ScheduleThisWeek  ScheduleBucketKey = "this_week"
	ScheduleThisMonth ScheduleBucketKey = "this_month"
	ScheduleNextMonth ScheduleBucketKey = "next_month"
	ScheduleFuture    ScheduleBucketKey = "future"
)

// AllScheduleKeys lists the schedule buckets in report order.
func AllScheduleKeys() []ScheduleBucketKey {
	return []ScheduleBucketKey{ScheduleOverdue, ScheduleThisWeek, ScheduleThisMonth, ScheduleNextMonth, ScheduleFuture}
}

// EndOfWeek returns the next Sunday after today (today + 7 - weekday). On a
// Sunday this is the following Sunday.
func EndOfWeek(today time.Time) time.Time {
	t := Day(today)
	return t.AddDate(0, 0, 7-int(t.Weekday()))
}

// EndOfMonth returns the last calendar day of today's month.
func EndOfMonth(today time.Time) time.Time {
	t := Day(today)
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

// EndOfNextMonth returns the last calendar day of the month after today's.
func EndOfNextMonth(today time.Time) time.Time {
	t := Day(today)
	return time.Date(t.Year(), t.Month()+2, 0, 0, 0, 0, 0, time.UTC)
}

// ClassifySchedule places a due date into a payment window relative to today.
func ClassifySchedule(due, today time.Time) ScheduleBucketKey {
	d := Day(due)
	switch {
	case d.Before(Day(today)):
		return ScheduleOverdue
	case !d.After(EndOfWeek(today)):
		return ScheduleThisWeek
	case !d.After(EndOfMonth(today)):
		return ScheduleThisMonth
	case !d.After(EndOfNextMonth(today)):
		return ScheduleNextMonth
	default:
		return ScheduleFuture
	}
}
