package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Wednesday.
var testToday = date(2024, time.March, 13)

func TestDaysBetweenIgnoresTimeOfDayAndZone(t *testing.T) {
	mx := time.FixedZone("CST", -6*3600)
	late := time.Date(2024, time.March, 13, 23, 59, 0, 0, mx)
	require.Equal(t, 0, DaysBetween(testToday, late))
	require.Equal(t, 1, DaysBetween(date(2024, time.March, 12), late))
	require.Equal(t, -2, DaysBetween(testToday, date(2024, time.March, 11)))
	// Spans the 2024 leap day.
	require.Equal(t, 2, DaysBetween(date(2024, time.February, 28), date(2024, time.March, 1)))
}

func TestAgingPolicyClassify(t *testing.T) {
	cases := []struct {
		days int
		want AgingBucketKey
	}{
		{-7, BucketCurrent},
		{0, BucketCurrent},
		{1, Bucket1To30},
		{30, Bucket1To30},
		{31, Bucket31To60},
		{60, Bucket31To60},
		{61, Bucket61To90},
		{90, Bucket61To90},
		{91, BucketOver90Days},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, InclusiveCurrent.Classify(tc.days), "days=%d", tc.days)
	}
	require.Equal(t, Bucket1To30, StrictCurrent.Classify(0))
	require.Equal(t, BucketCurrent, StrictCurrent.Classify(-1))
}

func TestWindowBoundaries(t *testing.T) {
	require.Equal(t, date(2024, time.March, 17), EndOfWeek(testToday))
	require.Equal(t, date(2024, time.March, 31), EndOfMonth(testToday))
	require.Equal(t, date(2024, time.April, 30), EndOfNextMonth(testToday))

	sunday := date(2024, time.March, 17)
	require.Equal(t, date(2024, time.March, 24), EndOfWeek(sunday))
	saturday := date(2024, time.March, 16)
	require.Equal(t, date(2024, time.March, 17), EndOfWeek(saturday))

	require.Equal(t, date(2024, time.February, 29), EndOfNextMonth(date(2024, time.January, 31)))
	require.Equal(t, date(2025, time.January, 31), EndOfNextMonth(date(2024, time.December, 5)))
}

func TestClassifySchedule(t *testing.T) {
	cases := []struct {
		due  time.Time
		want ScheduleBucketKey
	}{
		{date(2024, time.March, 12), ScheduleOverdue},
		{testToday, ScheduleThisWeek},
		{date(2024, time.March, 17), ScheduleThisWeek},
		{date(2024, time.March, 18), ScheduleThisMonth},
		{date(2024, time.March, 31), ScheduleThisMonth},
		{date(2024, time.April, 1), ScheduleNextMonth},
		{date(2024, time.April, 30), ScheduleNextMonth},
		{date(2024, time.May, 1), ScheduleFuture},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ClassifySchedule(tc.due, testToday), "due=%s", tc.due.Format("2006-01-02"))
	}
}

func TestClassifyScheduleWeekSpillsIntoNextMonth(t *testing.T) {
	// Thursday 28 March: the week ends on Sunday 31 March.
	today := date(2024, time.March, 28)
	require.Equal(t, ScheduleThisWeek, ClassifySchedule(date(2024, time.March, 31), today))
	require.Equal(t, ScheduleNextMonth, ClassifySchedule(date(2024, time.April, 1), today))

	// Friday 29 November 2024: the week ends on Sunday 1 December.
	today = date(2024, time.November, 29)
	require.Equal(t, ScheduleThisWeek, ClassifySchedule(date(2024, time.December, 1), today))
	require.Equal(t, ScheduleNextMonth, ClassifySchedule(date(2024, time.December, 2), today))
}
