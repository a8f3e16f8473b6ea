package automation

import (
	"errors"
	"fmt"
	"time"

	"github.com/fiscalia/fiscalia/internal/finance"
)

// ErrInvalidFrequency matches every *InvalidFrequencyError via errors.Is.
var ErrInvalidFrequency = errors.New("automation: invalid frequency")

// InvalidFrequencyError is returned by NextDate for an unknown frequency.
type InvalidFrequencyError struct {
	Frequency Frequency
}

func (e *InvalidFrequencyError) Error() string {
	return fmt.Sprintf("automation: invalid frequency %q", string(e.Frequency))
}

// Is reports whether target is ErrInvalidFrequency.
func (e *InvalidFrequencyError) Is(target error) bool {
	return target == ErrInvalidFrequency
}

// NextDate returns the generation date following last. Month based
// frequencies clamp to the last day of the target month, so 31 January
// monthly yields the end of February.
func NextDate(last time.Time, f Frequency) (time.Time, error) {
	day := finance.Day(last)
	switch f {
	case FrequencyDaily:
		return day.AddDate(0, 0, 1), nil
	case FrequencyWeekly:
		return day.AddDate(0, 0, 7), nil
	case FrequencyMonthly:
		return addMonths(day, 1), nil
	case FrequencyQuarterly:
		return addMonths(day, 3), nil
	case FrequencyYearly:
		return addMonths(day, 12), nil
	default:
		return time.Time{}, &InvalidFrequencyError{Frequency: f}
	}
}

func addMonths(day time.Time, n int) time.Time {
	first := time.Date(day.Year(), day.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := finance.EndOfMonth(first).Day()
	return time.Date(first.Year(), first.Month(), min(day.Day(), last), 0, 0, 0, 0, time.UTC)
}

// ShouldTrigger reports whether a recurring invoice rule is due on today.
// Reminder and alert rules are evaluated by MatchReminders instead and never
// trigger here.
func ShouldTrigger(rule Rule, today time.Time) bool {
	if !rule.IsActive || rule.RuleType != RuleRecurringInvoice {
		return false
	}
	if rule.NextGenerationDate == nil || rule.NextGenerationDate.IsZero() {
		return false
	}
	next := finance.Day(*rule.NextGenerationDate)
	if next.After(finance.Day(today)) {
		return false
	}
	if rule.EndDate != nil && !rule.EndDate.IsZero() && next.After(finance.Day(*rule.EndDate)) {
		return false
	}
	return true
}

// RulesToExecute keeps the rules for which ShouldTrigger holds.
func RulesToExecute(rules []Rule, today time.Time) []Rule {
	due := make([]Rule, 0)
	for _, rule := range rules {
		if ShouldTrigger(rule, today) {
			due = append(due, rule)
		}
	}
	return due
}

// MatchReminders returns the open records a reminder or alert rule applies to
// on today. payment_reminder matches records due exactly DaysBeforeDue days
// ahead; overdue_alert matches records at least max(1, DaysBeforeDue) days
// past due.
func MatchReminders(rule Rule, records []finance.Record, today time.Time) []finance.Record {
	matched := make([]finance.Record, 0)
	if !rule.IsActive {
		return matched
	}
	for _, rec := range records {
		if rec.Status.IsTerminal() || !rec.HasDueDate() {
			continue
		}
		switch rule.RuleType {
		case RulePaymentReminder:
			if finance.DaysUntilDue(rec.DueDate, today) == rule.DaysBeforeDue {
				matched = append(matched, rec)
			}
		case RuleOverdueAlert:
			if finance.DaysOverdue(rec.DueDate, today) >= max(1, rule.DaysBeforeDue) {
				matched = append(matched, rec)
			}
		}
	}
	return matched
}

// BuildReminders wraps MatchReminders results into deliverable reminders.
func BuildReminders(rule Rule, records []finance.Record, today time.Time) []Reminder {
	matched := MatchReminders(rule, records, today)
	reminders := make([]Reminder, 0, len(matched))
	for _, rec := range matched {
		reminders = append(reminders, Reminder{
			RuleID:       rule.ID,
			RuleName:     rule.Name,
			Kind:         rule.RuleType,
			Channel:      rule.ReminderType,
			Target:       rule.TargetOrDefault(),
			Record:       rec,
			DaysUntilDue: finance.DaysUntilDue(rec.DueDate, today),
			AsOf:         finance.Day(today),
		})
	}
	return reminders
}
