package service

import (
	"fmt"
	"time"

	"crm-engine/internal/model"
)

// NextDueDate computes the due date following `from` for the given pattern.
// Recurrence is anchored to the schedule, so callers pass the resolved
// occurrence's due date, never wall-clock now.
func NextDueDate(from time.Time, pattern string) (time.Time, error) {
	switch pattern {
	case model.RecurDaily:
		return from.AddDate(0, 0, 1), nil
	case model.RecurWeekly:
		return from.AddDate(0, 0, 7), nil
	case model.RecurBiweekly:
		return from.AddDate(0, 0, 14), nil
	case model.RecurMonthly:
		return addMonthClamped(from), nil
	default:
		return time.Time{}, fmt.Errorf("recurrence pattern %q: %w", pattern, model.ErrInvalidArgument)
	}
}

// NextOccurrence applies the rule to the resolved occurrence's due date.
// ok is false when the rule's end date cuts the chain off — a terminal
// condition, not an error.
func NextOccurrence(rule *model.RecurrenceRule, from time.Time) (next time.Time, ok bool, err error) {
	if rule == nil {
		return time.Time{}, false, nil
	}
	next, err = NextDueDate(from, rule.Pattern)
	if err != nil {
		return time.Time{}, false, err
	}
	if rule.EndDate != nil && next.After(*rule.EndDate) {
		return time.Time{}, false, nil
	}
	return next, true, nil
}

// addMonthClamped advances one calendar month, keeping the day-of-month when
// it exists in the target month and clamping to its last day otherwise
// (Jan 31 -> Feb 28/29). A bare AddDate(0, 1, 0) would overflow instead.
func addMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	firstOfTarget := time.Date(year, month+1, 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(firstOfTarget.Month(), firstOfTarget.Year()); day > last {
		day = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(month time.Month, year int) int {
	// Move to next month, roll back a day.
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	firstOfNextMonth := firstOfMonth.AddDate(0, 1, 0)
	lastOfMonth := firstOfNextMonth.AddDate(0, 0, -1)
	return lastOfMonth.Day()
}
