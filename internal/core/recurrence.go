package core

import (
	"fmt"
	"time"
)

const (
	Daily   RecurringInterval = "DAILY"
	Weekly  RecurringInterval = "WEEKLY"
	Monthly RecurringInterval = "MONTHLY"
	Yearly  RecurringInterval = "YEARLY"
)

type RecurringInterval string

func (i RecurringInterval) Valid() bool {
	_, ok := intervalSteppers[i]
	return ok
}

// IntervalStepper advances a date by one occurrence of a recurring interval.
type IntervalStepper interface {
	Next(from time.Time) time.Time
}

type dayStepper struct{ days int }

func (s dayStepper) Next(from time.Time) time.Time {
	return from.AddDate(0, 0, s.days)
}

// monthStepper adds calendar months, clamping to the last day of the target
// month so that Jan 31 + 1 month lands on the last day of February. This
// deliberately differs from JavaScript's Date.setMonth, which rolls Jan 31
// over into March.
type monthStepper struct{ months int }

func (s monthStepper) Next(from time.Time) time.Time {
	y, m, d := from.Date()
	target := time.Date(y, m+time.Month(s.months), 1, 0, 0, 0, 0, from.Location())
	last := daysIn(target.Year(), target.Month(), from.Location())
	if d > last {
		d = last
	}
	h, mi, sec := from.Clock()
	return time.Date(target.Year(), target.Month(), d, h, mi, sec, from.Nanosecond(), from.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

var intervalSteppers = map[RecurringInterval]IntervalStepper{
	Daily:   dayStepper{days: 1},
	Weekly:  dayStepper{days: 7},
	Monthly: monthStepper{months: 1},
	Yearly:  monthStepper{months: 12},
}

func stepperFor(interval RecurringInterval) (IntervalStepper, error) {
	s, ok := intervalSteppers[interval]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInterval, interval)
	}
	return s, nil
}

// NextRecurringDate returns the date of the occurrence following start.
func NextRecurringDate(start time.Time, interval RecurringInterval) (time.Time, error) {
	s, err := stepperFor(interval)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(start), nil
}

// ScheduleNext fills NextRecurringDate from the transaction date, or clears
// it when the transaction is not recurring.
func (t *Transaction) ScheduleNext() error {
	if !t.IsRecurring || t.RecurringInterval == "" {
		t.NextRecurringDate = nil
		return nil
	}
	next, err := NextRecurringDate(t.Date, t.RecurringInterval)
	if err != nil {
		return err
	}
	t.NextRecurringDate = &next
	return nil
}

// Reschedule sets the recurrence fields of t, an edit of prev. When the date
// and interval are unchanged the schedule keeps prev's progress. Otherwise
// it restarts from t's date, skipping occurrences up to prev's last run so
// materialised occurrences are never produced twice.
func (t *Transaction) Reschedule(prev Transaction) error {
	t.LastProcessed = prev.LastProcessed
	if !t.IsRecurring {
		return t.ScheduleNext()
	}
	if prev.IsRecurring && prev.NextRecurringDate != nil &&
		prev.RecurringInterval == t.RecurringInterval && prev.Date.Equal(t.Date) {
		next := *prev.NextRecurringDate
		t.NextRecurringDate = &next
		return nil
	}
	if err := t.ScheduleNext(); err != nil {
		return err
	}
	if prev.LastProcessed == nil {
		return nil
	}
	s, err := stepperFor(t.RecurringInterval)
	if err != nil {
		return err
	}
	next := *t.NextRecurringDate
	for !next.After(*prev.LastProcessed) {
		next = s.Next(next)
	}
	t.NextRecurringDate = &next
	return nil
}
