package core

import (
	"errors"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextRecurringDate(t *testing.T) {
	cases := []struct {
		name     string
		start    time.Time
		interval RecurringInterval
		want     time.Time
	}{
		{"daily", day(2024, 1, 1), Daily, day(2024, 1, 2)},
		{"daily year end", day(2024, 12, 31), Daily, day(2025, 1, 1)},
		{"weekly", day(2024, 1, 1), Weekly, day(2024, 1, 8)},
		{"weekly across month", day(2024, 2, 26), Weekly, day(2024, 3, 4)},
		{"monthly", day(2024, 1, 15), Monthly, day(2024, 2, 15)},
		{"monthly clamps leap feb", day(2024, 1, 31), Monthly, day(2024, 2, 29)},
		{"monthly clamps feb", day(2023, 1, 31), Monthly, day(2023, 2, 28)},
		{"monthly clamps april", day(2024, 3, 31), Monthly, day(2024, 4, 30)},
		{"monthly december", day(2024, 12, 31), Monthly, day(2025, 1, 31)},
		{"yearly", day(2024, 1, 1), Yearly, day(2025, 1, 1)},
		{"yearly leap day", day(2024, 2, 29), Yearly, day(2025, 2, 28)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NextRecurringDate(tc.start, tc.interval)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("expected %s, got %s", tc.want.Format(time.DateOnly), got.Format(time.DateOnly))
			}
		})
	}
}

func TestNextRecurringDateKeepsClock(t *testing.T) {
	start := time.Date(2024, 5, 31, 9, 30, 0, 0, time.UTC)
	got, err := NextRecurringDate(start, Monthly)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 6, 30, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestNextRecurringDateInvalid(t *testing.T) {
	for _, iv := range []RecurringInterval{"", "HOURLY", "monthly"} {
		if _, err := NextRecurringDate(day(2024, 1, 1), iv); !errors.Is(err, ErrInvalidInterval) {
			t.Fatalf("%q: expected ErrInvalidInterval, got %v", iv, err)
		}
	}
}

func TestScheduleNext(t *testing.T) {
	tx := Transaction{Date: day(2024, 1, 31), IsRecurring: true, RecurringInterval: Monthly}
	if err := tx.ScheduleNext(); err != nil {
		t.Fatal(err)
	}
	if tx.NextRecurringDate == nil || !tx.NextRecurringDate.Equal(day(2024, 2, 29)) {
		t.Fatalf("unexpected next date %v", tx.NextRecurringDate)
	}

	tx.IsRecurring = false
	if err := tx.ScheduleNext(); err != nil {
		t.Fatal(err)
	}
	if tx.NextRecurringDate != nil {
		t.Fatalf("expected next date cleared, got %v", tx.NextRecurringDate)
	}
}

func TestRescheduleKeepsProgressForUnchangedSchedule(t *testing.T) {
	next, last := day(2024, 4, 1), day(2024, 3, 15)
	prev := Transaction{Date: day(2024, 1, 1), IsRecurring: true, RecurringInterval: Monthly,
		NextRecurringDate: &next, LastProcessed: &last}

	edit := Transaction{Date: day(2024, 1, 1), IsRecurring: true, RecurringInterval: Monthly, Description: "renamed"}
	if err := edit.Reschedule(prev); err != nil {
		t.Fatal(err)
	}
	if edit.NextRecurringDate == nil || !edit.NextRecurringDate.Equal(next) {
		t.Fatalf("expected next date %s kept, got %v", next, edit.NextRecurringDate)
	}
	if edit.LastProcessed == nil || !edit.LastProcessed.Equal(last) {
		t.Fatalf("expected last processed %s kept, got %v", last, edit.LastProcessed)
	}
}

func TestRescheduleSkipsProcessedOccurrences(t *testing.T) {
	next, last := day(2024, 4, 1), day(2024, 3, 15)
	prev := Transaction{Date: day(2024, 1, 1), IsRecurring: true, RecurringInterval: Monthly,
		NextRecurringDate: &next, LastProcessed: &last}

	edit := Transaction{Date: day(2024, 1, 10), IsRecurring: true, RecurringInterval: Weekly}
	if err := edit.Reschedule(prev); err != nil {
		t.Fatal(err)
	}
	// Weekly from Jan 10: the first occurrence after Mar 15 is Mar 20.
	if want := day(2024, 3, 20); edit.NextRecurringDate == nil || !edit.NextRecurringDate.Equal(want) {
		t.Fatalf("expected next date %s, got %v", want, edit.NextRecurringDate)
	}
}

func TestRescheduleFreshOrStopped(t *testing.T) {
	prev := Transaction{Date: day(2024, 1, 1)}
	edit := Transaction{Date: day(2024, 1, 31), IsRecurring: true, RecurringInterval: Monthly}
	if err := edit.Reschedule(prev); err != nil {
		t.Fatal(err)
	}
	if edit.NextRecurringDate == nil || !edit.NextRecurringDate.Equal(day(2024, 2, 29)) {
		t.Fatalf("unexpected next date %v", edit.NextRecurringDate)
	}

	stopped := Transaction{Date: day(2024, 1, 31)}
	if err := stopped.Reschedule(edit); err != nil {
		t.Fatal(err)
	}
	if stopped.NextRecurringDate != nil {
		t.Fatalf("expected next date cleared, got %v", stopped.NextRecurringDate)
	}
}
