package schedule

import (
	"time"

	instruments "labmaint-cloud/internal/instruments/domain"
)

// NextDueDate advances the anchor date by cyclesElapsed intervals of the
// given frequency. Month and year arithmetic is calendar-aware: the
// day-of-month is clamped to the last valid day of the target month
// (Jan 31 + 1 month = Feb 28/29).
func NextDueDate(anchor time.Time, frequency instruments.Frequency, cyclesElapsed int) time.Time {
	anchor = DateOnly(anchor)
	if cyclesElapsed < 0 {
		cyclesElapsed = 0
	}
	switch frequency {
	case instruments.FrequencyWeekly:
		return anchor.AddDate(0, 0, 7*cyclesElapsed)
	case instruments.FrequencyMonthly:
		return addMonthsClamped(anchor, cyclesElapsed)
	case instruments.FrequencyThreeMonths:
		return addMonthsClamped(anchor, 3*cyclesElapsed)
	case instruments.FrequencySixMonths:
		return addMonthsClamped(anchor, 6*cyclesElapsed)
	case instruments.FrequencyOneYear:
		return addMonthsClamped(anchor, 12*cyclesElapsed)
	default:
		return anchor
	}
}

// DeriveStatus computes the effective status of an event at the given time.
// Completed is permanent regardless of now; an explicit in-progress signal
// wins over overdue; otherwise the due date decides.
func DeriveStatus(event MaintenanceEvent, now time.Time) string {
	if event.Completed() {
		return StatusCompleted
	}
	if event.Status == StatusInProgress {
		return StatusInProgress
	}
	if !DateOnly(event.DueDate).After(DateOnly(now)) {
		return StatusOverdue
	}
	return StatusScheduled
}

func addMonthsClamped(date time.Time, months int) time.Time {
	year, month, day := date.Date()
	firstOfTarget := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	lastDay := daysInMonth(firstOfTarget.Year(), firstOfTarget.Month())
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
