package schedule

import (
	"errors"
	"time"
)

// Event statuses. An event is never deleted, only moved forward; completed
// is terminal.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusOverdue    = "overdue"
)

// MaintenanceEvent is one materialized cycle of a recurring maintenance
// obligation. At most one event exists per (instrument, type, due date).
type MaintenanceEvent struct {
	ID              string     `json:"id"`
	InstrumentID    string     `json:"instrument_id"`
	MaintenanceType string     `json:"maintenance_type"`
	DueDate         time.Time  `json:"due_date"`
	Status          string     `json:"status"`
	CompletedDate   *time.Time `json:"completed_date,omitempty"`
	CompletionNotes string     `json:"completion_notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Validate checks event invariants.
func (e MaintenanceEvent) Validate() error {
	if e.ID == "" {
		return errors.New("maintenance event: empty id")
	}
	if e.InstrumentID == "" {
		return errors.New("maintenance event: empty instrument id")
	}
	if e.DueDate.IsZero() {
		return errors.New("maintenance event: zero due date")
	}
	switch e.Status {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusOverdue:
	default:
		return errors.New("maintenance event: invalid status")
	}
	return nil
}

// Completed reports whether the event has a completion recorded.
func (e MaintenanceEvent) Completed() bool {
	return e.Status == StatusCompleted || (e.CompletedDate != nil && !e.CompletedDate.IsZero())
}

// DateOnly normalizes a timestamp to its calendar day at midnight UTC. Due
// dates are business-day concepts; all stored and compared dates use this
// representation.
func DateOnly(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
