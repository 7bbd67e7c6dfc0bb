package schedule

import "errors"

var (
	// ErrNotFound indicates a missing maintenance event.
	ErrNotFound = errors.New("schedule: event not found")
	// ErrUnscheduled indicates an instrument without complete schedule
	// parameters. It is a distinct state, not a failure.
	ErrUnscheduled = errors.New("schedule: instrument is unscheduled")
	// ErrStaleCompletion indicates a completion attempt on an event that is
	// already completed. Callers should refresh and re-check state.
	ErrStaleCompletion = errors.New("schedule: event already completed")
)
