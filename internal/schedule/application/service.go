package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	instruments "labmaint-cloud/internal/instruments/domain"
	"labmaint-cloud/internal/observability/metrics"
	schedule "labmaint-cloud/internal/schedule/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// EventRepository persists maintenance events. Insert must be idempotent on
// (instrument, type, due date); CompleteIfOpen must be a conditional update
// that fails when the event is already completed.
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*schedule.MaintenanceEvent, error)
	ListByInstrument(ctx context.Context, instrumentID string) ([]schedule.MaintenanceEvent, error)
	ListOpen(ctx context.Context) ([]schedule.MaintenanceEvent, error)
	CountCompleted(ctx context.Context, instrumentID, maintenanceType string) (int, error)
	Insert(ctx context.Context, event schedule.MaintenanceEvent) (bool, error)
	MarkInProgress(ctx context.Context, id string, at time.Time) (bool, error)
	CompleteIfOpen(ctx context.Context, id string, completedAt time.Time, notes string) (bool, error)
}

// InstrumentRepository supplies instrument master data.
type InstrumentRepository interface {
	Get(ctx context.Context, id string) (*instruments.Instrument, error)
	List(ctx context.Context) ([]instruments.Instrument, error)
	SetNextMaintenanceDate(ctx context.Context, id string, next time.Time) error
}

// Service materializes maintenance cycles and moves events through their
// lifecycle.
type Service struct {
	events      EventRepository
	instruments InstrumentRepository
	clock       Clock
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService constructs a schedule service.
func NewService(events EventRepository, instrumentRepo InstrumentRepository, opts ...ServiceOption) (*Service, error) {
	if events == nil {
		return nil, errors.New("schedule: nil event repository")
	}
	if instrumentRepo == nil {
		return nil, errors.New("schedule: nil instrument repository")
	}
	service := &Service{
		events:      events,
		instruments: instrumentRepo,
		clock:       systemClock{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// CurrentDueDate computes the due date of the instrument's active cycle.
// The authoritative cycle count is the number of completed events of the
// instrument's maintenance type.
func (s *Service) CurrentDueDate(ctx context.Context, instrument instruments.Instrument) (time.Time, error) {
	if !instrument.Scheduled() {
		return time.Time{}, schedule.ErrUnscheduled
	}
	completed, err := s.events.CountCompleted(ctx, instrument.ID, instrument.MaintenanceType)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.NextDueDate(*instrument.ScheduleDate, instrument.Frequency, completed), nil
}

// MaterializeInstrument ensures the instrument's active cycle has a concrete
// event. Re-running is a no-op for an already-materialized cycle; existing
// events are never mutated or duplicated.
func (s *Service) MaterializeInstrument(ctx context.Context, instrument instruments.Instrument) (*schedule.MaintenanceEvent, error) {
	dueDate, err := s.CurrentDueDate(ctx, instrument)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	event := schedule.MaintenanceEvent{
		ID:              NewEventID(),
		InstrumentID:    instrument.ID,
		MaintenanceType: instrument.MaintenanceType,
		DueDate:         dueDate,
		Status:          schedule.StatusScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	created, err := s.events.Insert(ctx, event)
	if err != nil {
		return nil, err
	}

	if instrument.NextMaintenanceDate == nil || !schedule.DateOnly(*instrument.NextMaintenanceDate).Equal(dueDate) {
		if err := s.instruments.SetNextMaintenanceDate(ctx, instrument.ID, dueDate); err != nil {
			return nil, err
		}
	}
	if !created {
		return nil, nil
	}
	metrics.CycleMaterialized()
	return &event, nil
}

// MaterializeAll refreshes the active cycle of every scheduled instrument
// and returns the newly created events. Unscheduled instruments are skipped.
func (s *Service) MaterializeAll(ctx context.Context) ([]schedule.MaintenanceEvent, error) {
	list, err := s.instruments.List(ctx)
	if err != nil {
		return nil, err
	}
	var created []schedule.MaintenanceEvent
	for _, instrument := range list {
		event, err := s.MaterializeInstrument(ctx, instrument)
		if err != nil {
			if errors.Is(err, schedule.ErrUnscheduled) {
				continue
			}
			return created, err
		}
		if event != nil {
			created = append(created, *event)
		}
	}
	return created, nil
}

// Start marks an event as in progress. Completed events stay completed.
func (s *Service) Start(ctx context.Context, eventID string) error {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event == nil {
		return schedule.ErrNotFound
	}
	ok, err := s.events.MarkInProgress(ctx, eventID, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return schedule.ErrStaleCompletion
	}
	return nil
}

// Complete records a completion, advances the instrument's next maintenance
// date and materializes the following cycle. This is the only path that
// advances the schedule. A lost conditional update surfaces as
// ErrStaleCompletion for the caller to re-check state.
func (s *Service) Complete(ctx context.Context, eventID string, completedAt time.Time, notes string) (*schedule.MaintenanceEvent, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, schedule.ErrNotFound
	}

	completedAt = schedule.DateOnly(completedAt)
	ok, err := s.events.CompleteIfOpen(ctx, eventID, completedAt, notes)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.CompletionRecorded("conflict")
		return nil, schedule.ErrStaleCompletion
	}
	metrics.CompletionRecorded("success")

	event.Status = schedule.StatusCompleted
	event.CompletedDate = &completedAt
	event.CompletionNotes = notes

	if err := s.advanceInstrument(ctx, event.InstrumentID); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Service) advanceInstrument(ctx context.Context, instrumentID string) error {
	instrument, err := s.instruments.Get(ctx, instrumentID)
	if err != nil {
		return err
	}
	if instrument == nil || !instrument.Scheduled() {
		return nil
	}
	_, err = s.MaterializeInstrument(ctx, *instrument)
	return err
}

// NewEventID generates a random event id.
func NewEventID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return "evt-" + hex.EncodeToString(buf)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
