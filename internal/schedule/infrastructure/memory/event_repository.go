package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	schedule "labmaint-cloud/internal/schedule/domain"
)

// EventRepository is an in-memory repository for demo/testing.
type EventRepository struct {
	mu     sync.RWMutex
	byID   map[string]*schedule.MaintenanceEvent
	cycles map[string]string // (instrument, type, due date) -> event id
}

// NewEventRepository constructs a repository.
func NewEventRepository() *EventRepository {
	return &EventRepository{
		byID:   make(map[string]*schedule.MaintenanceEvent),
		cycles: make(map[string]string),
	}
}

func cycleKey(instrumentID, maintenanceType string, dueDate time.Time) string {
	return instrumentID + "|" + maintenanceType + "|" + schedule.DateOnly(dueDate).Format("20060102")
}

// GetByID loads an event by id.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*schedule.MaintenanceEvent, error) {
	_ = ctx
	if id == "" {
		return nil, errors.New("memory event repo: empty id")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	event := r.byID[id]
	if event == nil {
		return nil, nil
	}
	copied := *event
	return &copied, nil
}

// ListByInstrument returns all events for an instrument, oldest due first.
func (r *EventRepository) ListByInstrument(ctx context.Context, instrumentID string) ([]schedule.MaintenanceEvent, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []schedule.MaintenanceEvent
	for _, event := range r.byID {
		if event.InstrumentID == instrumentID {
			result = append(result, *event)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DueDate.Before(result[j].DueDate) })
	return result, nil
}

// ListOpen returns all events that are not completed.
func (r *EventRepository) ListOpen(ctx context.Context) ([]schedule.MaintenanceEvent, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []schedule.MaintenanceEvent
	for _, event := range r.byID {
		if event.Status != schedule.StatusCompleted {
			result = append(result, *event)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DueDate.Before(result[j].DueDate) })
	return result, nil
}

// CountCompleted counts completed events for an instrument and type.
func (r *EventRepository) CountCompleted(ctx context.Context, instrumentID, maintenanceType string) (int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, event := range r.byID {
		if event.InstrumentID == instrumentID && event.MaintenanceType == maintenanceType && event.Status == schedule.StatusCompleted {
			count++
		}
	}
	return count, nil
}

// Insert stores an event unless its cycle is already materialized. A
// duplicate cycle is a no-op success.
func (r *EventRepository) Insert(ctx context.Context, event schedule.MaintenanceEvent) (bool, error) {
	_ = ctx
	if err := event.Validate(); err != nil {
		return false, err
	}
	key := cycleKey(event.InstrumentID, event.MaintenanceType, event.DueDate)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.cycles[key]; exists {
		return false, nil
	}
	event.DueDate = schedule.DateOnly(event.DueDate)
	copied := event
	r.byID[event.ID] = &copied
	r.cycles[key] = event.ID
	return true, nil
}

// MarkInProgress flips an open event to in progress.
func (r *EventRepository) MarkInProgress(ctx context.Context, id string, at time.Time) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	event := r.byID[id]
	if event == nil {
		return false, schedule.ErrNotFound
	}
	if event.Status == schedule.StatusCompleted {
		return false, nil
	}
	event.Status = schedule.StatusInProgress
	event.UpdatedAt = at
	return true, nil
}

// CompleteIfOpen completes an event only when it is not already completed.
func (r *EventRepository) CompleteIfOpen(ctx context.Context, id string, completedAt time.Time, notes string) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	event := r.byID[id]
	if event == nil {
		return false, schedule.ErrNotFound
	}
	if event.Status == schedule.StatusCompleted {
		return false, nil
	}
	completedAt = schedule.DateOnly(completedAt)
	event.Status = schedule.StatusCompleted
	event.CompletedDate = &completedAt
	event.CompletionNotes = notes
	event.UpdatedAt = completedAt
	return true, nil
}
