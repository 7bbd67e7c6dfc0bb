package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	results "labmaint-cloud/internal/results/domain"
	scheduleapp "labmaint-cloud/internal/schedule/application"
	schedule "labmaint-cloud/internal/schedule/domain"
)

// ResultStore is an in-memory result repository and completion store. The
// completion guard mirrors the transactional Postgres behavior: a lost
// guard leaves no result behind.
type ResultStore struct {
	mu      sync.Mutex
	records map[string]results.MaintenanceResult

	events      scheduleapp.EventRepository
	instruments scheduleapp.InstrumentRepository
}

// NewResultStore constructs a store backed by the given repositories.
func NewResultStore(events scheduleapp.EventRepository, instruments scheduleapp.InstrumentRepository) *ResultStore {
	return &ResultStore{
		records:     make(map[string]results.MaintenanceResult),
		events:      events,
		instruments: instruments,
	}
}

// RecordCompletion completes the event, stores the result and advances the
// instrument's next due date. On a lost completion guard it returns
// schedule.ErrStaleCompletion without recording anything.
func (s *ResultStore) RecordCompletion(ctx context.Context, result results.MaintenanceResult, notes string, nextDue time.Time) error {
	if err := result.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	completed, err := s.events.CompleteIfOpen(ctx, result.EventID, result.CompletedDate, notes)
	if err != nil {
		return err
	}
	if !completed {
		return schedule.ErrStaleCompletion
	}
	if err := s.instruments.SetNextMaintenanceDate(ctx, result.InstrumentID, nextDue); err != nil {
		return err
	}
	s.records[result.ID] = result
	return nil
}

// GetByID returns a stored result or nil.
func (s *ResultStore) GetByID(ctx context.Context, id string) (*results.MaintenanceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	copied := record
	return &copied, nil
}

// ListByInstrument returns results for an instrument, newest first.
func (s *ResultStore) ListByInstrument(ctx context.Context, instrumentID string) ([]results.MaintenanceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []results.MaintenanceResult
	for _, record := range s.records {
		if record.InstrumentID == instrumentID {
			list = append(list, record)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CompletedDate.After(list[j].CompletedDate)
	})
	return list, nil
}
