package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	instruments "labmaint-cloud/internal/instruments/domain"
)

// InstrumentRepository is an in-memory repository for demo/testing.
type InstrumentRepository struct {
	mu   sync.RWMutex
	data map[string]*instruments.Instrument
}

// NewInstrumentRepository constructs a repository.
func NewInstrumentRepository() *InstrumentRepository {
	return &InstrumentRepository{data: make(map[string]*instruments.Instrument)}
}

// Get loads an instrument by id.
func (r *InstrumentRepository) Get(ctx context.Context, id string) (*instruments.Instrument, error) {
	_ = ctx
	if id == "" {
		return nil, errors.New("memory instrument repo: empty id")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	instrument := r.data[id]
	if instrument == nil {
		return nil, nil
	}
	copied := *instrument
	return &copied, nil
}

// List returns all instruments ordered by eqp id.
func (r *InstrumentRepository) List(ctx context.Context) ([]instruments.Instrument, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]instruments.Instrument, 0, len(r.data))
	for _, instrument := range r.data {
		result = append(result, *instrument)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EqpID < result[j].EqpID })
	return result, nil
}

// Save upserts an instrument.
func (r *InstrumentRepository) Save(ctx context.Context, instrument *instruments.Instrument) error {
	_ = ctx
	if instrument == nil {
		return errors.New("memory instrument repo: nil instrument")
	}
	if err := instrument.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *instrument
	r.data[instrument.ID] = &copied
	return nil
}

// SetNextMaintenanceDate updates the derived next maintenance date.
func (r *InstrumentRepository) SetNextMaintenanceDate(ctx context.Context, id string, next time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	instrument := r.data[id]
	if instrument == nil {
		return instruments.ErrNotFound
	}
	instrument.NextMaintenanceDate = &next
	return nil
}

// Delete removes an instrument.
func (r *InstrumentRepository) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return instruments.ErrNotFound
	}
	delete(r.data, id)
	return nil
}
