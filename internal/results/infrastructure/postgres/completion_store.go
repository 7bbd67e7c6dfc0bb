package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	instrumentspg "labmaint-cloud/internal/instruments/infrastructure/postgres"
	results "labmaint-cloud/internal/results/domain"
	schedule "labmaint-cloud/internal/schedule/domain"
	schedulepg "labmaint-cloud/internal/schedule/infrastructure/postgres"
)

// CompletionStore records a maintenance result, completes its event and
// advances the instrument's next due date inside one transaction. If the
// event was already completed by a concurrent writer, nothing is applied
// and schedule.ErrStaleCompletion is returned.
type CompletionStore struct {
	db          *sql.DB
	resultsRepo *ResultRepository
	events      *schedulepg.EventRepository
	instruments *instrumentspg.InstrumentRepository
}

// NewCompletionStore constructs the store.
func NewCompletionStore(
	db *sql.DB,
	resultsRepo *ResultRepository,
	events *schedulepg.EventRepository,
	instruments *instrumentspg.InstrumentRepository,
) (*CompletionStore, error) {
	if db == nil {
		return nil, errors.New("completion store: nil db")
	}
	if resultsRepo == nil {
		return nil, errors.New("completion store: nil results repository")
	}
	if events == nil {
		return nil, errors.New("completion store: nil event repository")
	}
	if instruments == nil {
		return nil, errors.New("completion store: nil instrument repository")
	}
	return &CompletionStore{
		db:          db,
		resultsRepo: resultsRepo,
		events:      events,
		instruments: instruments,
	}, nil
}

// RecordCompletion runs insert result, complete event and advance next due
// date in one transaction. The completion is guarded: a zero-row update
// means a concurrent writer already completed the event, so the whole
// transaction rolls back.
func (s *CompletionStore) RecordCompletion(ctx context.Context, result results.MaintenanceResult, notes string, nextDue time.Time) error {
	if err := result.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("completion store: begin: %w", err)
	}

	if err := s.resultsRepo.WithDB(tx).Insert(ctx, result); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("completion store: insert result: %w", err)
	}

	completed, err := s.events.WithDB(tx).CompleteIfOpen(ctx, result.EventID, result.CompletedDate, notes)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("completion store: complete event: %w", err)
	}
	if !completed {
		_ = tx.Rollback()
		return schedule.ErrStaleCompletion
	}

	if err := s.instruments.WithDB(tx).SetNextMaintenanceDate(ctx, result.InstrumentID, nextDue); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("completion store: advance next due: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("completion store: commit: %w", err)
	}
	return nil
}
