package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	schedule "labmaint-cloud/internal/schedule/domain"
)

const defaultEventsTable = "maintenance_events"

// DBTX is the subset of database/sql used by repositories. Both *sql.DB and
// *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// EventRepository is a Postgres implementation for maintenance events.
type EventRepository struct {
	db    DBTX
	table string
}

// NewEventRepository constructs a repository.
func NewEventRepository(db DBTX, opts ...EventOption) *EventRepository {
	repo := &EventRepository{db: db, table: defaultEventsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// EventOption configures the repository.
type EventOption func(*EventRepository)

// WithEventsTable overrides the default table name.
func WithEventsTable(table string) EventOption {
	return func(repo *EventRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithDB rebinds the repository to another executor, typically a *sql.Tx.
func (r *EventRepository) WithDB(db DBTX) *EventRepository {
	return &EventRepository{db: db, table: r.table}
}

const eventColumns = `id, instrument_id, maintenance_type, due_date, status, completed_date, completion_notes, created_at, updated_at`

// GetByID loads an event by id.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*schedule.MaintenanceEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("event repo: nil db")
	}
	if id == "" {
		return nil, errors.New("event repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, eventColumns, r.table)
	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

// ListByInstrument returns all events for an instrument, oldest due first.
func (r *EventRepository) ListByInstrument(ctx context.Context, instrumentID string) ([]schedule.MaintenanceEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("event repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE instrument_id = $1
ORDER BY due_date ASC`, eventColumns, r.table)
	return r.queryEvents(ctx, query, instrumentID)
}

// ListOpen returns all events that are not completed.
func (r *EventRepository) ListOpen(ctx context.Context) ([]schedule.MaintenanceEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("event repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE status <> $1
ORDER BY due_date ASC`, eventColumns, r.table)
	return r.queryEvents(ctx, query, schedule.StatusCompleted)
}

// CountCompleted counts completed events for an instrument and type.
func (r *EventRepository) CountCompleted(ctx context.Context, instrumentID, maintenanceType string) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("event repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT COUNT(*)
FROM %s
WHERE instrument_id = $1 AND maintenance_type = $2 AND status = $3`, r.table)
	var count int
	if err := r.db.QueryRowContext(ctx, query, instrumentID, maintenanceType, schedule.StatusCompleted).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Insert stores an event. The unique (instrument_id, maintenance_type,
// due_date) key makes materialization idempotent: a duplicate cycle is a
// no-op success.
func (r *EventRepository) Insert(ctx context.Context, event schedule.MaintenanceEvent) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("event repo: nil db")
	}
	if err := event.Validate(); err != nil {
		return false, err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, instrument_id, maintenance_type, due_date, status, completion_notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (instrument_id, maintenance_type, due_date) DO NOTHING`, r.table)
	result, err := r.db.ExecContext(ctx, query,
		event.ID, event.InstrumentID, event.MaintenanceType, schedule.DateOnly(event.DueDate),
		event.Status, event.CompletionNotes, event.CreatedAt, event.UpdatedAt)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkInProgress flips an open event to in progress.
func (r *EventRepository) MarkInProgress(ctx context.Context, id string, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("event repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = $1, updated_at = $2
WHERE id = $3 AND status <> $4`, r.table)
	result, err := r.db.ExecContext(ctx, query, schedule.StatusInProgress, at, id, schedule.StatusCompleted)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CompleteIfOpen completes an event only when it is not already completed.
// The guard makes concurrent completions lose cleanly: the second caller
// sees zero affected rows.
func (r *EventRepository) CompleteIfOpen(ctx context.Context, id string, completedAt time.Time, notes string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("event repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = $1, completed_date = $2, completion_notes = $3, updated_at = $4
WHERE id = $5 AND status <> $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, schedule.StatusCompleted, schedule.DateOnly(completedAt), notes, completedAt, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *EventRepository) queryEvents(ctx context.Context, query string, args ...any) ([]schedule.MaintenanceEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []schedule.MaintenanceEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *event)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*schedule.MaintenanceEvent, error) {
	var event schedule.MaintenanceEvent
	var completedDate sql.NullTime
	var notes sql.NullString
	if err := row.Scan(
		&event.ID,
		&event.InstrumentID,
		&event.MaintenanceType,
		&event.DueDate,
		&event.Status,
		&completedDate,
		&notes,
		&event.CreatedAt,
		&event.UpdatedAt,
	); err != nil {
		return nil, err
	}
	event.DueDate = schedule.DateOnly(event.DueDate)
	if completedDate.Valid {
		date := schedule.DateOnly(completedDate.Time)
		event.CompletedDate = &date
	}
	if notes.Valid {
		event.CompletionNotes = notes.String
	}
	event.CreatedAt = event.CreatedAt.UTC()
	event.UpdatedAt = event.UpdatedAt.UTC()
	return &event, nil
}
