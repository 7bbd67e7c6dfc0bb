package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	results "labmaint-cloud/internal/results/domain"
	templates "labmaint-cloud/internal/templates/domain"
)

const defaultResultsTable = "maintenance_results"

// DBTX is the subset of database/sql used by repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ResultRepository is a Postgres implementation for maintenance results.
// Results are append-only; there is no update or delete path.
type ResultRepository struct {
	db    DBTX
	table string
}

// NewResultRepository constructs a repository.
func NewResultRepository(db DBTX, opts ...ResultOption) *ResultRepository {
	repo := &ResultRepository{db: db, table: defaultResultsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ResultOption configures the repository.
type ResultOption func(*ResultRepository)

// WithResultsTable overrides the default table name.
func WithResultsTable(table string) ResultOption {
	return func(repo *ResultRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithDB rebinds the repository to another executor, typically a *sql.Tx.
func (r *ResultRepository) WithDB(db DBTX) *ResultRepository {
	return &ResultRepository{db: db, table: r.table}
}

const resultColumns = `id, event_id, instrument_id, template_id, result_type, document_ref, notes, completed_date, sections, created_at`

// Insert stores a result record.
func (r *ResultRepository) Insert(ctx context.Context, result results.MaintenanceResult) error {
	if r == nil || r.db == nil {
		return errors.New("result repo: nil db")
	}
	if err := result.Validate(); err != nil {
		return err
	}
	sections, err := json.Marshal(result.Sections)
	if err != nil {
		return fmt.Errorf("result repo: encode sections: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, r.table, resultColumns)
	_, err = r.db.ExecContext(ctx, query,
		result.ID, result.EventID, result.InstrumentID, nullString(result.TemplateID),
		result.ResultType, nullString(result.DocumentRef), nullString(result.Notes),
		result.CompletedDate, sections, result.CreatedAt)
	return err
}

// GetByID loads a result by id.
func (r *ResultRepository) GetByID(ctx context.Context, id string) (*results.MaintenanceResult, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("result repo: nil db")
	}
	if id == "" {
		return nil, errors.New("result repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, resultColumns, r.table)
	result, err := scanResult(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListByInstrument returns all results for an instrument, newest first.
func (r *ResultRepository) ListByInstrument(ctx context.Context, instrumentID string) ([]results.MaintenanceResult, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("result repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE instrument_id = $1
ORDER BY completed_date DESC, created_at DESC`, resultColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query, instrumentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []results.MaintenanceResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *result)
	}
	return list, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*results.MaintenanceResult, error) {
	var result results.MaintenanceResult
	var templateID, documentRef, notes sql.NullString
	var sections []byte
	if err := row.Scan(
		&result.ID,
		&result.EventID,
		&result.InstrumentID,
		&templateID,
		&result.ResultType,
		&documentRef,
		&notes,
		&result.CompletedDate,
		&sections,
		&result.CreatedAt,
	); err != nil {
		return nil, err
	}
	if templateID.Valid {
		result.TemplateID = templateID.String
	}
	if documentRef.Valid {
		result.DocumentRef = documentRef.String
	}
	if notes.Valid {
		result.Notes = notes.String
	}
	if len(sections) > 0 {
		var decoded []templates.TestSection
		if err := json.Unmarshal(sections, &decoded); err != nil {
			return nil, fmt.Errorf("result repo: decode sections: %w", err)
		}
		result.Sections = decoded
	}
	result.CompletedDate = result.CompletedDate.UTC()
	result.CreatedAt = result.CreatedAt.UTC()
	return &result, nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
