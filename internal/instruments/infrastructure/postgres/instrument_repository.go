package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	instruments "labmaint-cloud/internal/instruments/domain"
)

const defaultInstrumentsTable = "instruments"

// DBTX is the subset of database/sql used by repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InstrumentRepository is a Postgres implementation for instruments.
type InstrumentRepository struct {
	db    DBTX
	table string
}

// NewInstrumentRepository constructs a repository.
func NewInstrumentRepository(db DBTX, opts ...InstrumentOption) *InstrumentRepository {
	repo := &InstrumentRepository{db: db, table: defaultInstrumentsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// InstrumentOption configures the repository.
type InstrumentOption func(*InstrumentRepository)

// WithInstrumentsTable overrides the default table name.
func WithInstrumentsTable(table string) InstrumentOption {
	return func(repo *InstrumentRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithDB rebinds the repository to another executor, typically a *sql.Tx.
func (r *InstrumentRepository) WithDB(db DBTX) *InstrumentRepository {
	return &InstrumentRepository{db: db, table: r.table}
}

const instrumentColumns = `id, eqp_id, serial, make, model, location, maintenance_type, frequency, schedule_date, next_maintenance_date, created_at, updated_at`

// Get loads an instrument by id.
func (r *InstrumentRepository) Get(ctx context.Context, id string) (*instruments.Instrument, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("instrument repo: nil db")
	}
	if id == "" {
		return nil, errors.New("instrument repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, instrumentColumns, r.table)
	instrument, err := scanInstrument(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return instrument, nil
}

// List returns all instruments ordered by eqp id.
func (r *InstrumentRepository) List(ctx context.Context) ([]instruments.Instrument, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("instrument repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
ORDER BY eqp_id ASC`, instrumentColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []instruments.Instrument
	for rows.Next() {
		instrument, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *instrument)
	}
	return result, rows.Err()
}

// Save upserts an instrument.
func (r *InstrumentRepository) Save(ctx context.Context, instrument *instruments.Instrument) error {
	if r == nil || r.db == nil {
		return errors.New("instrument repo: nil db")
	}
	if instrument == nil {
		return errors.New("instrument repo: nil instrument")
	}
	if err := instrument.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
	eqp_id = EXCLUDED.eqp_id,
	serial = EXCLUDED.serial,
	make = EXCLUDED.make,
	model = EXCLUDED.model,
	location = EXCLUDED.location,
	maintenance_type = EXCLUDED.maintenance_type,
	frequency = EXCLUDED.frequency,
	schedule_date = EXCLUDED.schedule_date,
	updated_at = EXCLUDED.updated_at`, r.table, instrumentColumns)
	_, err := r.db.ExecContext(ctx, query,
		instrument.ID, instrument.EqpID, instrument.Serial, instrument.Make, instrument.Model,
		instrument.Location, instrument.MaintenanceType, nullString(string(instrument.Frequency)),
		nullTime(instrument.ScheduleDate), nullTime(instrument.NextMaintenanceDate),
		instrument.CreatedAt, instrument.UpdatedAt)
	return err
}

// SetNextMaintenanceDate updates the derived next maintenance date.
func (r *InstrumentRepository) SetNextMaintenanceDate(ctx context.Context, id string, next time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("instrument repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET next_maintenance_date = $1, updated_at = $2
WHERE id = $3`, r.table)
	result, err := r.db.ExecContext(ctx, query, next, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return instruments.ErrNotFound
	}
	return nil
}

// Delete removes an instrument.
func (r *InstrumentRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("instrument repo: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return instruments.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstrument(row rowScanner) (*instruments.Instrument, error) {
	var instrument instruments.Instrument
	var frequency sql.NullString
	var scheduleDate, nextDate sql.NullTime
	if err := row.Scan(
		&instrument.ID,
		&instrument.EqpID,
		&instrument.Serial,
		&instrument.Make,
		&instrument.Model,
		&instrument.Location,
		&instrument.MaintenanceType,
		&frequency,
		&scheduleDate,
		&nextDate,
		&instrument.CreatedAt,
		&instrument.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if frequency.Valid {
		instrument.Frequency = instruments.Frequency(frequency.String)
	}
	if scheduleDate.Valid {
		date := scheduleDate.Time.UTC()
		instrument.ScheduleDate = &date
	}
	if nextDate.Valid {
		date := nextDate.Time.UTC()
		instrument.NextMaintenanceDate = &date
	}
	instrument.CreatedAt = instrument.CreatedAt.UTC()
	instrument.UpdatedAt = instrument.UpdatedAt.UTC()
	return &instrument, nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return value.UTC()
}
