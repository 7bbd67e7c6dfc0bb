package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"labmaint-cloud/internal/auth"
	users "labmaint-cloud/internal/users/domain"
)

const defaultUsersTable = "user_profiles"

// DBTX is the subset of database/sql used by repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UserRepository is a Postgres implementation of the user store. The
// permission map is stored as jsonb.
type UserRepository struct {
	db    DBTX
	table string
}

// NewUserRepository constructs a repository.
func NewUserRepository(db DBTX, opts ...Option) *UserRepository {
	repo := &UserRepository{db: db, table: defaultUsersTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Option configures the repository.
type Option func(*UserRepository)

// WithTable overrides the default table name.
func WithTable(table string) Option {
	return func(repo *UserRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const userColumns = `id, name, email, role, super_admin, permissions, created_at, updated_at`

// Get loads a profile by id.
func (r *UserRepository) Get(ctx context.Context, id string) (*users.UserProfile, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	if id == "" {
		return nil, errors.New("user repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, userColumns, r.table)
	profile, err := scanProfile(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// List returns all profiles ordered by name.
func (r *UserRepository) List(ctx context.Context) ([]users.UserProfile, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
ORDER BY name ASC`, userColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []users.UserProfile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *profile)
	}
	return list, rows.Err()
}

// Save upserts a profile.
func (r *UserRepository) Save(ctx context.Context, profile *users.UserProfile) error {
	if r == nil || r.db == nil {
		return errors.New("user repo: nil db")
	}
	if profile == nil {
		return errors.New("user repo: nil profile")
	}
	if err := profile.Validate(); err != nil {
		return err
	}
	permissions, err := json.Marshal(profile.Permissions)
	if err != nil {
		return fmt.Errorf("user repo: encode permissions: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  email = EXCLUDED.email,
  role = EXCLUDED.role,
  super_admin = EXCLUDED.super_admin,
  permissions = EXCLUDED.permissions,
  updated_at = EXCLUDED.updated_at`, r.table, userColumns)
	_, err = r.db.ExecContext(ctx, query,
		profile.ID, profile.Name, nullString(profile.Email), string(profile.Role),
		profile.SuperAdmin, permissions, profile.CreatedAt, profile.UpdatedAt)
	return err
}

// Delete removes a profile.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("user repo: nil db")
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
		return users.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*users.UserProfile, error) {
	var profile users.UserProfile
	var email sql.NullString
	var permissions []byte
	if err := row.Scan(
		&profile.ID,
		&profile.Name,
		&email,
		&profile.Role,
		&profile.SuperAdmin,
		&permissions,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if email.Valid {
		profile.Email = email.String
	}
	if len(permissions) > 0 {
		var decoded auth.PermissionMap
		if err := json.Unmarshal(permissions, &decoded); err != nil {
			return nil, fmt.Errorf("user repo: decode permissions: %w", err)
		}
		profile.Permissions = decoded
	}
	profile.CreatedAt = profile.CreatedAt.UTC()
	profile.UpdatedAt = profile.UpdatedAt.UTC()
	return &profile, nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
