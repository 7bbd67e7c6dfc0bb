package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	templates "labmaint-cloud/internal/templates/domain"
)

const defaultTemplatesTable = "test_templates"

// DBTX is the subset of database/sql used by repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TemplateRepository is a Postgres implementation for test templates.
// Sections are stored as a jsonb document; derived row outcomes are never
// persisted.
type TemplateRepository struct {
	db    DBTX
	table string
}

// NewTemplateRepository constructs a repository.
func NewTemplateRepository(db DBTX, opts ...TemplateOption) *TemplateRepository {
	repo := &TemplateRepository{db: db, table: defaultTemplatesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// TemplateOption configures the repository.
type TemplateOption func(*TemplateRepository)

// WithTemplatesTable overrides the default table name.
func WithTemplatesTable(table string) TemplateOption {
	return func(repo *TemplateRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a template by id.
func (r *TemplateRepository) Get(ctx context.Context, id string) (*templates.TestTemplate, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("template repo: nil db")
	}
	if id == "" {
		return nil, errors.New("template repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT id, name, sections, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var template templates.TestTemplate
	var sections []byte
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&template.ID,
		&template.Name,
		&sections,
		&template.CreatedAt,
		&template.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &template.Sections); err != nil {
			return nil, fmt.Errorf("template repo: decode sections: %w", err)
		}
	}
	template.CreatedAt = template.CreatedAt.UTC()
	template.UpdatedAt = template.UpdatedAt.UTC()
	return &template, nil
}

// List returns all templates ordered by name.
func (r *TemplateRepository) List(ctx context.Context) ([]templates.TestTemplate, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("template repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, name, sections, created_at, updated_at
FROM %s
ORDER BY name ASC`, r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []templates.TestTemplate
	for rows.Next() {
		var template templates.TestTemplate
		var sections []byte
		if err := rows.Scan(&template.ID, &template.Name, &sections, &template.CreatedAt, &template.UpdatedAt); err != nil {
			return nil, err
		}
		if len(sections) > 0 {
			if err := json.Unmarshal(sections, &template.Sections); err != nil {
				return nil, fmt.Errorf("template repo: decode sections: %w", err)
			}
		}
		template.CreatedAt = template.CreatedAt.UTC()
		template.UpdatedAt = template.UpdatedAt.UTC()
		result = append(result, template)
	}
	return result, rows.Err()
}

// Save upserts a template.
func (r *TemplateRepository) Save(ctx context.Context, template *templates.TestTemplate) error {
	if r == nil || r.db == nil {
		return errors.New("template repo: nil db")
	}
	if template == nil {
		return errors.New("template repo: nil template")
	}
	if err := template.Validate(); err != nil {
		return err
	}
	sections, err := json.Marshal(template.Sections)
	if err != nil {
		return fmt.Errorf("template repo: encode sections: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, name, sections, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	sections = EXCLUDED.sections,
	updated_at = EXCLUDED.updated_at`, r.table)
	_, err = r.db.ExecContext(ctx, query, template.ID, template.Name, sections, template.CreatedAt, template.UpdatedAt)
	return err
}

// Delete removes a template.
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("template repo: nil db")
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
		return templates.ErrNotFound
	}
	return nil
}
