package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-results-api/internal/models"
)

// SchoolRepository reads and writes the singleton school settings row.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs the repository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// Get returns the stored settings. sql.ErrNoRows means nothing was saved yet.
func (r *SchoolRepository) Get(ctx context.Context) (*models.SchoolSettings, error) {
	var settings models.SchoolSettings
	const query = `SELECT name, address, session, principal, updated_at FROM school_settings WHERE id = 1`
	if err := r.db.GetContext(ctx, &settings, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get school settings: %w", err)
	}
	return &settings, nil
}

// Upsert replaces the settings row.
func (r *SchoolRepository) Upsert(ctx context.Context, settings *models.SchoolSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO school_settings (id, name, address, session, principal, updated_at)
VALUES (1, :name, :address, :session, :principal, :updated_at)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address, session = EXCLUDED.session,
principal = EXCLUDED.principal, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("upsert school settings: %w", err)
	}
	return nil
}
