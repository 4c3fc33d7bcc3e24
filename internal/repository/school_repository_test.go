package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-results-api/internal/models"
)

func TestSchoolRepositoryGet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM school_settings WHERE id = 1")).
		WillReturnRows(sqlmock.NewRows([]string{"name", "address", "session", "principal", "updated_at"}).
			AddRow("Govt. Senior School", "Main Road", "2026-27", "R. Kaur", time.Now()))

	settings, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Govt. Senior School", settings.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryGetEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectQuery("FROM school_settings").WillReturnError(sql.ErrNoRows)
	_, err := repo.Get(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSchoolRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE")).
		WithArgs("School", "Addr", "2026-27", "P", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	settings := &models.SchoolSettings{Name: "School", Address: "Addr", Session: "2026-27", Principal: "P"}
	require.NoError(t, repo.Upsert(context.Background(), settings))
	assert.False(t, settings.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
