package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-results-api/internal/models"
)

func TestAttendanceRepositoryUpsertBatch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, date)")).
		WithArgs(sqlmock.AnyArg(), "s1", "6", day, "PRESENT", nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, date)")).
		WithArgs(sqlmock.AnyArg(), "s2", "6", day, "LEAVE", nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	records := []models.AttendanceRecord{
		{StudentID: "s1", ClassLevel: "6", Date: day, Status: models.AttendancePresent},
		{StudentID: "s2", ClassLevel: "6", Date: day, Status: models.AttendanceLeave},
	}
	require.NoError(t, repo.Upsert(context.Background(), records))
	assert.NotEmpty(t, records[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpsertRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance").WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	err := repo.Upsert(context.Background(), []models.AttendanceRecord{{StudentID: "ghost", Status: models.AttendanceAbsent}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND a.class_level = $1 AND a.date >= $2 ORDER BY a.date DESC, s.roll_no ASC LIMIT 100 OFFSET 0")).
		WithArgs("7", from).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "class_level", "date", "status", "note", "recorded_by", "created_at", "updated_at", "roll_no", "student_name"}).
			AddRow("a1", "s1", "7", from, "ABSENT", "fever", "u1", now, now, "04", "Ravi"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attendance a JOIN students s")).
		WithArgs("7", from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows, total, err := repo.List(context.Background(), models.AttendanceFilter{ClassLevel: "7", DateFrom: &from})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ravi", rows[0].StudentName)
	assert.Equal(t, models.AttendanceAbsent, rows[0].Status)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCounts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) FILTER (WHERE a.status = 'PRESENT') AS present")).
		WithArgs("8").
		WillReturnRows(sqlmock.NewRows([]string{"present", "absent", "leave"}).AddRow(18, 2, 1))

	counts, err := repo.Counts(context.Background(), models.AttendanceFilter{ClassLevel: "8"})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceCounts{Present: 18, Absent: 2, Leave: 1}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
