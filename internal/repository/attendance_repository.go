package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-results-api/internal/models"
)

// AttendanceRepository handles persistence for the daily attendance register.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func attendanceWhere(filter models.AttendanceFilter) *conditions {
	cond := where()
	if filter.ClassLevel != "" {
		cond.and("a.class_level = ?", filter.ClassLevel)
	}
	if filter.StudentID != "" {
		cond.and("a.student_id = ?", filter.StudentID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		cond.and("a.status = ?", *filter.Status)
	}
	if filter.DateFrom != nil {
		cond.and("a.date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		cond.and("a.date <= ?", *filter.DateTo)
	}
	return cond
}

const attendanceViewColumns = "a.id, a.student_id, a.class_level, a.date, a.status, a.note, a.recorded_by, a.created_at, a.updated_at, s.roll_no, s.name AS student_name"

// List returns attendance rows matching the filter, newest first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceView, int, error) {
	cond := attendanceWhere(filter)
	limit, offset := pageWindow(filter.Page, filter.PageSize, 100, 500)

	rows := []models.AttendanceView{}
	from := "FROM attendance a JOIN students s ON s.id = a.student_id WHERE " + cond.String()
	total, err := selectPage(ctx, r.db, &rows, attendanceViewColumns, from, "a.date DESC, s.roll_no ASC", limit, offset, cond.args)
	if err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}
	return rows, total, nil
}

// Upsert stores a batch of records atomically, overwriting any existing
// status for the same student and day.
func (r *AttendanceRepository) Upsert(ctx context.Context, records []models.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}
	const query = `INSERT INTO attendance (id, student_id, class_level, date, status, note, recorded_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (student_id, date)
DO UPDATE SET status = EXCLUDED.status, note = EXCLUDED.note, recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for i := range records {
			rec := &records[i]
			if rec.ID == "" {
				rec.ID = uuid.NewString()
			}
			if rec.CreatedAt.IsZero() {
				rec.CreatedAt = now
			}
			rec.UpdatedAt = now
			if _, err := tx.ExecContext(ctx, query, rec.ID, rec.StudentID, rec.ClassLevel, rec.Date, rec.Status, rec.Note, rec.RecordedBy, rec.CreatedAt, rec.UpdatedAt); err != nil {
				return fmt.Errorf("upsert attendance for student %s: %w", rec.StudentID, err)
			}
		}
		return nil
	})
}

// Counts tallies statuses for the rows matching the filter. Paging is ignored.
func (r *AttendanceRepository) Counts(ctx context.Context, filter models.AttendanceFilter) (models.AttendanceCounts, error) {
	cond := attendanceWhere(filter)
	query := `SELECT
        COUNT(*) FILTER (WHERE a.status = 'PRESENT') AS present,
        COUNT(*) FILTER (WHERE a.status = 'ABSENT') AS absent,
        COUNT(*) FILTER (WHERE a.status = 'LEAVE') AS leave
        FROM attendance a WHERE ` + cond.String()
	var counts models.AttendanceCounts
	if err := r.db.GetContext(ctx, &counts, query, cond.args...); err != nil {
		return models.AttendanceCounts{}, fmt.Errorf("attendance counts: %w", err)
	}
	return counts, nil
}
