package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-results-api/internal/models"
)

const homeworkColumns = "id, class_level, subject_key, title, description, due_date, assigned_by, created_at, updated_at"

// HomeworkRepository persists homework items and per-student submission status.
type HomeworkRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewHomeworkRepository constructs the repository.
func NewHomeworkRepository(db *sqlx.DB) *HomeworkRepository {
	return &HomeworkRepository{db: db, now: time.Now}
}

// Create inserts a homework item.
func (r *HomeworkRepository) Create(ctx context.Context, hw *models.Homework) error {
	if hw.ID == "" {
		hw.ID = uuid.NewString()
	}
	now := r.now().UTC()
	hw.CreatedAt = now
	hw.UpdatedAt = now
	const query = `INSERT INTO homework (id, class_level, subject_key, title, description, due_date, assigned_by, created_at, updated_at)
VALUES (:id, :class_level, :subject_key, :title, :description, :due_date, :assigned_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, hw); err != nil {
		return fmt.Errorf("create homework: %w", err)
	}
	return nil
}

// Update persists editable homework fields.
func (r *HomeworkRepository) Update(ctx context.Context, hw *models.Homework) error {
	hw.UpdatedAt = r.now().UTC()
	const query = `UPDATE homework SET subject_key = :subject_key, title = :title, description = :description, due_date = :due_date, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, hw)
	if err != nil {
		return fmt.Errorf("update homework: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a homework item and its submissions.
func (r *HomeworkRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM homework WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete homework: %w", err)
	}
	return requireAffected(res)
}

// FindByID fetches a homework item. sql.ErrNoRows is returned unwrapped.
func (r *HomeworkRepository) FindByID(ctx context.Context, id string) (*models.Homework, error) {
	var hw models.Homework
	if err := r.db.GetContext(ctx, &hw, "SELECT "+homeworkColumns+" FROM homework WHERE id = $1", id); err != nil {
		return nil, wrapNotFound(err, "find homework")
	}
	return &hw, nil
}

// List returns homework matching the filter ordered by due date.
func (r *HomeworkRepository) List(ctx context.Context, filter models.HomeworkFilter) ([]models.Homework, int, error) {
	cond := where()
	if filter.ClassLevel != "" {
		cond.and("class_level = ?", filter.ClassLevel)
	}
	if filter.SubjectKey != "" {
		cond.and("subject_key = ?", strings.ToLower(filter.SubjectKey))
	}
	if filter.PendingOnly {
		cond.and("due_date >= ?", r.now().UTC().Truncate(24*time.Hour))
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize, 20, 100)

	items := []models.Homework{}
	total, err := selectPage(ctx, r.db, &items, homeworkColumns, "FROM homework WHERE "+cond.String(), "due_date ASC, created_at ASC", limit, offset, cond.args)
	if err != nil {
		return nil, 0, fmt.Errorf("list homework: %w", err)
	}
	return items, total, nil
}

// SetSubmission records a student's status for a homework item.
func (r *HomeworkRepository) SetSubmission(ctx context.Context, sub *models.HomeworkSubmission) error {
	sub.UpdatedAt = r.now().UTC()
	const query = `INSERT INTO homework_submissions (homework_id, student_id, status, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (homework_id, student_id) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, sub.HomeworkID, sub.StudentID, sub.Status, sub.UpdatedAt); err != nil {
		return fmt.Errorf("set homework submission: %w", err)
	}
	return nil
}

// ListSubmissions returns the status of every student in the homework's class.
func (r *HomeworkRepository) ListSubmissions(ctx context.Context, homeworkID string) ([]models.SubmissionView, error) {
	const query = `SELECT s.id AS student_id, s.roll_no, s.name AS student_name, COALESCE(hs.status, 'PENDING') AS status
FROM homework h
JOIN students s ON s.class_level = h.class_level
LEFT JOIN homework_submissions hs ON hs.homework_id = h.id AND hs.student_id = s.id
WHERE h.id = $1
ORDER BY s.roll_no`
	rows := []models.SubmissionView{}
	if err := r.db.SelectContext(ctx, &rows, query, homeworkID); err != nil {
		return nil, fmt.Errorf("list homework submissions: %w", err)
	}
	return rows, nil
}

// CountOpen counts homework in a class whose due date has not passed.
func (r *HomeworkRepository) CountOpen(ctx context.Context, classLevel models.ClassLevel) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM homework WHERE class_level = $1 AND due_date >= $2`
	if err := r.db.GetContext(ctx, &count, query, classLevel, r.now().UTC().Truncate(24*time.Hour)); err != nil {
		return 0, fmt.Errorf("count open homework: %w", err)
	}
	return count, nil
}
