package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-results-api/internal/models"
)

const studentColumns = "id, roll_no, name, class_level, marks, manual_total, password_hash, created_at, updated_at"

// StudentRepository manages persistence for student records and their mark sheets.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

var studentSorts = map[string]string{
	"name":        "name",
	"roll_no":     "roll_no",
	"class_level": "class_level",
	"created_at":  "created_at",
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	cond := where()
	if filter.ClassLevel != "" {
		cond.and("class_level = ?", filter.ClassLevel)
	}
	if filter.Search != "" {
		cond.and("(LOWER(name) LIKE ? OR LOWER(roll_no) LIKE ?)", likePattern(filter.Search))
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize, 50, 200)
	order := sortClause(studentSorts, filter.SortBy, "roll_no", filter.SortOrder, "ASC")

	students := []models.Student{}
	total, err := selectPage(ctx, r.db, &students, studentColumns, "FROM students WHERE "+cond.String(), order, limit, offset, cond.args)
	if err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}
	return students, total, nil
}

// ListByClass returns every student of a class ordered by roll number.
func (r *StudentRepository) ListByClass(ctx context.Context, classLevel models.ClassLevel) ([]models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE class_level = $1 ORDER BY roll_no"
	students := []models.Student{}
	if err := r.db.SelectContext(ctx, &students, query, classLevel); err != nil {
		return nil, fmt.Errorf("list students by class: %w", err)
	}
	return students, nil
}

// ListAll returns the whole student body, used for cross-class comparisons.
func (r *StudentRepository) ListAll(ctx context.Context) ([]models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students ORDER BY class_level, roll_no"
	students := []models.Student{}
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list all students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by identifier. sql.ErrNoRows is returned unwrapped.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE id = $1"
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, wrapNotFound(err, "find student")
	}
	return &student, nil
}

// FindByRoll fetches a student by roll number within a class.
func (r *StudentRepository) FindByRoll(ctx context.Context, rollNo string, classLevel models.ClassLevel) (*models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE roll_no = $1 AND class_level = $2"
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, rollNo, classLevel); err != nil {
		return nil, wrapNotFound(err, "find student by roll")
	}
	return &student, nil
}

// ExistsByRoll checks whether a roll number is taken in a class, optionally ignoring one student.
func (r *StudentRepository) ExistsByRoll(ctx context.Context, rollNo string, classLevel models.ClassLevel, excludeID string) (bool, error) {
	query := "SELECT EXISTS(SELECT 1 FROM students WHERE roll_no = $1 AND class_level = $2"
	args := []interface{}{rollNo, classLevel}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	query += ")"
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check roll number: %w", err)
	}
	return exists, nil
}

// Create inserts a student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.Marks == nil {
		student.Marks = models.MarkSheet{}
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, roll_no, name, class_level, marks, manual_total, password_hash, created_at, updated_at)
        VALUES (:id, :roll_no, :name, :class_level, :marks, :manual_total, :password_hash, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update persists profile fields. Marks are written through UpdateMarks.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET roll_no = :roll_no, name = :name, class_level = :class_level, manual_total = :manual_total, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// UpdateMarks merges the given entries into the stored mark sheet.
func (r *StudentRepository) UpdateMarks(ctx context.Context, id string, marks models.MarkSheet) error {
	const query = `UPDATE students SET marks = marks || $2::jsonb, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, marks, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update marks: %w", err)
	}
	return requireAffected(res)
}

// ReplaceMarks overwrites the whole mark sheet.
func (r *StudentRepository) ReplaceMarks(ctx context.Context, id string, marks models.MarkSheet) error {
	const query = `UPDATE students SET marks = $2::jsonb, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, marks, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("replace marks: %w", err)
	}
	return requireAffected(res)
}

// SetManualTotal stores or clears (nil) the manual total override.
func (r *StudentRepository) SetManualTotal(ctx context.Context, id string, total *int) error {
	const query = `UPDATE students SET manual_total = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, total, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set manual total: %w", err)
	}
	return requireAffected(res)
}

// SetPassword stores the student's login password hash.
func (r *StudentRepository) SetPassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE students SET password_hash = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set student password: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a student together with attendance and submissions (cascade).
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return requireAffected(res)
}

// requireAffected maps a zero-row write to sql.ErrNoRows.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
