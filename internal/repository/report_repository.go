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

const reportJobColumns = "id, type, params, status, progress, attempts, result_url, created_by, created_at, finished_at, error_message"

// ReportRepository keeps the lifecycle rows of asynchronous report jobs.
type ReportRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db, now: time.Now}
}

// Create stores a new job, defaulting to QUEUED.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = r.now().UTC()
	}
	const query = `INSERT INTO report_jobs (id, type, params, status, progress, attempts, result_url, created_by, created_at, finished_at, error_message)
VALUES (:id, :type, :params, :status, :progress, :attempts, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, "SELECT "+reportJobColumns+" FROM report_jobs WHERE id = $1", id); err != nil {
		return nil, wrapNotFound(err, "get report job")
	}
	return &job, nil
}

// UpdateReportJobParams lists the columns a status change may touch. Nil
// fields are left as stored.
type UpdateReportJobParams struct {
	Status       *models.ReportStatus
	Progress     *int
	Attempts     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

func (p UpdateReportJobParams) assignments() ([]string, []interface{}) {
	var (
		cols []string
		args []interface{}
	)
	set := func(column string, value interface{}) {
		args = append(args, value)
		cols = append(cols, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.Status != nil {
		set("status", *p.Status)
	}
	if p.Progress != nil {
		set("progress", *p.Progress)
	}
	if p.Attempts != nil {
		set("attempts", *p.Attempts)
	}
	if p.ResultURL != nil {
		set("result_url", *p.ResultURL)
	}
	if p.ErrorMessage != nil {
		set("error_message", *p.ErrorMessage)
	}
	if p.FinishedAt != nil {
		set("finished_at", *p.FinishedAt)
	}
	return cols, args
}

// Update applies the non-nil fields of params. An empty change is a no-op.
func (r *ReportRepository) Update(ctx context.Context, id string, params UpdateReportJobParams) error {
	cols, args := params.assignments()
	if len(cols) == 0 {
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE report_jobs SET %s WHERE id = $%d", strings.Join(cols, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update report job: %w", err)
	}
	return nil
}

func (r *ReportRepository) listWhere(ctx context.Context, op, predicate, order string, args ...interface{}) ([]models.ReportJob, error) {
	query := fmt.Sprintf("SELECT %s FROM report_jobs WHERE %s ORDER BY %s LIMIT $%d", reportJobColumns, predicate, order, len(args))
	jobs := []models.ReportJob{}
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return jobs, nil
}

// ListQueued returns jobs that never reached a terminal state, oldest first,
// so a restarted process can hand them back to the queue.
func (r *ReportRepository) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.listWhere(ctx, "list queued report jobs", "status IN ('QUEUED', 'PROCESSING')", "created_at ASC", limit)
}

// ListFinishedBefore returns finished jobs older than cutoff whose file has not been swept yet.
func (r *ReportRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.listWhere(ctx, "list finished report jobs",
		"status = 'FINISHED' AND finished_at IS NOT NULL AND finished_at < $1 AND COALESCE(result_url, '') <> ''",
		"finished_at ASC", cutoff, limit)
}
