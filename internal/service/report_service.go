package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-results-api/internal/dto"
	"github.com/noah-isme/school-results-api/internal/models"
	"github.com/noah-isme/school-results-api/internal/ranking"
	"github.com/noah-isme/school-results-api/internal/repository"
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
	"github.com/noah-isme/school-results-api/pkg/jobs"
)

type classAccessChecker interface {
	CanAccessClass(ctx context.Context, claims *models.JWTClaims, classLevel models.ClassLevel) (bool, error)
}

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

// ReportService orchestrates report job lifecycle management.
type ReportService struct {
	repo      reportJobStore
	access    classAccessChecker
	queue     jobDispatcher
	exporter  *ExportService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
}

// ReportServiceConfig governs queue recovery and cleanup.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo reportJobStore, access classAccessChecker, queue jobDispatcher, exporter *ExportService, metrics *MetricsService, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ReportService{
		repo:      repo,
		access:    access,
		queue:     queue,
		exporter:  exporter,
		metrics:   metrics,
		validator: validator.New(),
		logger:    logger,
		cfg:       cfg,
	}
}

// CreateJob validates the request, persists the job and enqueues processing.
func (s *ReportService) CreateJob(ctx context.Context, req dto.ReportRequest, actor *models.JWTClaims) (*dto.ReportJobResponse, error) {
	params, err := s.validateRequest(ctx, req, actor)
	if err != nil {
		return nil, err
	}
	job := &models.ReportJob{
		Type:      req.Type,
		Params:    params,
		Status:    models.ReportStatusQueued,
		CreatedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		status := models.ReportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		progress := 100
		_ = s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		s.metrics.RecordReportJob(string(job.Type), string(status))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	s.metrics.RecordReportJob(string(job.Type), string(job.Status))
	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata. Non-admins only see their own jobs; finished
// jobs carry a freshly signed download link.
func (s *ReportService) GetStatus(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ReportStatusResponse, error) {
	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == nil || (!actor.Role.IsAdmin() && job.CreatedBy != actor.UserID) {
		return nil, appErrors.ErrForbidden
	}
	resp := &dto.ReportStatusResponse{
		ID:       job.ID,
		Type:     job.Type,
		Status:   job.Status,
		Progress: job.Progress,
		Attempts: job.Attempts,
	}
	if job.Status == models.ReportStatusFinished && job.ResultURL != nil && *job.ResultURL != "" {
		url, expiresAt, err := s.exporter.SignDownload(job.ID, *job.ResultURL)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
		}
		resp.DownloadURL = &url
		resp.ExpiresAt = &expiresAt
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates the token and opens the stored export file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	decoded, err := s.exporter.VerifyToken(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.load(ctx, decoded.JobID)
	if err != nil {
		return nil, err
	}
	if job.ResultURL == nil || *job.ResultURL != decoded.Path {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}
	file, err := s.exporter.Open(decoded.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report file expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ReportDownload{
		File:      file,
		Filename:  path.Base(decoded.Path),
		Format:    job.Params.Format,
		ExpiresAt: decoded.ExpiresAt,
	}, nil
}

// RecoverPendingJobs hands unfinished jobs back to the queue after a restart,
// carrying over the attempts they already used.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued report jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type), Attempt: job.Attempts, Enqueued: job.CreatedAt}); err != nil {
			s.logger.Warn("failed to requeue pending job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if len(pending) > 0 {
		s.logger.Info("recovered pending report jobs", zap.Int("count", len(pending)))
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

// cleanupExpired removes files of jobs finished before the TTL and detaches
// them from their jobs, then sweeps any orphaned files.
func (s *ReportService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	expired, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Warn("cleanup list failed", zap.Error(err))
		return
	}
	for _, job := range expired {
		if job.ResultURL == nil || *job.ResultURL == "" {
			continue
		}
		if err := s.exporter.Delete(*job.ResultURL); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		cleared := ""
		msg := "export expired"
		if err := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{ResultURL: &cleared, ErrorMessage: &msg}); err != nil {
			s.logger.Warn("cleanup update failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if _, err := s.exporter.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("filesystem cleanup failed", zap.Error(err))
	}
}

func (s *ReportService) validateRequest(ctx context.Context, req dto.ReportRequest, actor *models.JWTClaims) (models.ReportJobParams, error) {
	if actor == nil {
		return models.ReportJobParams{}, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return models.ReportJobParams{}, appErrors.Validation(err, "invalid report request")
	}
	if !req.Type.Valid() {
		return models.ReportJobParams{}, appErrors.Clone(appErrors.ErrValidation, "unsupported report type")
	}
	classLevel, err := parseClassLevel(req.ClassLevel)
	if err != nil {
		return models.ReportJobParams{}, err
	}
	params := models.ReportJobParams{ClassLevel: classLevel, Format: req.Format, Extras: map[string]string{}}

	switch req.Type {
	case models.ReportTypeResultSheet:
		period, ok := ranking.ParseExamPeriod(req.ExamPeriod)
		if !ok {
			return models.ReportJobParams{}, appErrors.Clone(appErrors.ErrInvalidExamPeriod, "exam period must be one of Bimonthly, Term, Preboard, Final")
		}
		params.ExamPeriod = period
		params.SortKey = strings.ToLower(strings.TrimSpace(req.SortKey))
	case models.ReportTypeAttendance:
		from, hasFrom := parseDay(req.From)
		to, hasTo := parseDay(req.To)
		if (req.From != "" && !hasFrom) || (req.To != "" && !hasTo) {
			return models.ReportJobParams{}, appErrors.Clone(appErrors.ErrValidation, "dates must use YYYY-MM-DD")
		}
		if hasFrom && hasTo && to.Before(from) {
			return models.ReportJobParams{}, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
		}
		if hasFrom {
			params.Extras["from"] = req.From
		}
		if hasTo {
			params.Extras["to"] = req.To
		}
	}

	if !actor.Role.IsAdmin() {
		if s.access == nil {
			return models.ReportJobParams{}, appErrors.ErrForbidden
		}
		ok, err := s.access.CanAccessClass(ctx, actor, classLevel)
		if err != nil {
			return models.ReportJobParams{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate class access")
		}
		if !ok {
			return models.ReportJobParams{}, appErrors.ErrForbidden
		}
	}
	return params, nil
}

func (s *ReportService) load(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	return job, nil
}

// ReportWorker bridges queue jobs to ExportService.
type ReportWorker struct {
	repo       reportJobStore
	exporter   exportGenerator
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

// NewReportWorker constructs a worker.
func NewReportWorker(repo reportJobStore, exporter exportGenerator, metrics *MetricsService, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{
		repo:       repo,
		exporter:   exporter,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle runs one attempt of a report job. A failed attempt leaves the row
// QUEUED for the queue's retry unless it was the last one allowed.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	attempts := job.Attempt + 1
	if err := w.transition(ctx, job.ID, models.ReportStatusProcessing, 10, repository.UpdateReportJobParams{Attempts: &attempts}); err != nil {
		return err
	}

	result, genErr := w.exporter.Generate(ctx, record)
	// status writes must land even when the attempt ran out of time
	writeCtx := context.WithoutCancel(ctx)
	if genErr != nil {
		msg := genErr.Error()
		if job.Attempt >= w.maxRetries {
			now := time.Now().UTC()
			if err := w.transition(writeCtx, job.ID, models.ReportStatusFailed, 100, repository.UpdateReportJobParams{ErrorMessage: &msg, FinishedAt: &now}); err != nil {
				w.logger.Warn("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(err))
			}
			w.metrics.RecordReportJob(string(record.Type), string(models.ReportStatusFailed))
		} else if err := w.transition(writeCtx, job.ID, models.ReportStatusQueued, 0, repository.UpdateReportJobParams{ErrorMessage: &msg}); err != nil {
			w.logger.Warn("failed to requeue job", zap.String("job_id", job.ID), zap.Error(err))
		}
		return genErr
	}

	now := time.Now().UTC()
	stored := result.RelativePath
	clear := ""
	if err := w.transition(writeCtx, job.ID, models.ReportStatusFinished, 100, repository.UpdateReportJobParams{
		ResultURL:    &stored,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark job finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	w.metrics.RecordReportJob(string(record.Type), string(models.ReportStatusFinished))
	return nil
}

func (w *ReportWorker) transition(ctx context.Context, id string, status models.ReportStatus, progress int, extra repository.UpdateReportJobParams) error {
	extra.Status = &status
	extra.Progress = &progress
	return w.repo.Update(ctx, id, extra)
}
