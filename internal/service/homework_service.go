package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-results-api/internal/models"
	"github.com/noah-isme/school-results-api/internal/ranking"
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
)

type homeworkRepository interface {
	Create(ctx context.Context, hw *models.Homework) error
	Update(ctx context.Context, hw *models.Homework) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.Homework, error)
	List(ctx context.Context, filter models.HomeworkFilter) ([]models.Homework, int, error)
	SetSubmission(ctx context.Context, sub *models.HomeworkSubmission) error
	ListSubmissions(ctx context.Context, homeworkID string) ([]models.SubmissionView, error)
	CountOpen(ctx context.Context, classLevel models.ClassLevel) (int, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// HomeworkRequest is the payload for creating or replacing a homework item.
type HomeworkRequest struct {
	ClassLevel  string `json:"class_level" validate:"required"`
	SubjectKey  string `json:"subject_key" validate:"required"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	DueDate     string `json:"due_date" validate:"required"`
}

// SubmissionRequest sets one student's status for a homework item.
type SubmissionRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required"`
}

// HomeworkService manages homework items and submission tracking.
type HomeworkService struct {
	repo        homeworkRepository
	students    studentFinder
	permissions markPermissionChecker
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewHomeworkService constructs the homework service.
func NewHomeworkService(repo homeworkRepository, students studentFinder, permissions markPermissionChecker, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *HomeworkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HomeworkService{repo: repo, students: students, permissions: permissions, cache: cache, validator: validate, logger: logger}
}

// List returns homework for the filter.
func (s *HomeworkService) List(ctx context.Context, filter models.HomeworkFilter) ([]models.Homework, *models.Pagination, error) {
	if filter.ClassLevel != "" {
		classLevel, err := parseClassLevel(filter.ClassLevel)
		if err != nil {
			return nil, nil, err
		}
		filter.ClassLevel = string(classLevel)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list homework")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a single homework item.
func (s *HomeworkService) Get(ctx context.Context, id string) (*models.Homework, error) {
	hw, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "homework not found", "failed to load homework")
	}
	return hw, nil
}

// Create sets homework for a class subject. Teachers need the subject assignment.
func (s *HomeworkService) Create(ctx context.Context, actor *models.JWTClaims, req HomeworkRequest) (*models.Homework, error) {
	hw, err := s.build(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	if actor != nil && actor.UserID != "" {
		assignedBy := actor.UserID
		hw.AssignedBy = &assignedBy
	}
	if err := s.repo.Create(ctx, hw); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create homework")
	}
	s.invalidate(ctx, hw.ClassLevel)
	s.logger.Info("homework created", zap.String("homework_id", hw.ID), zap.String("class", string(hw.ClassLevel)), zap.String("subject", hw.SubjectKey))
	return hw, nil
}

// Update replaces the editable fields of a homework item. The class cannot change.
func (s *HomeworkService) Update(ctx context.Context, actor *models.JWTClaims, id string, req HomeworkRequest) (*models.Homework, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.RequireMarkAccess(ctx, actor, existing.ClassLevel, []string{existing.SubjectKey}); err != nil {
		return nil, err
	}
	req.ClassLevel = string(existing.ClassLevel)
	hw, err := s.build(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	hw.ID = existing.ID
	hw.AssignedBy = existing.AssignedBy
	hw.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, hw); err != nil {
		return nil, notFoundOrInternal(err, "homework not found", "failed to update homework")
	}
	s.invalidate(ctx, hw.ClassLevel)
	return hw, nil
}

// Delete removes a homework item.
func (s *HomeworkService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.permissions.RequireMarkAccess(ctx, actor, existing.ClassLevel, []string{existing.SubjectKey}); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFoundOrInternal(err, "homework not found", "failed to delete homework")
	}
	s.invalidate(ctx, existing.ClassLevel)
	return nil
}

// SetSubmission records a student's status. The student must be in the homework's class.
func (s *HomeworkService) SetSubmission(ctx context.Context, actor *models.JWTClaims, homeworkID string, req SubmissionRequest) (*models.HomeworkSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid submission payload")
	}
	status := models.SubmissionStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be one of PENDING, SUBMITTED, LATE")
	}
	hw, err := s.Get(ctx, homeworkID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.RequireMarkAccess(ctx, actor, hw.ClassLevel, []string{hw.SubjectKey}); err != nil {
		return nil, err
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, notFoundOrInternal(err, "student not found", "failed to load student")
	}
	if student.ClassLevel != hw.ClassLevel {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not in class %s", student.ID, hw.ClassLevel))
	}

	sub := &models.HomeworkSubmission{HomeworkID: hw.ID, StudentID: student.ID, Status: status}
	if err := s.repo.SetSubmission(ctx, sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
	}
	return sub, nil
}

// ListSubmissions returns every student of the class with their status.
func (s *HomeworkService) ListSubmissions(ctx context.Context, homeworkID string) ([]models.SubmissionView, error) {
	if _, err := s.Get(ctx, homeworkID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListSubmissions(ctx, homeworkID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return rows, nil
}

// CountOpen counts homework that is not yet due for a class.
func (s *HomeworkService) CountOpen(ctx context.Context, classLevel models.ClassLevel) (int, error) {
	count, err := s.repo.CountOpen(ctx, classLevel)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count homework")
	}
	return count, nil
}

func (s *HomeworkService) build(ctx context.Context, actor *models.JWTClaims, req HomeworkRequest) (*models.Homework, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid homework payload")
	}
	classLevel, err := parseClassLevel(req.ClassLevel)
	if err != nil {
		return nil, err
	}
	subjectKey := strings.ToLower(strings.TrimSpace(req.SubjectKey))
	if _, ok, _ := ranking.FindSubject(classLevel, subjectKey); !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %s is not taught in class %s", subjectKey, classLevel))
	}
	due, err := time.Parse(dateLayout, strings.TrimSpace(req.DueDate))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due_date must use YYYY-MM-DD")
	}
	if err := s.permissions.RequireMarkAccess(ctx, actor, classLevel, []string{subjectKey}); err != nil {
		return nil, err
	}
	return &models.Homework{
		ClassLevel:  classLevel,
		SubjectKey:  subjectKey,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		DueDate:     due,
	}, nil
}

// invalidate drops dashboards that show the open homework count.
func (s *HomeworkService) invalidate(ctx context.Context, classLevel models.ClassLevel) {
	if err := s.cache.InvalidateClass(ctx, classLevel); err != nil {
		s.logger.Warn("failed to invalidate class cache", zap.String("class", string(classLevel)), zap.Error(err))
	}
}
