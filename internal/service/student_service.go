package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-results-api/internal/models"
	"github.com/noah-isme/school-results-api/internal/ranking"
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByRoll(ctx context.Context, rollNo string, classLevel models.ClassLevel, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateMarks(ctx context.Context, id string, marks models.MarkSheet) error
	ReplaceMarks(ctx context.Context, id string, marks models.MarkSheet) error
	SetManualTotal(ctx context.Context, id string, total *int) error
	SetPassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
}

type markPermissionChecker interface {
	RequireMarkAccess(ctx context.Context, claims *models.JWTClaims, classLevel models.ClassLevel, subjectKeys []string) error
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	RollNo     string           `json:"roll_no" validate:"required"`
	Name       string           `json:"name" validate:"required"`
	ClassLevel string           `json:"class_level" validate:"required"`
	Password   string           `json:"password" validate:"omitempty,min=6"`
	Marks      models.MarkSheet `json:"marks"`
}

// UpdateStudentRequest holds payload for updating student profiles.
type UpdateStudentRequest struct {
	RollNo     string `json:"roll_no" validate:"required"`
	Name       string `json:"name" validate:"required"`
	ClassLevel string `json:"class_level" validate:"required"`
}

// UpdateMarksRequest carries marks for one exam period keyed by subject key.
type UpdateMarksRequest struct {
	ExamPeriod string         `json:"exam_period" validate:"required"`
	Marks      map[string]int `json:"marks" validate:"required,min=1"`
}

// ManualTotalRequest sets (or clears, when Total is null) the manual total.
// ExamPeriod selects the result returned; it defaults to Final.
type ManualTotalRequest struct {
	Total      *int   `json:"total" validate:"omitempty,min=0"`
	ExamPeriod string `json:"exam_period"`
}

// SetPasswordRequest sets a student's login password.
type SetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

// StudentService handles student and mark use-cases.
type StudentService struct {
	repo        studentRepository
	permissions markPermissionChecker
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, permissions markPermissionChecker, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, permissions: permissions, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	if filter.ClassLevel != "" {
		classLevel, err := parseClassLevel(filter.ClassLevel)
		if err != nil {
			return nil, nil, err
		}
		filter.ClassLevel = string(classLevel)
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	return s.load(ctx, id)
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid student payload")
	}
	classLevel, err := parseClassLevel(req.ClassLevel)
	if err != nil {
		return nil, err
	}
	rollNo := strings.TrimSpace(req.RollNo)
	if err := s.ensureUniqueRoll(ctx, rollNo, classLevel, ""); err != nil {
		return nil, err
	}
	marks := ranking.NormalizeMarks(req.Marks)
	if err := ranking.ValidateMarks(classLevel, marks); err != nil {
		return nil, mapRankingError(err, "invalid marks")
	}

	student := &models.Student{
		RollNo:     rollNo,
		Name:       strings.TrimSpace(req.Name),
		ClassLevel: classLevel,
		Marks:      marks,
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		hashed := string(hash)
		student.PasswordHash = &hashed
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	_ = s.cache.InvalidateClass(ctx, classLevel)
	return student, nil
}

// Update modifies a student's profile. Moving a student between classes
// invalidates both classes and drops marks the new class does not configure.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid student payload")
	}
	classLevel, err := parseClassLevel(req.ClassLevel)
	if err != nil {
		return nil, err
	}
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	rollNo := strings.TrimSpace(req.RollNo)
	if err := s.ensureUniqueRoll(ctx, rollNo, classLevel, id); err != nil {
		return nil, err
	}
	previousClass := student.ClassLevel
	student.RollNo = rollNo
	student.Name = strings.TrimSpace(req.Name)
	student.ClassLevel = classLevel
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	if previousClass != classLevel {
		kept, dropped, err := ranking.RetainConfigured(classLevel, student.Marks)
		if err != nil {
			return nil, mapRankingError(err, "failed to check marks")
		}
		if len(dropped) > 0 {
			if err := s.repo.ReplaceMarks(ctx, id, kept); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update marks")
			}
			student.Marks = kept
			s.logger.Info("marks dropped on class change",
				zap.String("student_id", id),
				zap.String("from", string(previousClass)),
				zap.String("to", string(classLevel)),
				zap.Strings("keys", dropped),
			)
		}
	}
	_ = s.cache.InvalidateClass(ctx, classLevel)
	if previousClass != classLevel {
		_ = s.cache.InvalidateClass(ctx, previousClass)
	}
	return student, nil
}

// Delete removes a student.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	student, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	_ = s.cache.InvalidateClass(ctx, student.ClassLevel)
	return nil
}

// UpdateMarks writes marks for one exam period after checking the actor may
// edit every subject touched.
func (s *StudentService) UpdateMarks(ctx context.Context, actor *models.JWTClaims, id string, req UpdateMarksRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid marks payload")
	}
	period, ok := ranking.ParseExamPeriod(req.ExamPeriod)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidExamPeriod, "exam period must be one of Bimonthly, Term, Preboard, Final")
	}
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	sheet := make(models.MarkSheet, len(req.Marks))
	subjects := make([]string, 0, len(req.Marks))
	for key, value := range req.Marks {
		subjectKey := strings.ToLower(strings.TrimSpace(key))
		sheet[ranking.StorageKey(period, subjectKey)] = value
		subjects = append(subjects, subjectKey)
	}
	sort.Strings(subjects)

	if err := ranking.ValidateMarks(student.ClassLevel, sheet); err != nil {
		return nil, mapRankingError(err, "invalid marks")
	}
	if s.permissions != nil {
		if err := s.permissions.RequireMarkAccess(ctx, actor, student.ClassLevel, subjects); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateMarks(ctx, id, sheet); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update marks")
	}
	s.metrics.AddMarksWritten(string(period), len(sheet))
	_ = s.cache.InvalidateClass(ctx, student.ClassLevel)

	if student.Marks == nil {
		student.Marks = models.MarkSheet{}
	}
	for key, value := range sheet {
		student.Marks[key] = value
	}
	s.logger.Info("marks updated",
		zap.String("student_id", id),
		zap.String("exam_period", string(period)),
		zap.Strings("subjects", subjects),
		zap.String("actor_id", userIDOf(actor)),
	)
	return student, nil
}

// SetManualTotal stores or clears the manual total and returns the resulting
// figures for the requested exam period.
func (s *StudentService) SetManualTotal(ctx context.Context, id string, req ManualTotalRequest) (*models.CalculatedResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid manual total")
	}
	period := models.ExamFinal
	if req.ExamPeriod != "" {
		parsed, ok := ranking.ParseExamPeriod(req.ExamPeriod)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrInvalidExamPeriod, "exam period must be one of Bimonthly, Term, Preboard, Final")
		}
		period = parsed
	}
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetManualTotal(ctx, id, req.Total); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set manual total")
	}
	_ = s.cache.InvalidateClass(ctx, student.ClassLevel)

	student.ManualTotal = req.Total
	result, err := ranking.ComputeResult(*student, period)
	if err != nil {
		return nil, mapRankingError(err, "failed to compute result")
	}
	if result.TotalOverridden {
		s.logger.Warn("manual total differs from calculated total",
			zap.String("student_id", id),
			zap.Int("manual_total", result.Total),
			zap.Int("calculated_total", result.CalculatedTotal),
		)
	}
	return &result, nil
}

// SetPassword stores a bcrypt hash of the student's login password.
func (s *StudentService) SetPassword(ctx context.Context, id string, req SetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid password payload")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.repo.SetPassword(ctx, id, string(hash)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set password")
	}
	return nil
}

func (s *StudentService) load(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func (s *StudentService) ensureUniqueRoll(ctx context.Context, rollNo string, classLevel models.ClassLevel, excludeID string) error {
	exists, err := s.repo.ExistsByRoll(ctx, rollNo, classLevel, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate roll number")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "roll number already used in this class")
	}
	return nil
}
