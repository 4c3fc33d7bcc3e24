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

const dateLayout = "2006-01-02"

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceView, int, error)
	Upsert(ctx context.Context, records []models.AttendanceRecord) error
	Counts(ctx context.Context, filter models.AttendanceFilter) (models.AttendanceCounts, error)
}

// AttendanceEntry is one student's status inside a bulk request.
type AttendanceEntry struct {
	StudentID string  `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"required,attendance_status"`
	Note      *string `json:"note"`
}

// BulkAttendanceRequest marks a whole class for one day.
type BulkAttendanceRequest struct {
	ClassLevel string            `json:"class_level" validate:"required"`
	Date       string            `json:"date" validate:"required"`
	Entries    []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceService coordinates the daily attendance register.
type AttendanceService struct {
	repo      attendanceRepository
	students  classRosterReader
	access    classAccessChecker
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, students classRosterReader, access classAccessChecker, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	_ = validate.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToUpper(fl.Field().String())).Valid()
	})
	return &AttendanceService{repo: repo, students: students, access: access, cache: cache, validator: validate, logger: logger, now: time.Now}
}

// MarkClass records the statuses of a class for one day. Every student must
// belong to the class; existing records for the day are overwritten.
func (s *AttendanceService) MarkClass(ctx context.Context, actor *models.JWTClaims, req BulkAttendanceRequest) ([]models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid attendance payload")
	}
	classLevel, err := parseClassLevel(req.ClassLevel)
	if err != nil {
		return nil, err
	}
	day, err := time.Parse(dateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
	}
	if err := s.requireClass(ctx, actor, classLevel); err != nil {
		return nil, err
	}

	roster, err := s.students.ListByClass(ctx, classLevel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	enrolled := make(map[string]struct{}, len(roster))
	for _, student := range roster {
		enrolled[student.ID] = struct{}{}
	}

	var recordedBy *string
	if actor != nil && actor.UserID != "" {
		id := actor.UserID
		recordedBy = &id
	}
	records := make([]models.AttendanceRecord, 0, len(req.Entries))
	seen := map[string]struct{}{}
	for _, entry := range req.Entries {
		if _, ok := enrolled[entry.StudentID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not in class %s", entry.StudentID, classLevel))
		}
		if _, dup := seen[entry.StudentID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s listed twice", entry.StudentID))
		}
		seen[entry.StudentID] = struct{}{}
		records = append(records, models.AttendanceRecord{
			StudentID:  entry.StudentID,
			ClassLevel: classLevel,
			Date:       day,
			Status:     models.AttendanceStatus(strings.ToUpper(entry.Status)),
			Note:       entry.Note,
			RecordedBy: recordedBy,
		})
	}

	if err := s.repo.Upsert(ctx, records); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}
	if err := s.cache.InvalidateClass(ctx, classLevel); err != nil {
		s.logger.Warn("failed to invalidate class cache", zap.String("class", string(classLevel)), zap.Error(err))
	}
	s.logger.Info("attendance marked",
		zap.String("class", string(classLevel)),
		zap.String("date", day.Format(dateLayout)),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// List returns attendance rows matching the filter.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceView, *models.Pagination, error) {
	if filter.ClassLevel != "" {
		classLevel, err := parseClassLevel(filter.ClassLevel)
		if err != nil {
			return nil, nil, err
		}
		filter.ClassLevel = string(classLevel)
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "date range is inverted")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return rows, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Summary tallies a class over an optional date range.
func (s *AttendanceService) Summary(ctx context.Context, rawClass string, from, to *time.Time) (*models.AttendanceSummary, error) {
	classLevel, err := parseClassLevel(rawClass)
	if err != nil {
		return nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range is inverted")
	}
	counts, err := s.repo.Counts(ctx, models.AttendanceFilter{ClassLevel: string(classLevel), DateFrom: from, DateTo: to})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	return &models.AttendanceSummary{
		ClassLevel:       classLevel,
		From:             from,
		To:               to,
		AttendanceCounts: counts,
		Percent:          attendancePercent(counts),
	}, nil
}

// Today summarises the current day for a class.
func (s *AttendanceService) Today(ctx context.Context, classLevel models.ClassLevel) (*models.AttendanceSummary, error) {
	now := s.now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return s.Summary(ctx, string(classLevel), &day, &day)
}

func (s *AttendanceService) requireClass(ctx context.Context, actor *models.JWTClaims, classLevel models.ClassLevel) error {
	if s.access == nil {
		return nil
	}
	ok, err := s.access.CanAccessClass(ctx, actor, classLevel)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class access")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("not assigned to class %s", classLevel))
	}
	return nil
}

// attendancePercent is present / (present + absent); leave days are excluded.
func attendancePercent(counts models.AttendanceCounts) float64 {
	return ranking.RoundRatio(int64(counts.Present)*100, int64(counts.Present+counts.Absent), 2)
}
