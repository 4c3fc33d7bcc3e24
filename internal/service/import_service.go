package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/school-results-api/internal/dto"
	"github.com/noah-isme/school-results-api/internal/models"
	"github.com/noah-isme/school-results-api/internal/ranking"
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
	"github.com/noah-isme/school-results-api/pkg/export"
)

type importStudentStore interface {
	FindByRoll(ctx context.Context, rollNo string, classLevel models.ClassLevel) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	UpdateMarks(ctx context.Context, id string, marks models.MarkSheet) error
}

type tableParser interface {
	Parse(r io.Reader) (export.Table, error)
}

var (
	rollHeaders = map[string]struct{}{"roll no": {}, "roll_no": {}, "rollno": {}, "roll": {}}
	nameHeaders = map[string]struct{}{"name": {}, "student name": {}, "student": {}}
)

// ImportService turns CSV uploads into student mark sheets.
type ImportService struct {
	students    importStudentStore
	permissions markPermissionChecker
	parser      tableParser
	cache       *CacheService
	metrics     *MetricsService
	maxBytes    int64
	logger      *zap.Logger
}

// NewImportService constructs the import service. parser defaults to the CSV exporter.
func NewImportService(students importStudentStore, permissions markPermissionChecker, parser tableParser, cache *CacheService, metrics *MetricsService, maxBytes int64, logger *zap.Logger) *ImportService {
	if parser == nil {
		parser = export.NewCSVExporter()
	}
	if maxBytes <= 0 {
		maxBytes = 2 * 1024 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		students:    students,
		permissions: permissions,
		parser:      parser,
		cache:       cache,
		metrics:     metrics,
		maxBytes:    maxBytes,
		logger:      logger,
	}
}

type importColumns struct {
	roll     int
	name     int
	subjects map[int]models.Subject
}

// ImportMarks reads one exam period's marks for a class. A bad row is
// reported and skipped; it never aborts the rows after it.
func (s *ImportService) ImportMarks(ctx context.Context, actor *models.JWTClaims, rawClass, rawPeriod string, r io.Reader) (*dto.ImportResult, error) {
	classLevel, period, err := parseClassPeriod(rawClass, rawPeriod)
	if err != nil {
		return nil, err
	}

	payload, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, appErrors.Validation(err, "failed to read upload")
	}
	if int64(len(payload)) > s.maxBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.maxBytes))
	}

	table, err := s.parser.Parse(bytes.NewReader(payload))
	if err != nil {
		return nil, appErrors.Validation(err, "invalid csv file")
	}
	columns, err := mapImportColumns(table.Headers, classLevel)
	if err != nil {
		return nil, err
	}

	if s.permissions != nil {
		keys := make([]string, 0, len(columns.subjects))
		for _, subject := range columns.subjects {
			keys = append(keys, subject.Key)
		}
		sort.Strings(keys)
		if err := s.permissions.RequireMarkAccess(ctx, actor, classLevel, keys); err != nil {
			return nil, err
		}
	}

	canCreate := actor != nil && actor.Role.IsAdmin()
	result := &dto.ImportResult{Errors: []dto.ImportRowError{}}
	for i, record := range table.Records {
		row := i + 2
		rollNo := cell(record, columns.roll)
		if rollNo == "" {
			result.Skipped++
			result.Errors = append(result.Errors, dto.ImportRowError{Row: row, Message: "missing roll number"})
			continue
		}
		marks := make(models.MarkSheet, len(columns.subjects))
		for idx, subject := range columns.subjects {
			if idx >= len(record) {
				continue
			}
			marks[ranking.StorageKey(period, subject.Key)] = clampMark(parseMark(record[idx]), ranking.MaxMarks(period, subject))
		}

		created, err := s.upsertRow(ctx, classLevel, rollNo, cell(record, columns.name), marks, canCreate)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, dto.ImportRowError{Row: row, RollNo: rollNo, Message: err.Error()})
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	s.metrics.AddImportRows("created", result.Created)
	s.metrics.AddImportRows("updated", result.Updated)
	s.metrics.AddImportRows("skipped", result.Skipped)
	if result.Created+result.Updated > 0 {
		_ = s.cache.InvalidateClass(ctx, classLevel)
	}
	s.logger.Info("marks imported",
		zap.String("class_level", string(classLevel)),
		zap.String("exam_period", string(period)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (s *ImportService) upsertRow(ctx context.Context, classLevel models.ClassLevel, rollNo, name string, marks models.MarkSheet, canCreate bool) (bool, error) {
	existing, err := s.students.FindByRoll(ctx, rollNo, classLevel)
	switch {
	case err == nil:
		if len(marks) == 0 {
			return false, nil
		}
		if err := s.students.UpdateMarks(ctx, existing.ID, marks); err != nil {
			s.logger.Warn("import update failed", zap.String("roll_no", rollNo), zap.Error(err))
			return false, errors.New("failed to update marks")
		}
		return false, nil
	case errors.Is(err, sql.ErrNoRows):
		if !canCreate {
			return false, errors.New("only administrators can add students")
		}
		if name == "" {
			return false, errors.New("name is required for a new student")
		}
		student := &models.Student{RollNo: rollNo, Name: name, ClassLevel: classLevel, Marks: marks}
		if err := s.students.Create(ctx, student); err != nil {
			s.logger.Warn("import create failed", zap.String("roll_no", rollNo), zap.Error(err))
			return false, errors.New("failed to create student")
		}
		return true, nil
	default:
		s.logger.Warn("import lookup failed", zap.String("roll_no", rollNo), zap.Error(err))
		return false, errors.New("failed to look up student")
	}
}

// mapImportColumns resolves header positions. Subject columns match a label
// or key case-insensitively; anything else is ignored.
func mapImportColumns(headers []string, classLevel models.ClassLevel) (importColumns, error) {
	subjects, err := ranking.SubjectsFor(classLevel)
	if err != nil {
		return importColumns{}, mapRankingError(err, "failed to resolve subjects")
	}
	columns := importColumns{roll: -1, name: -1, subjects: map[int]models.Subject{}}
	for idx, header := range headers {
		normalized := strings.ToLower(strings.TrimSpace(header))
		if _, ok := rollHeaders[normalized]; ok && columns.roll < 0 {
			columns.roll = idx
			continue
		}
		if _, ok := nameHeaders[normalized]; ok && columns.name < 0 {
			columns.name = idx
			continue
		}
		for _, subject := range subjects {
			if strings.EqualFold(subject.Label, normalized) || subject.Key == normalized {
				columns.subjects[idx] = subject
				break
			}
		}
	}
	if columns.roll < 0 {
		return importColumns{}, appErrors.Clone(appErrors.ErrValidation, "csv header must include a Roll No column")
	}
	return columns, nil
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// parseMark reads a numeric cell; anything non-numeric counts as 0.
func parseMark(raw string) int {
	raw = strings.TrimSpace(raw)
	if v, err := strconv.Atoi(raw); err == nil {
		return v
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Round(f))
}

func clampMark(value, paperMax int) int {
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	if value > paperMax {
		value = paperMax
	}
	return value
}
