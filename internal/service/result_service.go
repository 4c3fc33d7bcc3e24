package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/school-results-api/internal/models"
	"github.com/noah-isme/school-results-api/internal/ranking"
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
)

type studentSnapshotReader interface {
	ListByClass(ctx context.Context, classLevel models.ClassLevel) ([]models.Student, error)
	ListAll(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// ResultService loads student snapshots and hands them to the ranking engine.
type ResultService struct {
	students studentSnapshotReader
	cache    *CacheService
	metrics  *MetricsService
	cacheTTL time.Duration
	logger   *zap.Logger
	inflight singleflight.Group
}

// NewResultService constructs the result service. cache and metrics may be nil.
func NewResultService(students studentSnapshotReader, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *ResultService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultService{students: students, cache: cache, metrics: metrics, cacheTTL: cacheTTL, logger: logger}
}

// parseClassPeriod validates the raw class level and exam period of a request.
func parseClassPeriod(rawClass, rawPeriod string) (models.ClassLevel, models.ExamPeriod, error) {
	classLevel, err := parseClassLevel(rawClass)
	if err != nil {
		return "", "", err
	}
	period, ok := ranking.ParseExamPeriod(rawPeriod)
	if !ok {
		return "", "", appErrors.Clone(appErrors.ErrInvalidExamPeriod, "exam period must be one of Bimonthly, Term, Preboard, Final")
	}
	return classLevel, period, nil
}

func parseClassLevel(raw string) (models.ClassLevel, error) {
	classLevel := models.ClassLevel(strings.TrimSpace(raw))
	if !ranking.ValidClassLevel(classLevel) {
		return "", appErrors.Clone(appErrors.ErrInvalidClassLevel, "class level must be between 6 and 10")
	}
	return classLevel, nil
}

// mapRankingError converts engine errors into API errors.
func mapRankingError(err error, message string) error {
	switch {
	case errors.Is(err, ranking.ErrInvalidClassLevel):
		return appErrors.Wrap(err, appErrors.ErrInvalidClassLevel.Code, appErrors.ErrInvalidClassLevel.Status, appErrors.ErrInvalidClassLevel.Message)
	case errors.Is(err, ranking.ErrInvalidMarkKey), errors.Is(err, ranking.ErrMarkOutOfRange):
		return appErrors.Validation(err, err.Error())
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}

// ClassResults returns the ranked results of a class. The boolean reports a cache hit.
func (s *ResultService) ClassResults(ctx context.Context, rawClass, rawPeriod, sortKey string) ([]models.CalculatedResult, bool, error) {
	classLevel, period, err := parseClassPeriod(rawClass, rawPeriod)
	if err != nil {
		return nil, false, err
	}
	return s.rankedClass(ctx, classLevel, period, resultSortKey(classLevel, sortKey))
}

// resultSortKey folds the total orderings and unknown subjects into "total" so
// the cache holds at most one entry per configured subject.
func resultSortKey(classLevel models.ClassLevel, raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if _, ok, err := ranking.FindSubject(classLevel, key); err == nil && ok {
		return key
	}
	return "total"
}

func (s *ResultService) rankedClass(ctx context.Context, classLevel models.ClassLevel, period models.ExamPeriod, sortKey string) ([]models.CalculatedResult, bool, error) {
	key := resultsKey(classLevel, period, sortKey)
	var cached []models.CalculatedResult
	if s.cache.Get(ctx, key, &cached) {
		if cached == nil {
			cached = []models.CalculatedResult{}
		}
		return cached, true, nil
	}

	// concurrent misses on one key share a single load and ranking pass
	shared, err, _ := s.inflight.Do(key, func() (interface{}, error) {
		return s.rankFresh(ctx, key, classLevel, period, sortKey)
	})
	if err != nil {
		return nil, false, err
	}
	results := shared.([]models.CalculatedResult)
	out := make([]models.CalculatedResult, len(results))
	copy(out, results)
	return out, false, nil
}

func (s *ResultService) rankFresh(ctx context.Context, key string, classLevel models.ClassLevel, period models.ExamPeriod, sortKey string) ([]models.CalculatedResult, error) {
	students, err := s.students.ListByClass(ctx, classLevel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}

	start := time.Now()
	results, err := ranking.RankStudents(students, classLevel, period, sortKey)
	s.metrics.ObserveRanking("class_results", time.Since(start))
	if err != nil {
		return nil, mapRankingError(err, "failed to rank class")
	}

	for _, result := range results {
		if result.TotalOverridden {
			s.logger.Warn("manual total differs from calculated total",
				zap.String("student_id", result.ID),
				zap.String("class_level", string(classLevel)),
				zap.Int("manual_total", result.Total),
				zap.Int("calculated_total", result.CalculatedTotal),
			)
		}
	}

	s.cache.Set(ctx, key, results, s.cacheTTL)
	return results, nil
}

// StudentResult returns one student's result together with the rank held in the class.
func (s *ResultService) StudentResult(ctx context.Context, studentID, rawPeriod string) (*models.CalculatedResult, error) {
	period, ok := ranking.ParseExamPeriod(rawPeriod)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidExamPeriod, "exam period must be one of Bimonthly, Term, Preboard, Final")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !ranking.ValidClassLevel(student.ClassLevel) {
		return nil, appErrors.Clone(appErrors.ErrInvalidClassLevel, "student has an unsupported class level")
	}

	results, _, err := s.rankedClass(ctx, student.ClassLevel, period, "")
	if err != nil {
		return nil, err
	}
	for i := range results {
		if results[i].ID == student.ID {
			result := results[i]
			return &result, nil
		}
	}
	// Not in the ranked snapshot (stale cache); compute standalone.
	result, err := ranking.ComputeResult(*student, period)
	if err != nil {
		return nil, mapRankingError(err, "failed to compute result")
	}
	return &result, nil
}

// Bands groups the class results into the fixed performance bands.
func (s *ResultService) Bands(ctx context.Context, rawClass, rawPeriod string) ([]models.PerformanceBand, error) {
	results, _, err := s.ClassResults(ctx, rawClass, rawPeriod, "")
	if err != nil {
		return nil, err
	}
	return ranking.PerformanceBands(results), nil
}

// SubjectStats summarises every configured subject of the class.
func (s *ResultService) SubjectStats(ctx context.Context, rawClass, rawPeriod string) ([]models.SubjectStatistic, error) {
	classLevel, period, err := parseClassPeriod(rawClass, rawPeriod)
	if err != nil {
		return nil, err
	}
	results, _, err := s.rankedClass(ctx, classLevel, period, "")
	if err != nil {
		return nil, err
	}
	stats, err := ranking.SubjectStatistics(results, classLevel, period)
	if err != nil {
		return nil, mapRankingError(err, "failed to compute subject statistics")
	}
	return stats, nil
}

// Comparative compares one subject across every class level.
func (s *ResultService) Comparative(ctx context.Context, subjectKey, rawPeriod string) ([]models.ClassSubjectStatistic, error) {
	subjectKey = strings.ToLower(strings.TrimSpace(subjectKey))
	if subjectKey == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject is required")
	}
	period, ok := ranking.ParseExamPeriod(rawPeriod)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidExamPeriod, "exam period must be one of Bimonthly, Term, Preboard, Final")
	}
	students, err := s.students.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	start := time.Now()
	stats := ranking.ComparativeSubjectStatistics(students, subjectKey, period)
	s.metrics.ObserveRanking("comparative", time.Since(start))
	return stats, nil
}
