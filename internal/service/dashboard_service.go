package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-results-api/internal/dto"
	"github.com/noah-isme/school-results-api/internal/models"
	"github.com/noah-isme/school-results-api/internal/ranking"
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
)

const dashboardTopN = 5

type attendanceCounter interface {
	Counts(ctx context.Context, filter models.AttendanceFilter) (models.AttendanceCounts, error)
}

type openHomeworkCounter interface {
	CountOpen(ctx context.Context, classLevel models.ClassLevel) (int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Students   classRosterReader
	Attendance attendanceCounter
	Homework   openHomeworkCounter
	Cache      *CacheService
	Metrics    *MetricsService
	Logger     *zap.Logger
	Config     DashboardServiceConfig
}

// DashboardService composes the class overview shown on the staff home screen.
type DashboardService struct {
	students   classRosterReader
	attendance attendanceCounter
	homework   openHomeworkCounter
	cache      *CacheService
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
	cfg        DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		students:   params.Students,
		attendance: params.Attendance,
		homework:   params.Homework,
		cache:      params.Cache,
		metrics:    params.Metrics,
		logger:     logger,
		now:        time.Now,
		cfg:        cfg,
	}
}

// Summary returns the dashboard of a class for an exam period and whether it came from cache.
// Cache entries are keyed by day so the attendance figure never crosses midnight.
func (s *DashboardService) Summary(ctx context.Context, rawClass, rawPeriod string) (*dto.DashboardSummary, bool, error) {
	classLevel, period, err := parseClassPeriod(rawClass, rawPeriod)
	if err != nil {
		return nil, false, err
	}
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	key := dashboardKey(classLevel, period, today.Format(dateLayout))

	var cached dto.DashboardSummary
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	summary, err := s.compose(ctx, classLevel, period, today)
	if err != nil {
		return nil, false, err
	}
	summary.GeneratedAt = now
	s.cache.Set(ctx, key, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

func (s *DashboardService) compose(ctx context.Context, classLevel models.ClassLevel, period models.ExamPeriod, today time.Time) (*dto.DashboardSummary, error) {
	students, err := s.students.ListByClass(ctx, classLevel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	start := time.Now()
	results, err := ranking.RankStudents(students, classLevel, period, "")
	s.metrics.ObserveRanking("dashboard", time.Since(start))
	if err != nil {
		return nil, mapRankingError(err, "failed to rank class")
	}

	summary := &dto.DashboardSummary{
		ClassLevel:   classLevel,
		ExamPeriod:   period,
		StudentCount: len(results),
		TopStudents:  []dto.TopStudent{},
		Bands:        ranking.PerformanceBands(results),
		AttendanceToday: dto.AttendanceToday{
			Date: today.Format(dateLayout),
		},
	}

	var hundredths int64
	for i, result := range results {
		if result.Status == models.StatusPass {
			summary.PassCount++
		} else {
			summary.FailCount++
		}
		hundredths += int64(math.Round(result.Percentage * 100))
		if i < dashboardTopN {
			summary.TopStudents = append(summary.TopStudents, dto.TopStudent{
				StudentID:  result.ID,
				RollNo:     result.RollNo,
				Name:       result.Name,
				Total:      result.Total,
				Percentage: result.Percentage,
				Rank:       result.Rank,
			})
		}
	}
	if len(results) > 0 {
		n := int64(len(results))
		summary.ClassAverage = ranking.RoundRatio(hundredths, n*100, 2)
		summary.PassPercent = ranking.RoundRatio(int64(summary.PassCount)*100, n, 2)
	}

	if s.attendance != nil {
		counts, err := s.attendance.Counts(ctx, models.AttendanceFilter{ClassLevel: string(classLevel), DateFrom: &today, DateTo: &today})
		if err != nil {
			s.logger.Warn("dashboard attendance unavailable", zap.String("class", string(classLevel)), zap.Error(err))
		} else {
			summary.AttendanceToday.Present = counts.Present
			summary.AttendanceToday.Absent = counts.Absent
			summary.AttendanceToday.Leave = counts.Leave
			summary.AttendanceToday.Percent = attendancePercent(counts)
		}
	}
	if s.homework != nil {
		open, err := s.homework.CountOpen(ctx, classLevel)
		if err != nil {
			s.logger.Warn("dashboard homework unavailable", zap.String("class", string(classLevel)), zap.Error(err))
		} else {
			summary.PendingHomework = open
		}
	}
	return summary, nil
}
