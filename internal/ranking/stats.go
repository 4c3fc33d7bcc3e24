package ranking

import (
	"math"

	"github.com/noah-isme/school-results-api/internal/models"
)

type bandDefinition struct {
	label string
	min   float64
	max   float64
}

// Bands are checked in order; the first interval [min, max) containing the percentage wins.
var bandDefinitions = []bandDefinition{
	{label: "90-100", min: 90, max: math.Inf(1)},
	{label: "80-89", min: 80, max: 90},
	{label: "60-79", min: 60, max: 80},
	{label: "40-59", min: 40, max: 60},
	{label: "Below 40", min: math.Inf(-1), max: 40},
}

// PerformanceBands counts results per percentage band in fixed band order.
func PerformanceBands(results []models.CalculatedResult) []models.PerformanceBand {
	bands := make([]models.PerformanceBand, len(bandDefinitions))
	for i, def := range bandDefinitions {
		bands[i] = models.PerformanceBand{Label: def.label, Min: finite(def.min, 0), Max: finite(def.max, 100)}
	}
	for _, result := range results {
		for i, def := range bandDefinitions {
			if result.Percentage >= def.min && result.Percentage < def.max {
				bands[i].Count++
				break
			}
		}
	}
	return bands
}

// SubjectStatistics summarises every configured subject of a class for one exam period.
func SubjectStatistics(results []models.CalculatedResult, classLevel models.ClassLevel, period models.ExamPeriod) ([]models.SubjectStatistic, error) {
	subjects, err := SubjectsFor(classLevel)
	if err != nil {
		return nil, err
	}
	stats := make([]models.SubjectStatistic, 0, len(subjects))
	for _, subject := range subjects {
		key := StorageKey(period, subject.Key)
		marks := make([]int, 0, len(results))
		for _, result := range results {
			marks = append(marks, result.Marks.Get(key))
		}
		maxMarks := MaxMarks(period, subject)
		avg, highest, pass := summarise(marks, maxMarks)
		stats = append(stats, models.SubjectStatistic{
			SubjectKey:   subject.Key,
			SubjectLabel: subject.Label,
			SubjectType:  subject.Type,
			MaxMarks:     maxMarks,
			Average:      avg,
			Highest:      highest,
			PassPercent:  pass,
		})
	}
	return stats, nil
}

// ComparativeSubjectStatistics summarises one subject across every class level.
// Levels whose tier does not configure the subject are reported as unavailable.
func ComparativeSubjectStatistics(students []models.Student, subjectKey string, period models.ExamPeriod) []models.ClassSubjectStatistic {
	stats := make([]models.ClassSubjectStatistic, 0, len(ClassLevels))
	for _, level := range ClassLevels {
		count := 0
		for _, student := range students {
			if student.ClassLevel == level {
				count++
			}
		}
		subject, ok, _ := FindSubject(level, subjectKey)
		if !ok {
			stats = append(stats, models.ClassSubjectStatistic{ClassLevel: level, Count: count})
			continue
		}

		key := StorageKey(period, subject.Key)
		marks := make([]int, 0, count)
		for _, student := range students {
			if student.ClassLevel == level {
				marks = append(marks, student.Marks.Get(key))
			}
		}
		maxMarks := MaxMarks(period, subject)
		avg, highest, pass := summarise(marks, maxMarks)
		stats = append(stats, models.ClassSubjectStatistic{
			ClassLevel:  level,
			Available:   true,
			MaxMarks:    maxMarks,
			Average:     avg,
			Highest:     highest,
			PassPercent: pass,
			Count:       count,
		})
	}
	return stats
}

func summarise(marks []int, maxMarks int) (avg float64, highest int, passPercent float64) {
	if len(marks) == 0 {
		return 0, 0, 0
	}
	sum := 0
	passed := 0
	threshold := maxMarks * int(PassPercentage)
	for i, mark := range marks {
		sum += mark
		if i == 0 || mark > highest {
			highest = mark
		}
		if mark*100 >= threshold {
			passed++
		}
	}
	n := int64(len(marks))
	return RoundRatio(int64(sum), n, 1), highest, RoundRatio(int64(passed)*100, n, 1)
}

func finite(v, fallback float64) float64 {
	if math.IsInf(v, 0) {
		return fallback
	}
	return v
}
