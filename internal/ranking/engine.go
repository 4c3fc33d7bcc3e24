// Package ranking computes totals, percentages, pass/fail status and class ranks
// from student mark sheets. Every function is pure: callers pass a snapshot of
// students and receive freshly derived results.
package ranking

import (
	"sort"
	"strings"

	"github.com/noah-isme/school-results-api/internal/models"
)

// PassPercentage is the minimum percentage required to pass.
const PassPercentage = 33.0

// ComputeResult derives the total, percentage and status of a student for one exam period.
// The returned result carries no rank.
func ComputeResult(student models.Student, period models.ExamPeriod) (models.CalculatedResult, error) {
	subjects, err := MainSubjectsFor(student.ClassLevel)
	if err != nil {
		return models.CalculatedResult{}, err
	}

	calculated := 0
	maxTotal := 0
	for _, subject := range subjects {
		calculated += student.Marks.Get(StorageKey(period, subject.Key))
		maxTotal += MaxMarks(period, subject)
	}

	total := calculated
	if student.ManualTotal != nil {
		total = *student.ManualTotal
	}

	percentage := 0.0
	if maxTotal > 0 {
		percentage = RoundRatio(int64(total)*100, int64(maxTotal), 2)
	}

	status := models.StatusFail
	if percentage >= PassPercentage {
		status = models.StatusPass
	}

	return models.CalculatedResult{
		Student:         student,
		ExamPeriod:      period,
		Total:           total,
		CalculatedTotal: calculated,
		TotalOverridden: student.ManualTotal != nil && *student.ManualTotal != calculated,
		MaxTotal:        maxTotal,
		Percentage:      percentage,
		Status:          status,
	}, nil
}

// RankStudents filters students to classLevel, computes their results and orders them.
//
// sortKey selects a subject to order by; an empty key, "total" or "percentage" orders by
// total. Ranks are always derived from totals: a result shares the rank of the first
// result in the sorted order with an equal total, otherwise it takes its 1-based position.
func RankStudents(students []models.Student, classLevel models.ClassLevel, period models.ExamPeriod, sortKey string) ([]models.CalculatedResult, error) {
	if _, err := TierOf(classLevel); err != nil {
		return nil, err
	}

	results := make([]models.CalculatedResult, 0)
	for _, student := range students {
		if student.ClassLevel != classLevel {
			continue
		}
		result, err := ComputeResult(student, period)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	sortKey = strings.ToLower(strings.TrimSpace(sortKey))
	if sortBySubject(sortKey) {
		key := StorageKey(period, sortKey)
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Marks.Get(key) > results[j].Marks.Get(key)
		})
	} else {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Total > results[j].Total
		})
	}

	firstRank := make(map[int]int, len(results))
	for i := range results {
		if rank, ok := firstRank[results[i].Total]; ok {
			results[i].Rank = rank
			continue
		}
		results[i].Rank = i + 1
		firstRank[results[i].Total] = i + 1
	}
	return results, nil
}

func sortBySubject(sortKey string) bool {
	switch sortKey {
	case "", "total", "percentage":
		return false
	default:
		return true
	}
}

// RoundRatio returns num/den rounded half away from zero at the given number of
// decimals. The rounding is done on integers so exact halves such as 69/480 are
// never lost to binary floating point. A zero denominator yields 0.
func RoundRatio(num, den int64, decimals int) float64 {
	if den == 0 {
		return 0
	}
	if den < 0 {
		num, den = -num, -den
	}
	scale := int64(1)
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	scaled := num * scale
	negative := scaled < 0
	if negative {
		scaled = -scaled
	}
	units := (2*scaled + den) / (2 * den)
	if negative {
		units = -units
	}
	return float64(units) / float64(scale)
}
