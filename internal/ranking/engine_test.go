package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-results-api/internal/models"
)

func intPtr(v int) *int { return &v }

func middleStudent(id string, total int) models.Student {
	// Spread the total across two papers so the calculated total matches.
	return models.Student{
		ID:         id,
		RollNo:     id,
		Name:       "Student " + id,
		ClassLevel: "6",
		Marks: models.MarkSheet{
			"final_eng":  total / 2,
			"final_math": total - total/2,
		},
	}
}

func TestMaxMarksTable(t *testing.T) {
	ordinary := models.Subject{Key: "math", Type: models.SubjectMain}
	firstLanguage := models.Subject{Key: "pbi_a", Type: models.SubjectMain}
	firstLanguageB := models.Subject{Key: "pbi_b", Type: models.SubjectMain}
	grading := models.Subject{Key: "computer", Type: models.SubjectGrading}

	expectedOrdinary := map[models.ExamPeriod]int{models.ExamBimonthly: 20, models.ExamTerm: 80, models.ExamPreboard: 80, models.ExamFinal: 100}
	expectedFirstLanguage := map[models.ExamPeriod]int{models.ExamBimonthly: 20, models.ExamTerm: 65, models.ExamPreboard: 65, models.ExamFinal: 75}

	for _, period := range models.ExamPeriods {
		assert.Equal(t, expectedOrdinary[period], MaxMarks(period, ordinary), period)
		assert.Equal(t, expectedFirstLanguage[period], MaxMarks(period, firstLanguage), period)
		assert.Equal(t, expectedFirstLanguage[period], MaxMarks(period, firstLanguageB), period)
		assert.Equal(t, 100, MaxMarks(period, grading), period)
	}
}

func TestStorageKeyIsLowerCasedAndStable(t *testing.T) {
	assert.Equal(t, "final_hindi", StorageKey(models.ExamFinal, "Hindi"))
	assert.Equal(t, StorageKey(models.ExamTerm, "eng"), StorageKey(models.ExamTerm, "eng"))
	assert.Equal(t, "preboard_phy_edu", StorageKey(models.ExamPreboard, "phy_edu"))
}

func TestComputeResultScenario(t *testing.T) {
	student := models.Student{
		ID:         "1",
		ClassLevel: "6",
		Marks:      models.MarkSheet{"final_hindi": 40, "final_eng": 50},
	}

	result, err := ComputeResult(student, models.ExamFinal)
	require.NoError(t, err)
	assert.Equal(t, 90, result.Total)
	assert.Equal(t, 90, result.CalculatedTotal)
	assert.Equal(t, 600, result.MaxTotal)
	assert.Equal(t, 15.0, result.Percentage)
	assert.Equal(t, models.StatusFail, result.Status)
	assert.False(t, result.TotalOverridden)

	ranked, err := RankStudents([]models.Student{student}, "6", models.ExamFinal, "")
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, 1, ranked[0].Rank)
}

func TestComputeResultIgnoresGradingSubjects(t *testing.T) {
	student := models.Student{ClassLevel: "7", Marks: models.MarkSheet{"final_computer": 100, "final_sci": 10}}
	result, err := ComputeResult(student, models.ExamFinal)
	require.NoError(t, err)
	assert.Equal(t, 10, result.Total)
}

func TestComputeResultHighTierMaxTotal(t *testing.T) {
	student := models.Student{ClassLevel: "10", Marks: models.MarkSheet{}}
	for period, expected := range map[models.ExamPeriod]int{
		models.ExamBimonthly: 7 * 20,
		models.ExamTerm:      2*65 + 5*80,
		models.ExamPreboard:  2*65 + 5*80,
		models.ExamFinal:     2*75 + 5*100,
	} {
		result, err := ComputeResult(student, period)
		require.NoError(t, err)
		assert.Equal(t, expected, result.MaxTotal, period)
		assert.Equal(t, 0.0, result.Percentage)
	}
}

func TestComputeResultManualTotalOverrides(t *testing.T) {
	student := models.Student{ClassLevel: "8", Marks: models.MarkSheet{"term_math": 70}, ManualTotal: intPtr(300)}
	result, err := ComputeResult(student, models.ExamTerm)
	require.NoError(t, err)
	assert.Equal(t, 300, result.Total)
	assert.Equal(t, 70, result.CalculatedTotal)
	assert.True(t, result.TotalOverridden)
	assert.Equal(t, 62.5, result.Percentage)
	assert.Equal(t, models.StatusPass, result.Status)

	student.ManualTotal = intPtr(70)
	result, err = ComputeResult(student, models.ExamTerm)
	require.NoError(t, err)
	assert.False(t, result.TotalOverridden)
}

func TestComputeResultRoundsHalfAwayFromZero(t *testing.T) {
	// 1/600 = 0.1666..% -> 0.17
	student := models.Student{ClassLevel: "6", Marks: models.MarkSheet{"final_math": 1}}
	result, err := ComputeResult(student, models.ExamFinal)
	require.NoError(t, err)
	assert.Equal(t, 0.17, result.Percentage)

	// 33 of 120 bimonthly marks = 27.5%
	student = models.Student{ClassLevel: "6", Marks: models.MarkSheet{"bimonthly_math": 20, "bimonthly_eng": 13}}
	result, err = ComputeResult(student, models.ExamBimonthly)
	require.NoError(t, err)
	assert.Equal(t, 27.5, result.Percentage)

	// Term papers in the middle tier total 480, so n/480 lands on exact halves.
	for total, want := range map[int]float64{69: 14.38, 123: 25.63, 153: 31.88, 261: 54.38, 291: 60.63} {
		student = models.Student{ClassLevel: "6", ManualTotal: intPtr(total)}
		result, err = ComputeResult(student, models.ExamTerm)
		require.NoError(t, err)
		assert.Equal(t, 480, result.MaxTotal)
		assert.Equal(t, want, result.Percentage, "total %d", total)
	}
}

func TestRoundRatio(t *testing.T) {
	cases := []struct {
		num, den int64
		decimals int
		want     float64
	}{
		{69 * 100, 480, 2, 14.38},
		{1, 8, 2, 0.13},
		{-1, 8, 2, -0.13},
		{1, -8, 2, -0.13},
		{5, 100, 1, 0.1},
		{2, 3, 1, 0.7},
		{7, 0, 2, 0},
		{0, 5, 2, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RoundRatio(tc.num, tc.den, tc.decimals), "%d/%d", tc.num, tc.den)
	}
}

func TestComputeResultPassThreshold(t *testing.T) {
	// 198/600 = 33%
	student := models.Student{ClassLevel: "6", Marks: models.MarkSheet{"final_math": 100, "final_eng": 98}}
	result, err := ComputeResult(student, models.ExamFinal)
	require.NoError(t, err)
	assert.Equal(t, 33.0, result.Percentage)
	assert.Equal(t, models.StatusPass, result.Status)
}

func TestComputeResultInvalidClassLevel(t *testing.T) {
	_, err := ComputeResult(models.Student{ClassLevel: "11"}, models.ExamFinal)
	assert.ErrorIs(t, err, ErrInvalidClassLevel)
}

func TestComputeResultIsIdempotent(t *testing.T) {
	student := models.Student{ClassLevel: "9", Marks: models.MarkSheet{"term_pbi_a": 61, "term_sci": 77, "term_eng": 12}}
	first, err := ComputeResult(student, models.ExamTerm)
	require.NoError(t, err)
	second, err := ComputeResult(student, models.ExamTerm)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRankStudentsTieRanks(t *testing.T) {
	students := []models.Student{
		middleStudent("c", 80),
		middleStudent("a", 90),
		middleStudent("d", 70),
		middleStudent("b", 90),
	}
	results, err := RankStudents(students, "6", models.ExamFinal, "total")
	require.NoError(t, err)

	totals := make([]int, 0, len(results))
	ranks := make([]int, 0, len(results))
	for _, r := range results {
		totals = append(totals, r.Total)
		ranks = append(ranks, r.Rank)
	}
	assert.Equal(t, []int{90, 90, 80, 70}, totals)
	assert.Equal(t, []int{1, 1, 3, 4}, ranks)
}

func TestRankStudentsFiltersByClass(t *testing.T) {
	other := middleStudent("x", 100)
	other.ClassLevel = "7"
	students := []models.Student{middleStudent("a", 10), other}

	results, err := RankStudents(students, "6", models.ExamFinal, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestRankStudentsEmpty(t *testing.T) {
	results, err := RankStudents(nil, "9", models.ExamTerm, "")
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRankStudentsInvalidClassLevel(t *testing.T) {
	_, err := RankStudents([]models.Student{middleStudent("a", 1)}, "5", models.ExamFinal, "")
	assert.ErrorIs(t, err, ErrInvalidClassLevel)
}

func TestRankStudentsSortBySubjectKeepsTotalRanks(t *testing.T) {
	students := []models.Student{
		{ID: "a", ClassLevel: "6", Marks: models.MarkSheet{"final_math": 90, "final_eng": 10}},  // total 100
		{ID: "b", ClassLevel: "6", Marks: models.MarkSheet{"final_math": 50, "final_eng": 100}}, // total 150
		{ID: "c", ClassLevel: "6", Marks: models.MarkSheet{"final_math": 20, "final_eng": 80}},  // total 100
	}
	results, err := RankStudents(students, "6", models.ExamFinal, "math")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"a", "b", "c"}, []string{results[0].ID, results[1].ID, results[2].ID})
	// a is first in sorted order with total 100, so c shares its rank.
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 2, results[1].Rank)
	assert.Equal(t, 1, results[2].Rank)
}

func TestRankStudentsSortByGradingSubject(t *testing.T) {
	students := []models.Student{
		{ID: "a", ClassLevel: "8", Marks: models.MarkSheet{"term_drawing": 40}},
		{ID: "b", ClassLevel: "8", Marks: models.MarkSheet{"term_drawing": 95}},
		{ID: "c", ClassLevel: "8"},
	}
	results, err := RankStudents(students, "8", models.ExamTerm, "DRAWING")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, []string{results[0].ID, results[1].ID, results[2].ID})
	for _, r := range results {
		assert.Equal(t, 1, r.Rank)
	}
}

func TestValidateMarks(t *testing.T) {
	assert.NoError(t, ValidateMarks("6", models.MarkSheet{"final_hindi": 100, "bimonthly_drawing": 100, "term_eng": 80}))
	assert.NoError(t, ValidateMarks("10", models.MarkSheet{"final_pbi_a": 75}))

	assert.ErrorIs(t, ValidateMarks("10", models.MarkSheet{"final_pbi_a": 76}), ErrMarkOutOfRange)
	assert.ErrorIs(t, ValidateMarks("6", models.MarkSheet{"bimonthly_math": 21}), ErrMarkOutOfRange)
	assert.ErrorIs(t, ValidateMarks("6", models.MarkSheet{"final_math": -1}), ErrMarkOutOfRange)
	assert.ErrorIs(t, ValidateMarks("6", models.MarkSheet{"final_pbi_a": 10}), ErrInvalidMarkKey)
	assert.ErrorIs(t, ValidateMarks("6", models.MarkSheet{"midterm_math": 10}), ErrInvalidMarkKey)
	assert.ErrorIs(t, ValidateMarks("6", models.MarkSheet{"math": 10}), ErrInvalidMarkKey)
	assert.ErrorIs(t, ValidateMarks("12", models.MarkSheet{}), ErrInvalidClassLevel)
}

func TestParseStorageKey(t *testing.T) {
	period, subject, ok := ParseStorageKey("Preboard_Phy_Edu")
	require.True(t, ok)
	assert.Equal(t, models.ExamPreboard, period)
	assert.Equal(t, "phy_edu", subject)

	_, _, ok = ParseStorageKey("final_")
	assert.False(t, ok)
}

func TestRetainConfiguredDropsOtherTierKeys(t *testing.T) {
	kept, dropped, err := RetainConfigured("10", models.MarkSheet{"final_pbi": 70, "final_pbi_a": 60, "term_drawing": 50, "oops": 1})
	require.NoError(t, err)
	assert.Equal(t, models.MarkSheet{"final_pbi_a": 60}, kept)
	assert.Equal(t, []string{"final_pbi", "oops", "term_drawing"}, dropped)

	_, _, err = RetainConfigured("5", models.MarkSheet{})
	assert.ErrorIs(t, err, ErrInvalidClassLevel)
}
