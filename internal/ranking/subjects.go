package ranking

import (
	"errors"
	"strings"

	"github.com/noah-isme/school-results-api/internal/models"
)

// ErrInvalidClassLevel is returned for class levels outside the supported five.
var ErrInvalidClassLevel = errors.New("invalid class level")

// Tier groups class levels sharing one subject configuration.
type Tier string

const (
	TierMiddle Tier = "middle"
	TierHigh   Tier = "high"
)

// ClassLevels lists the supported class levels in ascending order.
var ClassLevels = []models.ClassLevel{"6", "7", "8", "9", "10"}

var classTiers = map[models.ClassLevel]Tier{
	"6":  TierMiddle,
	"7":  TierMiddle,
	"8":  TierMiddle,
	"9":  TierHigh,
	"10": TierHigh,
}

// First-language A/B papers carry reduced maxima in term, preboard and final exams.
var firstLanguageSubjects = map[string]struct{}{
	"pbi_a": {},
	"pbi_b": {},
}

var tierSubjects = map[Tier][]models.Subject{
	TierMiddle: {
		{Key: "pbi", Label: "Punjabi", Type: models.SubjectMain},
		{Key: "hindi", Label: "Hindi", Type: models.SubjectMain},
		{Key: "eng", Label: "English", Type: models.SubjectMain},
		{Key: "math", Label: "Mathematics", Type: models.SubjectMain},
		{Key: "sci", Label: "Science", Type: models.SubjectMain},
		{Key: "sst", Label: "Social Studies", Type: models.SubjectMain},
		{Key: "computer", Label: "Computer Science", Type: models.SubjectGrading},
		{Key: "drawing", Label: "Drawing", Type: models.SubjectGrading},
		{Key: "phy_edu", Label: "Physical Education", Type: models.SubjectGrading},
		{Key: "welcome_life", Label: "Welcome Life", Type: models.SubjectGrading},
	},
	TierHigh: {
		{Key: "pbi_a", Label: "Punjabi A", Type: models.SubjectMain},
		{Key: "pbi_b", Label: "Punjabi B", Type: models.SubjectMain},
		{Key: "hindi", Label: "Hindi", Type: models.SubjectMain},
		{Key: "eng", Label: "English", Type: models.SubjectMain},
		{Key: "math", Label: "Mathematics", Type: models.SubjectMain},
		{Key: "sci", Label: "Science", Type: models.SubjectMain},
		{Key: "sst", Label: "Social Studies", Type: models.SubjectMain},
		{Key: "computer", Label: "Computer Science", Type: models.SubjectGrading},
		{Key: "phy_edu", Label: "Physical Education", Type: models.SubjectGrading},
		{Key: "welcome_life", Label: "Welcome Life", Type: models.SubjectGrading},
	},
}

// TierOf resolves the subject tier for a class level.
func TierOf(level models.ClassLevel) (Tier, error) {
	tier, ok := classTiers[models.ClassLevel(strings.TrimSpace(string(level)))]
	if !ok {
		return "", ErrInvalidClassLevel
	}
	return tier, nil
}

// ValidClassLevel reports whether level is one of the supported class levels.
func ValidClassLevel(level models.ClassLevel) bool {
	_, err := TierOf(level)
	return err == nil
}

// SubjectsFor returns a copy of the subject configuration for a class level.
func SubjectsFor(level models.ClassLevel) ([]models.Subject, error) {
	tier, err := TierOf(level)
	if err != nil {
		return nil, err
	}
	subjects := tierSubjects[tier]
	out := make([]models.Subject, len(subjects))
	copy(out, subjects)
	return out, nil
}

// MainSubjectsFor returns only the subjects contributing to totals.
func MainSubjectsFor(level models.ClassLevel) ([]models.Subject, error) {
	subjects, err := SubjectsFor(level)
	if err != nil {
		return nil, err
	}
	main := subjects[:0]
	for _, subject := range subjects {
		if subject.Type == models.SubjectMain {
			main = append(main, subject)
		}
	}
	return main, nil
}

// FindSubject looks up a subject by key in the class level's configuration.
func FindSubject(level models.ClassLevel, key string) (models.Subject, bool, error) {
	subjects, err := SubjectsFor(level)
	if err != nil {
		return models.Subject{}, false, err
	}
	key = strings.ToLower(strings.TrimSpace(key))
	for _, subject := range subjects {
		if subject.Key == key {
			return subject, true, nil
		}
	}
	return models.Subject{}, false, nil
}

// ParseExamPeriod resolves an exam period case-insensitively.
func ParseExamPeriod(raw string) (models.ExamPeriod, bool) {
	raw = strings.TrimSpace(raw)
	for _, period := range models.ExamPeriods {
		if strings.EqualFold(string(period), raw) {
			return period, true
		}
	}
	return "", false
}

// StorageKey derives the mark key for an exam period and subject.
func StorageKey(period models.ExamPeriod, subjectKey string) string {
	return strings.ToLower(string(period)) + "_" + strings.ToLower(subjectKey)
}

// MaxMarks is the single source of truth for the maximum mark of a paper.
func MaxMarks(period models.ExamPeriod, subject models.Subject) int {
	if subject.Type == models.SubjectGrading {
		return 100
	}
	_, firstLanguage := firstLanguageSubjects[subject.Key]
	switch period {
	case models.ExamBimonthly:
		return 20
	case models.ExamTerm, models.ExamPreboard:
		if firstLanguage {
			return 65
		}
		return 80
	case models.ExamFinal:
		if firstLanguage {
			return 75
		}
		return 100
	default:
		return 0
	}
}
