package ranking

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/school-results-api/internal/models"
)

var (
	// ErrInvalidMarkKey reports a storage key that names no known period/subject for the class.
	ErrInvalidMarkKey = errors.New("invalid mark key")
	// ErrMarkOutOfRange reports a mark below zero or above the paper's maximum.
	ErrMarkOutOfRange = errors.New("mark out of range")
)

// ParseStorageKey splits a storage key into its exam period and subject key.
func ParseStorageKey(key string) (models.ExamPeriod, string, bool) {
	prefix, subject, found := strings.Cut(strings.ToLower(strings.TrimSpace(key)), "_")
	if !found || subject == "" {
		return "", "", false
	}
	period, ok := ParseExamPeriod(prefix)
	if !ok {
		return "", "", false
	}
	return period, subject, true
}

// ValidateMarks checks every entry of a mark sheet against the class configuration.
func ValidateMarks(classLevel models.ClassLevel, marks models.MarkSheet) error {
	if _, err := TierOf(classLevel); err != nil {
		return err
	}
	for key, value := range marks {
		period, subjectKey, ok := ParseStorageKey(key)
		if !ok {
			return fmt.Errorf("%w: %s", ErrInvalidMarkKey, key)
		}
		subject, found, err := FindSubject(classLevel, subjectKey)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s not configured for class %s", ErrInvalidMarkKey, subjectKey, classLevel)
		}
		if max := MaxMarks(period, subject); value < 0 || value > max {
			return fmt.Errorf("%w: %s=%d (max %d)", ErrMarkOutOfRange, key, value, max)
		}
	}
	return nil
}

// RetainConfigured keeps the entries of a mark sheet that the class configures
// and returns the dropped keys in sorted order.
func RetainConfigured(classLevel models.ClassLevel, marks models.MarkSheet) (models.MarkSheet, []string, error) {
	if _, err := TierOf(classLevel); err != nil {
		return nil, nil, err
	}
	kept := make(models.MarkSheet, len(marks))
	var dropped []string
	for key, value := range marks {
		if _, subjectKey, ok := ParseStorageKey(key); ok {
			if _, found, _ := FindSubject(classLevel, subjectKey); found {
				kept[key] = value
				continue
			}
		}
		dropped = append(dropped, key)
	}
	sort.Strings(dropped)
	return kept, dropped, nil
}

// NormalizeMarks lower-cases and trims every key of a mark sheet.
func NormalizeMarks(marks models.MarkSheet) models.MarkSheet {
	out := make(models.MarkSheet, len(marks))
	for key, value := range marks {
		out[strings.ToLower(strings.TrimSpace(key))] = value
	}
	return out
}
