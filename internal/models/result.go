package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ClassLevel identifies one of the supported class levels ("6" through "10").
type ClassLevel string

// ExamPeriod identifies the examination a mark belongs to.
type ExamPeriod string

const (
	ExamBimonthly ExamPeriod = "Bimonthly"
	ExamTerm      ExamPeriod = "Term"
	ExamPreboard  ExamPeriod = "Preboard"
	ExamFinal     ExamPeriod = "Final"
)

// ExamPeriods lists every exam period in calendar order.
var ExamPeriods = []ExamPeriod{ExamBimonthly, ExamTerm, ExamPreboard, ExamFinal}

// SubjectType distinguishes subjects that count towards totals from graded-only ones.
type SubjectType string

const (
	SubjectMain    SubjectType = "MAIN"
	SubjectGrading SubjectType = "GRADING"
)

// Subject describes a configured subject for a class tier.
type Subject struct {
	Key   string      `json:"key"`
	Label string      `json:"label"`
	Type  SubjectType `json:"type"`
}

// ResultStatus is the pass/fail outcome of a result.
type ResultStatus string

const (
	StatusPass ResultStatus = "Pass"
	StatusFail ResultStatus = "Fail"
)

// MarkSheet maps storage keys (e.g. "final_hindi") to integer marks.
// Missing keys read as zero.
type MarkSheet map[string]int

// Get returns the mark stored under key or zero.
func (m MarkSheet) Get(key string) int {
	if m == nil {
		return 0
	}
	return m[key]
}

// Value marshals the sheet to JSON for the JSONB column.
func (m MarkSheet) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(map[string]int(m))
	if err != nil {
		return nil, fmt.Errorf("marshal mark sheet: %w", err)
	}
	return data, nil
}

// Scan unmarshals the JSONB column into the sheet.
func (m *MarkSheet) Scan(value interface{}) error {
	if value == nil {
		*m = MarkSheet{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for MarkSheet", value)
	}
	sheet := MarkSheet{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &sheet); err != nil {
			return fmt.Errorf("unmarshal mark sheet: %w", err)
		}
	}
	*m = sheet
	return nil
}

// CalculatedResult is a student together with the figures derived for one exam period.
type CalculatedResult struct {
	Student
	ExamPeriod      ExamPeriod   `json:"exam_period"`
	Total           int          `json:"total"`
	CalculatedTotal int          `json:"calculated_total"`
	TotalOverridden bool         `json:"total_overridden"`
	MaxTotal        int          `json:"max_total"`
	Percentage      float64      `json:"percentage"`
	Rank            int          `json:"rank"`
	Status          ResultStatus `json:"status"`
}

// PerformanceBand counts results whose percentage falls in [Min, Max).
type PerformanceBand struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// SubjectStatistic summarises one subject for a class and exam period.
type SubjectStatistic struct {
	SubjectKey   string      `json:"subject_key"`
	SubjectLabel string      `json:"subject_label"`
	SubjectType  SubjectType `json:"subject_type"`
	MaxMarks     int         `json:"max_marks"`
	Average      float64     `json:"average"`
	Highest      int         `json:"highest"`
	PassPercent  float64     `json:"pass_percent"`
}

// ClassSubjectStatistic summarises one subject for a single class level.
type ClassSubjectStatistic struct {
	ClassLevel  ClassLevel `json:"class_level"`
	Available   bool       `json:"available"`
	MaxMarks    int        `json:"max_marks"`
	Average     float64    `json:"average"`
	Highest     int        `json:"highest"`
	PassPercent float64    `json:"pass_percent"`
	Count       int        `json:"count"`
}
