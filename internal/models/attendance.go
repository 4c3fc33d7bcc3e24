package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLeave   AttendanceStatus = "LEAVE"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLeave:
		return true
	default:
		return false
	}
}

// AttendanceRecord is one student's status on one day.
type AttendanceRecord struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	ClassLevel ClassLevel       `db:"class_level" json:"class_level"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Note       *string          `db:"note" json:"note,omitempty"`
	RecordedBy *string          `db:"recorded_by" json:"recorded_by,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceView joins a record with the student's roll number and name.
type AttendanceView struct {
	AttendanceRecord
	RollNo      string `db:"roll_no" json:"roll_no"`
	StudentName string `db:"student_name" json:"student_name"`
}

// AttendanceFilter scopes listing queries.
type AttendanceFilter struct {
	ClassLevel string
	StudentID  string
	DateFrom   *time.Time
	DateTo     *time.Time
	Status     *AttendanceStatus
	Page       int
	PageSize   int
}

// AttendanceCounts is the raw per-status tally for a class or student.
type AttendanceCounts struct {
	Present int `db:"present" json:"present"`
	Absent  int `db:"absent" json:"absent"`
	Leave   int `db:"leave" json:"leave"`
}

// AttendanceSummary adds the attendance percentage to the tally. Leave days do
// not count against the student.
type AttendanceSummary struct {
	ClassLevel ClassLevel `json:"class_level"`
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
	AttendanceCounts
	Percent float64 `json:"percent"`
}
