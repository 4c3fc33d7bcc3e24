package models

import "time"

// SubmissionStatus tracks a student's progress on a homework item.
type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "PENDING"
	SubmissionSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionLate      SubmissionStatus = "LATE"
)

// Valid returns true when the status is a supported value.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionPending, SubmissionSubmitted, SubmissionLate:
		return true
	default:
		return false
	}
}

// Homework is an assignment set for a class and subject.
type Homework struct {
	ID          string     `db:"id" json:"id"`
	ClassLevel  ClassLevel `db:"class_level" json:"class_level"`
	SubjectKey  string     `db:"subject_key" json:"subject_key"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	DueDate     time.Time  `db:"due_date" json:"due_date"`
	AssignedBy  *string    `db:"assigned_by" json:"assigned_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// HomeworkFilter scopes homework listings. PendingOnly keeps items whose due
// date has not passed yet.
type HomeworkFilter struct {
	ClassLevel  string
	SubjectKey  string
	PendingOnly bool
	Page        int
	PageSize    int
}

// HomeworkSubmission records one student's status for a homework item.
type HomeworkSubmission struct {
	HomeworkID string           `db:"homework_id" json:"homework_id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	Status     SubmissionStatus `db:"status" json:"status"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// SubmissionView lists every student of the class, defaulting to PENDING when
// no submission row exists.
type SubmissionView struct {
	StudentID   string           `db:"student_id" json:"student_id"`
	RollNo      string           `db:"roll_no" json:"roll_no"`
	StudentName string           `db:"student_name" json:"student_name"`
	Status      SubmissionStatus `db:"status" json:"status"`
}
