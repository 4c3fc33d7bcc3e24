package models

import "time"

// Student represents a learner together with the marks recorded for every exam period.
type Student struct {
	ID           string     `db:"id" json:"id"`
	RollNo       string     `db:"roll_no" json:"roll_no"`
	Name         string     `db:"name" json:"name"`
	ClassLevel   ClassLevel `db:"class_level" json:"class_level"`
	Marks        MarkSheet  `db:"marks" json:"marks"`
	ManualTotal  *int       `db:"manual_total" json:"manual_total,omitempty"`
	PasswordHash *string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search     string
	ClassLevel string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
