package dto

import (
	"time"

	"github.com/noah-isme/school-results-api/internal/models"
)

// DashboardSummary is the class overview for one exam period.
type DashboardSummary struct {
	ClassLevel      models.ClassLevel        `json:"class_level"`
	ExamPeriod      models.ExamPeriod        `json:"exam_period"`
	StudentCount    int                      `json:"student_count"`
	PassCount       int                      `json:"pass_count"`
	FailCount       int                      `json:"fail_count"`
	PassPercent     float64                  `json:"pass_percent"`
	ClassAverage    float64                  `json:"class_average"`
	TopStudents     []TopStudent             `json:"top_students"`
	Bands           []models.PerformanceBand `json:"bands"`
	AttendanceToday AttendanceToday          `json:"attendance_today"`
	PendingHomework int                      `json:"pending_homework"`
	GeneratedAt     time.Time                `json:"generated_at"`
}

// TopStudent is one entry of the dashboard leaderboard.
type TopStudent struct {
	StudentID  string  `json:"student_id"`
	RollNo     string  `json:"roll_no"`
	Name       string  `json:"name"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Rank       int     `json:"rank"`
}

// AttendanceToday summarises the class register for the current day.
type AttendanceToday struct {
	Date    string  `json:"date"`
	Present int     `json:"present"`
	Absent  int     `json:"absent"`
	Leave   int     `json:"leave"`
	Percent float64 `json:"percent"`
}
