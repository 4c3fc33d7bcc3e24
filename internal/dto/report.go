package dto

import (
	"time"

	"github.com/noah-isme/school-results-api/internal/models"
)

// ReportRequest captures POST /reports payload. ExamPeriod applies to result
// sheets, From/To (YYYY-MM-DD) to attendance registers.
type ReportRequest struct {
	Type       models.ReportType   `json:"type" validate:"required"`
	ClassLevel string              `json:"class_level" validate:"required"`
	ExamPeriod string              `json:"exam_period"`
	SortKey    string              `json:"sort_key"`
	Format     models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	From       string              `json:"from"`
	To         string              `json:"to"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata and, once finished, a
// signed download link.
type ReportStatusResponse struct {
	ID          string              `json:"id"`
	Type        models.ReportType   `json:"type"`
	Status      models.ReportStatus `json:"status"`
	Progress    int                 `json:"progress"`
	Attempts    int                 `json:"attempts"`
	DownloadURL *string             `json:"download_url,omitempty"`
	ExpiresAt   *time.Time          `json:"expires_at,omitempty"`
	Error       *string             `json:"error,omitempty"`
}
