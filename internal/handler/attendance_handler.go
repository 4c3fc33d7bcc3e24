package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-results-api/internal/models"
	"github.com/noah-isme/school-results-api/internal/service"
	"github.com/noah-isme/school-results-api/pkg/response"
)

type attendanceService interface {
	MarkClass(ctx context.Context, actor *models.JWTClaims, req service.BulkAttendanceRequest) ([]models.AttendanceRecord, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceView, *models.Pagination, error)
	Summary(ctx context.Context, rawClass string, from, to *time.Time) (*models.AttendanceSummary, error)
}

// AttendanceHandler exposes the daily attendance register.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Mark godoc
// @Summary Mark class attendance
// @Description Records PRESENT, ABSENT or LEAVE for students of one class on one day, replacing earlier entries for that day.
// @Tags Attendance
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body service.BulkAttendanceRequest true "Attendance"
// @Success 200 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.BulkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid attendance payload"))
		return
	}
	records, err := h.service.MarkClass(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// List godoc
// @Summary List attendance
// @Description Students only ever see their own records.
// @Tags Attendance
// @Security BearerAuth
// @Produce json
// @Param class query string false "Class level"
// @Param student_id query string false "Student ID"
// @Param status query string false "PRESENT|ABSENT|LEAVE"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	from, err := dateQuery(c, "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := dateQuery(c, "to")
	if err != nil {
		response.Error(c, err)
		return
	}
	page, size := pageParams(c)
	filter := models.AttendanceFilter{
		ClassLevel: c.Query("class"),
		StudentID:  c.Query("student_id"),
		DateFrom:   from,
		DateTo:     to,
		Page:       page,
		PageSize:   size,
	}
	if raw := c.Query("status"); raw != "" {
		status := models.AttendanceStatus(strings.ToUpper(raw))
		filter.Status = &status
	}
	if claims := claimsFromContext(c); isStudent(claims) {
		filter.StudentID = claims.UserID
		filter.ClassLevel = string(claims.ClassLevel)
	}

	rows, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Summary godoc
// @Summary Class attendance summary
// @Description Percentage is present / (present + absent) to two decimals; leave days are excluded.
// @Tags Attendance
// @Security BearerAuth
// @Produce json
// @Param class path string true "Class level"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /classes/{class}/attendance/summary [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	from, err := dateQuery(c, "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := dateQuery(c, "to")
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), c.Param("class"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
