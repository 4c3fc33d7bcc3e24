package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-results-api/internal/middleware"
	"github.com/noah-isme/school-results-api/internal/models"
	"github.com/noah-isme/school-results-api/pkg/response"
)

type resultService interface {
	ClassResults(ctx context.Context, rawClass, rawPeriod, sortKey string) ([]models.CalculatedResult, bool, error)
	StudentResult(ctx context.Context, studentID, rawPeriod string) (*models.CalculatedResult, error)
	Bands(ctx context.Context, rawClass, rawPeriod string) ([]models.PerformanceBand, error)
	SubjectStats(ctx context.Context, rawClass, rawPeriod string) ([]models.SubjectStatistic, error)
	Comparative(ctx context.Context, subjectKey, rawPeriod string) ([]models.ClassSubjectStatistic, error)
}

// ResultHandler exposes ranked results and class statistics.
type ResultHandler struct {
	service resultService
}

// NewResultHandler constructs the handler.
func NewResultHandler(svc resultService) *ResultHandler {
	return &ResultHandler{service: svc}
}

// ClassResults godoc
// @Summary Ranked class results
// @Description Results of every student in the class for one exam period, in ranking order. An empty class returns an empty list.
// @Tags Results
// @Security BearerAuth
// @Produce json
// @Param class path string true "Class level (6-10)"
// @Param period query string true "Bimonthly|Term|Preboard|Final"
// @Param sort query string false "total (default) or a subject key"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classes/{class}/results [get]
func (h *ResultHandler) ClassResults(c *gin.Context) {
	results, hit, err := h.service.ClassResults(c.Request.Context(), c.Param("class"), c.Query("period"), c.Query("sort"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, results, nil, middleware.ExtractMeta(c))
}

// StudentResult godoc
// @Summary Student result
// @Description One student's result with the rank held in their class. Students may only read their own.
// @Tags Results
// @Security BearerAuth
// @Produce json
// @Param id path string true "Student ID"
// @Param period query string true "Exam period"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/result [get]
func (h *ResultHandler) StudentResult(c *gin.Context) {
	result, err := h.service.StudentResult(c.Request.Context(), c.Param("id"), c.Query("period"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Bands godoc
// @Summary Performance bands
// @Tags Results
// @Security BearerAuth
// @Produce json
// @Param class path string true "Class level"
// @Param period query string true "Exam period"
// @Success 200 {object} response.Envelope
// @Router /classes/{class}/bands [get]
func (h *ResultHandler) Bands(c *gin.Context) {
	bands, err := h.service.Bands(c.Request.Context(), c.Param("class"), c.Query("period"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bands, nil)
}

// SubjectStats godoc
// @Summary Subject statistics
// @Tags Results
// @Security BearerAuth
// @Produce json
// @Param class path string true "Class level"
// @Param period query string true "Exam period"
// @Success 200 {object} response.Envelope
// @Router /classes/{class}/subject-stats [get]
func (h *ResultHandler) SubjectStats(c *gin.Context) {
	stats, err := h.service.SubjectStats(c.Request.Context(), c.Param("class"), c.Query("period"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Comparative godoc
// @Summary Compare a subject across classes
// @Tags Results
// @Security BearerAuth
// @Produce json
// @Param subject query string true "Subject key"
// @Param period query string true "Exam period"
// @Success 200 {object} response.Envelope
// @Router /results/comparative [get]
func (h *ResultHandler) Comparative(c *gin.Context) {
	stats, err := h.service.Comparative(c.Request.Context(), c.Query("subject"), c.Query("period"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
