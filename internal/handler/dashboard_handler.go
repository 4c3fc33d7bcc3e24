package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-results-api/internal/dto"
	"github.com/noah-isme/school-results-api/internal/middleware"
	"github.com/noah-isme/school-results-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context, rawClass, rawPeriod string) (*dto.DashboardSummary, bool, error)
}

// DashboardHandler wires the class dashboard to HTTP.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Class godoc
// @Summary Class dashboard
// @Description Pass/fail split, class average, top students, bands, today's attendance and open homework.
// @Tags Dashboard
// @Security BearerAuth
// @Produce json
// @Param class path string true "Class level"
// @Param period query string true "Exam period"
// @Success 200 {object} response.Envelope
// @Router /classes/{class}/dashboard [get]
func (h *DashboardHandler) Class(c *gin.Context) {
	summary, cacheHit, err := h.service.Summary(c.Request.Context(), c.Param("class"), c.Query("period"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}
