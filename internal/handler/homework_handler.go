package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-results-api/internal/models"
	"github.com/noah-isme/school-results-api/internal/service"
	"github.com/noah-isme/school-results-api/pkg/response"
)

type homeworkService interface {
	List(ctx context.Context, filter models.HomeworkFilter) ([]models.Homework, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Homework, error)
	Create(ctx context.Context, actor *models.JWTClaims, req service.HomeworkRequest) (*models.Homework, error)
	Update(ctx context.Context, actor *models.JWTClaims, id string, req service.HomeworkRequest) (*models.Homework, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
	SetSubmission(ctx context.Context, actor *models.JWTClaims, homeworkID string, req service.SubmissionRequest) (*models.HomeworkSubmission, error)
	ListSubmissions(ctx context.Context, homeworkID string) ([]models.SubmissionView, error)
}

// HomeworkHandler exposes homework and submission tracking.
type HomeworkHandler struct {
	service homeworkService
}

// NewHomeworkHandler constructs the handler.
func NewHomeworkHandler(svc homeworkService) *HomeworkHandler {
	return &HomeworkHandler{service: svc}
}

// List godoc
// @Summary List homework
// @Description Students are limited to their own class.
// @Tags Homework
// @Security BearerAuth
// @Produce json
// @Param class query string false "Class level"
// @Param subject query string false "Subject key"
// @Param pending query bool false "Only items not yet due"
// @Success 200 {object} response.Envelope
// @Router /homework [get]
func (h *HomeworkHandler) List(c *gin.Context) {
	page, size := pageParams(c)
	filter := models.HomeworkFilter{
		ClassLevel:  c.Query("class"),
		SubjectKey:  c.Query("subject"),
		PendingOnly: c.Query("pending") == "true",
		Page:        page,
		PageSize:    size,
	}
	if claims := claimsFromContext(c); isStudent(claims) {
		filter.ClassLevel = string(claims.ClassLevel)
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get homework
// @Tags Homework
// @Security BearerAuth
// @Produce json
// @Param id path string true "Homework ID"
// @Success 200 {object} response.Envelope
// @Router /homework/{id} [get]
func (h *HomeworkHandler) Get(c *gin.Context) {
	hw, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hw, nil)
}

// Create godoc
// @Summary Create homework
// @Tags Homework
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body service.HomeworkRequest true "Homework"
// @Success 201 {object} response.Envelope
// @Router /homework [post]
func (h *HomeworkHandler) Create(c *gin.Context) {
	var req service.HomeworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid homework payload"))
		return
	}
	hw, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, hw)
}

// Update godoc
// @Summary Update homework
// @Tags Homework
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Homework ID"
// @Param payload body service.HomeworkRequest true "Homework"
// @Success 200 {object} response.Envelope
// @Router /homework/{id} [put]
func (h *HomeworkHandler) Update(c *gin.Context) {
	var req service.HomeworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid homework payload"))
		return
	}
	hw, err := h.service.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hw, nil)
}

// Delete godoc
// @Summary Delete homework
// @Tags Homework
// @Security BearerAuth
// @Param id path string true "Homework ID"
// @Success 204
// @Router /homework/{id} [delete]
func (h *HomeworkHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetSubmission godoc
// @Summary Set submission status
// @Tags Homework
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Homework ID"
// @Param payload body service.SubmissionRequest true "Submission"
// @Success 200 {object} response.Envelope
// @Router /homework/{id}/submissions [put]
func (h *HomeworkHandler) SetSubmission(c *gin.Context) {
	var req service.SubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid submission payload"))
		return
	}
	sub, err := h.service.SetSubmission(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// ListSubmissions godoc
// @Summary List submissions
// @Tags Homework
// @Security BearerAuth
// @Produce json
// @Param id path string true "Homework ID"
// @Success 200 {object} response.Envelope
// @Router /homework/{id}/submissions [get]
func (h *HomeworkHandler) ListSubmissions(c *gin.Context) {
	rows, err := h.service.ListSubmissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
