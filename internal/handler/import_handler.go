package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-results-api/internal/dto"
	"github.com/noah-isme/school-results-api/internal/models"
	"github.com/noah-isme/school-results-api/internal/service"
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
	"github.com/noah-isme/school-results-api/pkg/response"
)

type markImporter interface {
	ImportMarks(ctx context.Context, actor *models.JWTClaims, rawClass, rawPeriod string, r io.Reader) (*dto.ImportResult, error)
}

type resultSheetExporter interface {
	ResultSheet(ctx context.Context, rawClass, rawPeriod, sortKey string, format models.ReportFormat) (*service.RenderedExport, error)
}

// TransferHandler moves marks in and result sheets out as files.
type TransferHandler struct {
	importer markImporter
	exporter resultSheetExporter
}

// NewTransferHandler constructs the handler.
func NewTransferHandler(importer markImporter, exporter resultSheetExporter) *TransferHandler {
	return &TransferHandler{importer: importer, exporter: exporter}
}

// ImportMarks godoc
// @Summary Import marks from CSV
// @Description Header row needs a roll number column; other columns are matched to subject labels or keys. Rows without a roll number are skipped and reported.
// @Tags Marks
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param class path string true "Class level"
// @Param period query string true "Exam period"
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /classes/{class}/marks/import [post]
func (h *TransferHandler) ImportMarks(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart field \"file\" is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	result, err := h.importer.ImportMarks(c.Request.Context(), claimsFromContext(c), c.Param("class"), c.Query("period"), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ExportResults godoc
// @Summary Download result sheet
// @Tags Results
// @Security BearerAuth
// @Produce text/csv
// @Produce application/pdf
// @Param class path string true "Class level"
// @Param period query string true "Exam period"
// @Param format query string false "csv (default) or pdf"
// @Param sort query string false "total or a subject key"
// @Success 200 {file} file
// @Router /classes/{class}/results/export [get]
func (h *TransferHandler) ExportResults(c *gin.Context) {
	format := models.ReportFormat(strings.ToLower(c.DefaultQuery("format", string(models.ReportFormatCSV))))
	rendered, err := h.exporter.ResultSheet(c.Request.Context(), c.Param("class"), c.Query("period"), c.Query("sort"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, rendered.Filename, rendered.ContentType, rendered.Data)
}
