package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-results-api/internal/models"
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
	"github.com/noah-isme/school-results-api/pkg/middleware/requestid"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, rec
}

func TestJSONWithPaginationAndMeta(t *testing.T) {
	c, rec := newContext()
	JSON(c, http.StatusOK, []string{"a"}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, map[string]interface{}{"cache_hit": true})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["meta"].(map[string]interface{})["cache_hit"])
	assert.Equal(t, float64(1), body["pagination"].(map[string]interface{})["total_count"])
}

func TestJSONDropsEmptyMeta(t *testing.T) {
	c, rec := newContext()
	JSON(c, http.StatusOK, "x", nil, map[string]interface{}{})
	assert.NotContains(t, rec.Body.String(), "meta")
}

func TestErrorUsesTypedStatus(t *testing.T) {
	c, rec := newContext()
	Error(c, appErrors.ErrInvalidClassLevel)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newContext()
	Error(c, errors.New("database down"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, rec.Body.String(), "database down")
}

func TestErrorEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/", func(c *gin.Context) { Error(c, appErrors.ErrNotFound) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestid.HeaderKey, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "req-42", body["meta"].(map[string]interface{})["request_id"])
}

func TestNoContentWritesStatus(t *testing.T) {
	c, rec := newContext()
	NoContent(c)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAttachmentAndStream(t *testing.T) {
	c, rec := newContext()
	Attachment(c, "results.csv", "text/csv", []byte("a,b\n"))
	assert.Equal(t, "attachment; filename=results.csv", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", rec.Body.String())

	c, rec = newContext()
	Stream(c, "class 9 final.pdf", "application/pdf", 3, strings.NewReader("pdf"))
	assert.Equal(t, `attachment; filename="class 9 final.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "pdf", rec.Body.String())
}
