package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/school-results-api/internal/dto"
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
)

type fakeDashboardSrv struct {
	resp      *dto.DashboardSummary
	hit       bool
	err       error
	lastClass string
	lastTerm  string
}

func (f *fakeDashboardSrv) Summary(_ context.Context, rawClass, rawPeriod string) (*dto.DashboardSummary, bool, error) {
	f.lastClass = rawClass
	f.lastTerm = rawPeriod
	return f.resp, f.hit, f.err
}

func TestDashboardHandlerClassSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeDashboardSrv{resp: &dto.DashboardSummary{ClassLevel: "9", StudentCount: 40}, hit: true}
	handler := NewDashboardHandler(svc)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/classes/9/dashboard?period=Final", nil)
	c.Params = gin.Params{{Key: "class", Value: "9"}}

	handler.Class(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "9", svc.lastClass)
	assert.Equal(t, "Final", svc.lastTerm)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Equal(t, float64(40), envelope.Data["student_count"])
}

func TestDashboardHandlerClassError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{err: appErrors.ErrInvalidClassLevel})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/classes/4/dashboard?period=Final", nil)

	handler.Class(c)

	assert.Equal(t, appErrors.ErrInvalidClassLevel.Status, rec.Code)
}

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error map[string]interface{} `json:"error"`
}
