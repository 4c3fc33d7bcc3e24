package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-results-api/internal/middleware"
	"github.com/noah-isme/school-results-api/internal/models"
	"github.com/noah-isme/school-results-api/internal/service"
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
)

type fakeStudentSrv struct {
	lastFilter models.StudentFilter
	lastMarks  service.UpdateMarksRequest
	lastActor  *models.JWTClaims
	lastManual service.ManualTotalRequest
	marksErr   error
}

func (f *fakeStudentSrv) List(_ context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	f.lastFilter = filter
	return []models.Student{{ID: "a", RollNo: "1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (f *fakeStudentSrv) Get(_ context.Context, id string) (*models.Student, error) {
	if id == "missing" {
		return nil, appErrors.ErrNotFound
	}
	return &models.Student{ID: id}, nil
}

func (f *fakeStudentSrv) Create(_ context.Context, req service.CreateStudentRequest) (*models.Student, error) {
	return &models.Student{ID: "new", RollNo: req.RollNo}, nil
}

func (f *fakeStudentSrv) Update(_ context.Context, id string, _ service.UpdateStudentRequest) (*models.Student, error) {
	return &models.Student{ID: id}, nil
}

func (f *fakeStudentSrv) Delete(context.Context, string) error { return nil }

func (f *fakeStudentSrv) UpdateMarks(_ context.Context, actor *models.JWTClaims, id string, req service.UpdateMarksRequest) (*models.Student, error) {
	f.lastActor = actor
	f.lastMarks = req
	if f.marksErr != nil {
		return nil, f.marksErr
	}
	return &models.Student{ID: id}, nil
}

func (f *fakeStudentSrv) SetManualTotal(_ context.Context, id string, req service.ManualTotalRequest) (*models.CalculatedResult, error) {
	f.lastManual = req
	return &models.CalculatedResult{Student: models.Student{ID: id}, TotalOverridden: req.Total != nil}, nil
}

func (f *fakeStudentSrv) SetPassword(context.Context, string, service.SetPasswordRequest) error {
	return nil
}

func TestStudentHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeStudentSrv{}
	handler := NewStudentHandler(svc)

	c, w := newGinContext(http.MethodGet, "/students?class=9&search=asha&page=2&page_size=10", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "9", svc.lastFilter.ClassLevel)
	assert.Equal(t, "asha", svc.lastFilter.Search)
	assert.Equal(t, 2, svc.lastFilter.Page)
	assert.Equal(t, 10, svc.lastFilter.PageSize)

	var body struct {
		Pagination models.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Pagination.TotalCount)
}

func TestStudentHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStudentHandler(&fakeStudentSrv{})

	c, w := newGinContext(http.MethodGet, "/students/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudentHandlerUpdateMarks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeStudentSrv{}
	handler := NewStudentHandler(svc)

	c, w := newGinContext(http.MethodPut, "/students/a/marks", []byte(`{"exam_period":"Term","marks":{"math":81}}`))
	c.Params = gin.Params{{Key: "id", Value: "a"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	handler.UpdateMarks(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 81, svc.lastMarks.Marks["math"])
	require.NotNil(t, svc.lastActor)
	assert.Equal(t, "t1", svc.lastActor.UserID)

	svc.marksErr = appErrors.ErrForbidden
	c, w = newGinContext(http.MethodPut, "/students/a/marks", []byte(`{"exam_period":"Term","marks":{"eng":50}}`))
	handler.UpdateMarks(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStudentHandlerManualTotalClear(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeStudentSrv{}
	handler := NewStudentHandler(svc)

	c, w := newGinContext(http.MethodPut, "/students/a/manual-total", []byte(`{"total":null}`))
	c.Params = gin.Params{{Key: "id", Value: "a"}}
	handler.SetManualTotal(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, svc.lastManual.Total)
}
