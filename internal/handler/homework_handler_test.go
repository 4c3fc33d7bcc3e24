package handler

import (
	"context"
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

type fakeHomeworkSrv struct {
	lastFilter models.HomeworkFilter
	lastReq    service.HomeworkRequest
	createErr  error
}

func (f *fakeHomeworkSrv) List(_ context.Context, filter models.HomeworkFilter) ([]models.Homework, *models.Pagination, error) {
	f.lastFilter = filter
	return []models.Homework{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (f *fakeHomeworkSrv) Get(_ context.Context, id string) (*models.Homework, error) {
	return &models.Homework{ID: id}, nil
}

func (f *fakeHomeworkSrv) Create(_ context.Context, _ *models.JWTClaims, req service.HomeworkRequest) (*models.Homework, error) {
	f.lastReq = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Homework{ID: "hw1", Title: req.Title}, nil
}

func (f *fakeHomeworkSrv) Update(_ context.Context, _ *models.JWTClaims, id string, req service.HomeworkRequest) (*models.Homework, error) {
	return &models.Homework{ID: id, Title: req.Title}, nil
}

func (f *fakeHomeworkSrv) Delete(context.Context, *models.JWTClaims, string) error {
	return nil
}

func (f *fakeHomeworkSrv) SetSubmission(_ context.Context, _ *models.JWTClaims, homeworkID string, req service.SubmissionRequest) (*models.HomeworkSubmission, error) {
	return &models.HomeworkSubmission{HomeworkID: homeworkID, StudentID: req.StudentID}, nil
}

func (f *fakeHomeworkSrv) ListSubmissions(context.Context, string) ([]models.SubmissionView, error) {
	return []models.SubmissionView{}, nil
}

func TestHomeworkHandlerListForcesStudentClass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeHomeworkSrv{}
	handler := NewHomeworkHandler(svc)

	c, w := newGinContext(http.MethodGet, "/homework?class=10&pending=true", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent, ClassLevel: "7"})
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7", svc.lastFilter.ClassLevel)
	assert.True(t, svc.lastFilter.PendingOnly)
}

func TestHomeworkHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeHomeworkSrv{}
	handler := NewHomeworkHandler(svc)

	body := []byte(`{"class_level":"6","subject_key":"math","title":"Sums","due_date":"2024-04-10"}`)
	c, w := newGinContext(http.MethodPost, "/homework", body)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "math", svc.lastReq.SubjectKey)

	svc.createErr = appErrors.ErrForbidden
	c, w = newGinContext(http.MethodPost, "/homework", body)
	handler.Create(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHomeworkHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewHomeworkHandler(&fakeHomeworkSrv{})

	c, w := newGinContext(http.MethodDelete, "/homework/hw1", nil)
	c.Params = gin.Params{{Key: "id", Value: "hw1"}}
	handler.Delete(c)

	assert.Equal(t, http.StatusNoContent, w.Code)
}
