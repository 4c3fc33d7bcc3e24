package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-results-api/internal/models"
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
)

type fakeResultSrv struct {
	hit      bool
	lastSort string
	lastSubj string
}

func (f *fakeResultSrv) ClassResults(_ context.Context, _, _, sortKey string) ([]models.CalculatedResult, bool, error) {
	f.lastSort = sortKey
	return []models.CalculatedResult{{Student: models.Student{ID: "a"}, Rank: 1}}, f.hit, nil
}

func (f *fakeResultSrv) StudentResult(_ context.Context, studentID, _ string) (*models.CalculatedResult, error) {
	if studentID == "missing" {
		return nil, appErrors.ErrNotFound
	}
	return &models.CalculatedResult{Student: models.Student{ID: studentID}, Rank: 2}, nil
}

func (f *fakeResultSrv) Bands(context.Context, string, string) ([]models.PerformanceBand, error) {
	return []models.PerformanceBand{}, nil
}

func (f *fakeResultSrv) SubjectStats(context.Context, string, string) ([]models.SubjectStatistic, error) {
	return nil, appErrors.ErrInvalidExamPeriod
}

func (f *fakeResultSrv) Comparative(_ context.Context, subjectKey, _ string) ([]models.ClassSubjectStatistic, error) {
	f.lastSubj = subjectKey
	return []models.ClassSubjectStatistic{}, nil
}

func TestResultHandlerClassResultsReportsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeResultSrv{hit: true}
	handler := NewResultHandler(svc)

	c, w := newGinContext(http.MethodGet, "/classes/9/results?period=Final&sort=math", nil)
	c.Params = gin.Params{{Key: "class", Value: "9"}}
	handler.ClassResults(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "math", svc.lastSort)
	var body struct {
		Data []map[string]interface{} `json:"data"`
		Meta map[string]interface{}   `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, true, body.Meta["cache_hit"])
}

func TestResultHandlerStudentResult(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewResultHandler(&fakeResultSrv{})

	c, w := newGinContext(http.MethodGet, "/students/a/result?period=Term", nil)
	c.Params = gin.Params{{Key: "id", Value: "a"}}
	handler.StudentResult(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodGet, "/students/missing/result?period=Term", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.StudentResult(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResultHandlerPropagatesPeriodError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewResultHandler(&fakeResultSrv{})

	c, w := newGinContext(http.MethodGet, "/classes/9/subject-stats?period=Midterm", nil)
	handler.SubjectStats(c)
	assert.Equal(t, appErrors.ErrInvalidExamPeriod.Status, w.Code)
}

func TestResultHandlerComparative(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeResultSrv{}
	handler := NewResultHandler(svc)

	c, w := newGinContext(http.MethodGet, "/results/comparative?subject=eng&period=Final", nil)
	handler.Comparative(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "eng", svc.lastSubj)
}
