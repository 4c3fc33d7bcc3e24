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
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
)

type fakeAuthSrv struct {
	loginErr   error
	lastChange *models.JWTClaims
	lastRoll   string
}

func (f *fakeAuthSrv) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &models.LoginResponse{AccessToken: "tok", User: models.UserInfo{Email: req.Email}}, nil
}

func (f *fakeAuthSrv) StudentLogin(_ context.Context, req models.StudentLoginRequest) (*models.LoginResponse, error) {
	f.lastRoll = req.RollNo
	return &models.LoginResponse{AccessToken: "tok", User: models.UserInfo{RollNo: req.RollNo, Role: models.RoleStudent}}, nil
}

func (f *fakeAuthSrv) ChangePassword(_ context.Context, claims *models.JWTClaims, _ models.ChangePasswordRequest) error {
	f.lastChange = claims
	return nil
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuthSrv{})

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"admin@school.test","password":"secret1"}`))
	handler.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "tok", envelope.Data["access_token"])
}

func TestAuthHandlerLoginFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuthSrv{loginErr: appErrors.ErrInvalidCredentials})

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"admin@school.test","password":"nope"}`))
	handler.Login(c)

	assert.Equal(t, appErrors.ErrInvalidCredentials.Status, w.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, envelope.Error["code"])
}

func TestAuthHandlerStudentLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeAuthSrv{}
	handler := NewAuthHandler(svc)

	c, w := newGinContext(http.MethodPost, "/auth/student-login", []byte(`{"roll_no":"12","class_level":"9","password":"pw"}`))
	handler.StudentLogin(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12", svc.lastRoll)
}

func TestAuthHandlerChangePasswordNeedsPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeAuthSrv{}
	handler := NewAuthHandler(svc)

	c, w := newGinContext(http.MethodPost, "/auth/change-password", []byte(`{"old_password":"a","new_password":"bbbbbb"}`))
	handler.ChangePassword(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/change-password", []byte(`{"old_password":"a","new_password":"bbbbbb"}`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	handler.ChangePassword(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, svc.lastChange)
	assert.Equal(t, "s1", svc.lastChange.UserID)
}

func TestAuthHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuthSrv{})

	c, w := newGinContext(http.MethodGet, "/auth/me", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent, ClassLevel: "7", FullName: "Asha"})
	handler.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "7", envelope.Data["class_level"])
	assert.Equal(t, "STUDENT", envelope.Data["role"])
}
