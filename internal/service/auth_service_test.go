package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-results-api/internal/models"
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
)

func newAuthFixture(t *testing.T) (*AuthService, *fakeUserStore, *fakeStudentStore) {
	t.Helper()
	users := newFakeUserStore(
		models.User{ID: "u1", Email: "admin@school.test", FullName: "Admin", Role: models.RoleAdmin, Active: true, PasswordHash: mustHash(t, "password123")},
		models.User{ID: "u2", Email: "gone@school.test", FullName: "Gone", Role: models.RoleTeacher, Active: false, PasswordHash: mustHash(t, "password123")},
	)
	hash := mustHash(t, "student123")
	students := newFakeStudentStore(
		models.Student{ID: "st1", RollNo: "7", Name: "Harleen", ClassLevel: "9", PasswordHash: &hash},
		models.Student{ID: "st2", RollNo: "8", Name: "No Password", ClassLevel: "9"},
	)
	svc := NewAuthService(users, students, nil, nil, AuthConfig{AccessTokenSecret: "test-secret", AccessTokenExpiry: time.Hour, Issuer: "school-results"})
	return svc, users, students
}

func TestAuthServiceLoginIssuesToken(t *testing.T) {
	svc, users, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
	assert.Contains(t, users.lastLogin, "u1")

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "school-results", claims.Issuer)
}

func TestAuthServiceLoginNormalisesEmail(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: " Admin@School.TEST ", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.User.ID)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@school.test", Password: "password123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "gone@school.test", Password: "password123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceStudentLogin(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	resp, err := svc.StudentLogin(context.Background(), models.StudentLoginRequest{RollNo: " 7 ", ClassLevel: "9", Password: "student123"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
	assert.Equal(t, models.ClassLevel("9"), resp.User.ClassLevel)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "st1", claims.UserID)
	assert.Equal(t, models.ClassLevel("9"), claims.ClassLevel)

	_, err = svc.StudentLogin(context.Background(), models.StudentLoginRequest{RollNo: "8", ClassLevel: "9", Password: "anything"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.StudentLogin(context.Background(), models.StudentLoginRequest{RollNo: "7", ClassLevel: "6", Password: "student123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.StudentLogin(context.Background(), models.StudentLoginRequest{RollNo: "7", ClassLevel: "12", Password: "student123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidClassLevel.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsTampering(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "password123"})
	require.NoError(t, err)

	other := NewAuthService(nil, nil, nil, nil, AuthConfig{AccessTokenSecret: "another-secret", Issuer: "school-results"})
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ValidateToken(resp.AccessToken)
	require.Error(t, err)
}

func TestAuthServiceChangePassword(t *testing.T) {
	svc, users, students := newAuthFixture(t)
	staff := &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}

	err := svc.ChangePassword(context.Background(), staff, models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newpass123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.ChangePassword(context.Background(), staff, models.ChangePasswordRequest{OldPassword: "password123", NewPassword: "newpass123"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.users["u1"].PasswordHash), []byte("newpass123")))

	student := &models.JWTClaims{UserID: "st1", Role: models.RoleStudent, ClassLevel: "9"}
	require.NoError(t, svc.ChangePassword(context.Background(), student, models.ChangePasswordRequest{OldPassword: "student123", NewPassword: "fresh-pass"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*students.students["st1"].PasswordHash), []byte("fresh-pass")))

	err = svc.ChangePassword(context.Background(), nil, models.ChangePasswordRequest{OldPassword: "a", NewPassword: "bbbbbb"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
