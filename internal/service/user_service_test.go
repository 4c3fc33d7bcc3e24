package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-results-api/internal/models"
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
)

type fakeUserStore struct {
	users       map[string]*models.User
	assignments map[string][]models.StaffAssignment
	lastLogin   map[string]time.Time
	createErr   error
}

func newFakeUserStore(users ...models.User) *fakeUserStore {
	store := &fakeUserStore{
		users:       map[string]*models.User{},
		assignments: map[string][]models.StaffAssignment{},
		lastLogin:   map[string]time.Time{},
	}
	for i := range users {
		u := users[i]
		store.users[u.ID] = &u
	}
	return store
}

func (f *fakeUserStore) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	out := []models.User{}
	for _, u := range f.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && u.Active != *filter.Active {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (f *fakeUserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserStore) Create(_ context.Context, user *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserStore) Update(_ context.Context, user *models.User) error {
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserStore) Delete(_ context.Context, id string) error {
	f.users[id].Active = false
	return nil
}

func (f *fakeUserStore) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	f.lastLogin[id] = ts
	return nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, id, hash string, _ time.Time) error {
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUserStore) ListAssignments(_ context.Context, userID string) ([]models.StaffAssignment, error) {
	return f.assignments[userID], nil
}

func (f *fakeUserStore) ReplaceAssignments(_ context.Context, userID string, assignments []models.StaffAssignment) error {
	f.assignments[userID] = assignments
	return nil
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestUserServiceCreateHashesPassword(t *testing.T) {
	store := newFakeUserStore()
	svc := NewUserService(store, nil, nil)

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    " Teacher@School.test ",
		FullName: "Gurpreet Kaur",
		Role:     models.RoleTeacher,
		Active:   true,
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, "teacher@school.test", user.Email)
	assert.NotEqual(t, "secret123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(store.users[user.ID].PasswordHash), []byte("secret123")))

	_, err = svc.Create(context.Background(), CreateUserRequest{
		Email:    "teacher@school.test",
		FullName: "Duplicate",
		Role:     models.RoleTeacher,
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), CreateUserRequest{
		Email:    "blank@school.test",
		FullName: "   ",
		Role:     models.RoleTeacher,
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateRejectsStudentRole(t *testing.T) {
	svc := NewUserService(newFakeUserStore(), nil, nil)

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "kid@school.test",
		FullName: "Kid",
		Role:     models.RoleStudent,
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateRepositoryFailure(t *testing.T) {
	store := newFakeUserStore()
	store.createErr = errors.New("db down")
	svc := NewUserService(store, nil, nil)

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "a@school.test",
		FullName: "A",
		Role:     models.RoleAdmin,
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateAndDelete(t *testing.T) {
	store := newFakeUserStore(
		models.User{ID: "u1", Email: "u1@school.test", FullName: "Old", Role: models.RoleTeacher, Active: true},
		models.User{ID: "root", Email: "root@school.test", Role: models.RoleSuperAdmin, Active: true},
	)
	svc := NewUserService(store, nil, nil)

	inactive := false
	user, err := svc.Update(context.Background(), "u1", UpdateUserRequest{FullName: "New Name", Role: models.RoleAdmin, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "New Name", user.FullName)
	assert.Equal(t, models.RoleAdmin, store.users["u1"].Role)
	assert.False(t, store.users["u1"].Active)

	_, err = svc.Update(context.Background(), "missing", UpdateUserRequest{FullName: "X", Role: models.RoleAdmin})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	store.users["u1"].Active = true
	require.NoError(t, svc.Delete(context.Background(), "u1"))
	assert.False(t, store.users["u1"].Active)
}

func TestUserServiceKeepsLastAdministrator(t *testing.T) {
	store := newFakeUserStore(
		models.User{ID: "a1", Role: models.RoleAdmin, Active: true},
		models.User{ID: "a2", Role: models.RoleAdmin, Active: false},
		models.User{ID: "t1", Role: models.RoleTeacher, Active: true},
	)
	svc := NewUserService(store, nil, nil)

	err := svc.Delete(context.Background(), "a1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), "a1", UpdateUserRequest{FullName: "A", Role: models.RoleTeacher})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.RoleAdmin, store.users["a1"].Role)

	require.NoError(t, svc.Delete(context.Background(), "t1"))

	store.users["a2"].Active = true
	require.NoError(t, svc.Delete(context.Background(), "a1"))
}

func TestUserServiceListDefaultsPagination(t *testing.T) {
	store := newFakeUserStore(
		models.User{ID: "u1", Role: models.RoleTeacher},
		models.User{ID: "u2", Role: models.RoleAdmin},
	)
	svc := NewUserService(store, nil, nil)

	role := models.RoleTeacher
	users, pagination, err := svc.List(context.Background(), models.UserFilter{Role: &role})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestUserServiceReplaceAssignments(t *testing.T) {
	store := newFakeUserStore(
		models.User{ID: "t1", Role: models.RoleTeacher},
		models.User{ID: "a1", Role: models.RoleAdmin},
	)
	svc := NewUserService(store, nil, nil)

	saved, err := svc.ReplaceAssignments(context.Background(), "t1", ReplaceAssignmentsRequest{Assignments: []models.StaffAssignment{
		{ClassLevel: "6", SubjectKey: " Math "},
		{ClassLevel: "6", SubjectKey: "math"},
		{ClassLevel: "10", SubjectKey: models.AllSubjects},
	}})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, models.StaffAssignment{UserID: "t1", ClassLevel: "6", SubjectKey: "math"}, saved[0])
	assert.Equal(t, saved, store.assignments["t1"])

	listed, err := svc.ListAssignments(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	_, err = svc.ReplaceAssignments(context.Background(), "t1", ReplaceAssignmentsRequest{Assignments: []models.StaffAssignment{
		{ClassLevel: "6", SubjectKey: "pbi_a"},
	}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.ReplaceAssignments(context.Background(), "t1", ReplaceAssignmentsRequest{Assignments: []models.StaffAssignment{
		{ClassLevel: "11", SubjectKey: "math"},
	}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidClassLevel.Code, appErrors.FromError(err).Code)

	_, err = svc.ReplaceAssignments(context.Background(), "a1", ReplaceAssignmentsRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
