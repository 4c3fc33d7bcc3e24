package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-results-api/internal/models"
	appErrors "github.com/noah-isme/school-results-api/pkg/errors"
)

func newImportFixture(maxBytes int64) (*ImportService, *fakeStudentStore) {
	store := sampleClass()
	permissions := NewPermissionService(teacherAssignments(), zap.NewNop())
	return NewImportService(store, permissions, nil, nil, NewMetricsService(), maxBytes, zap.NewNop()), store
}

func TestImportMarksMergesAndCreates(t *testing.T) {
	svc, store := newImportFixture(0)
	admin := &models.JWTClaims{UserID: "adm", Role: models.RoleAdmin}

	csv := "Roll No,Name,MATHEMATICS,eng,Favourite Colour\n" +
		"1,Asha,88,abc,blue\n" +
		"9,\"Doe, Jane\",150,-4,red\n" +
		",Nobody,10,10,\n"

	result, err := svc.ImportMarks(context.Background(), admin, "6", "Term", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 4, result.Errors[0].Row)
	assert.Equal(t, "missing roll number", result.Errors[0].Message)

	// 88 is within the 0-100 import range but above the 80-mark term paper.
	asha := store.students["a"]
	assert.Equal(t, 80, asha.Marks["term_math"])
	assert.Equal(t, 0, asha.Marks["term_eng"])
	assert.Equal(t, 90, asha.Marks["final_math"])

	created, err := store.FindByRoll(context.Background(), "9", "6")
	require.NoError(t, err)
	assert.Equal(t, "Doe, Jane", created.Name)
	// 150 clamps to 100 then to the 80-mark term paper; -4 clamps to 0.
	assert.Equal(t, 80, created.Marks["term_math"])
	assert.Equal(t, 0, created.Marks["term_eng"])
}

func TestImportMarksNewStudentNeedsName(t *testing.T) {
	svc, _ := newImportFixture(0)
	admin := &models.JWTClaims{Role: models.RoleAdmin}

	result, err := svc.ImportMarks(context.Background(), admin, "6", "Final", strings.NewReader("Roll No,Math\n42,50\n1,60\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "42", result.Errors[0].RollNo)
}

func TestImportMarksRequiresRollColumn(t *testing.T) {
	svc, _ := newImportFixture(0)
	_, err := svc.ImportMarks(context.Background(), &models.JWTClaims{Role: models.RoleAdmin}, "6", "Final", strings.NewReader("Name,Math\nA,1\n"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestImportMarksEnforcesTeacherSubjects(t *testing.T) {
	svc, store := newImportFixture(0)
	teacher := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	_, err := svc.ImportMarks(context.Background(), teacher, "6", "Final", strings.NewReader("Roll No,Math,English\n1,10,10\n"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 90, store.students["a"].Marks["final_math"])

	result, err := svc.ImportMarks(context.Background(), teacher, "6", "Final", strings.NewReader("Roll No,Math\n1,10\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 10, store.students["a"].Marks["final_math"])
}

func TestImportMarksKeepsInRangeCells(t *testing.T) {
	svc, store := newImportFixture(0)
	admin := &models.JWTClaims{UserID: "adm", Role: models.RoleAdmin}

	result, err := svc.ImportMarks(context.Background(), admin, "6", "Term", strings.NewReader("Roll No,Name,Math,Hindi\n2,Bilal,72,45.4\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 72, store.students["b"].Marks["term_math"])
	assert.Equal(t, 45, store.students["b"].Marks["term_hindi"])
}

func TestImportMarksTeacherCannotAddStudents(t *testing.T) {
	svc, store := newImportFixture(0)
	teacher := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	_, err := svc.ImportMarks(context.Background(), teacher, "7", "Final", strings.NewReader("Roll No,Name\n77,Ghost\n"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	result, err := svc.ImportMarks(context.Background(), teacher, "6", "Final", strings.NewReader("Roll No,Name,Math\n77,Ghost,40\n1,Asha,55\n"))
	require.NoError(t, err)
	assert.Zero(t, result.Created)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "77", result.Errors[0].RollNo)
	assert.Equal(t, "only administrators can add students", result.Errors[0].Message)

	_, err = store.FindByRoll(context.Background(), "77", "7")
	assert.Error(t, err)
	_, err = store.FindByRoll(context.Background(), "77", "6")
	assert.Error(t, err)
}

func TestImportMarksRejectsOversizedUpload(t *testing.T) {
	svc, _ := newImportFixture(16)
	_, err := svc.ImportMarks(context.Background(), &models.JWTClaims{Role: models.RoleAdmin}, "6", "Final", strings.NewReader("Roll No,Math\n1,10\n2,20\n"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErrors.FromError(err).Code)
}

func TestImportMarksInvalidClass(t *testing.T) {
	svc, _ := newImportFixture(0)
	_, err := svc.ImportMarks(context.Background(), &models.JWTClaims{Role: models.RoleAdmin}, "4", "Final", strings.NewReader("Roll No\n1\n"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidClassLevel.Code, appErrors.FromError(err).Code)
}

func TestParseAndClampMark(t *testing.T) {
	assert.Equal(t, 0, parseMark("n/a"))
	assert.Equal(t, 0, parseMark(""))
	assert.Equal(t, 46, parseMark(" 45.5 "))
	assert.Equal(t, 12, parseMark("12"))
	assert.Equal(t, 20, clampMark(35, 20))
	assert.Equal(t, 100, clampMark(250, 100))
	assert.Equal(t, 0, clampMark(-3, 80))
}
