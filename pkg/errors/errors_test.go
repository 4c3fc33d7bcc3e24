package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("load class: %w", ErrInvalidClassLevel)
	appErr := FromError(wrapped)
	assert.Equal(t, "INVALID_CLASS_LEVEL", appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
}

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("boom")
	appErr := FromError(cause)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, cause)
	assert.Nil(t, FromError(nil))
}

func TestFromErrorMapsDeadline(t *testing.T) {
	appErr := FromError(fmt.Errorf("rank class: %w", context.DeadlineExceeded))
	assert.Equal(t, ErrTimeout.Code, appErr.Code)
	assert.Equal(t, http.StatusGatewayTimeout, appErr.Status)
}

func TestCloneMatchesSentinel(t *testing.T) {
	clone := Clone(ErrNotFound, "student not found")
	assert.Equal(t, "student not found", clone.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
	assert.ErrorIs(t, clone, ErrNotFound)
	assert.False(t, errors.Is(clone, ErrConflict))
	assert.ErrorIs(t, fmt.Errorf("outer: %w", clone), ErrNotFound)
}

func TestValidationListsFields(t *testing.T) {
	type payload struct {
		Title   string `validate:"required"`
		Percent int    `validate:"max=100"`
	}
	err := validator.New().Struct(payload{Percent: 120})
	require.Error(t, err)

	appErr := Validation(err, "invalid homework")
	assert.Equal(t, ErrValidation.Code, appErr.Code)
	require.Len(t, appErr.Details, 2)
	assert.Equal(t, FieldError{Field: "Title", Rule: "required"}, appErr.Details[0])
	assert.Equal(t, FieldError{Field: "Percent", Rule: "max", Param: "100"}, appErr.Details[1])

	plain := Validation(errors.New("bad date"), "invalid date")
	assert.Empty(t, plain.Details)
}
