package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{
		Message: "validation failed",
		Fields:  map[string]string{"title": "is required", "endsAt": "must be after startsAt"},
	}

	require.Equal(t, "validation failed (endsAt: must be after startsAt, title: is required)", err.Error())
	require.True(t, IsValidation(fmt.Errorf("wrapped: %w", err)))
	require.False(t, IsValidation(ErrNotFound))
}

func TestFromValidator(t *testing.T) {
	type params struct {
		Email string `validate:"required,email"`
		Name  string `validate:"required,max=5"`
	}

	err := FromValidator(validator.New().Struct(params{Email: "nope", Name: "toolongname"}))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "must be a valid email address", ve.Fields["email"])
	require.Equal(t, "must be at most 5 characters", ve.Fields["name"])
}

func TestFromValidatorPassesThroughOtherErrors(t *testing.T) {
	require.NoError(t, FromValidator(nil))
	require.ErrorIs(t, FromValidator(ErrStorage), ErrStorage)
}
