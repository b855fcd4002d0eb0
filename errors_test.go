package auth_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/goliatone/go-auth-legacy"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestIsCredentialsMismatch(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Sentinel",
			err:      auth.ErrMismatchedHashAndPassword,
			expected: true,
		},
		{
			name:     "Wrapped with fmt",
			err:      fmt.Errorf("login: %w", auth.ErrMismatchedHashAndPassword),
			expected: true,
		},
		{
			name:     "Different structured error",
			err:      auth.ErrIdentityNotFound,
			expected: false,
		},
		{
			name:     "Plain error",
			err:      errors.New("invalid credentials"),
			expected: false,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.IsCredentialsMismatch(tt.err))
		})
	}
}

func TestIsIdentityNotFound(t *testing.T) {
	assert.True(t, auth.IsIdentityNotFound(auth.ErrIdentityNotFound))
	assert.True(t, auth.IsIdentityNotFound(goerrors.New("gone", goerrors.CategoryNotFound)))
	assert.False(t, auth.IsIdentityNotFound(auth.ErrUserDisabled))
	assert.False(t, auth.IsIdentityNotFound(nil))
}

func TestHasTextCode(t *testing.T) {
	wrapped := goerrors.Wrap(errors.New("io timeout"), goerrors.CategoryOperation, "facade down").
		WithTextCode("LEGACY_TRANSPORT_ERROR")

	assert.True(t, auth.HasTextCode(wrapped, "LEGACY_TRANSPORT_ERROR"))
	assert.True(t, auth.HasTextCode(fmt.Errorf("resolve: %w", wrapped), "LEGACY_TRANSPORT_ERROR"))
	assert.False(t, auth.HasTextCode(wrapped, "OTHER"))
	assert.False(t, auth.HasTextCode(nil, "OTHER"))
}

func TestSentinelCategories(t *testing.T) {
	assert.Equal(t, goerrors.CategoryAuth, auth.ErrMismatchedHashAndPassword.Category)
	assert.Equal(t, goerrors.CategoryNotFound, auth.ErrIdentityNotFound.Category)
	assert.Equal(t, goerrors.CategoryValidation, auth.ErrNoEmptyString.Category)
}
