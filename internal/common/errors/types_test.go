package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name: "basic error",
			appError: &AppError{
				Type:    ErrTypeConfig,
				Message: "configuration is invalid",
			},
			want: "config: configuration is invalid",
		},
		{
			name: "error with code",
			appError: &AppError{
				Type:    ErrTypeUnauthorized,
				Message: "token expired",
				Code:    "AUTH001",
			},
			want: "unauthorized: token expired: code=AUTH001",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeConnection,
				Message: "database connection failed",
				Cause:   errors.New("network timeout"),
			},
			want: "connection: database connection failed: cause=network timeout",
		},
		{
			name: "error with sorted context",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "field validation failed",
				Context: map[string]interface{}{
					"value": "invalid",
					"field": "title",
				},
			},
			want: "validation: field validation failed: context={field=title, value=invalid}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.appError.Error())
		})
	}
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, ErrTypeValidation, ValidationError("bad").Type)
	assert.Equal(t, ErrTypeUnauthorized, UnauthorizedError("who").Type)
	assert.Equal(t, ErrTypeForbidden, ForbiddenError("nope").Type)
	assert.Equal(t, "pipeline not found", NotFoundError("pipeline").Message)
	assert.Equal(t, "rate limit exceeded for webhook", RateLimitError("webhook").Message)

	cause := errors.New("boom")
	internal := InternalError("failed", cause)
	assert.ErrorIs(t, internal, cause)
}

func TestValidationErrors_Details(t *testing.T) {
	err := ValidationErrors("invalid node", []string{"url is required", "timeout must be at most 300"})
	assert.Equal(t, []string{"url is required", "timeout must be at most 300"}, err.Details())
	assert.Nil(t, ValidationError("plain").Details())
}

func TestIsTypeAndGetType(t *testing.T) {
	wrapped := fmt.Errorf("loading pipeline: %w", NotFoundError("pipeline"))

	assert.True(t, IsType(wrapped, ErrTypeNotFound))
	assert.False(t, IsType(wrapped, ErrTypeForbidden))
	assert.False(t, IsType(nil, ErrTypeNotFound))

	assert.Equal(t, ErrTypeNotFound, GetType(wrapped))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain")))
	assert.Equal(t, ErrorType(""), GetType(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ValidationError("x"), http.StatusBadRequest},
		{UnauthorizedError("x"), http.StatusUnauthorized},
		{ForbiddenError("x"), http.StatusForbidden},
		{NotFoundError("x"), http.StatusNotFound},
		{RateLimitError("x"), http.StatusTooManyRequests},
		{ConnectionError("x", nil), http.StatusServiceUnavailable},
		{errors.New("x"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", ForbiddenError("x")), http.StatusForbidden},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err))
	}
}
