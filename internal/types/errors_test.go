package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeNotFoundLocation,
		Message: "location 'Atlantis' not found",
	}
	assert.Equal(t, "not_found_location: location 'Atlantis' not found", appErr.Error())
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("dial tcp: connection refused")
	appErr := NewAppError(ErrCodeUpstreamConnectionFailure, "connection failed", underlying)

	assert.Same(t, underlying, appErr.Unwrap())
	assert.True(t, errors.Is(appErr, underlying))
}

func TestAppErrorErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("fetching forecast: %w", NewAppError(ErrCodeUpstreamTimeout, "timed out", nil))

	var target *AppError
	if assert.True(t, errors.As(wrapped, &target)) {
		assert.Equal(t, ErrCodeUpstreamTimeout, target.Code)
	}
}

func TestAppErrorWithDetailsDoesNotMutate(t *testing.T) {
	original := NewAppErrorWithDetails(ErrCodeUpstreamError, "bad gateway", nil, map[string]any{"a": 1})
	copied := original.WithDetails(map[string]any{"status_code": 503})

	assert.Len(t, original.Details, 1)
	assert.Equal(t, 503, copied.Details["status_code"])
	assert.Equal(t, 1, copied.Details["a"])
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationInvalidChart, http.StatusBadRequest},
		{ErrCodeNotFoundLocation, http.StatusNotFound},
		{ErrCodeNotSupportedHistorical, http.StatusNotImplemented},
		{ErrCodeEmptyResult, http.StatusUnprocessableEntity},
		{ErrCodeRateLimit, http.StatusTooManyRequests},
		{ErrCodeUpstreamTimeout, http.StatusGatewayTimeout},
		{ErrCodeUpstreamUnauthorized, http.StatusBadGateway},
		{ErrCodeUpstreamError, http.StatusBadGateway},
		{ErrCodeUpstreamConnectionFailure, http.StatusBadGateway},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.Equal(t, ErrCodeInternalUnexpected, CodeOf(errors.New("plain")))
	assert.Equal(t, ErrCodeNotFoundLocation, CodeOf(fmt.Errorf("wrap: %w", NewAppError(ErrCodeNotFoundLocation, "x", nil))))
}
