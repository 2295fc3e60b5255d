package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// Handlers and clients MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingField    ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidLocation ErrorCode = "validation_invalid_location"
	ErrCodeValidationInvalidDays     ErrorCode = "validation_invalid_days"
	ErrCodeValidationTimeRange       ErrorCode = "validation_time_range_invalid"
	ErrCodeValidationInvalidChart    ErrorCode = "validation_invalid_chart"
	ErrCodeValidationInvalidFormat   ErrorCode = "validation_invalid_format"

	// Not Found (404)
	ErrCodeNotFoundLocation ErrorCode = "not_found_location"

	// Not Supported (501)
	ErrCodeNotSupportedHistorical ErrorCode = "not_supported_historical"

	// Processing (422)
	ErrCodeEmptyResult ErrorCode = "empty_result"

	// Limits (429)
	ErrCodeRateLimit ErrorCode = "rate_limit_exceeded"

	// Internal/Upstream (500/502/504)
	ErrCodeInternalUnexpected        ErrorCode = "internal_unexpected_error"
	ErrCodeInternalRender            ErrorCode = "internal_render_error"
	ErrCodeUpstreamUnauthorized      ErrorCode = "upstream_unauthorized"
	ErrCodeUpstreamError             ErrorCode = "upstream_error"
	ErrCodeUpstreamTimeout           ErrorCode = "upstream_timeout"
	ErrCodeUpstreamConnectionFailure ErrorCode = "upstream_connection_failure"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "not_supported_"):
		return http.StatusNotImplemented // 501
	case s == string(ErrCodeEmptyResult):
		return http.StatusUnprocessableEntity // 422
	case s == string(ErrCodeRateLimit):
		return http.StatusTooManyRequests // 429
	case s == string(ErrCodeUpstreamTimeout):
		return http.StatusGatewayTimeout // 504
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the service.
// Every failure that crosses a component boundary is expressed as an AppError so
// callers can branch on Code instead of parsing messages.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// CodeOf returns the ErrorCode carried by err, or "" when err is nil.
// Errors that are not AppErrors report ErrCodeInternalUnexpected.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalUnexpected
}
