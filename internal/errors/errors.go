package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a daybook error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrAPI            ErrorCode = "API_ERROR"       // 502 (upstream non-200)
	ErrParse          ErrorCode = "PARSE_ERROR"     // 502 (upstream body unusable)
	ErrNoCredential   ErrorCode = "NO_CREDENTIAL"   // 412
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// DaybookError represents a structured error with code, status, and details.
type DaybookError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *DaybookError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *DaybookError {
	return &DaybookError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a date or session that has no data.
func NewNotFound(what, identifier string) *DaybookError {
	return &DaybookError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", what, identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewAPIError creates an error for a non-200 reply from the text-generation endpoint.
// The upstream status and raw body are kept in Details.
func NewAPIError(upstreamStatus int, body string) *DaybookError {
	return &DaybookError{
		Code:    ErrAPI,
		Status:  502,
		Message: fmt.Sprintf("generation endpoint returned %d", upstreamStatus),
		Details: map[string]any{"upstream_status": upstreamStatus, "body": body},
	}
}

// NewParseError creates an error for a 200 reply whose body has no usable text.
func NewParseError(msg string) *DaybookError {
	return &DaybookError{
		Code:    ErrParse,
		Status:  502,
		Message: msg,
	}
}

// NewNoCredential creates a 412 error for operations that need an API key.
func NewNoCredential() *DaybookError {
	return &DaybookError{
		Code:    ErrNoCredential,
		Status:  412,
		Message: "no API key configured; set api_key in config.json or GEMINI_API_KEY",
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *DaybookError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &DaybookError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if err (or anything it wraps) is a DaybookError with the given code.
func Is(err error, code ErrorCode) bool {
	var dErr *DaybookError
	if stderrors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// UpstreamStatus returns the endpoint status carried by an API error, or 0.
func UpstreamStatus(err error) int {
	var dErr *DaybookError
	if !stderrors.As(err, &dErr) || dErr.Code != ErrAPI {
		return 0
	}
	status, _ := dErr.Details["upstream_status"].(int)
	return status
}

// IsRateLimited reports whether err is an API error with HTTP 429.
func IsRateLimited(err error) bool {
	return UpstreamStatus(err) == http.StatusTooManyRequests
}
