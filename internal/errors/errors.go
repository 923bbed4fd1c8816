// Package errors provides the application error type shared by the bot,
// the worker and the ops API. Services return AppError values so that
// callers can branch on Code while user-facing layers render Message
// without leaking Internal details.
package errors

import (
	"errors"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so a
// wrapped sentinel still matches errors.Is(err, ErrRecordNotFound).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Code returns the AppError code carried by err, or "" when err is not an AppError.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Authentication errors.
var (
	ErrUnauthorized  = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidAPIKey = &AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", StatusCode: http.StatusUnauthorized}
	ErrNotConfigured = &AppError{Code: "OPS_API_NOT_CONFIGURED", Message: "Ops API key is not configured", StatusCode: http.StatusServiceUnavailable}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Record errors.
var (
	ErrRecordNotFound    = &AppError{Code: "RECORD_NOT_FOUND", Message: "Record not found", StatusCode: http.StatusNotFound}
	ErrStaleRecord       = &AppError{Code: "STALE_RECORD", Message: "Record is no longer awaiting extraction", StatusCode: http.StatusConflict}
	ErrInvalidTransition = &AppError{Code: "INVALID_TRANSITION", Message: "Record cannot change to the requested state", StatusCode: http.StatusConflict}
	ErrImageMissing      = &AppError{Code: "IMAGE_MISSING", Message: "Record has no stored receipt image", StatusCode: http.StatusConflict}
)

// Pipeline errors.
var (
	ErrQueueUnavailable = &AppError{Code: "QUEUE_UNAVAILABLE", Message: "Job queue is unavailable", StatusCode: http.StatusServiceUnavailable}
	ErrImageNotFound    = &AppError{Code: "IMAGE_NOT_FOUND", Message: "Receipt image not found", StatusCode: http.StatusNotFound}
	ErrJobNotFound      = &AppError{Code: "JOB_NOT_FOUND", Message: "Job not found", StatusCode: http.StatusNotFound}
	ErrInvalidJob       = &AppError{Code: "INVALID_JOB", Message: "Job payload is malformed", StatusCode: http.StatusBadRequest}
)
