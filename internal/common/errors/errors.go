// internal/common/errors/errors.go

// Package errors provides the standardized error taxonomy shared by the planner's
// HTTP client, query cache, persistence adapter and wizard orchestrator.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeNetwork    ErrorCode = "NETWORK_ERROR"
	ErrCodeHTTP       ErrorCode = "HTTP_ERROR"
	ErrCodeTimeout    ErrorCode = "TIMEOUT_ERROR"
	ErrCodeStorage    ErrorCode = "STORAGE_ERROR"

	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// StandardError represents a structured application error.
type StandardError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"statusCode,omitempty"`
	Fields     []FieldError           `json:"fields,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("StandardError[%s %d]: %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another *StandardError by code so callers can write
// errors.Is(err, &StandardError{Code: ErrCodeTimeout}).
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable validation error carrying field-level messages.
func NewValidationError(fields []FieldError) *StandardError {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   "Form validation failed",
		Details:   strings.Join(parts, "; "),
		Retryable: false,
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}
}

// NewNetworkError creates a retryable transport error (connection refused, DNS, reset).
func NewNetworkError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNetwork,
		Message:   fmt.Sprintf("Network error calling %s", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewHTTPError creates an error for a non-2xx response. Only idempotent requests are retryable,
// and then only for 5xx and 429 responses.
func NewHTTPError(service string, statusCode int, message string, idempotent bool) *StandardError {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	retryable := idempotent && (statusCode >= 500 || statusCode == http.StatusTooManyRequests)
	return &StandardError{
		Code:       ErrCodeHTTP,
		Message:    message,
		Details:    fmt.Sprintf("service: %s, status: %d", service, statusCode),
		Retryable:  retryable,
		StatusCode: statusCode,
		Timestamp:  time.Now().UTC(),
	}
}

// NewTimeoutError creates a non-retryable timeout error. Timeouts are surfaced immediately.
func NewTimeoutError(service string, err error) *StandardError {
	details := "request deadline exceeded"
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Request to %s timed out", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStorageError creates a storage error. Storage errors are recovered locally and never reach the user.
func NewStorageError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorage,
		Message:   fmt.Sprintf("Storage %s failed", op),
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewInvalidStateError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidState,
		Message:   "Operation not allowed in current state",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotFoundError(resource, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification
// ==========================

// FromTransport maps an error returned by http.Client.Do into the taxonomy.
func FromTransport(service string, ctx context.Context, err error) *StandardError {
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) || (ctx != nil && stderrors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return NewTimeoutError(service, err)
	}
	if stderrors.Is(err, context.Canceled) {
		return &StandardError{
			Code:      ErrCodeTimeout,
			Message:   fmt.Sprintf("Request to %s was cancelled", service),
			Details:   err.Error(),
			Retryable: false,
			Timestamp: time.Now().UTC(),
			cause:     err,
		}
	}
	return NewNetworkError(service, err)
}

// As extracts a *StandardError from an error chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Code == code
}

// IsRetryable reports whether a failed operation may be attempted again.
// Plain errors are treated as retryable so arbitrary loaders get the backoff policy.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stdErr, ok := As(err); ok {
		return stdErr.Retryable
	}
	return !stderrors.Is(err, context.Canceled) && !stderrors.Is(err, context.DeadlineExceeded)
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeNetwork, ErrCodeHTTP:
		return 3
	default:
		return 0
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidation:
		return "VALIDATION"
	case ErrCodeNetwork, ErrCodeHTTP, ErrCodeTimeout:
		return "TRANSPORT"
	case ErrCodeStorage:
		return "STORAGE"
	case ErrCodeInvalidState, ErrCodeNotFound:
		return "WIZARD"
	default:
		return "OTHER"
	}
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}
