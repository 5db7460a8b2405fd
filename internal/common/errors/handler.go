// internal/common/errors/handler.go
package errors

import (
	"net/http"
)

// ErrorHandler normalizes, logs and translates errors for the UI-facing layers.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle normalizes err to a StandardError and logs it against the operation that failed.
func (h *ErrorHandler) Handle(operation string, err error) *StandardError {
	if err == nil {
		return nil
	}
	stdErr := Normalize(err)
	h.logError(operation, stdErr)
	return stdErr
}

func (h *ErrorHandler) logError(operation string, stdErr *StandardError) {
	if h.logger == nil {
		return
	}
	h.logger.Error("operation failed", map[string]interface{}{
		"operation":     operation,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"statusCode":    stdErr.StatusCode,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	})
}

// HTTPStatus maps an error code to the status returned to the UI.
func HTTPStatus(stdErr *StandardError) int {
	switch stdErr.Code {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeInvalidState:
		return http.StatusConflict
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeNetwork, ErrCodeHTTP:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the text shown in a transient notification.
func UserMessage(stdErr *StandardError) string {
	switch stdErr.Code {
	case ErrCodeValidation:
		return "Please fix the highlighted fields and try again."
	case ErrCodeTimeout:
		return "The planning service took too long to respond. Please try again."
	case ErrCodeNetwork:
		return "Could not reach the planning service. Check your connection and try again."
	case ErrCodeHTTP:
		if stdErr.Message != "" {
			return stdErr.Message
		}
		return "The planning service returned an error."
	default:
		return "Something went wrong. Please try again."
	}
}
