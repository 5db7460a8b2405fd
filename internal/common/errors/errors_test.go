package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPError_Retryability(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		idempotent bool
		retryable  bool
	}{
		{"GET 503 retried", http.StatusServiceUnavailable, true, true},
		{"GET 429 retried", http.StatusTooManyRequests, true, true},
		{"GET 404 not retried", http.StatusNotFound, true, false},
		{"POST 500 not retried", http.StatusInternalServerError, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewHTTPError("planner-api", tt.status, "", tt.idempotent)
			assert.Equal(t, ErrCodeHTTP, err.Code)
			assert.Equal(t, tt.status, err.StatusCode)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, http.StatusText(tt.status), err.Message)
		})
	}
}

func TestFromTransport(t *testing.T) {
	t.Run("deadline becomes timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 0)
		defer cancel()
		<-ctx.Done()

		err := FromTransport("planner-api", ctx, fmt.Errorf("do: %w", context.DeadlineExceeded))
		assert.Equal(t, ErrCodeTimeout, err.Code)
		assert.False(t, err.Retryable)
		assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
	})

	t.Run("dial failure becomes network", func(t *testing.T) {
		err := FromTransport("planner-api", context.Background(), stderrors.New("dial tcp: connection refused"))
		assert.Equal(t, ErrCodeNetwork, err.Code)
		assert.True(t, err.Retryable)
	})

	t.Run("standard error passes through", func(t *testing.T) {
		in := NewHTTPError("planner-api", 400, "bad", false)
		out := FromTransport("planner-api", context.Background(), fmt.Errorf("wrapped: %w", in))
		assert.Same(t, in, out)
	})
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(stderrors.New("boom")))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(NewTimeoutError("x", nil)))
	assert.True(t, IsRetryable(NewNetworkError("x", stderrors.New("reset"))))
	assert.False(t, IsRetryable(NewValidationError(nil)))
}

func TestStandardError_IsByCode(t *testing.T) {
	err := fmt.Errorf("submit: %w", NewTimeoutError("planner-api", nil))
	assert.True(t, stderrors.Is(err, &StandardError{Code: ErrCodeTimeout}))
	assert.False(t, stderrors.Is(err, &StandardError{Code: ErrCodeHTTP}))
	assert.True(t, IsCode(err, ErrCodeTimeout))
}

func TestNewValidationError_Details(t *testing.T) {
	err := NewValidationError([]FieldError{
		{Field: "budget", Message: "must be greater than 0"},
		{Field: "style", Message: "is required"},
	})
	assert.Equal(t, "budget: must be greater than 0; style: is required", err.Details)
	require.Len(t, err.Fields, 2)
	assert.Equal(t, "VALIDATION", GetErrorCategory(err.Code))
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil))
	out := Normalize(stderrors.New("plain"))
	assert.Equal(t, ErrCodeInternal, out.Code)
	assert.Equal(t, "plain", out.Details)
}

type recordingLogger struct {
	messages []map[string]interface{}
}

func (r *recordingLogger) Error(msg string, fields map[string]interface{}) {
	r.messages = append(r.messages, fields)
}

func TestErrorHandler_Handle(t *testing.T) {
	rec := &recordingLogger{}
	h := NewErrorHandler(rec)

	assert.Nil(t, h.Handle("submit", nil))

	stdErr := h.Handle("submit", NewTimeoutError("planner-api", nil))
	require.NotNil(t, stdErr)
	require.Len(t, rec.messages, 1)
	assert.Equal(t, "submit", rec.messages[0]["operation"])
	assert.Equal(t, "TIMEOUT_ERROR", rec.messages[0]["errorCode"])
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(stdErr))
	assert.Contains(t, UserMessage(stdErr), "too long")
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(NewValidationError(nil)))
	assert.Equal(t, http.StatusConflict, HTTPStatus(NewInvalidStateError("busy")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NewNotFoundError("report", "abc")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(NewHTTPError("x", 500, "", false)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Normalize(stderrors.New("x"))))
}
