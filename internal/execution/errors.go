package execution

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode classifies a transport failure for downstream schedulers.
type ErrorCode string

// The full taxonomy. E_AUTH, E_QUOTA and E_INPUT represent caller or
// billing problems that will not self-resolve and are never retried;
// everything else is considered transient.
const (
	CodeRateLimit   ErrorCode = "E_RATE_LIMIT"
	CodeTimeout     ErrorCode = "E_TIMEOUT"
	CodeAuth        ErrorCode = "E_AUTH"
	CodeQuota       ErrorCode = "E_QUOTA"
	CodeInput       ErrorCode = "E_INPUT"
	CodeServerError ErrorCode = "E_SERVER_ERROR"
	CodeNetwork     ErrorCode = "E_NETWORK"
	CodeUnknown     ErrorCode = "E_UNKNOWN"
)

// Retryable reports whether a failure with this code may be attempted
// again.
func (c ErrorCode) Retryable() bool {
	switch c {
	case CodeAuth, CodeQuota, CodeInput:
		return false
	default:
		return true
	}
}

// TaskError is the structured failure produced by a transport attempt.
// It is tagged with its code at the call site, so later layers never need
// to pattern-match free text to decide retryability.
type TaskError struct {
	Code    ErrorCode
	Message string
	// Status is the upstream HTTP status when the failure came from an
	// HTTP response, 0 otherwise.
	Status int
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Retryable reports whether this failure may be attempted again.
func (e *TaskError) Retryable() bool {
	return e.Code.Retryable()
}

// NewTaskError builds a tagged transport error.
func NewTaskError(code ErrorCode, message string) *TaskError {
	return &TaskError{Code: code, Message: message}
}

// ClassifyStatus maps an upstream HTTP status code to the taxonomy. It is
// used by the live transport at the response site.
func ClassifyStatus(status int, message string) *TaskError {
	var code ErrorCode
	switch {
	case status == http.StatusTooManyRequests:
		code = CodeRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = CodeAuth
	case status == http.StatusPaymentRequired:
		code = CodeQuota
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		code = CodeTimeout
	case status >= 500:
		code = CodeServerError
	case status >= 400:
		code = CodeInput
	default:
		code = CodeUnknown
	}
	return &TaskError{Code: code, Message: message, Status: status}
}

// Classify converts an arbitrary attempt error into a TaskError. Tagged
// errors pass through unchanged; context errors become timeouts; anything
// else falls back to message inspection, which only ever sees errors that
// never reached the upstream (dial failures, reset connections).
func Classify(err error) *TaskError {
	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		return taskErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TaskError{Code: CodeTimeout, Message: err.Error()}
	}
	if errors.Is(err, context.Canceled) {
		return &TaskError{Code: CodeTimeout, Message: err.Error()}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"):
		return &TaskError{Code: CodeRateLimit, Message: err.Error()}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return &TaskError{Code: CodeTimeout, Message: err.Error()}
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "api key"):
		return &TaskError{Code: CodeAuth, Message: err.Error()}
	case strings.Contains(msg, "quota") || strings.Contains(msg, "billing"):
		return &TaskError{Code: CodeQuota, Message: err.Error()}
	case strings.Contains(msg, "connection") || strings.Contains(msg, "dial") ||
		strings.Contains(msg, "no such host") || strings.Contains(msg, "network"):
		return &TaskError{Code: CodeNetwork, Message: err.Error()}
	default:
		return &TaskError{Code: CodeUnknown, Message: err.Error()}
	}
}

// ErrBreakerOpen is the failure reported when the circuit breaker rejects
// a call before it reaches the network. It shares the TaskError shape so
// callers need no separate code path for breaker rejections.
var ErrBreakerOpen = &TaskError{
	Code:    CodeNetwork,
	Message: "circuit breaker is open, failing fast",
}
