package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
)

// ErrorType classifies provider failures. Every type is a fallback trigger
// for the recommender; the classification exists for logs and metrics.
type ErrorType string

const (
	ErrorTypeAuth          ErrorType = "auth"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeUnavailable   ErrorType = "unavailable"
	ErrorTypeBadRequest    ErrorType = "bad_request"
	ErrorTypeEmptyResponse ErrorType = "empty_response"
	ErrorTypeParse         ErrorType = "parse"
	ErrorTypeSchema        ErrorType = "schema"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// Error is a classified LLM failure.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	parts = append(parts, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{Type: errType, Message: message, Retryable: retryable, Cause: cause}
}

// TypeOf returns the classification of err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// ClassifyError maps provider SDK errors onto Error.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrorTypeTimeout, "request timed out", true, err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(ErrorTypeTimeout, "request cancelled", false, err)
	}

	status := 0
	var oaAPI *openai.APIError
	var oaReq *openai.RequestError
	var anReq *anthropic.RequestError
	var anAPI *anthropic.APIError
	switch {
	case errors.As(err, &oaAPI):
		status = oaAPI.HTTPStatusCode
	case errors.As(err, &oaReq):
		status = oaReq.HTTPStatusCode
	case errors.As(err, &anReq):
		status = anReq.StatusCode
	case errors.As(err, &anAPI):
		switch {
		case anAPI.IsRateLimitErr():
			status = 429
		case anAPI.IsAuthenticationErr(), anAPI.IsPermissionErr():
			status = 401
		case anAPI.IsOverloadedErr(), anAPI.IsApiErr():
			status = 503
		}
	}

	var e *Error
	switch {
	case status == 401 || status == 403:
		e = NewError(ErrorTypeAuth, "authentication failed", false, err)
	case status == 429:
		e = NewError(ErrorTypeRateLimit, "rate limited", true, err)
	case status >= 500:
		e = NewError(ErrorTypeUnavailable, "provider unavailable", true, err)
	case status >= 400:
		e = NewError(ErrorTypeBadRequest, "request rejected", false, err)
	default:
		e = NewError(ErrorTypeUnknown, "request failed", true, err)
	}
	e.StatusCode = status
	return e
}
