package services

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Error codes shared by the HTTP envelope and generation job records.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeRateLimited     = "RATE_LIMITED"
	CodePersistence     = "PERSISTENCE_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
	CodeAIConfiguration = "AI_CONFIGURATION_ERROR"
	CodeAINetwork       = "AI_NETWORK_ERROR"
	CodeAIUpstream      = "AI_UPSTREAM_ERROR"
	CodeAIResponse      = "AI_RESPONSE_INVALID"
	CodeAISchema        = "AI_SCHEMA_INVALID"
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "Validation error: " + strings.Join(keys, ", ")
}

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

// PersistenceError wraps a failed store read or write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("failed to %s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

// ──── Generation errors ────

// ConfigurationError means the AI provider has no usable credential. Not retryable.
type ConfigurationError struct{ Message string }

func (e *ConfigurationError) Error() string { return e.Message }

// NetworkError means the AI provider could not be reached.
type NetworkError struct {
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UpstreamErrorDetails is the provider's own error body, when it sent one.
type UpstreamErrorDetails struct {
	Code    interface{} `json:"code,omitempty"`
	Message string      `json:"message"`
	Type    string      `json:"type,omitempty"`
}

// UpstreamAPIError is a non-2xx answer from the AI provider.
type UpstreamAPIError struct {
	StatusCode int
	Message    string
	Details    *UpstreamErrorDetails
}

func NewUpstreamAPIError(status int, details *UpstreamErrorDetails) *UpstreamAPIError {
	return &UpstreamAPIError{StatusCode: status, Message: upstreamMessage(status), Details: details}
}

func (e *UpstreamAPIError) Error() string {
	if e.Details != nil && e.Details.Message != "" {
		return fmt.Sprintf("%s (status %d: %s)", e.Message, e.StatusCode, e.Details.Message)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

func upstreamMessage(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "AI service credential is misconfigured"
	case status == http.StatusTooManyRequests:
		return "AI service is rate limited, please try again shortly"
	case status >= 500:
		return "AI service is temporarily unavailable"
	default:
		return "AI service rejected the request"
	}
}

// ResponseParsingError means the model output was not JSON, even after
// removing a markdown fence.
type ResponseParsingError struct {
	Message string
	Err     error
}

func (e *ResponseParsingError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ResponseParsingError) Unwrap() error { return e.Err }

type SchemaIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// SchemaValidationError means the model output was JSON of the wrong shape.
type SchemaValidationError struct {
	Issues []SchemaIssue
}

func (e *SchemaValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.Path + ": " + issue.Message
	}
	return "AI response does not match the expected schema: " + strings.Join(parts, "; ")
}

// Fields flattens the issues for the error envelope.
func (e *SchemaValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Issues))
	for _, issue := range e.Issues {
		fields[issue.Path] = issue.Message
	}
	return fields
}

// IsRetryable reports whether a generation call may succeed if repeated.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *UpstreamAPIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return false
}

// ──── Postgres helpers ────

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool { return pgErrorCode(err) == "23505" }

func isForeignKeyViolation(err error) bool { return pgErrorCode(err) == "23503" }
