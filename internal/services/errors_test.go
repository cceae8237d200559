package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestValidationError_ErrorIsStable(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"front": "x", "back": "y", "source": "z"}}
	if got := err.Error(); got != "Validation error: back, front, source" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestUpstreamMessages(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{401, "AI service credential is misconfigured"},
		{429, "AI service is rate limited, please try again shortly"},
		{500, "AI service is temporarily unavailable"},
		{502, "AI service is temporarily unavailable"},
		{422, "AI service rejected the request"},
	}

	for _, tc := range tests {
		if got := NewUpstreamAPIError(tc.status, nil).Message; got != tc.want {
			t.Errorf("status %d: expected %q, got %q", tc.status, tc.want, got)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", &NetworkError{Message: "down"}, true},
		{"wrapped network", fmt.Errorf("attempt: %w", &NetworkError{Message: "down"}), true},
		{"rate limited", NewUpstreamAPIError(429, nil), true},
		{"server error", NewUpstreamAPIError(500, nil), true},
		{"unauthorized", NewUpstreamAPIError(401, nil), false},
		{"config", &ConfigurationError{Message: "no key"}, false},
		{"schema", &SchemaValidationError{}, false},
		{"other", errors.New("boom"), false},
	}

	for _, tc := range tests {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestPgErrorHelpers(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}

	if !isUniqueViolation(unique) || isForeignKeyViolation(unique) {
		t.Fatal("unique violation misclassified")
	}
	if !isForeignKeyViolation(fk) || isUniqueViolation(fk) {
		t.Fatal("foreign key violation misclassified")
	}
	if isUniqueViolation(errors.New("plain")) {
		t.Fatal("plain errors carry no pg code")
	}
}
