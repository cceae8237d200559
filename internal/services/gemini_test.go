package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassifyGeminiError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		network    bool
	}{
		{"rest unauthorized", &googleapi.Error{Code: 401, Message: "API key not valid"}, 401, false},
		{"rest rate limited", fmt.Errorf("generate: %w", &googleapi.Error{Code: 429, Message: "quota"}), 429, false},
		{"grpc unauthenticated", status.Error(codes.Unauthenticated, "bad key"), 401, false},
		{"grpc permission denied", status.Error(codes.PermissionDenied, "no access"), 401, false},
		{"grpc exhausted", status.Error(codes.ResourceExhausted, "quota"), 429, false},
		{"grpc unavailable", status.Error(codes.Unavailable, "overloaded"), 503, false},
		{"grpc invalid argument", status.Error(codes.InvalidArgument, "bad request"), 400, false},
		{"grpc deadline", status.Error(codes.DeadlineExceeded, "slow"), 0, true},
		{"plain error", errors.New("dial tcp: connection refused"), 0, true},
		{"context canceled", context.Canceled, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyGeminiError(tc.err)

			if tc.network {
				var netErr *NetworkError
				if !errors.As(err, &netErr) {
					t.Fatalf("expected NetworkError, got %T %v", err, err)
				}
				return
			}

			var apiErr *UpstreamAPIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected UpstreamAPIError, got %T %v", err, err)
			}
			if apiErr.StatusCode != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, apiErr.StatusCode)
			}
		})
	}
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), "  ", "gemini-2.0-flash", 1, testLogger())

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
