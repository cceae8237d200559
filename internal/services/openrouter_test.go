package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newOpenRouterForTest(url, key string) *OpenRouterClient {
	return NewOpenRouterClient(OpenRouterOptions{
		APIKey:             key,
		Model:              "openai/gpt-4o-mini",
		BaseURL:            url,
		Referer:            "http://localhost:4321",
		Timeout:            5 * time.Second,
		ConcurrentRequests: 2,
	}, testLogger())
}

func TestOpenRouter_Complete_Success(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		if r.Header.Get("HTTP-Referer") != "http://localhost:4321" {
			t.Errorf("missing referer header")
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"flashcards\":[]}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	client := newOpenRouterForTest(srv.URL, "sk-test")
	text, err := client.Complete(context.Background(), CompletionRequest{
		System:      "system",
		User:        "user",
		Temperature: 0.5,
		MaxTokens:   700,
		SchemaName:  "FlashcardsResponse",
		Schema:      flashcardsResponseSchema,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != `{"flashcards":[]}` {
		t.Fatalf("unexpected text %q", text)
	}

	if got.Model != "openai/gpt-4o-mini" || got.MaxTokens != 700 || len(got.Messages) != 2 {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("unexpected message roles %+v", got.Messages)
	}
	if got.ResponseFormat["type"] != "json_schema" {
		t.Fatalf("expected json_schema response format, got %v", got.ResponseFormat)
	}
}

func TestOpenRouter_Complete_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		message   string
		retryable bool
	}{
		{"unauthorized", 401, `{"error":{"code":401,"message":"No auth credentials found","type":"auth"}}`, "AI service credential is misconfigured", false},
		{"rate limited", 429, `{"error":{"code":429,"message":"Rate limit exceeded"}}`, "AI service is rate limited, please try again shortly", true},
		{"unavailable", 503, `upstream connect error`, "AI service is temporarily unavailable", true},
		{"bad request", 400, `{"error":{"code":"invalid_request","message":"bad schema"}}`, "AI service rejected the request", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newOpenRouterForTest(srv.URL, "sk-test").Complete(context.Background(), CompletionRequest{System: "s", User: "u"})

			var apiErr *UpstreamAPIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected UpstreamAPIError, got %v", err)
			}
			if apiErr.StatusCode != tc.status || apiErr.Message != tc.message {
				t.Fatalf("unexpected error %+v", apiErr)
			}
			if apiErr.Details == nil || apiErr.Details.Message == "" {
				t.Fatalf("expected upstream details, got %+v", apiErr.Details)
			}
			if IsRetryable(err) != tc.retryable {
				t.Fatalf("retryable=%v, want %v", IsRetryable(err), tc.retryable)
			}
		})
	}
}

func TestOpenRouter_Complete_MissingKey(t *testing.T) {
	_, err := newOpenRouterForTest("http://127.0.0.1:1", "").Complete(context.Background(), CompletionRequest{})

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestOpenRouter_Complete_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newOpenRouterForTest(url, "sk-test").Complete(context.Background(), CompletionRequest{System: "s", User: "u"})

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if !IsRetryable(err) {
		t.Fatal("network errors are retryable")
	}
}

func TestOpenRouter_Complete_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>gateway</html>`},
		{"no choices", `{"choices":[]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newOpenRouterForTest(srv.URL, "sk-test").Complete(context.Background(), CompletionRequest{System: "s", User: "u"})

			var pErr *ResponseParsingError
			if !errors.As(err, &pErr) {
				t.Fatalf("expected ResponseParsingError, got %v", err)
			}
		})
	}
}
