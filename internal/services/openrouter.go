package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// OpenRouterClient talks to an OpenAI-compatible chat completions endpoint.
type OpenRouterClient struct {
	apiKey     string
	model      string
	baseURL    string
	referer    string
	httpClient *http.Client
	rateChan   chan struct{}
	log        logrus.FieldLogger
}

type OpenRouterOptions struct {
	APIKey             string
	Model              string
	BaseURL            string
	Referer            string
	Timeout            time.Duration
	ConcurrentRequests int
}

func NewOpenRouterClient(opts OpenRouterOptions, log logrus.FieldLogger) *OpenRouterClient {
	if opts.ConcurrentRequests <= 0 {
		opts.ConcurrentRequests = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	// Token bucket for concurrent calls
	rateChan := make(chan struct{}, opts.ConcurrentRequests)
	for i := 0; i < opts.ConcurrentRequests; i++ {
		rateChan <- struct{}{}
	}

	return &OpenRouterClient{
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      opts.Model,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		referer:    opts.Referer,
		httpClient: &http.Client{Timeout: opts.Timeout},
		rateChan:   rateChan,
		log:        log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string                 `json:"model"`
	Messages       []chatMessage          `json:"messages"`
	Temperature    float32                `json:"temperature"`
	MaxTokens      int                    `json:"max_tokens,omitempty"`
	ResponseFormat map[string]interface{} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error *UpstreamErrorDetails `json:"error"`
}

func (c *OpenRouterClient) acquireRate(ctx context.Context) error {
	select {
	case <-c.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *OpenRouterClient) releaseRate() {
	c.rateChan <- struct{}{}
}

func (c *OpenRouterClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.apiKey == "" {
		return "", &ConfigurationError{Message: "OPENROUTER_API_KEY is not set"}
	}

	if err := c.acquireRate(ctx); err != nil {
		return "", &NetworkError{Message: "timed out waiting for an AI request slot", Err: err}
	}
	defer c.releaseRate()

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.Schema != nil {
		body.ResponseFormat = map[string]interface{}{
			"type": "json_schema",
			"json_schema": map[string]interface{}{
				"name":   req.SchemaName,
				"strict": true,
				"schema": req.Schema,
			},
		}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", &buf)
	if err != nil {
		return "", &ConfigurationError{Message: fmt.Sprintf("invalid OpenRouter base URL: %v", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.referer)
	}
	httpReq.Header.Set("X-Title", "Flashcards")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &NetworkError{Message: "failed to reach AI service", Err: err}
	}
	raw, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return "", &NetworkError{Message: "failed to read AI service response", Err: readErr}
	}

	entry := c.log.WithFields(logrus.Fields{
		"model":    c.model,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody chatErrorResponse
		if json.Unmarshal(raw, &errBody) != nil || errBody.Error == nil {
			errBody.Error = &UpstreamErrorDetails{Message: strings.TrimSpace(string(raw))}
		}
		entry.WithField("upstream_message", errBody.Error.Message).Warn("AI service returned an error")
		return "", NewUpstreamAPIError(resp.StatusCode, errBody.Error)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &ResponseParsingError{Message: "AI service response is not valid JSON", Err: err}
	}
	if len(out.Choices) == 0 {
		return "", &ResponseParsingError{Message: "AI service response has no choices", Err: errors.New("empty choices")}
	}

	choice := out.Choices[0]
	if choice.FinishReason != "" && choice.FinishReason != "stop" {
		entry.WithField("finish_reason", choice.FinishReason).Warn("AI completion did not stop normally")
	}
	entry.Debug("AI completion finished")

	return choice.Message.Content, nil
}
