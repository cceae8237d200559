package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GeminiClient is the Gemini completion provider.
type GeminiClient struct {
	client   *genai.Client
	model    string
	rateChan chan struct{} // Token bucket
	log      logrus.FieldLogger
}

func NewGeminiClient(ctx context.Context, apiKey, model string, concurrentReqs int, log logrus.FieldLogger) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &ConfigurationError{Message: "GEMINI_API_KEY is not set"}
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiClient{
		client:   client,
		model:    model,
		rateChan: rateChan,
		log:      log,
	}, nil
}

func (c *GeminiClient) Close() {
	c.client.Close()
}

// acquireRate blocks until a rate slot is available
func (c *GeminiClient) acquireRate(ctx context.Context) error {
	select {
	case <-c.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *GeminiClient) releaseRate() {
	c.rateChan <- struct{}{}
}

func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := c.acquireRate(ctx); err != nil {
		return "", &NetworkError{Message: "timed out waiting for an AI request slot", Err: err}
	}
	defer c.releaseRate()

	// Per-call model so temperature and token limits do not leak between requests.
	model := c.client.GenerativeModel(c.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.Schema != nil {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		classified := classifyGeminiError(err)
		c.log.WithError(err).WithField("model", c.model).Warn("Gemini request failed")
		return "", classified
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			c.log.WithFields(logrus.Fields{
				"candidate":     i,
				"finish_reason": cand.FinishReason.String(),
				"token_count":   cand.TokenCount,
			}).Warn("Gemini stopped early")
		}
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return "", &ResponseParsingError{Message: "AI response is empty", Err: errors.New("no text parts")}
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

// classifyGeminiError maps REST and gRPC failures onto the generation error types.
func classifyGeminiError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return NewUpstreamAPIError(apiErr.Code, &UpstreamErrorDetails{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		})
	}

	if st, ok := status.FromError(err); ok {
		httpStatus := 0
		switch st.Code() {
		case codes.Unauthenticated, codes.PermissionDenied:
			httpStatus = http.StatusUnauthorized
		case codes.ResourceExhausted:
			httpStatus = http.StatusTooManyRequests
		case codes.Unavailable:
			httpStatus = http.StatusServiceUnavailable
		case codes.Internal:
			httpStatus = http.StatusInternalServerError
		case codes.InvalidArgument, codes.FailedPrecondition:
			httpStatus = http.StatusBadRequest
		case codes.NotFound:
			httpStatus = http.StatusNotFound
		}
		if httpStatus != 0 {
			return NewUpstreamAPIError(httpStatus, &UpstreamErrorDetails{
				Code:    st.Code().String(),
				Message: st.Message(),
			})
		}
	}

	return &NetworkError{Message: "failed to reach AI service", Err: err}
}
