package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/models"
)

const (
	SourceTextMinLength = 10
	SourceTextMaxLength = 5000
	DefaultCardCount    = 5
	MaxCardCount        = 10
)

// CompletionRequest is one chat completion with a structured output schema.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
	SchemaName  string
	Schema      map[string]interface{}
}

// CompletionClient is an LLM provider. Implementations return the raw text
// of the first choice and map failures onto the generation error types.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

var flashcardSchema = map[string]interface{}{
	"type":        "object",
	"description": "A single flashcard with front and back text.",
	"properties": map[string]interface{}{
		"front": map[string]interface{}{
			"type":        "string",
			"minLength":   1,
			"description": "The front content of the flashcard (question or term)",
		},
		"back": map[string]interface{}{
			"type":        "string",
			"minLength":   1,
			"description": "The back content of the flashcard (answer or definition)",
		},
	},
	"required":             []string{"front", "back"},
	"additionalProperties": false,
}

var flashcardsResponseSchema = map[string]interface{}{
	"type":        "object",
	"description": "A list of generated flashcards based on the source text.",
	"properties": map[string]interface{}{
		"flashcards": map[string]interface{}{
			"type":        "array",
			"minItems":    1,
			"items":       flashcardSchema,
			"description": "An array of generated flashcards",
		},
	},
	"required":             []string{"flashcards"},
	"additionalProperties": false,
}

type GenerationService struct {
	client CompletionClient
	topics TopicStore
	log    logrus.FieldLogger
}

func NewGenerationService(client CompletionClient, topics TopicStore, log logrus.FieldLogger) *GenerationService {
	if client == nil {
		client = unconfiguredClient{}
	}
	return &GenerationService{client: client, topics: topics, log: log}
}

// ValidateGenerateRequest applies the request bounds and fills in the default count.
func ValidateGenerateRequest(req *models.GenerateFlashcardsRequest) error {
	fields := make(map[string]string)

	n := utf8.RuneCountInString(req.SourceText)
	switch {
	case strings.TrimSpace(req.SourceText) == "" || n < SourceTextMinLength:
		fields["sourceText"] = "Source text must be at least 10 characters long."
	case n > SourceTextMaxLength:
		fields["sourceText"] = "Source text cannot exceed 5000 characters."
	}

	if req.Count == 0 {
		req.Count = DefaultCardCount
	}
	switch {
	case req.Count < 1:
		fields["count"] = "Must generate at least 1 flashcard."
	case req.Count > MaxCardCount:
		fields["count"] = "Cannot generate more than 10 flashcards at once."
	}

	if req.TopicID == uuid.Nil {
		fields["topicId"] = "Invalid Topic ID format."
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Generate produces exactly req.Count suggestions for a topic the user owns.
// Nothing is persisted.
func (s *GenerationService) Generate(ctx context.Context, userID uuid.UUID, req models.GenerateFlashcardsRequest) (*models.GenerateFlashcardsResponse, error) {
	if err := ValidateGenerateRequest(&req); err != nil {
		return nil, err
	}
	if _, err := ownedTopic(ctx, s.topics, userID, req.TopicID); err != nil {
		return nil, err
	}

	cards, err := s.generate(ctx, req.SourceText, req.Count)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "topic_id": req.TopicID}).Warn("flashcard generation failed")
		return nil, err
	}
	return &models.GenerateFlashcardsResponse{Flashcards: cards}, nil
}

func (s *GenerationService) generate(ctx context.Context, sourceText string, count int) ([]models.FlashcardPair, error) {
	raw, err := s.client.Complete(ctx, CompletionRequest{
		System:      buildGenerationPrompt(count),
		User:        fmt.Sprintf("Source Text:\n\"\"\"\n%s\n\"\"\"", sourceText),
		Temperature: 0.5,
		MaxTokens:   200*count + 500,
		SchemaName:  "FlashcardsResponse",
		Schema:      flashcardsResponseSchema,
	})
	if err != nil {
		return nil, err
	}
	return parseFlashcards(raw, count)
}

// GenerateAlternative asks for a reworded version of one card. The result is
// cut to the card limits and flagged when that happened.
func (s *GenerationService) GenerateAlternative(ctx context.Context, userID, topicID uuid.UUID, req models.GenerateAlternativeRequest) (*models.AlternativeFlashcard, error) {
	fields := make(map[string]string)
	for k, v := range (models.FlashcardPair{Front: req.OriginalFront, Back: req.OriginalBack}).Validate() {
		fields["original_"+k] = "original_" + v
	}
	if strings.TrimSpace(req.SourceText) == "" {
		fields["source_text"] = "Source text is required"
	} else if utf8.RuneCountInString(req.SourceText) > SourceTextMaxLength {
		fields["source_text"] = "Source text cannot exceed 5000 characters."
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if _, err := ownedTopic(ctx, s.topics, userID, topicID); err != nil {
		return nil, err
	}

	raw, err := s.client.Complete(ctx, CompletionRequest{
		System:      buildAlternativePrompt(),
		User:        fmt.Sprintf("Source Text:\n\"\"\"\n%s\n\"\"\"\n\nOriginal front: %s\nOriginal back: %s", req.SourceText, req.OriginalFront, req.OriginalBack),
		Temperature: 0.7,
		MaxTokens:   700,
		SchemaName:  "AlternativeFlashcard",
		Schema:      flashcardSchema,
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "topic_id": topicID}).Warn("alternative generation failed")
		return nil, err
	}

	pair, err := parseAlternative(raw)
	if err != nil {
		return nil, err
	}

	front, cutFront := truncateRunes(pair.Front, models.FrontMaxLength)
	back, cutBack := truncateRunes(pair.Back, models.BackMaxLength)
	return &models.AlternativeFlashcard{Front: front, Back: back, ExceedsLimit: cutFront || cutBack}, nil
}

func buildGenerationPrompt(count int) string {
	schema, _ := json.MarshalIndent(map[string]interface{}{
		"$ref": "#/definitions/FlashcardsResponse",
		"definitions": map[string]interface{}{
			"FlashcardsResponse": flashcardsResponseSchema,
		},
		"$schema": "http://json-schema.org/draft-07/schema#",
	}, "", "  ")

	return fmt.Sprintf(`You are an expert in creating concise and effective flashcards for learning. Generate exactly %d flashcards based on the provided text. Each flashcard should have a distinct 'front' (a question or term) and 'back' (the answer or definition). Ensure the flashcards accurately reflect the key information in the text. Output the result strictly as a JSON object matching the 'FlashcardsResponse' schema provided below. Do NOT include any introductory text, explanations, or markdown formatting outside the JSON structure.

Schema:
`+"```json\n%s\n```", count, schema)
}

func buildAlternativePrompt() string {
	return fmt.Sprintf(`You are an expert in creating concise and effective flashcards for learning. The user was not satisfied with the flashcard shown below. Write one alternative flashcard that tests the same idea from the source text with different wording. The front must be at most %d characters and the back at most %d characters. Output only a JSON object of the form {"front": "...", "back": "..."} with no markdown or extra text.`,
		models.FrontMaxLength, models.BackMaxLength)
}

// stripCodeFence removes a markdown fence the model may wrap around its JSON.
func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func decodeModelJSON(raw string) (interface{}, error) {
	text := stripCodeFence(raw)

	var doc interface{}
	err := json.Unmarshal([]byte(text), &doc)
	if err == nil {
		return doc, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err2 := json.Unmarshal([]byte(text[start:end+1]), &doc); err2 == nil {
			return doc, nil
		}
	}
	return nil, &ResponseParsingError{Message: "AI response is not valid JSON", Err: err}
}

func parseFlashcards(raw string, count int) ([]models.FlashcardPair, error) {
	doc, err := decodeModelJSON(raw)
	if err != nil {
		return nil, err
	}

	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, &SchemaValidationError{Issues: []SchemaIssue{{Path: "$", Message: "expected an object"}}}
	}
	items, ok := obj["flashcards"].([]interface{})
	if !ok {
		return nil, &SchemaValidationError{Issues: []SchemaIssue{{Path: "flashcards", Message: "expected an array"}}}
	}
	if len(items) == 0 {
		return nil, &SchemaValidationError{Issues: []SchemaIssue{{Path: "flashcards", Message: "must contain at least 1 item"}}}
	}

	var issues []SchemaIssue
	cards := make([]models.FlashcardPair, 0, len(items))
	for i, item := range items {
		pair, itemIssues := pairFromJSON(item, fmt.Sprintf("flashcards.%d", i))
		issues = append(issues, itemIssues...)
		cards = append(cards, pair)
	}
	if len(issues) > 0 {
		return nil, &SchemaValidationError{Issues: issues}
	}

	if len(cards) < count {
		return nil, &SchemaValidationError{Issues: []SchemaIssue{{
			Path:    "flashcards",
			Message: fmt.Sprintf("expected %d items, got %d", count, len(cards)),
		}}}
	}
	return cards[:count], nil
}

func parseAlternative(raw string) (models.FlashcardPair, error) {
	doc, err := decodeModelJSON(raw)
	if err != nil {
		return models.FlashcardPair{}, err
	}

	// Some models wrap a single card in the list shape anyway.
	if obj, ok := doc.(map[string]interface{}); ok {
		if items, ok := obj["flashcards"].([]interface{}); ok && len(items) > 0 {
			doc = items[0]
		}
	}

	pair, issues := pairFromJSON(doc, "$")
	if len(issues) > 0 {
		return models.FlashcardPair{}, &SchemaValidationError{Issues: issues}
	}
	return pair, nil
}

func pairFromJSON(v interface{}, path string) (models.FlashcardPair, []SchemaIssue) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return models.FlashcardPair{}, []SchemaIssue{{Path: path, Message: "expected an object"}}
	}

	var issues []SchemaIssue
	field := func(name string) string {
		s, ok := obj[name].(string)
		if !ok {
			issues = append(issues, SchemaIssue{Path: path + "." + name, Message: "expected a string"})
			return ""
		}
		if strings.TrimSpace(s) == "" {
			issues = append(issues, SchemaIssue{Path: path + "." + name, Message: "must not be empty"})
		}
		return strings.TrimSpace(s)
	}

	pair := models.FlashcardPair{Front: field("front"), Back: field("back")}
	return pair, issues
}

func truncateRunes(s string, max int) (string, bool) {
	if utf8.RuneCountInString(s) <= max {
		return s, false
	}
	return string([]rune(s)[:max]), true
}

type unconfiguredClient struct{}

func (unconfiguredClient) Complete(context.Context, CompletionRequest) (string, error) {
	return "", &ConfigurationError{Message: "AI provider is not configured"}
}
