package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	FrontMaxLength = 100
	BackMaxLength  = 500

	IdempotencyTokenMaxLength = 64
)

// FlashcardSource records how a card entered the store.
type FlashcardSource string

const (
	SourceManual      FlashcardSource = "manual"
	SourceAIGenerated FlashcardSource = "ai-generated"
	SourceAIEdited    FlashcardSource = "ai-edited"
)

func (s FlashcardSource) Valid() bool {
	switch s {
	case SourceManual, SourceAIGenerated, SourceAIEdited:
		return true
	}
	return false
}

type Flashcard struct {
	ID        uuid.UUID       `json:"id"`
	TopicID   uuid.UUID       `json:"topic_id"`
	Front     string          `json:"front"`
	Back      string          `json:"back"`
	Source    FlashcardSource `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	IdempotencyToken *string `json:"-"`
}

// RankedFlashcard is a card plus the caller's most recent rating of it.
type RankedFlashcard struct {
	Flashcard
	LastResponse    *Rating
	LastRespondedAt *time.Time
	ResponseCount   int
}

// FlashcardPair is the front/back content produced by generation or typed by a user.
type FlashcardPair struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// Validate checks the length bounds. Limits are counted in code points.
func (p FlashcardPair) Validate() map[string]string {
	fields := make(map[string]string)
	checkLength(fields, "front", p.Front, FrontMaxLength)
	checkLength(fields, "back", p.Back, BackMaxLength)
	return fields
}

func checkLength(fields map[string]string, name, value string, max int) {
	if strings.TrimSpace(value) == "" {
		fields[name] = name + " is required"
		return
	}
	if n := utf8.RuneCountInString(value); n > max {
		fields[name] = fmt.Sprintf("%s must be at most %d characters", name, max)
	}
}

type AcceptFlashcardRequest struct {
	Front            string `json:"front"`
	Back             string `json:"back"`
	IdempotencyToken string `json:"idempotency_token,omitempty"`
}

type GenerateFlashcardsRequest struct {
	SourceText string    `json:"sourceText"`
	Count      int       `json:"count,omitempty"`
	TopicID    uuid.UUID `json:"topicId"`
}

type GenerateFlashcardsResponse struct {
	Flashcards []FlashcardPair `json:"flashcards"`
}

type GenerateAlternativeRequest struct {
	SourceText    string `json:"source_text"`
	OriginalFront string `json:"original_front"`
	OriginalBack  string `json:"original_back"`
}

// AlternativeFlashcard is a regenerated variant of one suggestion. ExceedsLimit
// reports that the model overshot a length bound and the text was cut.
type AlternativeFlashcard struct {
	Front        string `json:"front"`
	Back         string `json:"back"`
	ExceedsLimit bool   `json:"exceeds_limit"`
}
