package models

import (
	"time"

	"github.com/google/uuid"
)

const TopicNameMaxLength = 100

type Topic struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TopicSummary is a list row with the number of cards in the topic.
type TopicSummary struct {
	Topic
	FlashcardCount int `json:"flashcard_count"`
}

// TopicDetail is a topic with its flashcards in study order.
type TopicDetail struct {
	Topic
	Flashcards []Flashcard `json:"flashcards"`
}

type TopicRequest struct {
	Name string `json:"name"`
}
