package models

import (
	"time"

	"github.com/google/uuid"
)

// Rating is the user's self-assessment of recall for one card.
type Rating string

const (
	RatingAgain Rating = "Again"
	RatingHard  Rating = "Hard"
	RatingEasy  Rating = "Easy"
)

func (r Rating) Valid() bool {
	switch r {
	case RatingAgain, RatingHard, RatingEasy:
		return true
	}
	return false
}

type LearningSession struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionFlashcardResponse struct {
	ID                uuid.UUID `json:"id"`
	LearningSessionID uuid.UUID `json:"learning_session_id"`
	FlashcardID       uuid.UUID `json:"flashcard_id"`
	UserResponse      Rating    `json:"user_response"`
	CreatedAt         time.Time `json:"created_at"`
}

type CreateLearningSessionRequest struct {
	TopicID *uuid.UUID `json:"topic_id,omitempty"`
}

type LearningSessionCreated struct {
	SessionID uuid.UUID `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

type RecordResponseRequest struct {
	SessionID    uuid.UUID `json:"session_id"`
	FlashcardID  uuid.UUID `json:"flashcard_id"`
	UserResponse Rating    `json:"user_response"`
}

type SessionResponseCreated struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
