package models

import (
	"time"

	"github.com/google/uuid"
)

type GenerationJobStatus string

const (
	JobQueued     GenerationJobStatus = "queued"
	JobProcessing GenerationJobStatus = "processing"
	JobCompleted  GenerationJobStatus = "completed"
	JobFailed     GenerationJobStatus = "failed"
)

// GenerationJob is an asynchronous generate-flashcards request.
type GenerationJob struct {
	ID         uuid.UUID           `json:"id"`
	UserID     uuid.UUID           `json:"user_id"`
	TopicID    uuid.UUID           `json:"topic_id"`
	Status     GenerationJobStatus `json:"status"`
	SourceText string              `json:"source_text"`
	Count      int                 `json:"count"`
	Attempts   int                 `json:"attempts"`
	Flashcards []FlashcardPair     `json:"flashcards,omitempty"`
	Error      *JobError           `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
