package models

import "github.com/google/uuid"

// WebSocket message types
const (
	EventTopicCreated            = "topic_created"
	EventFlashcardCreated        = "flashcard_created"
	EventSessionResponseRecorded = "session_response_recorded"
	EventGenerationJobCompleted  = "generation_job_completed"
	EventGenerationJobFailed     = "generation_job_failed"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type GenerationJobEvent struct {
	JobID      uuid.UUID       `json:"job_id"`
	TopicID    uuid.UUID       `json:"topic_id"`
	Flashcards []FlashcardPair `json:"flashcards,omitempty"`
	Error      *JobError       `json:"error,omitempty"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// SourceText is text extracted from an upload or a video transcript.
type SourceText struct {
	SourceText string `json:"source_text"`
	Characters int    `json:"characters"`
	Truncated  bool   `json:"truncated"`
	Title      string `json:"title,omitempty"`
}
