package models

import "github.com/google/uuid"

// FlashcardSuggestion is an unsaved AI candidate held by the client.
type FlashcardSuggestion struct {
	ID            uuid.UUID `json:"id"`
	Front         string    `json:"front"`
	Back          string    `json:"back"`
	IsEditing     bool      `json:"is_editing"`
	OriginalFront string    `json:"original_front"`
	OriginalBack  string    `json:"original_back"`

	// IdempotencyToken is sent with accept calls so a retried request
	// cannot create a second card.
	IdempotencyToken string `json:"idempotency_token"`
	// Accepted marks a suggestion that is stored and waiting to be removed.
	Accepted bool `json:"accepted"`
}
