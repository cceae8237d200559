package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/middleware"
	"flashcards-backend/internal/models"
)

type acceptanceService interface {
	Create(ctx context.Context, userID, topicID uuid.UUID, req models.AcceptFlashcardRequest, source models.FlashcardSource) (*models.Flashcard, bool, error)
}

// FlashcardHandler exposes one entry point per flashcard source. The source
// is decided by the route, never by the request body.
type FlashcardHandler struct {
	acceptance acceptanceService
	log        logrus.FieldLogger
}

func NewFlashcardHandler(acceptance acceptanceService, log logrus.FieldLogger) *FlashcardHandler {
	return &FlashcardHandler{acceptance: acceptance, log: log}
}

func (h *FlashcardHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, models.SourceAIGenerated)
}

func (h *FlashcardHandler) AcceptEdited(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, models.SourceAIEdited)
}

func (h *FlashcardHandler) CreateManual(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, models.SourceManual)
}

func (h *FlashcardHandler) create(w http.ResponseWriter, r *http.Request, source models.FlashcardSource) {
	topicID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	var req models.AcceptFlashcardRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	card, created, err := h.acceptance.Create(r.Context(), middleware.GetUserID(r.Context()), topicID, req, source)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, status, card)
}
