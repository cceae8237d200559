package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/middleware"
	"flashcards-backend/internal/models"
)

type learningSessionService interface {
	Create(ctx context.Context, userID uuid.UUID) (*models.LearningSession, error)
	RecordResponse(ctx context.Context, userID uuid.UUID, req models.RecordResponseRequest) (*models.SessionFlashcardResponse, error)
}

type LearningSessionHandler struct {
	sessions learningSessionService
	log      logrus.FieldLogger
}

func NewLearningSessionHandler(sessions learningSessionService, log logrus.FieldLogger) *LearningSessionHandler {
	return &LearningSessionHandler{sessions: sessions, log: log}
}

// Create starts a session. The optional topic_id is accepted for clients
// that send it but is not stored.
func (h *LearningSessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength != 0 {
		var req models.CreateLearningSessionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	session, err := h.sessions.Create(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.LearningSessionCreated{SessionID: session.ID, CreatedAt: session.CreatedAt})
}

func (h *LearningSessionHandler) RecordResponse(w http.ResponseWriter, r *http.Request) {
	var req models.RecordResponseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.sessions.RecordResponse(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.SessionResponseCreated{ID: resp.ID, CreatedAt: resp.CreatedAt})
}
