package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/middleware"
	"flashcards-backend/internal/models"
)

type topicService interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.TopicSummary, error)
	Create(ctx context.Context, userID uuid.UUID, name string) (*models.Topic, error)
	GetDetail(ctx context.Context, userID, topicID uuid.UUID) (*models.TopicDetail, error)
	ListFlashcards(ctx context.Context, userID, topicID uuid.UUID) ([]models.Flashcard, error)
	Rename(ctx context.Context, userID, topicID uuid.UUID, name string) (*models.Topic, error)
	Delete(ctx context.Context, userID, topicID uuid.UUID) error
	DeleteFlashcard(ctx context.Context, userID, topicID, flashcardID uuid.UUID) error
}

type TopicHandler struct {
	topics topicService
	log    logrus.FieldLogger
}

func NewTopicHandler(topics topicService, log logrus.FieldLogger) *TopicHandler {
	return &TopicHandler{topics: topics, log: log}
}

func (h *TopicHandler) List(w http.ResponseWriter, r *http.Request) {
	topics, err := h.topics.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	if topics == nil {
		topics = []models.TopicSummary{}
	}
	writeJSON(w, http.StatusOK, topics)
}

func (h *TopicHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.TopicRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	topic, err := h.topics.Create(r.Context(), middleware.GetUserID(r.Context()), req.Name)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, topic)
}

func (h *TopicHandler) Get(w http.ResponseWriter, r *http.Request) {
	topicID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.topics.GetDetail(r.Context(), middleware.GetUserID(r.Context()), topicID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *TopicHandler) ListFlashcards(w http.ResponseWriter, r *http.Request) {
	topicID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	cards, err := h.topics.ListFlashcards(r.Context(), middleware.GetUserID(r.Context()), topicID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *TopicHandler) Rename(w http.ResponseWriter, r *http.Request) {
	topicID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	var req models.TopicRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	topic, err := h.topics.Rename(r.Context(), middleware.GetUserID(r.Context()), topicID, req.Name)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

func (h *TopicHandler) Delete(w http.ResponseWriter, r *http.Request) {
	topicID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.topics.Delete(r.Context(), middleware.GetUserID(r.Context()), topicID); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TopicHandler) DeleteFlashcard(w http.ResponseWriter, r *http.Request) {
	topicID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	flashcardID, ok := urlUUID(w, r, "flashcardId")
	if !ok {
		return
	}

	if err := h.topics.DeleteFlashcard(r.Context(), middleware.GetUserID(r.Context()), topicID, flashcardID); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
