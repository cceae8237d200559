package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/middleware"
	"flashcards-backend/internal/models"
)

type generationService interface {
	Generate(ctx context.Context, userID uuid.UUID, req models.GenerateFlashcardsRequest) (*models.GenerateFlashcardsResponse, error)
	GenerateAlternative(ctx context.Context, userID, topicID uuid.UUID, req models.GenerateAlternativeRequest) (*models.AlternativeFlashcard, error)
}

type generationJobService interface {
	Submit(ctx context.Context, userID uuid.UUID, req models.GenerateFlashcardsRequest) (*models.GenerationJob, error)
	Get(ctx context.Context, userID, jobID uuid.UUID) (*models.GenerationJob, error)
}

type GenerationHandler struct {
	generation generationService
	jobs       generationJobService
	log        logrus.FieldLogger
}

func NewGenerationHandler(generation generationService, jobs generationJobService, log logrus.FieldLogger) *GenerationHandler {
	return &GenerationHandler{generation: generation, jobs: jobs, log: log}
}

// Generate returns suggestions synchronously. Nothing is stored.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateFlashcardsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.generation.Generate(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *GenerationHandler) GenerateAlternative(w http.ResponseWriter, r *http.Request) {
	topicID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	var req models.GenerateAlternativeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	alt, err := h.generation.GenerateAlternative(r.Context(), middleware.GetUserID(r.Context()), topicID, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, alt)
}

func (h *GenerationHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateFlashcardsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	job, err := h.jobs.Submit(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (h *GenerationHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	job, err := h.jobs.Get(r.Context(), middleware.GetUserID(r.Context()), jobID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
