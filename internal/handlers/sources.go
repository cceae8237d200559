package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/models"
	"flashcards-backend/internal/services"
)

type sourceService interface {
	ExtractFile(filename string, data []byte) (*models.SourceText, error)
	FromYouTube(ctx context.Context, url string) (*models.SourceText, error)
}

type SourceHandler struct {
	sources sourceService
	log     logrus.FieldLogger
}

func NewSourceHandler(sources sourceService, log logrus.FieldLogger) *SourceHandler {
	return &SourceHandler{sources: sources, log: log}
}

func (h *SourceHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxUploadBytes+1024*1024)
	if err := r.ParseMultipartForm(services.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResp(services.CodeValidation, "File is too large (max 10 MB)", r))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp(services.CodeValidation, "Expected a multipart form with a file field", r))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields(services.CodeValidation, "Validation failed",
			map[string]string{"file": "file is required"}, r))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, services.MaxUploadBytes+1))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	if len(data) > services.MaxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp(services.CodeValidation, "File is too large (max 10 MB)", r))
		return
	}

	out, err := h.sources.ExtractFile(header.Filename, data)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SourceHandler) YouTube(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := h.sources.FromYouTube(r.Context(), req.URL)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
