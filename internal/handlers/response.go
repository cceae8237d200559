package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/middleware"
	"flashcards-backend/internal/models"
	"flashcards-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp(services.CodeValidation, "Invalid request body", r))
		return false
	}
	return true
}

// urlUUID parses a chi URL parameter, answering 400 when it is not a UUID.
func urlUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields(services.CodeValidation, "Invalid ID",
			map[string]string{name: "must be a UUID"}, r))
		return uuid.Nil, false
	}
	return id, true
}

func handleServiceError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	switch e := err.(type) {
	case *services.ValidationError:
		writeJSON(w, http.StatusBadRequest, errorRespWithFields(services.CodeValidation, "Validation failed", e.Fields, r))
	case *services.ConflictError:
		writeJSON(w, http.StatusConflict, errorResp(services.CodeConflict, e.Message, r))
	case *services.NotFoundError:
		writeJSON(w, http.StatusNotFound, errorResp(services.CodeNotFound, e.Message, r))
	case *services.UnauthorizedError:
		writeJSON(w, http.StatusUnauthorized, errorResp(services.CodeUnauthorized, e.Message, r))
	case *services.ForbiddenError:
		writeJSON(w, http.StatusForbidden, errorResp(services.CodeForbidden, e.Message, r))
	case *services.RateLimitError:
		writeJSON(w, http.StatusTooManyRequests, errorResp(services.CodeRateLimited, e.Message, r))
	case *services.ConfigurationError:
		requestLog(log, r).WithError(err).Error("AI provider misconfigured")
		writeJSON(w, http.StatusInternalServerError, errorResp(services.CodeAIConfiguration, "AI service is not configured", r))
	case *services.NetworkError:
		writeJSON(w, http.StatusServiceUnavailable, errorResp(services.CodeAINetwork, "AI service could not be reached, please try again", r))
	case *services.UpstreamAPIError:
		writeJSON(w, upstreamHTTPStatus(e.StatusCode), errorResp(services.CodeAIUpstream, e.Message, r))
	case *services.ResponseParsingError:
		writeJSON(w, http.StatusBadGateway, errorResp(services.CodeAIResponse, "AI service returned an unreadable response", r))
	case *services.SchemaValidationError:
		writeJSON(w, http.StatusBadGateway, errorRespWithFields(services.CodeAISchema, "AI service returned flashcards in an unexpected format", e.Fields(), r))
	case *services.PersistenceError:
		requestLog(log, r).WithError(err).Error("store operation failed")
		writeJSON(w, http.StatusInternalServerError, errorResp(services.CodePersistence, "Could not save or load data, please try again", r))
	default:
		requestLog(log, r).WithError(err).Error("unhandled error")
		writeJSON(w, http.StatusInternalServerError, errorResp(services.CodeInternal, "An unexpected error occurred", r))
	}
}

func upstreamHTTPStatus(status int) int {
	switch {
	case status == http.StatusTooManyRequests:
		return http.StatusTooManyRequests
	case status >= 500:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func requestLog(log logrus.FieldLogger, r *http.Request) logrus.FieldLogger {
	return log.WithFields(logrus.Fields{
		"request_id": r.Header.Get(middleware.RequestIDHeader),
		"method":     r.Method,
		"path":       r.URL.Path,
	})
}
