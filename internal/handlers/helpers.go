package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/smart-todo-capture/internal/capture"
	"github.com/benvon/smart-todo-capture/internal/database"
	"github.com/benvon/smart-todo-capture/internal/recurrence"
	"github.com/benvon/smart-todo-capture/internal/services/extraction"
	"github.com/benvon/smart-todo-capture/internal/tasks"
	"github.com/benvon/smart-todo-capture/internal/validation"
	"go.uber.org/zap"
)

const maxErrorMessageLength = 200

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage bounds the length of client-facing messages
func sanitizeErrorMessage(message string) string {
	runes := []rune(message)
	if len(runes) > maxErrorMessageLength {
		return string(runes[:maxErrorMessageLength]) + "..."
	}
	return message
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// decodeJSON decodes and validates a request body into v, writing the error
// response itself. It returns false when the handler should stop.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return false
	}

	if err := validation.Validate.Struct(v); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validation.Describe(err))
		return false
	}
	return true
}

// respondServiceError maps pipeline and store errors to HTTP statuses
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		validationErr  *extraction.ValidationError
		upstreamErr    *extraction.UpstreamServiceError
		parseErr       *extraction.ResponseParseError
		persistenceErr *tasks.PersistenceError
	)

	switch {
	case errors.As(err, &validationErr):
		respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", validationErr.Error())
	case errors.Is(err, recurrence.ErrInvalidStatus):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, database.ErrNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
	case errors.Is(err, capture.ErrSessionNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Capture session not found")
	case errors.As(err, &upstreamErr):
		logger.Warn("upstream_service_error", zap.Error(err))
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "Text generation service failed")
	case errors.As(err, &parseErr):
		logger.Warn("upstream_response_unusable", zap.Error(err))
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "Text generation service returned an unusable response")
	case errors.As(err, &persistenceErr):
		logger.Error("task_persistence_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to save task")
	default:
		logger.Error("request_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Request failed")
	}
}
