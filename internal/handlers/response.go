package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/checkfox/go_reachout/internal/logger"
	"github.com/checkfox/go_reachout/internal/models"
)

const maxBodyBytes = 1 << 20

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success       bool   `json:"success"`
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// correlationID returns the request's correlation id, if the middleware set one
func correlationID(ctx context.Context) string {
	id, _ := ctx.Value(logger.CorrelationIDKey).(string)
	return id
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, ctx context.Context, statusCode int, data interface{}) {
	if id := correlationID(ctx); id != "" {
		w.Header().Set("X-Correlation-ID", id)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.LogError(ctx, "Failed to encode response", err)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, ctx context.Context, statusCode int, message string) {
	respondJSON(w, ctx, statusCode, ErrorResponse{
		Error:         message,
		CorrelationID: correlationID(ctx),
	})
}

// statusForError maps domain errors onto HTTP status codes
func statusForError(err error) int {
	var verr *models.ValidationError
	switch {
	case models.IsNotFound(err):
		return http.StatusNotFound
	case models.IsVersionConflict(err):
		return http.StatusConflict
	case errors.As(err, &verr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError logs err and answers with the matching status; internal details are not exposed
func respondDomainError(w http.ResponseWriter, ctx context.Context, msg string, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logger.LogError(ctx, msg, err)
		respondError(w, ctx, status, "internal server error")
		return
	}
	logger.Warn(ctx, msg, "error", err.Error(), "status", status)
	respondError(w, ctx, status, err.Error())
}

// decodeJSON reads a JSON request body into v; an empty body leaves v untouched
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
