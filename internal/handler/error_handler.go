package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/outflowhq/outflow-backend/internal/models"
)

// handleError maps service errors to HTTP responses
func handleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		respondError(w, mapErrorCodeToHTTPStatus(appErr.Code), appErr.Code, appErr.Message)
		return
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())

	case errors.Is(err, models.ErrConflict):
		respondError(w, http.StatusConflict, "CONFLICT", err.Error())

	default:
		// Log internal errors but don't expose details to the client.
		logger.Error("internal server error",
			slog.String("error", err.Error()),
		)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	}
}

// mapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func mapErrorCodeToHTTPStatus(code string) int {
	switch code {
	case "INVALID_INPUT", "NO_ELIGIBLE_CONTACTS", "NO_ACTIVE_INTEGRATION",
		"ALREADY_RUNNING", "ALREADY_COMPLETED", "NOT_RUNNING", "NOT_PAUSED":
		return http.StatusBadRequest
	case "NOT_FOUND":
		return http.StatusNotFound
	case "CAMPAIGN_BUSY":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
