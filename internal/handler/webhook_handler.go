package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/outflowhq/outflow-backend/internal/models"
	"github.com/outflowhq/outflow-backend/internal/scheduler"
)

// WebhookHandler accepts normalized provider callbacks and enqueues them
// as webhook jobs for asynchronous reconciliation. Provider-specific
// payload normalization happens upstream.
type WebhookHandler struct {
	jobs   scheduler.Scheduler
	logger *slog.Logger
}

// NewWebhookHandler creates a webhook ingress handler
func NewWebhookHandler(jobs scheduler.Scheduler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{jobs: jobs, logger: logger}
}

// webhookRequest is the normalized callback body
type webhookRequest struct {
	EventType         string `json:"event_type"`
	ProviderMessageID string `json:"provider_message_id"`
	Text              string `json:"text,omitempty"`
}

// Ingest handles POST /webhooks/{channel}
func (h *WebhookHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	if !models.IsValidChannel(channel) {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "unknown channel")
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}
	if req.EventType == "" || req.ProviderMessageID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "event_type and provider_message_id are required")
		return
	}

	job := &models.WebhookJob{
		Channel:           channel,
		EventType:         req.EventType,
		ProviderMessageID: req.ProviderMessageID,
		Text:              req.Text,
	}

	if err := h.jobs.Enqueue(r.Context(), models.QueueWebhook, job, 0, ""); err != nil {
		h.logger.Error("failed to enqueue webhook job",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to accept webhook")
		return
	}

	respondAccepted(w, map[string]string{"status": "accepted"})
}
