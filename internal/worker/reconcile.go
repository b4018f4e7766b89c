package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/outflowhq/outflow-backend/internal/models"
	"github.com/outflowhq/outflow-backend/internal/repository"
	"github.com/outflowhq/outflow-backend/internal/scheduler"
)

// optOutKeywords mark an inbound reply as an unsubscribe request.
var optOutKeywords = []string{"stop", "unsubscribe", "opt out", "opt-out", "cancel"}

// ReconcileHandler consumes webhook jobs carrying provider delivery
// receipts and inbound replies, updating message and contact state.
// Callbacks may arrive after the originating campaign completed or was
// deleted; a missing message row is logged and dropped.
type ReconcileHandler struct {
	messageRepo repository.MessageRepository
	contactRepo repository.ContactRepository
	logger      *slog.Logger
}

// NewReconcileHandler creates a webhook job handler
func NewReconcileHandler(
	messageRepo repository.MessageRepository,
	contactRepo repository.ContactRepository,
	logger *slog.Logger,
) *ReconcileHandler {
	return &ReconcileHandler{
		messageRepo: messageRepo,
		contactRepo: contactRepo,
		logger:      logger,
	}
}

// Handle processes one webhook job
func (h *ReconcileHandler) Handle(ctx context.Context, job *scheduler.Job) error {
	var payload models.WebhookJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal webhook job: %w", err)
	}

	message, err := h.messageRepo.GetByProviderID(ctx, payload.ProviderMessageID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			h.logger.Warn("webhook for unknown message, dropping",
				slog.String("channel", payload.Channel),
				slog.String("event_type", payload.EventType),
				slog.String("provider_message_id", payload.ProviderMessageID),
			)
			return nil
		}
		return err
	}

	switch payload.EventType {
	case models.WebhookEventDelivery:
		return h.recordDelivery(ctx, message)

	case models.WebhookEventReply:
		return h.recordReply(ctx, message, payload.Text)

	default:
		h.logger.Warn("unknown webhook event type, dropping",
			slog.String("event_type", payload.EventType),
		)
		return nil
	}
}

func (h *ReconcileHandler) recordDelivery(ctx context.Context, message *models.Message) error {
	delivered, err := h.messageRepo.MarkDelivered(ctx, message.ID)
	if err != nil {
		return err
	}

	if !delivered {
		// Duplicate receipt or out-of-order callback; already terminal.
		h.logger.Debug("delivery receipt ignored",
			slog.Int64("message_id", message.ID),
			slog.String("status", message.Status),
		)
		return nil
	}

	h.logger.Info("message delivered", slog.Int64("message_id", message.ID))
	return nil
}

func (h *ReconcileHandler) recordReply(ctx context.Context, message *models.Message, text string) error {
	if !isOptOut(text) {
		h.logger.Debug("inbound reply without opt-out intent, dropping",
			slog.Int64("message_id", message.ID),
		)
		return nil
	}

	if err := h.contactRepo.Unsubscribe(ctx, message.ContactID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			h.logger.Warn("opt-out for unknown contact, dropping",
				slog.Int64("contact_id", message.ContactID),
			)
			return nil
		}
		return err
	}

	h.logger.Info("contact unsubscribed via reply",
		slog.Int64("contact_id", message.ContactID),
		slog.Int64("message_id", message.ID),
	)
	return nil
}

func isOptOut(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, keyword := range optOutKeywords {
		if strings.Contains(normalized, keyword) {
			return true
		}
	}
	return false
}
