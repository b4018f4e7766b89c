package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/outflowhq/outflow-backend/internal/channel"
	"github.com/outflowhq/outflow-backend/internal/models"
	"github.com/outflowhq/outflow-backend/internal/repository"
	"github.com/outflowhq/outflow-backend/internal/scheduler"
)

// SendHandler executes message-send jobs: it re-verifies persisted state,
// resolves the tenant's credential, dispatches through the channel adapter
// and writes the terminal result back. Re-checks make duplicate job
// executions no-ops.
type SendHandler struct {
	messageRepo    repository.MessageRepository
	campaignRepo   repository.CampaignRepository
	contactRepo    repository.ContactRepository
	credentialRepo repository.CredentialRepository
	adapters       channel.Registry
	logger         *slog.Logger
}

// NewSendHandler creates a message-send job handler
func NewSendHandler(
	messageRepo repository.MessageRepository,
	campaignRepo repository.CampaignRepository,
	contactRepo repository.ContactRepository,
	credentialRepo repository.CredentialRepository,
	adapters channel.Registry,
	logger *slog.Logger,
) *SendHandler {
	return &SendHandler{
		messageRepo:    messageRepo,
		campaignRepo:   campaignRepo,
		contactRepo:    contactRepo,
		credentialRepo: credentialRepo,
		adapters:       adapters,
		logger:         logger,
	}
}

// Handle processes one message-send job
func (h *SendHandler) Handle(ctx context.Context, job *scheduler.Job) error {
	var payload models.SendJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal send job: %w", err)
	}

	message, err := h.messageRepo.GetByID(ctx, payload.MessageID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Re-materialized or deleted campaign; the job is stale.
			h.logger.Warn("send skipped, message not found",
				slog.Int64("message_id", payload.MessageID),
			)
			return nil
		}
		return err
	}

	if message.Status != models.MessageStatusQueued {
		h.logger.Info("send skipped, message not queued",
			slog.Int64("message_id", message.ID),
			slog.String("status", message.Status),
		)
		return nil
	}

	campaign, err := h.campaignRepo.GetByID(ctx, payload.CampaignID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			h.logger.Warn("send skipped, campaign not found",
				slog.Int64("campaign_id", payload.CampaignID),
			)
			return nil
		}
		return err
	}

	if campaign.Status != models.CampaignStatusRunning {
		// Paused or completed after the batch was scheduled; the message
		// stays queued and a later batch run picks it up again.
		h.logger.Info("send skipped, campaign not running",
			slog.Int64("message_id", message.ID),
			slog.Int64("campaign_id", campaign.ID),
			slog.String("status", campaign.Status),
		)
		return nil
	}

	contact, err := h.contactRepo.GetByID(ctx, payload.ContactID)
	if err != nil {
		return h.fail(ctx, message, fmt.Sprintf("contact lookup failed: %v", err))
	}

	address, ok := contact.AddressFor(payload.Channel)
	if !ok {
		return h.fail(ctx, message, fmt.Sprintf("contact %d has no %s address", contact.ID, payload.Channel))
	}

	cred, err := h.credentialRepo.GetActive(ctx, payload.OwnerID, payload.Channel)
	if err != nil {
		return h.fail(ctx, message, fmt.Sprintf("no active %s integration", payload.Channel))
	}

	adapter, ok := h.adapters.Get(payload.Channel)
	if !ok {
		return h.fail(ctx, message, fmt.Sprintf("no dispatch adapter for channel %s", payload.Channel))
	}

	providerID, sendErr := adapter.Send(ctx, cred, address, payload.Content)
	if sendErr != nil {
		if job.AttemptsRemaining() > 0 {
			// Transient until proven otherwise; the scheduler retries
			// with the queue's backoff policy.
			h.logger.Warn("send failed, scheduler will retry",
				slog.Int64("message_id", message.ID),
				slog.Int("attempts_remaining", job.AttemptsRemaining()),
				slog.String("error", sendErr.Error()),
			)
			return sendErr
		}
		return h.fail(ctx, message, sendErr.Error())
	}

	if _, err := h.messageRepo.MarkSent(ctx, message.ID, providerID); err != nil {
		return err
	}

	h.logger.Info("message sent",
		slog.Int64("message_id", message.ID),
		slog.Int64("campaign_id", campaign.ID),
		slog.String("channel", payload.Channel),
		slog.String("provider_message_id", providerID),
	)

	h.completeIfDone(ctx, campaign.ID)
	return nil
}

// fail records a terminal failure. Reported, not fatal: the job itself
// succeeds so the scheduler does not retry.
func (h *SendHandler) fail(ctx context.Context, message *models.Message, errText string) error {
	h.logger.Error("message permanently failed",
		slog.Int64("message_id", message.ID),
		slog.Int64("campaign_id", message.CampaignID),
		slog.String("error", errText),
	)

	if _, err := h.messageRepo.MarkFailed(ctx, message.ID, errText); err != nil {
		return err
	}

	h.completeIfDone(ctx, message.CampaignID)
	return nil
}

// completeIfDone flips the campaign to completed once nothing remains
// pending or queued. Guarded transition, so racing callers are harmless.
func (h *SendHandler) completeIfDone(ctx context.Context, campaignID int64) {
	stats, err := h.messageRepo.CountByStatus(ctx, campaignID)
	if err != nil {
		h.logger.Error("failed to check campaign completion",
			slog.Int64("campaign_id", campaignID),
			slog.String("error", err.Error()),
		)
		return
	}
	if stats.Open() {
		return
	}

	completed, err := h.campaignRepo.TransitionStatus(ctx, campaignID,
		models.CampaignStatusRunning, models.CampaignStatusCompleted)
	if err != nil {
		h.logger.Error("failed to complete campaign",
			slog.Int64("campaign_id", campaignID),
			slog.String("error", err.Error()),
		)
		return
	}
	if completed {
		h.logger.Info("campaign completed", slog.Int64("campaign_id", campaignID))
	}
}
