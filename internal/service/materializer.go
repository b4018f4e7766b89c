package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/outflowhq/outflow-backend/internal/models"
	"github.com/outflowhq/outflow-backend/internal/repository"
)

// Materializer expands a campaign and its eligible audience into one
// pending message row per contact. Stale pending/queued rows from an
// earlier run are purged in the same transaction as the insert, so at most
// one open message exists per (campaign, contact) pair.
type Materializer struct {
	messageRepo        repository.MessageRepository
	templates          TemplateService
	unsubscribeBaseURL string
	logger             *slog.Logger
}

// NewMaterializer creates a new materializer
func NewMaterializer(
	messageRepo repository.MessageRepository,
	templates TemplateService,
	unsubscribeBaseURL string,
	logger *slog.Logger,
) *Materializer {
	return &Materializer{
		messageRepo:        messageRepo,
		templates:          templates,
		unsubscribeBaseURL: unsubscribeBaseURL,
		logger:             logger,
	}
}

// Materialize renders and inserts pending messages for every contact,
// returning how many rows were created.
func (m *Materializer) Materialize(ctx context.Context, campaign *models.Campaign, contacts []*models.Contact) (int, error) {
	messages := make([]*models.Message, 0, len(contacts))
	for _, contact := range contacts {
		unsubscribeURL := fmt.Sprintf("%s/%d", m.unsubscribeBaseURL, contact.ID)
		messages = append(messages, &models.Message{
			CampaignID: campaign.ID,
			ContactID:  contact.ID,
			Channel:    campaign.Channel,
			Content:    m.templates.Render(campaign.Template, contact, unsubscribeURL),
			Status:     models.MessageStatusPending,
		})
	}

	if err := m.messageRepo.Rematerialize(ctx, campaign.ID, messages); err != nil {
		return 0, fmt.Errorf("failed to materialize messages: %w", err)
	}

	m.logger.Info("campaign materialized",
		slog.Int64("campaign_id", campaign.ID),
		slog.Int("messages", len(messages)),
	)

	return len(messages), nil
}
