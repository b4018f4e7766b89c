package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/outflowhq/outflow-backend/internal/models"
	"github.com/outflowhq/outflow-backend/internal/repository"
	"github.com/outflowhq/outflow-backend/internal/scheduler"
)

// CampaignService owns the campaign state machine and drives the
// materializer and the compliance batcher.
type CampaignService interface {
	Create(ctx context.Context, ownerID int64, req *CreateCampaignRequest) (*models.Campaign, error)
	GetByID(ctx context.Context, ownerID, id int64) (*CampaignWithStats, error)
	List(ctx context.Context, ownerID int64, filter models.CampaignFilter) (*CampaignListResult, error)
	Update(ctx context.Context, ownerID, id int64, req *CreateCampaignRequest) (*models.Campaign, error)
	Delete(ctx context.Context, ownerID, id int64) error
	Start(ctx context.Context, ownerID, id int64) (*StartCampaignResult, error)
	Pause(ctx context.Context, ownerID, id int64) error
	Resume(ctx context.Context, ownerID, id int64) error
	Stats(ctx context.Context, ownerID, id int64) (models.CampaignStats, error)
}

type campaignService struct {
	campaignRepo   repository.CampaignRepository
	contactRepo    repository.ContactRepository
	credentialRepo repository.CredentialRepository
	messageRepo    repository.MessageRepository
	materializer   *Materializer
	templates      TemplateService
	jobs           scheduler.Scheduler
	now            func() time.Time
	logger         *slog.Logger
}

// NewCampaignService creates a new campaign service
func NewCampaignService(
	campaignRepo repository.CampaignRepository,
	contactRepo repository.ContactRepository,
	credentialRepo repository.CredentialRepository,
	messageRepo repository.MessageRepository,
	materializer *Materializer,
	templates TemplateService,
	jobs scheduler.Scheduler,
	logger *slog.Logger,
) CampaignService {
	return &campaignService{
		campaignRepo:   campaignRepo,
		contactRepo:    contactRepo,
		credentialRepo: credentialRepo,
		messageRepo:    messageRepo,
		materializer:   materializer,
		templates:      templates,
		jobs:           jobs,
		now:            time.Now,
		logger:         logger,
	}
}

func (s *campaignService) buildCampaign(ownerID int64, req *CreateCampaignRequest) (*models.Campaign, error) {
	status := models.CampaignStatusDraft
	if req.ScheduledAt != nil {
		status = models.CampaignStatusScheduled
	}

	campaign := &models.Campaign{
		OwnerID:     ownerID,
		Name:        req.Name,
		Channel:     req.Channel,
		Template:    req.Template,
		Tags:        req.Tags,
		ScheduledAt: req.ScheduledAt,
		DailyLimit:  req.DailyLimit,
		MinDelaySec: req.MinDelaySec,
		MaxDelaySec: req.MaxDelaySec,
		Status:      status,
	}

	if err := campaign.Validate(); err != nil {
		return nil, err
	}
	if err := s.templates.ValidateTemplate(campaign.Template, campaign.Channel); err != nil {
		return nil, err
	}

	return campaign, nil
}

// Create creates a new campaign in draft or scheduled state
func (s *campaignService) Create(ctx context.Context, ownerID int64, req *CreateCampaignRequest) (*models.Campaign, error) {
	campaign, err := s.buildCampaign(ownerID, req)
	if err != nil {
		return nil, err
	}

	if err := s.campaignRepo.Create(ctx, campaign); err != nil {
		s.logger.Error("failed to create campaign",
			slog.String("error", err.Error()),
			slog.String("name", req.Name),
		)
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	s.logger.Info("campaign created",
		slog.Int64("campaign_id", campaign.ID),
		slog.String("name", campaign.Name),
		slog.String("status", campaign.Status),
	)

	return campaign, nil
}

// getOwned loads a campaign for a tenant. Another tenant's campaign reads
// as not found so ids leak nothing across tenants.
func (s *campaignService) getOwned(ctx context.Context, ownerID, id int64) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.OwnerID != ownerID {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("campaign with ID %d not found", id))
	}
	return campaign, nil
}

// GetByID retrieves a campaign with message statistics
func (s *campaignService) GetByID(ctx context.Context, ownerID, id int64) (*CampaignWithStats, error) {
	campaign, err := s.getOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	stats, err := s.messageRepo.CountByStatus(ctx, id)
	if err != nil {
		return nil, err
	}

	return &CampaignWithStats{Campaign: *campaign, Stats: stats}, nil
}

// List retrieves campaigns with pagination
func (s *campaignService) List(ctx context.Context, ownerID int64, filter models.CampaignFilter) (*CampaignListResult, error) {
	campaigns, totalCount, err := s.campaignRepo.List(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	models.ClampPage(&filter.Page, &filter.PageSize)

	return &CampaignListResult{
		Data:       campaigns,
		Pagination: models.NewPageResult(filter.Page, filter.PageSize, totalCount),
	}, nil
}

// Update replaces a campaign's definition. Running campaigns are locked.
func (s *campaignService) Update(ctx context.Context, ownerID, id int64, req *CreateCampaignRequest) (*models.Campaign, error) {
	existing, err := s.getOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !existing.IsMutable() {
		return nil, models.ErrCampaignBusy(id)
	}

	campaign, err := s.buildCampaign(existing.OwnerID, req)
	if err != nil {
		return nil, err
	}
	campaign.ID = existing.ID

	if err := s.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, err
	}

	return campaign, nil
}

// Delete removes a campaign. Running campaigns are locked.
func (s *campaignService) Delete(ctx context.Context, ownerID, id int64) error {
	campaign, err := s.getOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if !campaign.IsMutable() {
		return models.ErrCampaignBusy(id)
	}

	return s.campaignRepo.Delete(ctx, id)
}

// Start transitions a draft/scheduled/paused campaign to running:
// resolves the eligible audience, verifies an active integration,
// materializes pending messages, resets the daily quota and enqueues the
// first campaign-batch job (delayed until the scheduled time if set).
func (s *campaignService) Start(ctx context.Context, ownerID, id int64) (*StartCampaignResult, error) {
	campaign, err := s.getOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if !campaign.CanStart() {
		if campaign.Status == models.CampaignStatusCompleted {
			return nil, models.ErrAlreadyCompleted(id)
		}
		return nil, models.ErrAlreadyRunning(id)
	}

	contacts, err := s.contactRepo.ListEligible(ctx, campaign.OwnerID, campaign.Tags, campaign.Channel)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve audience: %w", err)
	}
	if len(contacts) == 0 {
		return nil, models.ErrNoEligibleContacts()
	}

	if _, err := s.credentialRepo.GetActive(ctx, campaign.OwnerID, campaign.Channel); err != nil {
		return nil, models.ErrNoActiveIntegration(campaign.Channel)
	}

	materialized, err := s.materializer.Materialize(ctx, campaign, contacts)
	if err != nil {
		return nil, err
	}

	day := s.now().UTC().Format("2006-01-02")
	if err := s.campaignRepo.ResetDailyQuota(ctx, id, day); err != nil {
		return nil, err
	}

	if err := s.campaignRepo.UpdateStatus(ctx, id, models.CampaignStatusRunning); err != nil {
		return nil, err
	}

	delay := time.Duration(0)
	if campaign.ScheduledAt != nil {
		if d := campaign.ScheduledAt.Sub(s.now()); d > 0 {
			delay = d
		}
	}

	if err := s.enqueueBatch(ctx, campaign, delay); err != nil {
		return nil, err
	}

	s.logger.Info("campaign started",
		slog.Int64("campaign_id", id),
		slog.Int("materialized", materialized),
		slog.Duration("batch_delay", delay),
	)

	return &StartCampaignResult{
		CampaignID:   id,
		Status:       models.CampaignStatusRunning,
		Materialized: materialized,
		ScheduledAt:  campaign.ScheduledAt,
	}, nil
}

// Pause transitions a running campaign to paused. Already-enqueued send
// jobs are not cancelled; they no-op at execution time when the campaign
// is no longer running.
func (s *campaignService) Pause(ctx context.Context, ownerID, id int64) error {
	if _, err := s.getOwned(ctx, ownerID, id); err != nil {
		return err
	}

	paused, err := s.campaignRepo.TransitionStatus(ctx, id, models.CampaignStatusRunning, models.CampaignStatusPaused)
	if err != nil {
		return err
	}
	if !paused {
		return models.ErrNotRunning(id)
	}

	s.logger.Info("campaign paused", slog.Int64("campaign_id", id))
	return nil
}

// Resume transitions a paused campaign back to running and re-enqueues a
// batch job so the batcher picks up where it left off.
func (s *campaignService) Resume(ctx context.Context, ownerID, id int64) error {
	campaign, err := s.getOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}

	resumed, err := s.campaignRepo.TransitionStatus(ctx, id, models.CampaignStatusPaused, models.CampaignStatusRunning)
	if err != nil {
		return err
	}
	if !resumed {
		return models.ErrNotPaused(id)
	}

	if err := s.enqueueBatch(ctx, campaign, 0); err != nil {
		return err
	}

	s.logger.Info("campaign resumed", slog.Int64("campaign_id", id))
	return nil
}

// Stats returns per-status message counts for a campaign
func (s *campaignService) Stats(ctx context.Context, ownerID, id int64) (models.CampaignStats, error) {
	if _, err := s.getOwned(ctx, ownerID, id); err != nil {
		return models.CampaignStats{}, err
	}
	return s.messageRepo.CountByStatus(ctx, id)
}

// enqueueBatch schedules a campaign-batch job, deduplicated on the
// campaign ID so concurrent batch runs for the same campaign are not
// scheduled twice.
func (s *campaignService) enqueueBatch(ctx context.Context, campaign *models.Campaign, delay time.Duration) error {
	job := &models.BatchJob{CampaignID: campaign.ID, OwnerID: campaign.OwnerID}
	if err := s.jobs.Enqueue(ctx, models.QueueCampaignBatch, job, delay, models.BatchDedupKey(campaign.ID)); err != nil {
		return fmt.Errorf("failed to enqueue batch job: %w", err)
	}
	return nil
}
