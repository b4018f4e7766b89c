package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/outflowhq/outflow-backend/internal/cooldown"
	"github.com/outflowhq/outflow-backend/internal/models"
	"github.com/outflowhq/outflow-backend/internal/repository"
	"github.com/outflowhq/outflow-backend/internal/scheduler"
)

// Batcher selects the next eligible slice of pending messages for a
// running campaign, bounded by the daily quota and the per-contact
// cooldown, and schedules send jobs with strictly increasing randomized
// offsets.
type Batcher struct {
	campaignRepo repository.CampaignRepository
	messageRepo  repository.MessageRepository
	cooldowns    cooldown.Store
	jobs         scheduler.Scheduler
	window       time.Duration
	// delayFn draws the inter-message delay in seconds from
	// [minSec, maxSec]. Uniform random by default; injected for tests.
	delayFn func(minSec, maxSec int) int
	now     func() time.Time
	logger  *slog.Logger
}

// NewBatcher creates a compliance batcher
func NewBatcher(
	campaignRepo repository.CampaignRepository,
	messageRepo repository.MessageRepository,
	cooldowns cooldown.Store,
	jobs scheduler.Scheduler,
	window time.Duration,
	logger *slog.Logger,
) *Batcher {
	if window <= 0 {
		window = models.DefaultCooldownWindow
	}
	return &Batcher{
		campaignRepo: campaignRepo,
		messageRepo:  messageRepo,
		cooldowns:    cooldowns,
		jobs:         jobs,
		window:       window,
		delayFn:      uniformDelay,
		now:          time.Now,
		logger:       logger,
	}
}

func uniformDelay(minSec, maxSec int) int {
	if maxSec <= minSec {
		return minSec
	}
	return minSec + rand.Intn(maxSec-minSec+1)
}

// RunBatch executes one campaign-batch pass. It is safe under duplicate
// execution: the campaign status is re-checked, send scheduling is bounded
// by the persisted daily count, and the sent-count increment is a single
// atomic update.
func (b *Batcher) RunBatch(ctx context.Context, job *models.BatchJob) error {
	campaign, err := b.campaignRepo.GetByID(ctx, job.CampaignID)
	if err != nil {
		// Campaign deleted mid-flight: nothing to do.
		b.logger.Warn("batch skipped, campaign not found",
			slog.Int64("campaign_id", job.CampaignID),
		)
		return nil
	}

	if campaign.Status != models.CampaignStatusRunning {
		b.logger.Info("batch skipped, campaign not running",
			slog.Int64("campaign_id", campaign.ID),
			slog.String("status", campaign.Status),
		)
		return nil
	}

	now := b.now()
	day := now.UTC().Format("2006-01-02")
	if campaign.QuotaDay != day {
		if err := b.campaignRepo.ResetDailyQuota(ctx, campaign.ID, day); err != nil {
			return err
		}
		campaign.SentCountToday = 0
		campaign.QuotaDay = day
	}

	remaining := campaign.DailyLimit - campaign.SentCountToday
	if remaining < 0 {
		remaining = 0
	}
	if remaining == 0 {
		return b.continueTomorrow(ctx, campaign, now)
	}

	messages, err := b.messageRepo.ListSendable(ctx, campaign.ID, remaining)
	if err != nil {
		return err
	}

	queued := 0
	skipped := 0
	cumulative := 0
	for _, message := range messages {
		key := cooldown.Key(campaign.OwnerID, message.ContactID, campaign.Channel)
		next, onCooldown, err := b.cooldowns.NextEligible(ctx, key)
		if err != nil {
			return err
		}
		if onCooldown && next.After(now) {
			// Leave pending; a follow-up batch retries after the window.
			skipped++
			continue
		}

		cumulative += b.delayFn(campaign.MinDelaySec, campaign.MaxDelaySec)
		sendJob := &models.SendJob{
			MessageID:  message.ID,
			CampaignID: campaign.ID,
			ContactID:  message.ContactID,
			Channel:    campaign.Channel,
			Content:    message.Content,
			OwnerID:    campaign.OwnerID,
		}
		if err := b.jobs.Enqueue(ctx, models.QueueMessageSend, sendJob, time.Duration(cumulative)*time.Second, ""); err != nil {
			return fmt.Errorf("failed to enqueue send job: %w", err)
		}

		if err := b.messageRepo.MarkQueued(ctx, message.ID); err != nil {
			return err
		}
		if err := b.cooldowns.SetNextEligible(ctx, key, now.Add(b.window), b.window); err != nil {
			return err
		}
		queued++
	}

	if queued > 0 {
		if err := b.campaignRepo.IncrementSentCount(ctx, campaign.ID, queued); err != nil {
			return err
		}
	}

	b.logger.Info("batch pass finished",
		slog.Int64("campaign_id", campaign.ID),
		slog.Int("queued", queued),
		slog.Int("cooldown_skipped", skipped),
		slog.Int("quota_remaining", remaining-queued),
	)

	stats, err := b.messageRepo.CountByStatus(ctx, campaign.ID)
	if err != nil {
		return err
	}

	if !stats.Open() {
		return b.complete(ctx, campaign)
	}

	if stats.Pending == 0 {
		// Everything left is queued and the send handler normally finishes
		// the campaign on the last terminal writeback. A lost send job would
		// strand it, so check back once every scheduled offset has had time
		// to elapse; any rows still queued then get re-dispatched.
		recheck := time.Duration(stats.Queued)*time.Duration(campaign.MaxDelaySec)*time.Second + b.window
		return b.enqueueFollowUp(ctx, campaign, recheck)
	}

	if campaign.SentCountToday+queued >= campaign.DailyLimit {
		return b.continueTomorrow(ctx, campaign, now)
	}

	// Pending messages remain with quota to spare, so they were all held
	// back by cooldown. Retry once the window has elapsed.
	return b.enqueueFollowUp(ctx, campaign, b.window)
}

// continueTomorrow schedules the multi-day continuation batch at the start
// of the next UTC calendar day.
func (b *Batcher) continueTomorrow(ctx context.Context, campaign *models.Campaign, now time.Time) error {
	next := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	delay := next.Sub(now)

	b.logger.Info("daily quota exhausted, scheduling next-day batch",
		slog.Int64("campaign_id", campaign.ID),
		slog.Time("next_batch_at", next),
	)

	return b.enqueueFollowUp(ctx, campaign, delay)
}

func (b *Batcher) enqueueFollowUp(ctx context.Context, campaign *models.Campaign, delay time.Duration) error {
	job := &models.BatchJob{CampaignID: campaign.ID, OwnerID: campaign.OwnerID}
	if err := b.jobs.Enqueue(ctx, models.QueueCampaignBatch, job, delay, models.BatchDedupKey(campaign.ID)); err != nil {
		return fmt.Errorf("failed to enqueue follow-up batch: %w", err)
	}
	return nil
}

func (b *Batcher) complete(ctx context.Context, campaign *models.Campaign) error {
	completed, err := b.campaignRepo.TransitionStatus(ctx, campaign.ID,
		models.CampaignStatusRunning, models.CampaignStatusCompleted)
	if err != nil {
		return err
	}
	if completed {
		b.logger.Info("campaign completed", slog.Int64("campaign_id", campaign.ID))
	}
	return nil
}
