package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/outflowhq/outflow-backend/internal/models"
	"github.com/outflowhq/outflow-backend/internal/repository"
	"github.com/outflowhq/outflow-backend/internal/scheduler"
)

// Sweeper periodically re-enqueues campaign-batch jobs for running
// campaigns that still have pending messages or long-stale queued ones.
// Delayed jobs can be lost to a Redis flush or a crash between claim and
// execution; the batch dedup key makes re-enqueueing safe, so the sweep
// restores forward progress without risking duplicate concurrent batch
// runs.
type Sweeper struct {
	campaignRepo repository.CampaignRepository
	jobs         scheduler.Scheduler
	cron         *cron.Cron
	logger       *slog.Logger
}

// NewSweeper creates the recovery sweeper
func NewSweeper(campaignRepo repository.CampaignRepository, jobs scheduler.Scheduler, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		campaignRepo: campaignRepo,
		jobs:         jobs,
		cron:         cron.New(),
		logger:       logger,
	}
}

// Start schedules the hourly sweep. Returns an error only on a bad spec.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc("@hourly", func() {
		sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		s.Sweep(sweepCtx)
	}); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one recovery pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	campaigns, err := s.campaignRepo.ListRunningStalled(ctx)
	if err != nil {
		s.logger.Error("recovery sweep failed", slog.String("error", err.Error()))
		return
	}

	for _, campaign := range campaigns {
		job := &models.BatchJob{CampaignID: campaign.ID, OwnerID: campaign.OwnerID}
		if err := s.jobs.Enqueue(ctx, models.QueueCampaignBatch, job, 0, models.BatchDedupKey(campaign.ID)); err != nil {
			s.logger.Error("failed to re-enqueue batch job",
				slog.Int64("campaign_id", campaign.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(campaigns) > 0 {
		s.logger.Info("recovery sweep finished", slog.Int("campaigns", len(campaigns)))
	}
}
