package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/outflowhq/outflow-backend/internal/channel"
	"github.com/outflowhq/outflow-backend/internal/config"
	"github.com/outflowhq/outflow-backend/internal/cooldown"
	"github.com/outflowhq/outflow-backend/internal/db"
	"github.com/outflowhq/outflow-backend/internal/models"
	"github.com/outflowhq/outflow-backend/internal/repository"
	"github.com/outflowhq/outflow-backend/internal/scheduler"
	"github.com/outflowhq/outflow-backend/internal/service"
	"github.com/outflowhq/outflow-backend/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("starting outflow worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	database, err := db.New(cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	logger.Info("connected to database")

	jobs, err := scheduler.NewRedisScheduler(cfg.Redis.URL, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jobs.Close()

	// Repositories
	campaignRepo := repository.NewCampaignRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)
	contactRepo := repository.NewContactRepository(database.DB)
	credentialRepo := repository.NewCredentialRepository(database.DB)

	// The cooldown store shares the scheduler's Redis connection so every
	// worker instance sees the same cooldown state.
	cooldowns := cooldown.NewRedisStore(jobs.Client())

	batcher := service.NewBatcher(
		campaignRepo,
		messageRepo,
		cooldowns,
		jobs,
		cfg.Engine.CooldownWindow,
		logger,
	)

	adapters := channel.NewRegistry()

	batchHandler := worker.NewBatchHandler(batcher)
	sendHandler := worker.NewSendHandler(messageRepo, campaignRepo, contactRepo, credentialRepo, adapters, logger)
	reconcileHandler := worker.NewReconcileHandler(messageRepo, contactRepo, logger)

	jobs.Register(scheduler.QueueConfig{
		Name:        models.QueueCampaignBatch,
		MaxAttempts: 3,
		Backoff:     scheduler.ExponentialBackoff(5 * time.Second),
		Concurrency: cfg.Worker.BatchConcurrency,
	}, batchHandler.Handle)

	jobs.Register(scheduler.QueueConfig{
		Name:        models.QueueMessageSend,
		MaxAttempts: 3,
		Backoff:     scheduler.FixedBackoff(10 * time.Second),
		Concurrency: cfg.Worker.SendConcurrency,
	}, sendHandler.Handle)

	jobs.Register(scheduler.QueueConfig{
		Name:        models.QueueWebhook,
		MaxAttempts: 5,
		Backoff:     scheduler.ExponentialBackoff(time.Second),
		Concurrency: cfg.Worker.WebhookConcurrency,
	}, reconcileHandler.Handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := worker.NewSweeper(campaignRepo, jobs, logger)
	if err := sweeper.Start(ctx); err != nil {
		logger.Error("failed to start recovery sweep", slog.String("error", err.Error()))
		os.Exit(1)
	}

	runErrors := make(chan error, 1)
	go func() {
		runErrors <- jobs.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-runErrors:
		if err != nil && err != context.Canceled {
			logger.Error("scheduler error", slog.String("error", err.Error()))
			os.Exit(1)
		}

	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))

		sweeper.Stop()
		cancel()
		<-runErrors

		logger.Info("worker stopped gracefully")
	}
}
