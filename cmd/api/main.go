package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/outflowhq/outflow-backend/internal/config"
	"github.com/outflowhq/outflow-backend/internal/db"
	"github.com/outflowhq/outflow-backend/internal/handler"
	"github.com/outflowhq/outflow-backend/internal/repository"
	"github.com/outflowhq/outflow-backend/internal/scheduler"
	"github.com/outflowhq/outflow-backend/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("starting outflow API server")

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

	// Services
	templateSvc := service.NewTemplateService()
	materializer := service.NewMaterializer(messageRepo, templateSvc, cfg.Engine.UnsubscribeBaseURL, logger)
	campaignSvc := service.NewCampaignService(
		campaignRepo,
		contactRepo,
		credentialRepo,
		messageRepo,
		materializer,
		templateSvc,
		jobs,
		logger,
	)

	// Handlers
	campaignHandler := handler.NewCampaignHandler(campaignSvc, logger)
	webhookHandler := handler.NewWebhookHandler(jobs, logger)
	healthHandler := handler.NewHealthHandler(database, jobs, logger)

	r := chi.NewRouter()
	r.Use(handler.RecoveryMiddleware(logger))
	r.Use(handler.LoggingMiddleware(logger))

	r.Get("/health", healthHandler.Health)
	r.Post("/webhooks/{channel}", webhookHandler.Ingest)

	r.Route("/campaigns", func(r chi.Router) {
		r.Use(handler.OwnerMiddleware)
		campaignHandler.Routes(r)
	})

	addr := fmt.Sprintf(":%d", cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API server listening", slog.String("addr", addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)

	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown failed", slog.String("error", err.Error()))
			os.Exit(1)
		}

		logger.Info("server stopped gracefully")
	}
}
