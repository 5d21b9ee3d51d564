package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"timesheet-bot/internal/api"
	"timesheet-bot/internal/catalog"
	"timesheet-bot/internal/config"
	"timesheet-bot/internal/handler"
	"timesheet-bot/internal/kobo"
	"timesheet-bot/internal/repository"
	"timesheet-bot/internal/service"
	"timesheet-bot/pkg/telegram"
)

func main() {
	logrus.Info("Initializing config...")
	cfg := config.GetBotConfig()
	logrus.Info("Config initialized...")

	db, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		logrus.Fatal("Failed to connect to database:", err)
	}

	userRepo, err := repository.NewUserRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create user repository")
	}

	irrigationRepo, err := repository.NewIrrigationRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create irrigation repository")
	}

	selectionRepo, err := repository.NewPeriodSelectionRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create period selection repository")
	}

	userService := service.NewUserService(userRepo)
	if err := userService.InitializeAdmin(cfg.BaseAdminChatID); err != nil {
		logrus.Infof("Warning: Failed to initialize admin: %v", err)
	} else if cfg.BaseAdminChatID != 0 {
		logrus.Infof("Admin initialized with chat ID: %d", cfg.BaseAdminChatID)
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load catalog")
	}

	store := kobo.NewClient(cfg.KoboBaseURL, cfg.KoboAssetUID, cfg.KoboTimeout)
	workflow := service.NewWorkflow(store, cfg.KoboToken, cfg.Location)
	periodService := service.NewPeriodService(workflow, selectionRepo)
	irrigationService := service.NewIrrigationService(irrigationRepo)

	client, err := telegram.NewClient(cfg.TelegramToken, cfg.TelegramDebug)
	if err != nil {
		logrus.Fatal("Failed to create Telegram client:", err)
	}
	logrus.Infof("Authorized on account %s", client.Bot.Self.UserName)

	alertJob := service.NewAlertJob(workflow, userService, client, cfg.AlertHour, cfg.AlertCheckInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := workflow.Refresh(ctx); err != nil {
		logrus.WithError(err).Warn("Initial fetch failed, data will be loaded on first use")
	}

	var server *http.Server
	if cfg.HTTPAddr != "" {
		server = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           api.NewServer(workflow, irrigationService, cat, cfg.APIJWTSecret).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logrus.Infof("HTTP API listening on %s", cfg.HTTPAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.WithError(err).Error("HTTP API stopped")
			}
		}()
	}

	alertJob.Start(ctx)

	botHandler := handler.NewHandler(
		client,
		userService,
		workflow,
		periodService,
		irrigationService,
		alertJob,
		cat,
		cfg,
	)

	updates := client.Bot.GetUpdatesChan(client.UpdateConfig)
	go botHandler.HandleUpdates(ctx, updates)

	logrus.Info("Bot started. Press Ctrl+C to stop.")
	<-ctx.Done()

	client.Bot.StopReceivingUpdates()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logrus.Infof("Error stopping HTTP API: %v", err)
		}
		cancel()
	}

	if err := repository.Close(db); err != nil {
		logrus.Infof("Error closing database: %v", err)
	}

	logrus.Info("Bot stopped gracefully")
}
