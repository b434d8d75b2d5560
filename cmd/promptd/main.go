package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"daily-prompt-backend/config"
	"daily-prompt-backend/internal/api"
	"daily-prompt-backend/internal/clock"
	"daily-prompt-backend/internal/db"
	"daily-prompt-backend/internal/feed"
	"daily-prompt-backend/internal/gate"
	"daily-prompt-backend/internal/logger"
	"daily-prompt-backend/internal/notification"
	"daily-prompt-backend/internal/prompt"
	"daily-prompt-backend/internal/store"
	"daily-prompt-backend/internal/trigger"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	zlog, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	zlog.Info("configuration loaded", zap.String("path", configPath))

	// a missing key pair is a configuration gap, not a startup failure: the
	// dispatcher still runs and every send is counted as failed
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		zlog.Warn("VAPID keys are not configured; push sends will fail")
	}
	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	zone, err := clock.LoadZone(cfg.Prompt.Timezone)
	if err != nil {
		zlog.Fatal("failed to load reference timezone", zap.Error(err))
	}

	gormDB, err := db.Init(&cfg.Database, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}
	appStore := store.NewGormStore(gormDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	realClock := clock.Real{}
	scheduler, err := prompt.NewScheduler(appStore, realClock, zone, *cfg.Prompt.MinHour, *cfg.Prompt.MaxHour, zlog)
	if err != nil {
		zlog.Fatal("invalid prompt configuration", zap.Error(err))
	}

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, &webpushOptions, &notification.WebPushSender{}, zlog)
	payload := notification.Payload{Title: cfg.Push.Title, Body: cfg.Push.Body}
	if cfg.Push.URL != "" {
		payload.Data = &notification.PayloadData{URL: cfg.Push.URL}
	}
	dispatcher := notification.NewDispatcher(appStore, realClock, zone, pool, notification.Options{
		Band:       cfg.Prompt.EligibilityBand,
		LateGrace:  cfg.Prompt.LateGrace,
		WaitForDue: *cfg.Prompt.WaitForDue,
		Payload:    payload,
	}, zlog)

	notifications := store.NewNotificationCache(appStore, cfg.Cache.NotificationTTL)
	gateSvc := gate.NewService(notifications, appStore, realClock, zone, cfg.Prompt.OpenDuration, zlog)
	feedSvc := feed.NewService(gateSvc, appStore, zlog)

	runner := trigger.NewRunner(cfg.Triggers, scheduler, dispatcher, zlog)
	go runner.Run(ctx)

	handler := api.NewHandler(api.Deps{
		Store:      appStore,
		Webpush:    &webpushOptions,
		Scheduler:  scheduler,
		Dispatcher: dispatcher,
		Gate:       gateSvc,
		Feed:       feedSvc,
		Log:        zlog,
	})
	router := api.NewRouter(cfg.Server, handler)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		zlog.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	zlog.Info("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("HTTP server Shutdown", zap.Error(err))
	}

	zlog.Info("server gracefully stopped")
}
