package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"residence-billing-backend/config"
	"residence-billing-backend/internal/api"
	"residence-billing-backend/internal/calendar"
	"residence-billing-backend/internal/db"
	"residence-billing-backend/internal/logger"
	"residence-billing-backend/internal/notification"
	"residence-billing-backend/internal/residence"
	"residence-billing-backend/internal/scheduler"
	"residence-billing-backend/internal/store"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	log := logger.New("residence-backend", cfg.Log.Level)
	log.WithField("path", configPath).Info("Configuration loaded")

	cal, err := calendar.NewProvider(calendar.SystemClock{}, cfg.Billing.SemesterOverride)
	if err != nil {
		log.WithError(err).Fatal("Invalid semester override")
	}

	gormDB, err := db.Init(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	appStore := store.NewGormStore(gormDB)
	log.Info("Data store initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Notification sinks: push is optional, AMQP falls back to logging.
	var webpushOptions *webpush.Options
	var sinks []notification.Sink
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		sinks = append(sinks, notification.NewWebPushSink(appStore, webpushOptions))
	} else {
		log.Warn("VAPID keys are not configured; web push disabled")
	}

	var publisher notification.Publisher = &notification.FallbackPublisher{Log: log}
	if cfg.AMQP.URL != "" {
		producer, err := notification.NewEventProducer(cfg.AMQP.URL)
		if err != nil {
			log.WithError(err).Warn("AMQP broker unreachable; events will only be logged")
		} else {
			publisher = producer
		}
	}
	defer publisher.Close()
	sinks = append(sinks, notification.NewAMQPSink(publisher, cfg.AMQP.Exchange))

	pool := notification.NewWorkerPool(cfg.WorkerPool, log, sinks...)
	pool.Start(ctx)

	svc := residence.NewService(appStore, cal, pool, cfg.Billing, log)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(svc, cfg.Scheduler, log)
		if err := sched.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start scheduler")
		}
	}

	router := api.NewRouter(svc, cfg.Server, webpushOptions, log)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server ListenAndServe")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Info("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if sched != nil {
		select {
		case <-sched.Stop().Done():
		case <-shutdownCtx.Done():
			log.Warn("Scheduled jobs did not finish before the shutdown deadline")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server Shutdown")
	}
	cancel()

	log.Info("Server gracefully stopped")
}
