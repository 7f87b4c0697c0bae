package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/admoderation/platform/pkg/advertisement"
	"github.com/admoderation/platform/pkg/api/routes"
	"github.com/admoderation/platform/pkg/common/config"
	"github.com/admoderation/platform/pkg/common/database"
	"github.com/admoderation/platform/pkg/common/kafka"
	"github.com/admoderation/platform/pkg/common/logger"
	"github.com/admoderation/platform/pkg/moderation"
	"github.com/admoderation/platform/pkg/scoring"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init("moderation-worker")
	if err := run(config.Load()); err != nil {
		logger.Log.WithError(err).Error("Moderation Worker exited with error")
		os.Exit(1)
	}
}

// run owns every resource it opens, so deferred cleanup has finished by the
// time main decides the exit code.
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.OpenDB(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.CloseDB(db)

	store, closeCache := database.OpenCache(ctx, cfg)
	defer closeCache()

	taskStore := moderation.NewGormStore(db)
	tasks := moderation.NewRepository(taskStore, store, cfg.ModerationCacheTTL)
	ads := advertisement.NewRepository(db, store, cfg.AdvertisementCacheTTL, tasks)

	if err := ads.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate advertisements: %w", err)
	}
	if err := taskStore.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate moderation results: %w", err)
	}

	loader := scoring.NewLoader(cfg.ModelPath, cfg.ModelTrainIfMissing)
	if _, err := loader.Model(); err != nil {
		logger.Log.WithError(err).Warn("Model not loaded at startup; scoring attempts will fail until it is available")
	}

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.ModerationTopic, cfg.KafkaGroupID)
	dlq := kafka.NewProducer(cfg.KafkaBrokers, cfg.ModerationDLQTopic, "moderation-worker")

	worker := moderation.NewWorker(consumer, scoring.NewScorer(ads, loader), tasks, dlq, moderation.WorkerConfig{
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	})

	done := make(chan error, 1)
	go func() {
		done <- worker.Run(ctx)
	}()

	router := mux.NewRouter()
	routes.RegisterOperational(router, "moderation-worker")

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.WorkerPort),
		Handler: router,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":      cfg.ServerHost,
			"port":      cfg.WorkerPort,
			"topic":     cfg.ModerationTopic,
			"dlq_topic": dlq.Topic(),
			"group_id":  cfg.KafkaGroupID,
		}).Info("Moderation Worker started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	runErr := waitForWorker(quit, done, cancel)

	if err := consumer.Close(); err != nil {
		logger.Log.WithError(err).Error("Failed to close consumer")
	}
	if err := dlq.Close(); err != nil {
		logger.Log.WithError(err).Error("Failed to flush DLQ producer")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Moderation Worker stopped")
	return runErr
}

// waitForWorker blocks until a shutdown signal arrives or the worker loop
// returns on its own, and reports the loop's error either way.
func waitForWorker(quit <-chan os.Signal, done <-chan error, cancel context.CancelFunc) error {
	select {
	case <-quit:
		logger.Log.Info("Shutting down Moderation Worker...")
		cancel()
		return <-done
	case err := <-done:
		cancel()
		return err
	}
}
