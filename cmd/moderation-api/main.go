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
	"github.com/admoderation/platform/pkg/api/middleware"
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
	logger.Init("moderation-api")
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.OpenDB(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.CloseDB(db)

	store, closeCache := database.OpenCache(ctx, cfg)
	defer closeCache()

	taskStore := moderation.NewGormStore(db)
	tasks := moderation.NewRepository(taskStore, store, cfg.ModerationCacheTTL)
	ads := advertisement.NewRepository(db, store, cfg.AdvertisementCacheTTL, tasks)

	if err := ads.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate advertisements")
	}
	if err := taskStore.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate moderation results")
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.ModerationTopic, "moderation-api")
	defer producer.Close()

	scorer := scoring.NewScorer(ads, scoring.NewLoader(cfg.ModelPath, cfg.ModelTrainIfMissing))
	service := moderation.NewService(ads, tasks, producer)

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	routes.RegisterOperational(router, "moderation-api")
	routes.NewModerationHandler(service).Register(router)
	routes.NewAdvertisementHandler(ads, scorer).Register(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":  cfg.ServerHost,
			"port":  cfg.ServerPort,
			"topic": producer.Topic(),
		}).Info("Moderation API started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Moderation API...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Moderation API stopped")
}
