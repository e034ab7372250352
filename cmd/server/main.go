package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/tenant-portal/internal/api"
	"github.com/dom/tenant-portal/internal/config"
	"github.com/dom/tenant-portal/internal/logging"
	"github.com/dom/tenant-portal/internal/repository/postgres"
	"github.com/dom/tenant-portal/internal/service"
	"github.com/dom/tenant-portal/internal/session"
	"github.com/dom/tenant-portal/internal/storage"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	appLogger := logging.New(cfg.LogLevel, cfg.LogFormat)
	log.Logger = appLogger

	gormLevel := logger.Warn
	if cfg.IsDevelopment() {
		gormLevel = logger.Info
	}

	// Initialize database
	db, err := postgres.NewConnection(cfg.DatabaseURL, gormLevel)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Initialize repositories
	repos := postgres.NewRepositories(db)

	sessions, err := session.NewStore(cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer sessions.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	objects, err := storage.New(startupCtx, storage.Config{
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Bucket:    cfg.StorageBucket,
		UseSSL:    cfg.StorageUseSSL,
	})
	cancelStartup()
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to initialize object storage")
	}

	// Initialize services
	services := service.NewServices(repos, sessions, objects, appLogger)

	// Initialize router
	router := api.NewRouter(services, cfg, appLogger)

	// Uploads stream large bodies, so only the header read is bounded.
	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info().Str("port", cfg.Port).Str("environment", cfg.Environment).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	appLogger.Info().Msg("server stopped")
}
