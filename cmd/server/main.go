// Package main provides the API server entry point for the finance ledger service.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finance-ledger/internal/api"
	"github.com/finance-ledger/internal/config"
	"github.com/finance-ledger/internal/logging"
	"github.com/finance-ledger/internal/service"
	"github.com/finance-ledger/internal/storage"
)

func main() {
	fmt.Println("Finance Ledger API Server")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	// Redis only serves the analysis cache; the service degrades to
	// replay-per-request when it is unavailable
	var cacheService *storage.CacheService
	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, analysis caching disabled")
	} else {
		defer redis.Close()
		cacheService = storage.NewCacheService(redis, cfg.Cache.TTL)
	}

	logger.Info("Database connections established")

	// Initialize repositories
	eventRepo := storage.NewEventRepository(postgres)
	assetRepo := storage.NewAssetRepository(postgres)
	liabilityRepo := storage.NewLiabilityRepository(postgres)
	incomeRepo := storage.NewIncomeRepository(postgres)
	expenseRepo := storage.NewExpenseRepository(postgres)
	cashSavingsRepo := storage.NewCashSavingsRepository(postgres)
	userRepo := storage.NewUserRepository(postgres)
	snapshotRepo := storage.NewSnapshotRepository(postgres)

	// Initialize services
	logger.Info("Initializing services...")

	var analysisCache service.AnalysisCache
	if cacheService != nil {
		analysisCache = cacheService
	}

	financeService := service.NewFinanceService(
		postgres,
		eventRepo,
		assetRepo,
		liabilityRepo,
		incomeRepo,
		expenseRepo,
		cashSavingsRepo,
		userRepo,
		snapshotRepo,
		analysisCache,
		logger,
	)

	checkpointService := service.NewCheckpointService(
		eventRepo,
		snapshotRepo,
		cfg.Checkpoint.MaxMonthsPerRequest,
		logger,
	)

	analysisService := service.NewAnalysisService(eventRepo, checkpointService, analysisCache, logger)
	activityService := service.NewActivityService(eventRepo)
	consistencyChecker := service.NewConsistencyChecker(
		eventRepo,
		assetRepo,
		liabilityRepo,
		incomeRepo,
		expenseRepo,
		cashSavingsRepo,
		logger,
	)

	logger.Info("Services initialized")

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		FreeTierRPS:     cfg.RateLimit.FreeTier,
		PaidTierRPS:     cfg.RateLimit.PaidTier,
	}

	server := api.NewServer(serverConfig, financeService, analysisService, activityService, consistencyChecker, logger)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
