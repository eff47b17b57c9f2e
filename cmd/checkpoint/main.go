// Package main provides a CLI tool that backfills monthly financial
// checkpoints. Checkpoints are also created opportunistically during analysis
// requests; this tool exists to warm them ahead of time or to rebuild them
// after a bulk import.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/finance-ledger/internal/config"
	"github.com/finance-ledger/internal/logging"
	"github.com/finance-ledger/internal/service"
	"github.com/finance-ledger/internal/storage"
)

func main() {
	var (
		userID  = flag.String("user", "", "Backfill checkpoints for a single user (default: all users with events)")
		rebuild = flag.Bool("rebuild", false, "Delete existing checkpoints first and recompute them from the event log")
		timeout = flag.Duration("timeout", 10*time.Minute, "Overall timeout for the backfill run")
	)
	flag.Parse()

	fmt.Println("Checkpoint Backfill")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)
	logger := logging.GetGlobalLogger()

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	eventRepo := storage.NewEventRepository(postgres)
	snapshotRepo := storage.NewSnapshotRepository(postgres)

	checkpointService := service.NewCheckpointService(
		eventRepo,
		snapshotRepo,
		cfg.Checkpoint.MaxMonthsPerRequest,
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	users := []string{*userID}
	if *userID == "" {
		users, err = snapshotRepo.ListActiveUsers(ctx)
		if err != nil {
			logger.WithError(err).Fatal("Failed to list users with events")
		}
	}

	logger.WithField("users", len(users)).Info("Starting checkpoint backfill")

	failed := 0
	for _, user := range users {
		if *rebuild {
			if err := snapshotRepo.DeleteByUser(ctx, user); err != nil {
				logger.WithError(err).WithField("userId", user).Error("Failed to delete existing checkpoints")
				failed++
				continue
			}
		}
		if err := checkpointService.EnsureMonthlyCheckpoints(ctx, user); err != nil {
			logger.WithError(err).WithField("userId", user).Error("Checkpoint backfill failed for user")
			failed++
		}
	}

	logger.WithFields(map[string]interface{}{
		"users":  len(users),
		"failed": failed,
	}).Info("Checkpoint backfill finished")

	if failed > 0 {
		log.Fatalf("Backfill completed with %d failed user(s)", failed)
	}
}
