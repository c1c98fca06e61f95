package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/ledgerline/ledgerline/internal/database"
	"github.com/ledgerline/ledgerline/internal/tasks"
	"github.com/ledgerline/ledgerline/pkg/config"
	"github.com/ledgerline/ledgerline/pkg/queue"
	"github.com/ledgerline/ledgerline/pkg/util"
	"github.com/robfig/cron/v3"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting Ledgerline worker")

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Asynq server and client (the scheduler tick fans out through the client)
	srv := queue.NewServer(&cfg.Redis, 10)
	client := queue.NewClient(&cfg.Redis)

	handler := tasks.NewHandler(db, logger, client)

	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Enqueue the scheduler tick every minute; the tick handler finds due
	// recurring invoices across all organizations.
	scheduler := cron.New()
	_, err = scheduler.AddFunc("* * * * *", func() {
		if _, err := client.Enqueue(tasks.NewSchedulerTickTask()); err != nil {
			logger.Error("failed to enqueue scheduler tick", "error", err)
		}
	})
	if err != nil {
		logger.Error("failed to register scheduler tick", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	// Handle shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		scheduler.Stop()
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	<-ctx.Done()

	client.Close()
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
