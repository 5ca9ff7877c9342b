package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"commune/internal/amqp"
	"commune/internal/config"
	"commune/internal/log"
	"commune/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: "commune-worker",
	})
	log.SetDefault(logger)

	logger.Info("Starting commune-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the audit worker")
		os.Exit(1)
	}

	if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
		logger.Error("Failed to run migrations", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	records, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open record store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer records.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeStateCommitted(gctx, func(msg *amqp.StateCommitted) error {
			ictx, cancel := context.WithTimeout(gctx, 5*time.Second)
			defer cancel()
			return records.InsertAuditEvent(ictx, storage.AuditEvent{
				OccurredAt: msg.OccurredAt,
				Kind:       msg.Kind,
				Resources:  msg.Resources,
				Oversight:  msg.Oversight,
			})
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
