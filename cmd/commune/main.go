package main

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"commune/internal/amqp"
	"commune/internal/catalog"
	"commune/internal/config"
	"commune/internal/core"
	"commune/internal/engine"
	apphttp "commune/internal/http"
	"commune/internal/log"
	"commune/internal/scheduler"
	"commune/internal/services"
	"commune/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: "commune",
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
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

	// Commit events are optional; without a broker the commune runs local-only.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	buildings, err := catalog.Load()
	if err != nil {
		logger.Error("Failed to load building catalog", "error", err)
		os.Exit(1)
	}

	store := engine.NewStore(engine.NewState(buildings, core.DefaultSettings(), engine.InitialHistory(time.Now())))
	svc := services.New(store, records, publisher, logger,
		services.WithPersistTimeout(cfg.PersistTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Bootstrap(ctx); err != nil {
		if errors.Is(err, core.ErrInvalidFormat) {
			logger.Warn("Recovered from malformed stored record", "error", err)
		} else {
			logger.Error("Failed to bootstrap state", "error", err)
			os.Exit(1)
		}
	}

	go func() {
		if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Persister stopped", "error", err)
		}
	}()

	sched, err := scheduler.New(svc, cfg.PersistSchedule, cfg.BackupSchedule, cfg.BackupDir, logger)
	if err != nil {
		logger.Error("Failed to initialize scheduler", "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, svc)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		// One last flush so nothing committed is lost on the way out.
		if err := svc.PersistNow(shutdownCtx); err != nil {
			logger.Error("Final persist failed", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting commune server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
