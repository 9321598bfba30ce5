package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mealcart/coverage-worker/internal/config"
	"github.com/mealcart/coverage-worker/internal/database"
	"github.com/mealcart/coverage-worker/internal/logger"
	"github.com/mealcart/coverage-worker/internal/marketplace"
	"github.com/mealcart/coverage-worker/internal/ratelimit"
	"github.com/mealcart/coverage-worker/internal/repository"
	"github.com/mealcart/coverage-worker/internal/syncer"
)

func main() {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Sugar.Fatalf("Application error: %v", err)
	}
}

func run() error {
	log := logger.GetLogger("main")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		return err
	}

	// Initialize repositories
	cacheRepo := repository.NewCacheRepository(db.Gorm)
	jobRepo := repository.NewSyncJobRepository(db.Gorm)
	retailerRepo := repository.NewRetailerRepository(db.Gorm)

	// Initialize marketplace client and rate limiter
	client := marketplace.NewClient(cfg.MarketplaceBaseURL, cfg.MarketplaceAPIKey, cfg.RequestTimeout)
	limiter := ratelimit.New(cfg.RateLimitPerSecond)

	engine := syncer.New(cfg, cacheRepo, jobRepo, retailerRepo, client, limiter)

	log.Infof("Starting coverage sync (mode=%s, rate=%d req/s, workers=%d)",
		cfg.Mode, cfg.RateLimitPerSecond, cfg.Workers)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	type runResult struct {
		summary *syncer.Summary
		err     error
	}
	resultChan := make(chan runResult, 1)
	go func() {
		summary, err := engine.Run(ctx)
		resultChan <- runResult{summary, err}
	}()

	// Wait for completion or a shutdown signal
	select {
	case <-sigChan:
		log.Warn("Shutdown signal received, finishing in-flight probes")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		select {
		case <-shutdownCtx.Done():
			log.Error("Shutdown timeout exceeded")
		case res := <-resultChan:
			if res.err != nil && !errors.Is(res.err, context.Canceled) {
				log.Errorf("Sync error during shutdown: %v", res.err)
			}
		}

		log.Info("Application stopped")
		return nil

	case res := <-resultChan:
		return res.err
	}
}
