package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/checkfox/go_reachout/internal/analytics"
	"github.com/checkfox/go_reachout/internal/config"
	"github.com/checkfox/go_reachout/internal/database"
	"github.com/checkfox/go_reachout/internal/logger"
	"github.com/checkfox/go_reachout/internal/queue"
	"github.com/checkfox/go_reachout/internal/repository"
	"github.com/checkfox/go_reachout/internal/services"
	"github.com/checkfox/go_reachout/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Initialize structured logger
	logger.Init()
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Configure(cfg.Logging.Level, cfg.Logging.Format)

	logger.Info(ctx, "Worker starting",
		"poll_interval", cfg.Worker.PollInterval.String(),
		"concurrency", cfg.Worker.Concurrency,
		"sweep_interval", cfg.Worker.SweepInterval.String(),
		"sweep_rate", cfg.Worker.SweepRate)

	// Initialize database connection
	dbWrapper, err := database.InitFromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbWrapper.Close()

	logger.Info(ctx, "Database connection established")

	// Initialize queue client
	jobQueue, err := queue.NewDBQueue(ctx, dbWrapper.DB)
	if err != nil {
		log.Fatalf("Failed to initialize queue: %v", err)
	}
	defer jobQueue.Close()

	logger.Info(ctx, "Queue initialized")

	// Initialize repositories
	leadRepo := repository.NewLeadRepository(dbWrapper.DB)
	eventRepo := repository.NewReachOutEventRepository(dbWrapper.DB)

	// Create worker processor and sweeper
	processor := worker.NewProcessor(worker.ProcessorConfig{
		Queue:        jobQueue,
		LeadRepo:     leadRepo,
		EventRepo:    eventRepo,
		Normalizer:   services.NewNormalizer(),
		Recorder:     analytics.NewMetrics(),
		Policy:       cfg.ReachOut.Policy(),
		PollInterval: cfg.Worker.PollInterval,
	})
	sweeper := worker.NewSweeper(leadRepo, processor, cfg.Worker.SweepInterval, cfg.Worker.Concurrency, cfg.Worker.SweepRate)

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Create context for worker
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start the queue processor and the periodic sweep together
	g, gctx := errgroup.WithContext(workerCtx)
	g.Go(func() error { return processor.Start(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })

	workerErrors := make(chan error, 1)
	go func() {
		workerErrors <- g.Wait()
	}()

	logger.Info(ctx, "Worker started successfully")

	// Wait for shutdown signal or worker error
	select {
	case err := <-workerErrors:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(ctx, "Worker error", "error", err.Error())
		}

	case sig := <-sigChan:
		logger.Info(ctx, "Received shutdown signal", "signal", sig.String())

		// Cancel worker context to trigger graceful shutdown
		cancel()

		// Wait for worker to finish with timeout
		shutdownTimeout := time.NewTimer(30 * time.Second)
		defer shutdownTimeout.Stop()

		select {
		case <-workerErrors:
			logger.Info(ctx, "Worker stopped gracefully")
		case <-shutdownTimeout.C:
			logger.Warn(ctx, "Worker shutdown timeout exceeded, forcing exit")
		}
	}

	logger.Info(ctx, "Worker shutdown complete")
}
