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

	"github.com/checkfox/go_reachout/internal/config"
	"github.com/checkfox/go_reachout/internal/database"
	"github.com/checkfox/go_reachout/internal/handlers"
	"github.com/checkfox/go_reachout/internal/logger"
	"github.com/checkfox/go_reachout/internal/queue"
	"github.com/checkfox/go_reachout/internal/repository"
	"github.com/checkfox/go_reachout/internal/services"
	"github.com/gorilla/mux"
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

	logger.Info(ctx, "Lead backend starting",
		"host", cfg.API.Host,
		"port", cfg.API.Port,
		"auth_enabled", cfg.Auth.Enabled)

	// Initialize database connection
	dbWrapper, err := database.InitFromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbWrapper.Close()

	logger.Info(ctx, "Database connection established")

	// Run database migrations
	if err := database.RunMigrations(ctx, dbWrapper); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if err := database.LogMigrationStatus(ctx, dbWrapper); err != nil {
		logger.LogError(ctx, "Failed to read migration status", err)
	}

	// Initialize queue client
	jobQueue, err := queue.NewDBQueue(ctx, dbWrapper.DB)
	if err != nil {
		log.Fatalf("Failed to initialize queue: %v", err)
	}
	defer jobQueue.Close()

	logger.Info(ctx, "Queue initialized")

	// Initialize repositories and services
	leadRepo := repository.NewLeadRepository(dbWrapper.DB)
	eventRepo := repository.NewReachOutEventRepository(dbWrapper.DB)
	leadService := services.NewLeadService(leadRepo, jobQueue)

	// Initialize handlers and middleware
	leadsHandler := handlers.NewLeadsHandler(leadService)
	statsHandler := handlers.NewStatsHandler(leadRepo, eventRepo, cfg.ReachOut.Policy())
	authMiddleware := handlers.NewAuthMiddleware(cfg)
	recoveryMiddleware := handlers.NewRecoveryMiddleware()

	// Set up HTTP routes
	router := mux.NewRouter()
	router.Use(handlers.CorrelationMiddleware, recoveryMiddleware.Recover)

	router.Handle("/health", handlers.HealthHandler(map[string]handlers.HealthChecker{
		"database": dbWrapper.HealthCheck,
		"queue":    jobQueue.HealthCheck,
	})).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(authMiddleware.Authenticate)
	leadsHandler.Register(api)
	statsHandler.Register(api)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.API.Host, cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(ctx, "HTTP server listening", "address", addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		log.Fatalf("Server error: %v", err)

	case sig := <-sigChan:
		logger.Info(ctx, "Received shutdown signal", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Server shutdown error", "error", err.Error())
			server.Close()
		}

		logger.Info(ctx, "Server shutdown complete")
	}
}
