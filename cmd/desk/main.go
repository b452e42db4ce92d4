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

	"github.com/checkfox/go_reachout/internal/analytics"
	"github.com/checkfox/go_reachout/internal/cache"
	"github.com/checkfox/go_reachout/internal/client"
	"github.com/checkfox/go_reachout/internal/config"
	"github.com/checkfox/go_reachout/internal/handlers"
	"github.com/checkfox/go_reachout/internal/logger"
	"github.com/checkfox/go_reachout/internal/notify"
	"github.com/checkfox/go_reachout/internal/services"
	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
)

const notificationFeedSize = 200

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

	logger.Info(ctx, "Agent desk starting",
		"host", cfg.Desk.Host,
		"port", cfg.Desk.Port,
		"cache_type", cfg.Cache.Type,
		"backend_url", cfg.Backend.URL)

	// Open the local lead cache
	leadCache, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		log.Fatalf("Failed to open lead cache: %v", err)
	}
	defer leadCache.Close()

	// Wire the desk service
	backend := client.NewBackendClient(cfg.Backend.URL, cfg.Backend.Token, cfg.Backend.Timeout)
	feed := notify.NewFeed(notificationFeedSize)
	metrics := analytics.NewMetrics()

	syncCtx, stopSync := context.WithCancel(ctx)
	defer stopSync()
	syncer := services.NewSyncer(backend, leadCache, feed, metrics, cfg.Backend.SyncBuffer, cfg.Backend.Timeout)
	syncer.Start(syncCtx)

	service := services.NewReachOutService(leadCache, backend, syncer, feed, metrics, cfg.ReachOut.Policy())

	// Seed the cache; unsynced local edits are kept and a stale cache still serves when the backend is down
	if n, err := service.Refresh(ctx); err != nil {
		logger.Warn(ctx, "Initial refresh failed, serving cached leads", "error", err.Error())
	} else {
		logger.Info(ctx, "Lead cache loaded", "count", n)
	}

	// Set up HTTP routes
	reachOutHandler := handlers.NewReachOutHandler(service, feed, time.Local)
	recoveryMiddleware := handlers.NewRecoveryMiddleware()

	router := mux.NewRouter()
	router.Use(handlers.CorrelationMiddleware, recoveryMiddleware.Recover)
	reachOutHandler.Register(router)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.Handle("/health", handlers.HealthHandler(map[string]handlers.HealthChecker{
		"cache": func(ctx context.Context) error {
			_, err := leadCache.List(ctx)
			return err
		},
	})).Methods(http.MethodGet)

	corsMiddleware := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Desk.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Correlation-ID"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Desk.Host, cfg.Desk.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      corsMiddleware(router),
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

		// Drain queued backend syncs before exiting
		syncer.Stop()
		logger.Info(ctx, "Server shutdown complete")
	}
}
