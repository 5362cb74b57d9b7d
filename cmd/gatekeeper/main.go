package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pathlight-analytics/gatekeeper/internal/cache"
	"github.com/pathlight-analytics/gatekeeper/internal/clientstats"
	"github.com/pathlight-analytics/gatekeeper/internal/config"
	"github.com/pathlight-analytics/gatekeeper/internal/dedup"
	"github.com/pathlight-analytics/gatekeeper/internal/directory"
	"github.com/pathlight-analytics/gatekeeper/internal/handlers"
	"github.com/pathlight-analytics/gatekeeper/internal/logging"
	"github.com/pathlight-analytics/gatekeeper/internal/quota"
	"github.com/pathlight-analytics/gatekeeper/internal/salt"
	"github.com/pathlight-analytics/gatekeeper/internal/server"
	"github.com/pathlight-analytics/gatekeeper/internal/service"
	"github.com/pathlight-analytics/gatekeeper/internal/telemetry"
	"github.com/pathlight-analytics/gatekeeper/internal/validator"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("gatekeeper"))
	logging.SetDefault(logger)

	slog.Info("Starting Gatekeeper service",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("log_format", cfg.Logging.Format),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}
	slog.Info("Service URLs configured",
		slog.String("directory_url", cfg.Directory.URL),
		slog.String("metering_url", cfg.Metering.URL),
	)

	// Initialize shared cache
	store, err := cache.New(cfg.Redis.URL, cfg.Redis.OpTimeout)
	if err != nil {
		log.Fatalf("Failed to create cache store: %v", err)
	}
	defer store.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.Redis.OpTimeout*10)
	if err := store.Ping(pingCtx); err != nil {
		log.Printf("WARNING: Redis unreachable at startup: %v", err)
		log.Println("Continuing; cache-backed checks will fail open until Redis recovers")
	}
	pingCancel()

	// Initialize telemetry sink
	var sink telemetry.Sink
	if cfg.Telemetry.Enabled {
		natsSink, err := telemetry.NewNATSSink(cfg.Telemetry.NatsURL, cfg.Telemetry.Subject)
		if err != nil {
			log.Printf("WARNING: Failed to connect telemetry sink: %v", err)
			log.Println("Continuing without blocked-traffic telemetry")
			sink = telemetry.NoOpSink{}
		} else {
			sink = natsSink
			log.Printf("Blocked-traffic telemetry enabled (subject: %s)", cfg.Telemetry.Subject)
		}
	} else {
		sink = telemetry.NoOpSink{}
		log.Println("Telemetry disabled in configuration")
	}
	defer sink.Close()

	// Initialize external service clients
	dirClient := directory.New(cfg.Directory.URL, cfg.Directory.Timeout, cfg.Directory.CacheTTL)
	meterClient := quota.NewClient(cfg.Metering.URL, cfg.Metering.Timeout)

	// Initialize pipeline stages
	quotaGate := quota.NewGate(store, meterClient, cfg.Ingestion.QuotaCacheTTL, cfg.Ingestion.QuotaStaleAfter)
	saltManager := salt.NewManager(store, salt.Options{
		TTL:        cfg.Ingestion.SaltTTL,
		CacheTTL:   cfg.Ingestion.SaltCacheTTL,
		StaleAfter: cfg.Ingestion.SaltStaleAfter,
	})
	suppressor := dedup.NewSuppressor(store, cfg.Ingestion.DedupStandardTTL, cfg.Ingestion.DedupExitTTL)
	requestValidator := validator.New(dirClient, quotaGate, sink, cfg.Ingestion.MaxPayloadSize)
	statsRecorder := clientstats.NewRecorder(store.Client())

	gateService := service.NewGateService(requestValidator, saltManager, suppressor, statsRecorder, nil)

	// Initialize HTTP handlers
	handler := handlers.NewCollectHandler(gateService, store, cfg.Ingestion.MaxPayloadSize)
	router := server.NewRouter(handler)

	// Create server with config values
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Gatekeeper service listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
