// Package main provides the entrypoint for the ParkWatch background worker.
//
// The worker keeps the region snapshot and export vocabulary warm on a
// ticker and consumes Pub/Sub jobs for forced refreshes and scheduled
// CSV exports.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/parkwatch/parkwatch/internal/database"
	"github.com/parkwatch/parkwatch/internal/export"
	"github.com/parkwatch/parkwatch/internal/monitoring"
	"github.com/parkwatch/parkwatch/internal/monitoring/parkkihubi"
	"github.com/parkwatch/parkwatch/internal/provider/guard"
	"github.com/parkwatch/parkwatch/internal/telemetry"
	"github.com/parkwatch/parkwatch/internal/worker"
)

// Set at build time via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "parkwatch-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting ParkWatch worker")

	port := getEnvOrDefault("APP_PORT", "8080")
	env := getEnvOrDefault("APP_ENV", "development")
	otlpEndpoint := getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
		Logger:         log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	upstreamMetrics, err := telemetry.NewUpstreamMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize upstream metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database for export records
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	monitoringClient := parkkihubi.NewClient(parkkihubi.ClientConfig{
		BaseURL:     getEnvOrDefault("MONITORING_API_URL", parkkihubi.DefaultBaseURL),
		APIToken:    os.Getenv("MONITORING_API_TOKEN"),
		DownloadDir: getEnvOrDefault("EXPORT_DIR", "exports"),
		Debug:       os.Getenv("MONITORING_DEBUG") == "true",
		Logger:      log,
	})

	guardConfig := guard.DefaultConfig("parkkihubi")
	guardConfig.Metrics = upstreamMetrics
	guardConfig.Logger = log
	upstreamGuard := guard.New(guardConfig)

	monitoringService := monitoring.NewService(monitoring.ServiceConfig{
		Source:  monitoring.NewGuardedSource(monitoringClient, upstreamGuard),
		Logger:  log,
		Metrics: upstreamMetrics,
	})

	exportService := export.NewService(export.ServiceConfig{
		Client:     export.NewGuardedDownloader(monitoringClient, upstreamGuard),
		Repository: export.NewPostgresRepository(pool),
		Logger:     log,
	})

	refreshConfig := worker.DefaultRefreshConfig()
	refreshConfig.Interval = getEnvDurationOrDefault("REFRESH_INTERVAL", refreshConfig.Interval)
	refreshConfig.Jitter = getEnvDurationOrDefault("REFRESH_JITTER", refreshConfig.Jitter)
	refreshConfig.Timeout = getEnvDurationOrDefault("REFRESH_TIMEOUT", refreshConfig.Timeout)

	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  refreshConfig,
		Logger:  log,
		Monitor: monitoringService,
		Exports: exportService,
	})

	go func() {
		log.Info().
			Dur("interval", refreshConfig.Interval).
			Msg("refresh loop started")
		refreshJob.Start(ctx)
	}()

	// Start the Pub/Sub job consumer when a subscription is configured
	var pubsubHandler *worker.PubSubHandler
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if projectID != "" && subscription != "" {
		pubsubHandler, err = worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			RefreshJob:       refreshJob,
			Exports:          exportService,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}

		go func() {
			if err := pubsubHandler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Warn().Msg("pubsub not configured - running refresh loop only")
	}

	// Health check server for the container platform
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "healthy",
			"version": Version,
			"refresh": refreshJob.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	if pubsubHandler != nil {
		if err := pubsubHandler.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub client")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
