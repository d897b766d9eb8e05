// Package main provides the entrypoint for the ParkWatch API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/parkwatch/parkwatch/internal/api"
	"github.com/parkwatch/parkwatch/internal/api/middleware"
	"github.com/parkwatch/parkwatch/internal/auth"
	"github.com/parkwatch/parkwatch/internal/database"
	"github.com/parkwatch/parkwatch/internal/export"
	"github.com/parkwatch/parkwatch/internal/monitoring"
	"github.com/parkwatch/parkwatch/internal/monitoring/parkkihubi"
	"github.com/parkwatch/parkwatch/internal/provider/guard"
	"github.com/parkwatch/parkwatch/internal/telemetry"
)

// Set at build time via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "parkwatch-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting ParkWatch API")

	port := getEnvOrDefault("APP_PORT", "8080")
	env := getEnvOrDefault("APP_ENV", "development")
	otlpEndpoint := getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	ctx := context.Background()
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	upstreamMetrics, err := telemetry.NewUpstreamMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize upstream metrics")
		os.Exit(1)
	}

	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	accountRepo := auth.NewPostgresAccountRepository(pool)
	refreshRepo := auth.NewPostgresRefreshTokenRepository(pool)

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: jwtSigningKey,
		Issuer:     "parkwatch",
		Audience:   "parkwatch-dashboard",
	})

	authService := auth.NewService(auth.ServiceConfig{
		JWTService:  jwtService,
		AccountRepo: accountRepo,
		RefreshRepo: refreshRepo,
	})
	log.Info().Msg("auth service initialized")

	monitoringClient := parkkihubi.NewClient(parkkihubi.ClientConfig{
		BaseURL:     getEnvOrDefault("MONITORING_API_URL", parkkihubi.DefaultBaseURL),
		APIToken:    os.Getenv("MONITORING_API_TOKEN"),
		DownloadDir: getEnvOrDefault("EXPORT_DIR", "exports"),
		Debug:       os.Getenv("MONITORING_DEBUG") == "true",
		Logger:      log,
	})
	log.Info().
		Str("base_url", monitoringClient.BaseURL()).
		Msg("monitoring client initialized")

	// Guard whole upstream operations; the client itself never retries.
	guardConfig := guard.DefaultConfig("parkkihubi")
	guardConfig.Metrics = upstreamMetrics
	guardConfig.Logger = log
	upstreamGuard := guard.New(guardConfig)

	monitoringService := monitoring.NewService(monitoring.ServiceConfig{
		Source:          monitoring.NewGuardedSource(monitoringClient, upstreamGuard),
		Logger:          log,
		CacheTTL:        getEnvDurationOrDefault("SNAPSHOT_CACHE_TTL", 2*time.Minute),
		StaleIfErrorTTL: getEnvDurationOrDefault("SNAPSHOT_STALE_TTL", 30*time.Minute),
		Metrics:         upstreamMetrics,
	})
	log.Info().Msg("monitoring service initialized")

	exportService := export.NewService(export.ServiceConfig{
		Client:     export.NewGuardedDownloader(monitoringClient, upstreamGuard),
		Repository: export.NewPostgresRepository(pool),
		Logger:     log,
	})
	log.Info().Msg("export service initialized")

	router := api.NewRouter(api.RouterConfig{
		Version:           Version,
		BuildTime:         BuildTime,
		Logger:            log,
		ServiceName:       serviceName,
		Metrics:           metrics,
		AuthService:       authService,
		MonitoringService: monitoringService,
		ExportService:     exportService,
		DB:                pool,
		Upstream:          upstreamGuard,
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
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
