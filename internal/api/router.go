// Package api provides the HTTP API for the ParkWatch dashboard.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/parkwatch/parkwatch/internal/api/handler"
	"github.com/parkwatch/parkwatch/internal/api/middleware"
	"github.com/parkwatch/parkwatch/internal/auth"
	"github.com/parkwatch/parkwatch/internal/export"
	"github.com/parkwatch/parkwatch/internal/monitoring"
	"github.com/parkwatch/parkwatch/internal/provider/guard"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version           string
	BuildTime         string
	Logger            zerolog.Logger
	ServiceName       string
	Metrics           *middleware.Metrics
	AuthService       *auth.Service
	MonitoringService *monitoring.Service
	ExportService     *export.Service

	// DB answers the readiness probe. Optional.
	DB handler.Pinger

	// Upstream reports the monitoring API circuit state. Optional.
	Upstream *guard.Guard
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "parkwatch-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		DB:        cfg.DB,
		Monitor:   cfg.MonitoringService,
		Upstream:  cfg.Upstream,
	})
	authHandler := handler.NewAuthHandler(cfg.AuthService)
	monitoringHandler := handler.NewMonitoringHandler(cfg.MonitoringService)
	exportHandler := handler.NewExportHandler(cfg.ExportService)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.AuthService)

	// Create rate limit middleware for different endpoint categories
	authRateLimit := middleware.RateLimitByIP(middleware.AuthRateLimit)              // 10 req/min
	exportRunRateLimit := middleware.RateLimitByAccount(middleware.ExportRateLimit)  // 6 req/min
	standardRateLimit := middleware.RateLimitByAccount(middleware.StandardRateLimit) // 120 req/min

	// Probe endpoints live at the root for the load balancer.
	r.Get("/healthz", opsHandler.HealthCheck)
	r.Get("/readyz", opsHandler.ReadinessCheck)
	r.Get("/version", opsHandler.Version)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Request bodies are JSON everywhere under /v1.
		r.Use(middleware.RequireJSON)

		// Auth endpoints (public) - strict rate limiting
		r.Route("/auth", func(r chi.Router) {
			r.Use(authRateLimit) // 10 requests per minute per IP
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.RefreshToken)
			r.Post("/logout", authHandler.Logout)
			// logout-all and me require authentication
			r.With(authMiddleware).Post("/logout-all", authHandler.LogoutAll)
			r.With(authMiddleware).Get("/me", authHandler.Me)
		})

		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/version", opsHandler.Version)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Monitoring endpoints (authenticated) - account-based rate limiting
		r.Route("/monitoring", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit) // 120 req/min per account
			r.Get("/regions", monitoringHandler.ListRegions)
			r.Get("/regions/{regionID}", monitoringHandler.GetRegion)
			r.Get("/parkings", monitoringHandler.ListParkings)
			r.Get("/cache", monitoringHandler.CacheStatus)
			r.Post("/refresh", monitoringHandler.RefreshSnapshot)
		})

		// Export endpoints (authenticated). Runs call the upstream API and
		// write files, so POST carries its own stricter limit.
		r.Route("/exports", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)
			r.Get("/", exportHandler.ListExports)
			r.Get("/filters", exportHandler.GetExportFilters)
			r.With(exportRunRateLimit).Post("/", exportHandler.CreateExport)
			r.Route("/{exportID}", func(r chi.Router) {
				r.Get("/", exportHandler.GetExport)
				r.Get("/file", exportHandler.DownloadExport)
			})
		})
	})

	return r
}
