// Package handler provides HTTP handlers for the ParkWatch API.
package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/parkwatch/parkwatch/internal/api/models"
	"github.com/parkwatch/parkwatch/internal/api/response"
	"github.com/parkwatch/parkwatch/internal/monitoring"
	"github.com/parkwatch/parkwatch/internal/provider/guard"
)

// Pinger verifies connectivity to a backing store. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandlerConfig holds dependencies for the operational endpoints.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string

	// DB is checked by readiness. Optional.
	DB Pinger

	// Monitor reports snapshot cache state. Optional.
	Monitor *monitoring.Service

	// Upstream reports the monitoring API circuit state. Optional.
	Upstream *guard.Guard
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	db        Pinger
	monitor   *monitoring.Service
	upstream  *guard.Guard
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		db:        cfg.DB,
		monitor:   cfg.Monitor,
		upstream:  cfg.Upstream,
	}
}

// HealthCheck handles GET /healthz - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /readyz - readiness check.
// The database must answer; a missing or stale snapshot degrades but does
// not fail, since handlers can still refresh it on demand.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatusOK
	details := map[string]any{}

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			details["database"] = err.Error()
			health := models.Health{
				Status:  models.HealthStatusFail,
				Time:    models.Timestamp(time.Now()),
				Details: details,
			}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}

	if h.monitor != nil {
		cache := h.monitor.CacheStatus()
		switch {
		case !cache.HasData:
			status = models.HealthStatusDegraded
			details["snapshotCache"] = "no snapshot fetched yet"
		case cache.IsStale:
			status = models.HealthStatusDegraded
			details["snapshotCache"] = "snapshot stale"
		}
	}

	if h.upstream != nil && h.upstream.Health().IsUnhealthy() {
		status = models.HealthStatusDegraded
		details["upstream"] = "circuit breaker open"
	}

	health := models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
	}
	if len(details) > 0 {
		health.Details = details
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and upstream status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := models.Timestamp(time.Now())
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       now,
		Subsystems: []models.SubsystemStatus{},
		Upstreams:  []models.UpstreamStatus{},
	}

	if h.db != nil {
		sub := models.SubsystemStatus{Name: "database", Status: models.HealthStatusOK}
		if err := h.db.Ping(r.Context()); err != nil {
			detail := err.Error()
			sub.Status = models.HealthStatusFail
			sub.Detail = &detail
			status.Status = models.HealthStatusFail
		}
		status.Subsystems = append(status.Subsystems, sub)
	}

	if h.monitor != nil {
		sub := models.SubsystemStatus{Name: "snapshot-cache", Status: models.HealthStatusOK}
		cache := h.monitor.CacheStatus()
		switch {
		case !cache.HasData:
			detail := "no snapshot fetched yet"
			sub.Status = models.HealthStatusDegraded
			sub.Detail = &detail
		case cache.IsStale:
			detail := "snapshot stale"
			sub.Status = models.HealthStatusDegraded
			sub.Detail = &detail
		}
		if sub.Status == models.HealthStatusDegraded && status.Status == models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
		status.Subsystems = append(status.Subsystems, sub)
	}

	if h.upstream != nil {
		status.Upstreams = append(status.Upstreams, upstreamStatus(h.upstream.Health()))
		for _, up := range status.Upstreams {
			if up.Status == models.HealthStatusFail && status.Status == models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

// Version handles GET /v1/ops/version.
func (h *OpsHandler) Version(w http.ResponseWriter, r *http.Request) {
	info := models.VersionInfo{
		Version:   h.version,
		BuildTime: h.buildTime,
		GoVersion: runtime.Version(),
	}
	response.JSON(w, r, http.StatusOK, info)
}

// upstreamStatus converts guard health into its API representation.
func upstreamStatus(health *guard.Health) models.UpstreamStatus {
	up := models.UpstreamStatus{
		Name:         health.Name,
		Status:       models.HealthStatusOK,
		CircuitState: health.CircuitState.String(),
	}
	switch {
	case health.IsUnhealthy():
		up.Status = models.HealthStatusFail
	case health.IsDegraded():
		up.Status = models.HealthStatusDegraded
	}
	if health.LastSuccessAt != nil {
		ts := models.Timestamp(*health.LastSuccessAt)
		up.LastSuccessAt = &ts
	}
	if health.LastFailureAt != nil {
		ts := models.Timestamp(*health.LastFailureAt)
		up.LastFailureAt = &ts
	}
	if health.LastError != "" {
		message := health.LastError
		up.Message = &message
	}
	return up
}
