package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parkwatch/parkwatch/internal/api/models"
	"github.com/parkwatch/parkwatch/internal/api/response"
	"github.com/parkwatch/parkwatch/internal/monitoring"
)

// MonitoringHandler handles region monitoring endpoints.
type MonitoringHandler struct {
	monitor *monitoring.Service
}

// NewMonitoringHandler creates a new MonitoringHandler.
func NewMonitoringHandler(monitor *monitoring.Service) *MonitoringHandler {
	return &MonitoringHandler{monitor: monitor}
}

// ListRegions handles GET /v1/monitoring/regions - list regions with statistics.
func (h *MonitoringHandler) ListRegions(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.monitor.GetSnapshot(r.Context())
	if err != nil {
		response.BadGateway(w, r, "monitoring source unavailable")
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=30")
	response.JSON(w, r, http.StatusOK, models.NewRegionsResponse(snapshot))
}

// GetRegion handles GET /v1/monitoring/regions/{regionID} - region detail with geometry.
func (h *MonitoringHandler) GetRegion(w http.ResponseWriter, r *http.Request) {
	regionID := chi.URLParam(r, "regionID")

	region, err := h.monitor.GetRegion(r.Context(), regionID)
	if err != nil {
		switch {
		case errors.Is(err, monitoring.ErrRegionNotFound):
			response.NotFound(w, r, "region not found")
		case errors.Is(err, monitoring.ErrSourceUnavailable):
			response.BadGateway(w, r, "monitoring source unavailable")
		default:
			response.InternalError(w, r, "failed to load region")
		}
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=30")
	response.JSON(w, r, http.StatusOK, models.NewRegionDetail(region))
}

// ListParkings handles GET /v1/monitoring/parkings - parkings valid now or
// at the instant given by the time query parameter.
func (h *MonitoringHandler) ListParkings(w http.ResponseWriter, r *http.Request) {
	var at time.Time
	if raw := r.URL.Query().Get("time"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, r, "invalid query parameter", []models.FieldError{
				{Field: "time", Message: "must be an RFC 3339 timestamp", Code: "INVALID_FORMAT"},
			})
			return
		}
		at = parsed
	}

	parkings, err := h.monitor.ParkingsAt(r.Context(), at)
	if err != nil {
		response.BadGateway(w, r, "monitoring source unavailable")
		return
	}

	regionID := r.URL.Query().Get("region")
	out := make([]models.Parking, 0, len(parkings))
	for _, p := range parkings {
		if regionID != "" && p.RegionID != regionID {
			continue
		}
		out = append(out, models.NewParking(p))
	}

	resp := models.ParkingsResponse{Parkings: out, Count: len(out)}
	if !at.IsZero() {
		ts := models.Timestamp(at)
		resp.Time = &ts
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// RefreshSnapshot handles POST /v1/monitoring/refresh - force a snapshot refresh.
func (h *MonitoringHandler) RefreshSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.Refresh(r.Context()); err != nil {
		response.BadGateway(w, r, "monitoring source unavailable")
		return
	}

	status := h.monitor.CacheStatus()
	response.JSON(w, r, http.StatusOK, models.RefreshResponse{
		Regions:   status.RegionCount,
		FetchedAt: models.Timestamp(status.FetchedAt),
	})
}

// CacheStatus handles GET /v1/monitoring/cache - snapshot cache state.
func (h *MonitoringHandler) CacheStatus(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.NewCacheStatus(h.monitor.CacheStatus()))
}
