package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/parkwatch/parkwatch/internal/monitoring/parkkihubi"
	"github.com/parkwatch/parkwatch/internal/telemetry"
)

// snapshotCacheName labels cache metrics; it matches the subsystem name
// reported by the readiness probe.
const snapshotCacheName = "snapshot-cache"

// Source streams monitoring data page by page. *parkkihubi.Client
// satisfies it.
type Source interface {
	// BaseURL identifies where the data comes from.
	BaseURL() string

	// FetchRegions streams every page of the region list.
	FetchRegions(ctx context.Context, onPage func([]parkkihubi.Region)) error

	// FetchRegionStatistics streams region statistics, optionally at an instant.
	FetchRegionStatistics(ctx context.Context, at time.Time, onPage func([]parkkihubi.RegionStatistics)) error

	// FetchValidParkings streams parkings valid at an instant.
	FetchValidParkings(ctx context.Context, at time.Time, onPage func([]parkkihubi.ValidParking)) error
}

// ServiceConfig holds configuration for the monitoring service.
type ServiceConfig struct {
	// Source is the upstream monitoring API.
	Source Source

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache the region snapshot (default: 2 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving stale data on source errors (default: 30 minutes).
	StaleIfErrorTTL time.Duration

	// Metrics counts snapshot cache hits and misses. Optional.
	Metrics *telemetry.UpstreamMetrics
}

// Service provides region monitoring data with caching. A refresh is one
// whole fetch chain against the source; retry policy stays with callers.
type Service struct {
	source          Source
	logger          zerolog.Logger
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration
	metrics         *telemetry.UpstreamMetrics

	mu          sync.RWMutex
	snapshot    *Snapshot
	cacheExpiry time.Time
	lastErr     error
}

// NewService creates a new monitoring service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 2 * time.Minute
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 30 * time.Minute
	}

	return &Service{
		source:          cfg.Source,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
		metrics:         cfg.Metrics,
	}
}

// GetSnapshot returns the current region snapshot.
// It uses a cached version if available and not expired.
func (s *Service) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	if s.snapshot != nil && time.Now().Before(s.cacheExpiry) {
		snapshot := s.snapshot
		s.mu.RUnlock()
		s.metrics.RecordCacheHit(ctx, snapshotCacheName)
		return snapshot, nil
	}
	s.mu.RUnlock()

	s.metrics.RecordCacheMiss(ctx, snapshotCacheName)
	return s.refreshSnapshot(ctx)
}

// GetRegions returns all region overviews.
func (s *Service) GetRegions(ctx context.Context) ([]*RegionOverview, error) {
	snapshot, err := s.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.RegionList(), nil
}

// GetRegion returns one region overview.
func (s *Service) GetRegion(ctx context.Context, regionID string) (*RegionOverview, error) {
	snapshot, err := s.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	region, ok := snapshot.Regions[regionID]
	if !ok {
		return nil, ErrRegionNotFound
	}
	return region, nil
}

// ParkingsAt returns the parkings valid at the given instant. A zero
// instant means "now". Results are not cached; time-scoped queries rarely
// repeat.
func (s *Service) ParkingsAt(ctx context.Context, at time.Time) ([]Parking, error) {
	var parkings []Parking
	err := s.source.FetchValidParkings(ctx, at, func(page []parkkihubi.ValidParking) {
		for _, p := range page {
			parkings = append(parkings, toParking(p))
		}
	})
	if err != nil {
		s.logger.Error().Err(err).Time("at", at).Msg("failed to fetch valid parkings")
		return nil, ErrSourceUnavailable
	}
	return parkings, nil
}

// Refresh discards the cached snapshot and fetches a fresh one.
func (s *Service) Refresh(ctx context.Context) error {
	s.InvalidateCache()
	_, err := s.refreshSnapshot(ctx)
	return err
}

// InvalidateCache clears the cached snapshot.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
	s.cacheExpiry = time.Time{}
}

// CacheStatus returns information about the current cache state.
func (s *Service) CacheStatus() CacheStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := CacheStatus{}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	if s.snapshot == nil {
		return status
	}

	now := time.Now()
	status.HasData = true
	status.FetchedAt = s.snapshot.FetchedAt
	status.ExpiresAt = s.cacheExpiry
	status.IsExpired = now.After(s.cacheExpiry)
	status.IsStale = now.After(s.snapshot.FetchedAt.Add(s.staleIfErrorTTL))
	status.RegionCount = len(s.snapshot.Regions)
	status.Source = s.snapshot.Source
	return status
}

// CacheStatus represents the current state of the cache.
type CacheStatus struct {
	HasData     bool
	FetchedAt   time.Time
	ExpiresAt   time.Time
	IsExpired   bool
	IsStale     bool
	RegionCount int
	Source      string
	LastError   string
}

// refreshSnapshot fetches fresh data from the source.
func (s *Service) refreshSnapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check: another goroutine might have refreshed while we waited.
	if s.snapshot != nil && time.Now().Before(s.cacheExpiry) {
		return s.snapshot, nil
	}

	s.logger.Debug().Msg("refreshing region snapshot")

	snapshot, err := s.fetchSnapshot(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch region snapshot")
		s.lastErr = err

		// Serve stale data while it is not too old.
		if s.snapshot != nil && time.Now().Before(s.snapshot.FetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", s.snapshot.FetchedAt).
				Msg("serving stale region data due to source error")
			return s.snapshot, nil
		}

		return nil, ErrSourceUnavailable
	}

	s.snapshot = snapshot
	s.cacheExpiry = time.Now().Add(s.cacheTTL)
	s.lastErr = nil

	s.logger.Info().
		Int("regions", len(snapshot.Regions)).
		Int("parkings", snapshot.TotalParkings()).
		Time("expires_at", s.cacheExpiry).
		Msg("region snapshot refreshed")

	return snapshot, nil
}

// fetchSnapshot accumulates the region and statistics chains and joins them.
func (s *Service) fetchSnapshot(ctx context.Context) (*Snapshot, error) {
	var regions []parkkihubi.Region
	if err := s.source.FetchRegions(ctx, func(page []parkkihubi.Region) {
		regions = append(regions, page...)
	}); err != nil {
		return nil, fmt.Errorf("fetch regions: %w", err)
	}

	var stats []parkkihubi.RegionStatistics
	if err := s.source.FetchRegionStatistics(ctx, time.Time{}, func(page []parkkihubi.RegionStatistics) {
		stats = append(stats, page...)
	}); err != nil {
		return nil, fmt.Errorf("fetch region statistics: %w", err)
	}

	counts := make(map[string]int, len(stats))
	for _, st := range stats {
		counts[st.RegionID] = st.ParkingCount
	}

	snapshot := NewSnapshot(s.source.BaseURL())
	for _, r := range regions {
		overview := &RegionOverview{
			ID:           r.ID,
			Name:         r.Name,
			Capacity:     r.CapacityEstimate,
			ParkingCount: counts[r.ID],
			Geometry:     r.Geometry,
		}
		if !r.Geometry.IsZero() {
			overview.Centroid = r.Geometry.Centroid()
			overview.Bounds = r.Geometry.Bounds()
		}
		snapshot.Regions[r.ID] = overview
	}

	return snapshot, nil
}
