package monitoring

import (
	"context"
	"time"

	"github.com/parkwatch/parkwatch/internal/monitoring/parkkihubi"
	"github.com/parkwatch/parkwatch/internal/provider/guard"
)

// GuardedSource wraps a Source with retry and circuit breaker protection.
// Each fetch buffers its pages and delivers them only after the whole chain
// succeeds, so a retried chain never replays pages from a failed attempt.
type GuardedSource struct {
	source Source
	guard  *guard.Guard
}

// NewGuardedSource wraps source with g.
func NewGuardedSource(source Source, g *guard.Guard) *GuardedSource {
	return &GuardedSource{source: source, guard: g}
}

var _ Source = (*GuardedSource)(nil)

// BaseURL identifies where the data comes from.
func (s *GuardedSource) BaseURL() string {
	return s.source.BaseURL()
}

// FetchRegions streams every page of the region list.
func (s *GuardedSource) FetchRegions(ctx context.Context, onPage func([]parkkihubi.Region)) error {
	var pages [][]parkkihubi.Region
	err := s.guard.Do(ctx, "fetch_regions", func() error {
		pages = pages[:0]
		return s.source.FetchRegions(ctx, func(page []parkkihubi.Region) {
			pages = append(pages, page)
		})
	})
	if err != nil {
		return err
	}
	for _, page := range pages {
		onPage(page)
	}
	return nil
}

// FetchRegionStatistics streams region statistics, optionally at an instant.
func (s *GuardedSource) FetchRegionStatistics(ctx context.Context, at time.Time, onPage func([]parkkihubi.RegionStatistics)) error {
	var pages [][]parkkihubi.RegionStatistics
	err := s.guard.Do(ctx, "fetch_region_statistics", func() error {
		pages = pages[:0]
		return s.source.FetchRegionStatistics(ctx, at, func(page []parkkihubi.RegionStatistics) {
			pages = append(pages, page)
		})
	})
	if err != nil {
		return err
	}
	for _, page := range pages {
		onPage(page)
	}
	return nil
}

// FetchValidParkings streams parkings valid at an instant.
func (s *GuardedSource) FetchValidParkings(ctx context.Context, at time.Time, onPage func([]parkkihubi.ValidParking)) error {
	var pages [][]parkkihubi.ValidParking
	err := s.guard.Do(ctx, "fetch_valid_parkings", func() error {
		pages = pages[:0]
		return s.source.FetchValidParkings(ctx, at, func(page []parkkihubi.ValidParking) {
			pages = append(pages, page)
		})
	})
	if err != nil {
		return err
	}
	for _, page := range pages {
		onPage(page)
	}
	return nil
}
