package worker

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/parkwatch/parkwatch/internal/export"
	"github.com/parkwatch/parkwatch/internal/monitoring"
)

// RefreshJob keeps the region snapshot and the export vocabulary warm so
// dashboard requests rarely pay for an upstream fetch.
type RefreshJob struct {
	config RefreshConfig
	logger zerolog.Logger

	// Services (optional, nil if not configured)
	monitor *monitoring.Service
	exports *export.Service

	// Metrics
	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalCycles         int64
	FailedCycles        int64
	SnapshotRefreshes   int64
	VocabularyRefreshes int64

	// Timings
	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration

	// Last snapshot size
	LastSnapshotRegions int
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config  RefreshConfig
	Logger  zerolog.Logger
	Monitor *monitoring.Service
	Exports *export.Service
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if config.Interval <= 0 {
		config = DefaultRefreshConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	return &RefreshJob{
		config:  config,
		logger:  cfg.Logger,
		monitor: cfg.Monitor,
		exports: cfg.Exports,
		metrics: &RefreshMetrics{},
	}
}

// RefreshResult contains the result of one refresh cycle.
type RefreshResult struct {
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
	SnapshotRegions int
	Errors          []RefreshError
}

// RefreshError represents an error during a refresh cycle.
type RefreshError struct {
	Task  string
	Error string
}

// Run executes one refresh cycle.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{StartTime: startTime}

	cycleCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	if j.config.RefreshSnapshot && j.monitor != nil {
		if err := j.monitor.Refresh(cycleCtx); err != nil {
			result.Errors = append(result.Errors, RefreshError{
				Task:  "snapshot",
				Error: err.Error(),
			})
		} else {
			result.SnapshotRegions = j.monitor.CacheStatus().RegionCount
		}
	}

	if j.config.RefreshVocabulary && j.exports != nil {
		if _, err := j.exports.Vocabulary(cycleCtx); err != nil {
			result.Errors = append(result.Errors, RefreshError{
				Task:  "vocabulary",
				Error: err.Error(),
			})
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	event := j.logger.Info()
	if len(result.Errors) > 0 {
		event = j.logger.Warn().Interface("errors", result.Errors)
	}
	event.
		Dur("duration", result.Duration).
		Int("regions", result.SnapshotRegions).
		Msg("refresh cycle completed")

	return result
}

// Start runs refresh cycles until the context is cancelled. The first
// cycle is delayed by a random jitter within the configured bound.
func (j *RefreshJob) Start(ctx context.Context) {
	if j.config.Jitter > 0 {
		delay := rand.N(j.config.Jitter)
		j.logger.Info().Dur("delay", delay).Msg("delaying first refresh cycle")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}

	j.Run(ctx)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Run(ctx)
		case <-ctx.Done():
			j.logger.Info().Msg("refresh loop stopped")
			return
		}
	}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalCycles++
	if len(result.Errors) > 0 {
		j.metrics.FailedCycles++
	}
	if j.config.RefreshSnapshot && j.monitor != nil && !hasTaskError(result.Errors, "snapshot") {
		j.metrics.SnapshotRefreshes++
		j.metrics.LastSnapshotRegions = result.SnapshotRegions
	}
	if j.config.RefreshVocabulary && j.exports != nil && !hasTaskError(result.Errors, "vocabulary") {
		j.metrics.VocabularyRefreshes++
	}
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

func hasTaskError(errors []RefreshError, task string) bool {
	for _, e := range errors {
		if e.Task == task {
			return true
		}
	}
	return false
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalCycles:         j.metrics.TotalCycles,
		FailedCycles:        j.metrics.FailedCycles,
		SnapshotRefreshes:   j.metrics.SnapshotRefreshes,
		VocabularyRefreshes: j.metrics.VocabularyRefreshes,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
		LastSnapshotRegions: j.metrics.LastSnapshotRegions,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_cycles":          m.TotalCycles,
		"failed_cycles":         m.FailedCycles,
		"snapshot_refreshes":    m.SnapshotRefreshes,
		"vocabulary_refreshes":  m.VocabularyRefreshes,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
		"last_snapshot_regions": m.LastSnapshotRegions,
	}
}
