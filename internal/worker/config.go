// Package worker provides background job processing for ParkWatch.
package worker

import (
	"time"
)

// RefreshConfig holds configuration for the periodic refresh job.
type RefreshConfig struct {
	// Interval between refresh cycles.
	// Default: 5 minutes
	Interval time.Duration

	// Jitter is the maximum random delay before the first cycle, so
	// multiple workers do not hit the upstream at the same instant.
	// Default: 30 seconds
	Jitter time.Duration

	// Timeout is the timeout for one refresh cycle.
	// Default: 60 seconds
	Timeout time.Duration

	// RefreshSnapshot enables region snapshot refresh.
	// Default: true
	RefreshSnapshot bool

	// RefreshVocabulary enables export filter vocabulary refresh.
	// Default: true
	RefreshVocabulary bool
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval:          5 * time.Minute,
		Jitter:            30 * time.Second,
		Timeout:           60 * time.Second,
		RefreshSnapshot:   true,
		RefreshVocabulary: true,
	}
}
