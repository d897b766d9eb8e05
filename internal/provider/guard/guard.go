// Package guard wraps whole upstream operations with retry and circuit
// breaker protection.
//
// The monitoring API client performs no retries of its own: a paginated
// fetch that fails mid-chain surfaces as a single error. Retrying at this
// level re-reads the configured base URL and starts a fresh chain instead
// of resuming half-way through a stale one.
package guard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/parkwatch/parkwatch/internal/telemetry"
)

// ErrCircuitOpen is returned when the circuit breaker rejects an
// operation without running it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds configuration for a Guard.
type Config struct {
	// Name identifies the guarded upstream in logs and health reports.
	Name string

	// MaxRetries is the number of retry attempts after the first failure.
	// Default: 3
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 5 seconds
	MaxInterval time.Duration

	// Breaker is the circuit breaker configuration.
	// If nil, uses DefaultBreakerConfig.
	Breaker *BreakerConfig

	// Metrics records per-operation durations and outcomes. Optional.
	Metrics *telemetry.UpstreamMetrics

	Logger zerolog.Logger
}

// DefaultConfig returns sensible defaults for guarding an upstream.
func DefaultConfig(name string) Config {
	breaker := DefaultBreakerConfig()
	return Config{
		Name:            name,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Breaker:         &breaker,
	}
}

// Guard runs operations against a single upstream with exponential
// backoff retries and a shared circuit breaker.
type Guard struct {
	breaker *gobreaker.CircuitBreaker[any]
	config  Config
	logger  zerolog.Logger

	mu            sync.Mutex
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// New creates a new Guard.
func New(cfg Config) *Guard {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	breaker := DefaultBreakerConfig()
	if cfg.Breaker != nil {
		breaker = *cfg.Breaker
	}

	return &Guard{
		breaker: newBreaker(cfg.Name, breaker),
		config:  cfg,
		logger:  cfg.Logger,
	}
}

// Permanent marks an error as not retryable. Do returns it to the caller
// unwrapped after the first attempt.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op, retrying transient failures with exponential backoff.
// It returns ErrCircuitOpen without running op while the breaker is open.
// The operation name labels retry logs and metrics.
func (g *Guard) Do(ctx context.Context, operation string, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.config.InitialInterval
	bo.MaxInterval = g.config.MaxInterval
	bo.MaxElapsedTime = 0 // retries are bounded by MaxRetries and ctx

	attempt := func() error {
		start := time.Now()
		_, err := g.breaker.Execute(func() (any, error) {
			return nil, op()
		})
		if err == nil {
			g.config.Metrics.RecordOperation(ctx, g.config.Name, operation, time.Since(start), nil)
			g.recordSuccess()
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}

		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return err
		}

		g.config.Metrics.RecordOperation(ctx, g.config.Name, operation, time.Since(start), err)
		g.recordFailure(err)
		return err
	}

	notify := func(err error, next time.Duration) {
		g.logger.Warn().
			Err(err).
			Str("guard", g.config.Name).
			Str("operation", operation).
			Dur("retry_in", next).
			Msg("upstream operation failed")
	}

	backoffWithRetries := backoff.WithMaxRetries(bo, g.config.MaxRetries)
	return backoff.RetryNotify(attempt, backoff.WithContext(backoffWithRetries, ctx), notify)
}

// Health describes the guarded upstream as seen by the breaker.
type Health struct {
	// Name is the upstream identifier.
	Name string

	// CircuitState is the current circuit breaker state.
	CircuitState gobreaker.State

	// Counts contains circuit breaker statistics.
	Counts gobreaker.Counts

	// LastSuccessAt is the timestamp of the last successful operation.
	LastSuccessAt *time.Time

	// LastFailureAt is the timestamp of the last failed operation.
	LastFailureAt *time.Time

	// LastError is the most recent error message, if any.
	LastError string
}

// IsHealthy returns true if the breaker is closed.
func (h *Health) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded returns true if the breaker is probing in half-open state.
func (h *Health) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy returns true if the breaker is open.
func (h *Health) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Health returns the current health of the guarded upstream.
func (g *Guard) Health() *Health {
	g.mu.Lock()
	defer g.mu.Unlock()

	return &Health{
		Name:          g.config.Name,
		CircuitState:  g.breaker.State(),
		Counts:        g.breaker.Counts(),
		LastSuccessAt: g.lastSuccessAt,
		LastFailureAt: g.lastFailureAt,
		LastError:     g.lastError,
	}
}

// State returns the current circuit breaker state.
func (g *Guard) State() gobreaker.State {
	return g.breaker.State()
}

func (g *Guard) recordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	g.lastSuccessAt = &now
}

func (g *Guard) recordFailure(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	g.lastFailureAt = &now
	g.lastError = err.Error()
}
