package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/parkwatch/parkwatch/internal/api/models"
)

// RateLimitConfig is one rate-limit tier: how many requests each key
// may spend per window.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// The three tiers the router installs. Export runs are the most
// expensive operation in the system (an upstream fetch plus a file
// write), so they get the tightest budget.
var (
	AuthRateLimit     = RateLimitConfig{RequestLimit: 10, WindowLength: time.Minute}
	ExportRateLimit   = RateLimitConfig{RequestLimit: 6, WindowLength: time.Minute}
	StandardRateLimit = RateLimitConfig{RequestLimit: 120, WindowLength: time.Minute}
)

// RateLimitByIP limits by client address. RealIP runs earlier in the
// chain, so the key reflects X-Forwarded-For when a proxy set it.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limiter(cfg, httprate.KeyByRealIP)
}

// RateLimitByAccount limits by the authenticated account, falling back
// to the client address on routes reached without a token.
func RateLimitByAccount(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limiter(cfg, keyByAccountOrIP)
}

func limiter(cfg RateLimitConfig, key httprate.KeyFunc) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(limitHandler(cfg.WindowLength)),
	)
}

func keyByAccountOrIP(r *http.Request) (string, error) {
	if accountID := GetAccountID(r.Context()); accountID != "" {
		return "account:" + accountID, nil
	}
	return httprate.KeyByRealIP(r)
}

// limitHandler answers 429 with a problem body. httprate does not
// expose the exact counter reset, so Retry-After advertises the full
// window, which is always a safe wait.
func limitHandler(window time.Duration) http.HandlerFunc {
	retryAfter := strconv.Itoa(max(1, int(window/time.Second)))
	return func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewTooManyRequests(GetRequestID(r.Context()), "rate limit exceeded, retry later")
		problem.Instance = r.URL.Path
		w.Header().Set("Retry-After", retryAfter)
		problem.Write(w)
	}
}
