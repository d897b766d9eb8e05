package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/parkwatch/parkwatch/internal/api"

// Metrics instruments the HTTP server. Route attributes use the chi route
// pattern rather than the raw path: export and region IDs would otherwise
// fan the series out one per UUID.
type Metrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
	inFlight metric.Int64UpDownCounter
	respSize metric.Int64Histogram
}

// NewMetrics creates the HTTP server instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	duration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Time spent handling a request"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	total, err := meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("Requests handled"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter(
		"http.server.requests_in_flight",
		metric.WithDescription("Requests currently being handled"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	respSize, err := meter.Int64Histogram(
		"http.server.response.size",
		metric.WithDescription("Response body size; exports dominate the upper buckets"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		duration: duration,
		total:    total,
		inFlight: inFlight,
		respSize: respSize,
	}, nil
}

// Middleware records duration, count, and response size per request.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.inFlight.Add(r.Context(), 1)
			defer m.inFlight.Add(r.Context(), -1)

			rec := newRecorder(w)
			next.ServeHTTP(rec, r)

			attrs := metric.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", routePattern(r)),
				attribute.Int("http.response.status_code", rec.status),
			)

			m.duration.Record(r.Context(), time.Since(start).Seconds(), attrs)
			m.total.Add(r.Context(), 1, attrs)
			m.respSize.Record(r.Context(), rec.bytes, attrs)
		})
	}
}

// routePattern returns the chi pattern that matched the request, e.g.
// /v1/exports/{exportID}/file. The pattern is only known after routing,
// so callers read it once the handler has run. Falls back to the raw
// path for requests that never reached the router.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
