package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// probePaths are hit every few seconds by the load balancer; logging them
// at info level would drown out real traffic.
var probePaths = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
	"/version": {},
}

// loggedAccount lets the access logger report the account the Auth
// middleware resolved, even though Auth runs deeper in the chain. Logger
// installs the holder; Auth fills it.
type loggedAccount struct {
	id string
}

type loggedAccountKey struct{}

func recordAccount(ctx context.Context, accountID string) {
	if holder, ok := ctx.Value(loggedAccountKey{}).(*loggedAccount); ok {
		holder.id = accountID
	}
}

// Logger writes one access log line per request. The level follows the
// response: server errors log at error level, client errors at warn,
// probe endpoints at debug, everything else at info.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newRecorder(w)

			account := &loggedAccount{}
			ctx := context.WithValue(r.Context(), loggedAccountKey{}, account)

			next.ServeHTTP(rec, r.WithContext(ctx))

			var evt *zerolog.Event
			switch {
			case rec.status >= http.StatusInternalServerError:
				evt = log.Error()
			case rec.status >= http.StatusBadRequest:
				evt = log.Warn()
			default:
				if _, probe := probePaths[r.URL.Path]; probe {
					evt = log.Debug()
				} else {
					evt = log.Info()
				}
			}

			evt = evt.
				Str("request_id", GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Int64("bytes", rec.bytes).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr)

			if account.id != "" {
				evt = evt.Str("account_id", account.id)
			}
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				evt = evt.Str("trace_id", sc.TraceID().String())
			}

			evt.Msg("request completed")
		})
	}
}
