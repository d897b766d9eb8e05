// Package middleware provides the HTTP middleware chain for the ParkWatch API.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// maxInboundIDLength caps request IDs accepted from callers; anything
// longer is replaced rather than echoed into logs and problem bodies.
const maxInboundIDLength = 64

type requestIDKey struct{}

// RequestID assigns every request an identifier and echoes it in the
// response header. An inbound X-Request-Id from the proxy is kept so one
// request carries the same ID across hops.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > maxInboundIDLength {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the ID assigned by RequestID, or "" outside it.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
