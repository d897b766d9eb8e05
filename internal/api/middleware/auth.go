package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/parkwatch/parkwatch/internal/api/models"
	"github.com/parkwatch/parkwatch/internal/auth"
)

// accountIDKey carries the authenticated account ID for handlers.
type accountIDKey struct{}

// Auth validates the bearer token and stores the account ID in the
// request context. Requests without a valid access token get a 401
// problem; the problem body never says which check failed beyond
// expired-versus-invalid.
func Auth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeAuthProblem(w, r, "missing or malformed authorization header")
				return
			}

			accountID, err := authService.ValidateAccessToken(token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrAccessTokenExpired):
					writeAuthProblem(w, r, "access token has expired")
				default:
					writeAuthProblem(w, r, "invalid access token")
				}
				return
			}

			recordAccount(r.Context(), accountID)
			ctx := context.WithValue(r.Context(), accountIDKey{}, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme comparison is case-insensitive per RFC 7235.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// writeAuthProblem writes a 401 problem directly; the response package
// imports this one, so it cannot be used here.
func writeAuthProblem(w http.ResponseWriter, r *http.Request, detail string) {
	problem := models.NewUnauthorized(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetAccountID returns the account ID stored by Auth, or "" on routes
// outside it.
func GetAccountID(ctx context.Context) string {
	id, _ := ctx.Value(accountIDKey{}).(string)
	return id
}
