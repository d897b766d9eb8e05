package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/parkwatch/parkwatch/internal/api/middleware"
	"github.com/parkwatch/parkwatch/internal/api/response"
)

// GetAccountID returns the authenticated account ID from the context,
// re-exported from the middleware package so handlers need only one
// import.
func GetAccountID(ctx context.Context) string {
	return middleware.GetAccountID(ctx)
}

// decodeBody unmarshals a JSON request body into dst. On malformed
// input it answers 400 and reports false; the handler just returns.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return false
	}
	return true
}
