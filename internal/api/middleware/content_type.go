package middleware

import (
	"mime"
	"net/http"

	"github.com/parkwatch/parkwatch/internal/api/models"
)

// ContentTypeJSON defaults the response content type to JSON. Handlers
// that serve something else, like the CSV download, set their own type
// before writing and win.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON rejects mutating requests whose declared body type is not
// JSON. Requests that declare no type at all pass through; decoding fails
// on those with a clearer message than a blanket 415 would give.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			declared := r.Header.Get("Content-Type")
			if declared == "" {
				break
			}
			mediaType, _, err := mime.ParseMediaType(declared)
			if err != nil || mediaType != "application/json" {
				problem := models.NewProblem(
					models.ProblemTypeUnsupportedMedia,
					"Unsupported media type",
					http.StatusUnsupportedMediaType,
					GetRequestID(r.Context()),
				)
				problem.Detail = "request bodies must be application/json"
				problem.Instance = r.URL.Path
				problem.Write(w)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
