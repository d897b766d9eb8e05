// Package response writes the JSON bodies and RFC 7807 problems the
// handlers return, so handler code never touches encoders or headers.
package response

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/parkwatch/parkwatch/internal/api/middleware"
	"github.com/parkwatch/parkwatch/internal/api/models"
)

func requestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

// writeBody is the single success emitter. Every 2xx with a body goes
// through here so the X-Request-Id echo cannot be forgotten.
func writeBody(w http.ResponseWriter, r *http.Request, status int, location string, data any) {
	if id := requestID(r); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
	w.Header().Set("Content-Type", "application/json")
	if location != "" {
		w.Header().Set("Location", location)
	}
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeBody(w, r, status, "", data)
}

// Created writes a 201 pointing at the new resource.
func Created(w http.ResponseWriter, r *http.Request, location string, data any) {
	writeBody(w, r, http.StatusCreated, location, data)
}

// Accepted writes a 202 for work that continues after the response,
// such as queued export runs.
func Accepted(w http.ResponseWriter, r *http.Request, location string, data any) {
	writeBody(w, r, http.StatusAccepted, location, data)
}

// NoContent writes a bare 204.
func NoContent(w http.ResponseWriter, r *http.Request) {
	if id := requestID(r); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Error writes a problem body, stamping the request path as its instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest answers 400 with the field errors attached.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(requestID(r), detail, errors))
}

// Unauthorized answers 401.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewUnauthorized(requestID(r), detail))
}

// NotFound answers 404.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(requestID(r), detail))
}

// Conflict answers 409.
func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewConflict(requestID(r), detail))
}

// UnprocessableEntity answers 422 for selections that fail vocabulary
// validation.
func UnprocessableEntity(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewUnprocessableEntity(requestID(r), detail))
}

// InternalError answers 500.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(requestID(r), detail))
}

// BadGateway answers 502 when the upstream monitoring API fails.
func BadGateway(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewBadGateway(requestID(r), detail))
}

// ServiceUnavailable answers 503.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(requestID(r), detail))
}

// RateLimitInfo carries the quota headers a 429 response advertises.
type RateLimitInfo struct {
	Limit      int
	Remaining  int
	ResetAt    int64
	RetryAfter int
}

func (i *RateLimitInfo) apply(h http.Header) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(i.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(i.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(i.ResetAt, 10))
	if i.RetryAfter > 0 {
		h.Set("Retry-After", strconv.Itoa(i.RetryAfter))
	}
}

// TooManyRequests answers 429 without quota headers.
func TooManyRequests(w http.ResponseWriter, r *http.Request, detail string) {
	TooManyRequestsWithInfo(w, r, detail, nil)
}

// TooManyRequestsWithInfo answers 429 and, when info is present,
// advertises the quota state alongside the problem body.
func TooManyRequestsWithInfo(w http.ResponseWriter, r *http.Request, detail string, info *RateLimitInfo) {
	if info != nil {
		info.apply(w.Header())
	}
	Error(w, r, models.NewTooManyRequests(requestID(r), detail))
}
