package models

import (
	"encoding/json"
	"net/http"
)

// Problem is the RFC 7807 body carried by every error response. The
// trace identifier is always present so a failing call can be matched
// to its log lines.
type Problem struct {
	// Type identifies the problem class as a URI reference.
	Type string `json:"type"`

	// Title is a short summary of the problem class.
	Title string `json:"title"`

	// Status is the HTTP status code of this occurrence.
	Status int `json:"status"`

	// Detail explains this occurrence in plain language.
	Detail string `json:"detail,omitempty"`

	// Instance points at the request path that produced the problem.
	Instance string `json:"instance,omitempty"`

	// TraceID carries the request identifier.
	TraceID string `json:"traceId"`

	// Errors lists per-field validation failures, when there are any.
	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError pins a validation failure to a single request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem type URIs. Clients dispatch on these rather than on the
// title text.
const (
	ProblemTypeValidation       = "https://api.parkwatch.fi/problems/validation-error"
	ProblemTypeUnauthorized     = "https://api.parkwatch.fi/problems/unauthorized"
	ProblemTypeNotFound         = "https://api.parkwatch.fi/problems/not-found"
	ProblemTypeConflict         = "https://api.parkwatch.fi/problems/conflict"
	ProblemTypeInvalidSelection = "https://api.parkwatch.fi/problems/invalid-selection"
	ProblemTypeUnsupportedMedia = "https://api.parkwatch.fi/problems/unsupported-media-type"
	ProblemTypeTLSRequired      = "https://api.parkwatch.fi/problems/tls-required"
	ProblemTypeTooManyRequests  = "https://api.parkwatch.fi/problems/too-many-requests"
	ProblemTypeInternal         = "https://api.parkwatch.fi/problems/internal-error"
	ProblemTypeUpstream         = "https://api.parkwatch.fi/problems/upstream-error"
	ProblemTypeUnavailable      = "https://api.parkwatch.fi/problems/service-unavailable"
)

// NewProblem builds a Problem with the common fields filled in. Most
// callers want one of the status-specific constructors below.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

func statusProblem(problemType, title string, status int, traceID, detail string) *Problem {
	p := NewProblem(problemType, title, status, traceID)
	p.Detail = detail
	return p
}

// Write sends the problem with the problem+json media type and echoes
// the trace identifier as X-Request-Id.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-Id", p.TraceID)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest builds a 400 problem carrying field-level validation errors.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	p := statusProblem(ProblemTypeValidation, "Validation error", http.StatusBadRequest, traceID, detail)
	p.Errors = errors
	return p
}

// NewUnauthorized builds a 401 problem.
func NewUnauthorized(traceID, detail string) *Problem {
	return statusProblem(ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized, traceID, detail)
}

// NewNotFound builds a 404 problem.
func NewNotFound(traceID, detail string) *Problem {
	return statusProblem(ProblemTypeNotFound, "Not found", http.StatusNotFound, traceID, detail)
}

// NewConflict builds a 409 problem.
func NewConflict(traceID, detail string) *Problem {
	return statusProblem(ProblemTypeConflict, "Conflict", http.StatusConflict, traceID, detail)
}

// NewUnprocessableEntity builds the 422 problem used when an export
// selection names operators or payment zones the upstream vocabulary
// does not contain.
func NewUnprocessableEntity(traceID, detail string) *Problem {
	return statusProblem(ProblemTypeInvalidSelection, "Invalid selection", http.StatusUnprocessableEntity, traceID, detail)
}

// NewTooManyRequests builds a 429 problem.
func NewTooManyRequests(traceID, detail string) *Problem {
	return statusProblem(ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, traceID, detail)
}

// NewInternalError builds a 500 problem.
func NewInternalError(traceID, detail string) *Problem {
	return statusProblem(ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, traceID, detail)
}

// NewBadGateway builds the 502 problem used when the upstream
// monitoring API fails.
func NewBadGateway(traceID, detail string) *Problem {
	return statusProblem(ProblemTypeUpstream, "Upstream error", http.StatusBadGateway, traceID, detail)
}

// NewServiceUnavailable builds a 503 problem.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return statusProblem(ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable, traceID, detail)
}
