package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkwatch/parkwatch/internal/api/models"
)

func TestNewProblem(t *testing.T) {
	p := models.NewProblem(models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "trace-1")

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, "Validation error", p.Title)
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "trace-1", p.TraceID)
	assert.Empty(t, p.Detail)
	assert.Empty(t, p.Instance)
	assert.Nil(t, p.Errors)
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		problem *models.Problem
		typ     string
		title   string
		status  int
	}{
		{models.NewBadRequest("t", "bad", nil), models.ProblemTypeValidation, "Validation error", http.StatusBadRequest},
		{models.NewUnauthorized("t", "bad"), models.ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized},
		{models.NewNotFound("t", "bad"), models.ProblemTypeNotFound, "Not found", http.StatusNotFound},
		{models.NewConflict("t", "bad"), models.ProblemTypeConflict, "Conflict", http.StatusConflict},
		{models.NewUnprocessableEntity("t", "bad"), models.ProblemTypeInvalidSelection, "Invalid selection", http.StatusUnprocessableEntity},
		{models.NewTooManyRequests("t", "bad"), models.ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests},
		{models.NewInternalError("t", "bad"), models.ProblemTypeInternal, "Internal server error", http.StatusInternalServerError},
		{models.NewBadGateway("t", "bad"), models.ProblemTypeUpstream, "Upstream error", http.StatusBadGateway},
		{models.NewServiceUnavailable("t", "bad"), models.ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.problem.Type)
			assert.Equal(t, tt.title, tt.problem.Title)
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, "t", tt.problem.TraceID)
			assert.Equal(t, "bad", tt.problem.Detail)
		})
	}
}

func TestNewBadRequest_CarriesFieldErrors(t *testing.T) {
	p := models.NewBadRequest("trace-1", "invalid export request", []models.FieldError{
		{Field: "timeStart", Message: "timeStart is required", Code: "REQUIRED"},
		{Field: "timeEnd", Message: "timeEnd is required", Code: "REQUIRED"},
	})

	require.Len(t, p.Errors, 2)
	assert.Equal(t, "timeStart", p.Errors[0].Field)
	assert.Equal(t, "REQUIRED", p.Errors[0].Code)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("trace-1", "invalid input", []models.FieldError{
		{Field: "username", Message: "username is required"},
	})
	p.Instance = "/v1/auth/login"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "trace-1", w.Header().Get("X-Request-Id"))

	var got models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))

	assert.Equal(t, models.ProblemTypeValidation, got.Type)
	assert.Equal(t, http.StatusBadRequest, got.Status)
	assert.Equal(t, "invalid input", got.Detail)
	assert.Equal(t, "/v1/auth/login", got.Instance)
	assert.Equal(t, "trace-1", got.TraceID)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, "username", got.Errors[0].Field)
}

func TestProblem_WireShape(t *testing.T) {
	p := models.NewUnauthorized("trace-1", "")

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var keys map[string]any
	require.NoError(t, json.Unmarshal(raw, &keys))

	// Empty optionals stay off the wire; traceId is always present.
	assert.Contains(t, keys, "type")
	assert.Contains(t, keys, "title")
	assert.Contains(t, keys, "status")
	assert.Contains(t, keys, "traceId")
	assert.NotContains(t, keys, "detail")
	assert.NotContains(t, keys, "instance")
	assert.NotContains(t, keys, "errors")
}
