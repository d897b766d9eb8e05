package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/parkwatch/parkwatch/internal/api/models"
	"github.com/parkwatch/parkwatch/internal/api/response"
	"github.com/parkwatch/parkwatch/internal/export"
)

// ExportHandler handles CSV export endpoints.
type ExportHandler struct {
	exports *export.Service
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(exports *export.Service) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// ListExports handles GET /v1/exports - export history, newest first.
func (h *ExportHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.BadRequest(w, r, "invalid query parameter", []models.FieldError{
				{Field: "limit", Message: "must be a positive integer", Code: "INVALID_FORMAT"},
			})
			return
		}
		limit = parsed
	}

	records, err := h.exports.List(r.Context(), limit)
	if err != nil {
		response.InternalError(w, r, "failed to list exports")
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewExportListResponse(records))
}

// CreateExport handles POST /v1/exports - run a CSV export.
func (h *ExportHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	var input models.CreateExportRequest
	if !decodeBody(w, r, &input) {
		return
	}

	if fieldErrors := input.Validate(); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid export request", fieldErrors)
		return
	}

	accountID := GetAccountID(r.Context())
	record, err := h.exports.Run(r.Context(), accountID, input.Selection())
	if err != nil {
		switch {
		case errors.Is(err, export.ErrInvalidSelection):
			response.UnprocessableEntity(w, r, err.Error())
		case errors.Is(err, export.ErrVocabularyUnavailable):
			response.BadGateway(w, r, "export filters unavailable")
		case record != nil:
			// The failed run is on record; point the caller at it.
			response.BadGateway(w, r, fmt.Sprintf("export %s failed: %s", record.ID, record.Error))
		default:
			response.InternalError(w, r, "export failed")
		}
		return
	}

	response.Created(w, r, "/v1/exports/"+record.ID, models.NewExportRecord(record))
}

// GetExport handles GET /v1/exports/{exportID} - one export record.
func (h *ExportHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	record, err := h.exports.Get(r.Context(), chi.URLParam(r, "exportID"))
	if err != nil {
		if errors.Is(err, export.ErrRecordNotFound) {
			response.NotFound(w, r, "export not found")
			return
		}
		response.InternalError(w, r, "failed to load export")
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewExportRecord(record))
}

// DownloadExport handles GET /v1/exports/{exportID}/file - the CSV file.
func (h *ExportHandler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	record, file, err := h.exports.Open(r.Context(), chi.URLParam(r, "exportID"))
	if err != nil {
		switch {
		case errors.Is(err, export.ErrRecordNotFound):
			response.NotFound(w, r, "export not found")
		case errors.Is(err, export.ErrFileUnavailable):
			response.Conflict(w, r, err.Error())
		default:
			response.InternalError(w, r, "failed to open export file")
		}
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.Filename))
	w.Header().Set("X-Suggested-Filename", record.Filename)
	w.Header().Set("Content-Length", strconv.FormatInt(record.Bytes, 10))
	w.WriteHeader(http.StatusOK)

	// Headers are out; a copy error here means the client hung up.
	_, _ = io.Copy(w, file)
}

// GetExportFilters handles GET /v1/exports/filters - operators and payment
// zones a selection may reference.
func (h *ExportHandler) GetExportFilters(w http.ResponseWriter, r *http.Request) {
	vocabulary, err := h.exports.Vocabulary(r.Context())
	if err != nil {
		response.BadGateway(w, r, "export filters unavailable")
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewExportFiltersResponse(vocabulary))
}
