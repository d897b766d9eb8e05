package models

import (
	"time"

	"github.com/parkwatch/parkwatch/internal/export"
	"github.com/parkwatch/parkwatch/internal/monitoring/parkkihubi"
)

// CreateExportRequest represents a request to run a CSV export.
type CreateExportRequest struct {
	Operators    []string  `json:"operators,omitempty"`
	PaymentZones []string  `json:"paymentZones,omitempty"`
	TimeStart    time.Time `json:"timeStart"`
	TimeEnd      time.Time `json:"timeEnd"`
	ParkingCheck bool      `json:"parkingCheck"`
}

// Validate checks the request fields and returns any validation errors.
func (r *CreateExportRequest) Validate() []FieldError {
	var errors []FieldError

	if r.TimeStart.IsZero() {
		errors = append(errors, FieldError{
			Field:   "timeStart",
			Message: "timeStart is required",
			Code:    "REQUIRED",
		})
	}
	if r.TimeEnd.IsZero() {
		errors = append(errors, FieldError{
			Field:   "timeEnd",
			Message: "timeEnd is required",
			Code:    "REQUIRED",
		})
	}

	return errors
}

// Selection converts the request into an export selection.
func (r *CreateExportRequest) Selection() parkkihubi.ExportSelection {
	return parkkihubi.ExportSelection{
		OperatorIDs:  r.Operators,
		ZoneCodes:    r.PaymentZones,
		TimeStart:    r.TimeStart,
		TimeEnd:      r.TimeEnd,
		ParkingCheck: r.ParkingCheck,
	}
}

// ExportSelection represents the filters an export run was scoped to.
type ExportSelection struct {
	Operators    []string  `json:"operators,omitempty"`
	PaymentZones []string  `json:"paymentZones,omitempty"`
	TimeStart    Timestamp `json:"timeStart"`
	TimeEnd      Timestamp `json:"timeEnd"`
	ParkingCheck bool      `json:"parkingCheck"`
}

// ExportRecord represents one export run and its outcome. The server-side
// storage path stays internal; clients download through the file endpoint.
type ExportRecord struct {
	ExportID    string          `json:"exportId"`
	RequestedBy string          `json:"requestedBy"`
	Status      string          `json:"status"`
	Selection   ExportSelection `json:"selection"`
	Filename    string          `json:"filename,omitempty"`
	Bytes       int64           `json:"bytes,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   Timestamp       `json:"createdAt"`
	CompletedAt *Timestamp      `json:"completedAt,omitempty"`
}

// ExportListResponse represents a list of export records.
type ExportListResponse struct {
	Exports []ExportRecord `json:"exports"`
	Count   int            `json:"count"`
}

// ExportOperator is an operator entry of the export filter vocabulary.
type ExportOperator struct {
	OperatorID string `json:"operatorId"`
	Name       string `json:"name"`
}

// ExportPaymentZone is a payment zone entry of the export filter vocabulary.
type ExportPaymentZone struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// ExportFiltersResponse represents the filter vocabulary exports may be
// scoped to.
type ExportFiltersResponse struct {
	Operators    []ExportOperator    `json:"operators"`
	PaymentZones []ExportPaymentZone `json:"paymentZones"`
	FetchedAt    Timestamp           `json:"fetchedAt"`
}

// NewExportRecord converts an export record into its API representation.
func NewExportRecord(record *export.Record) ExportRecord {
	view := ExportRecord{
		ExportID:    record.ID,
		RequestedBy: record.RequestedBy,
		Status:      string(record.Status),
		Selection: ExportSelection{
			Operators:    record.Selection.OperatorIDs,
			PaymentZones: record.Selection.ZoneCodes,
			TimeStart:    Timestamp(record.Selection.TimeStart),
			TimeEnd:      Timestamp(record.Selection.TimeEnd),
			ParkingCheck: record.Selection.ParkingCheck,
		},
		Filename:  record.Filename,
		Bytes:     record.Bytes,
		Error:     record.Error,
		CreatedAt: Timestamp(record.CreatedAt),
	}
	if !record.CompletedAt.IsZero() {
		completedAt := Timestamp(record.CompletedAt)
		view.CompletedAt = &completedAt
	}
	return view
}

// NewExportListResponse converts export records into the list response.
func NewExportListResponse(records []*export.Record) ExportListResponse {
	exports := make([]ExportRecord, 0, len(records))
	for _, record := range records {
		exports = append(exports, NewExportRecord(record))
	}
	return ExportListResponse{Exports: exports, Count: len(exports)}
}

// NewExportFiltersResponse converts the filter vocabulary into its API
// representation.
func NewExportFiltersResponse(vocabulary *export.Vocabulary) ExportFiltersResponse {
	operators := make([]ExportOperator, 0, len(vocabulary.Operators))
	for _, op := range vocabulary.Operators {
		operators = append(operators, ExportOperator{OperatorID: op.ID, Name: op.Name})
	}
	zones := make([]ExportPaymentZone, 0, len(vocabulary.PaymentZones))
	for _, zone := range vocabulary.PaymentZones {
		zones = append(zones, ExportPaymentZone{Name: zone.Name, Code: zone.Code})
	}
	return ExportFiltersResponse{
		Operators:    operators,
		PaymentZones: zones,
		FetchedAt:    Timestamp(vocabulary.FetchedAt),
	}
}
