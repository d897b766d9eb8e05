// Package export manages CSV exports of parking records: the filter
// vocabulary, selection validation, execution through the monitoring API
// and a durable record of every run.
package export

import (
	"errors"
	"time"

	"github.com/parkwatch/parkwatch/internal/monitoring/parkkihubi"
)

// Service errors.
var (
	ErrRecordNotFound        = errors.New("export record not found")
	ErrInvalidSelection      = errors.New("invalid export selection")
	ErrVocabularyUnavailable = errors.New("export vocabulary unavailable")
	ErrFileUnavailable       = errors.New("export file unavailable")
)

// Status of an export record.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Record is one export run and its outcome.
type Record struct {
	ID          string
	RequestedBy string
	Selection   parkkihubi.ExportSelection
	Status      Status
	Filename    string
	Path        string
	Bytes       int64
	Error       string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// Vocabulary is the filter vocabulary merged over every page the
// monitoring API serves.
type Vocabulary struct {
	Operators    []parkkihubi.Operator
	PaymentZones []parkkihubi.PaymentZone
	FetchedAt    time.Time
}

// HasOperator reports whether an operator ID is part of the vocabulary.
func (v *Vocabulary) HasOperator(id string) bool {
	for _, op := range v.Operators {
		if op.ID == id {
			return true
		}
	}
	return false
}

// HasZone reports whether a payment zone code is part of the vocabulary.
func (v *Vocabulary) HasZone(code string) bool {
	for _, zone := range v.PaymentZones {
		if zone.Code == code {
			return true
		}
	}
	return false
}
