package parkkihubi

import (
	"fmt"
	"time"

	"github.com/parkwatch/parkwatch/pkg/geojson"
)

// Wire layout follows the Parkkihubi monitoring serializers (snake_case).

// Region is one monitored region with its GeoJSON outline.
type Region struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	CapacityEstimate int              `json:"capacity_estimate"`
	Geometry         geojson.Geometry `json:"geometry"`
}

// RegionStatistics reports how many parkings are valid in a region at the
// queried instant.
type RegionStatistics struct {
	RegionID     string `json:"id"`
	ParkingCount int    `json:"parking_count"`
}

// ValidParking is a parking event valid at the queried instant. TimeEnd is
// zero for parkings that are still open.
type ValidParking struct {
	ID             string           `json:"id"`
	RegionID       string           `json:"region"`
	ZoneCode       string           `json:"zone"`
	TerminalNumber string           `json:"terminal_number"`
	OperatorName   string           `json:"operator_name"`
	TimeStart      time.Time        `json:"time_start"`
	TimeEnd        time.Time        `json:"time_end"`
	CreatedAt      time.Time        `json:"created_at"`
	ModifiedAt     time.Time        `json:"modified_at"`
	Location       geojson.Geometry `json:"location"`
}

// Operator is an export filter vocabulary entry.
type Operator struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PaymentZone is an export filter vocabulary entry.
type PaymentZone struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// ExportFilters is one page item of the filter vocabulary resource. The
// full vocabulary is the union over all pages.
type ExportFilters struct {
	Operators    []Operator    `json:"operators"`
	PaymentZones []PaymentZone `json:"payment_zones"`
}

// ExportTimeLayout is the timestamp layout the export endpoint accepts.
const ExportTimeLayout = "02.01.2006 15.04"

// ExportSelection narrows which parking records an export includes. Empty
// operator and zone slices mean unfiltered on that dimension; their keys
// are then left out of the request body entirely.
type ExportSelection struct {
	OperatorIDs  []string
	ZoneCodes    []string
	TimeStart    time.Time
	TimeEnd      time.Time
	ParkingCheck bool
}

type exportRequest struct {
	Operators    []operatorRef `json:"operators,omitempty"`
	PaymentZones []zoneRef     `json:"payment_zones,omitempty"`
	TimeStart    string        `json:"time_start"`
	TimeEnd      string        `json:"time_end"`
	ParkingCheck bool          `json:"parking_check"`
}

type operatorRef struct {
	ID string `json:"id"`
}

type zoneRef struct {
	Code string `json:"code"`
}

func (s ExportSelection) wire() exportRequest {
	req := exportRequest{
		TimeStart:    s.TimeStart.Format(ExportTimeLayout),
		TimeEnd:      s.TimeEnd.Format(ExportTimeLayout),
		ParkingCheck: s.ParkingCheck,
	}
	for _, id := range s.OperatorIDs {
		req.Operators = append(req.Operators, operatorRef{ID: id})
	}
	for _, code := range s.ZoneCodes {
		req.PaymentZones = append(req.PaymentZones, zoneRef{Code: code})
	}
	return req
}

// fallbackFilename mirrors the name the server builds, for responses that
// arrive without a suggestion header.
func (s ExportSelection) fallbackFilename() string {
	return fmt.Sprintf("parkings_%s_%s.csv",
		s.TimeStart.Format("2006-01-02"), s.TimeEnd.Format("2006-01-02"))
}

// ExportDownload describes a completed CSV download.
type ExportDownload struct {
	Filename string
	Path     string
	Bytes    int64
}
