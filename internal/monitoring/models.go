// Package monitoring provides cached access to parking-monitoring data.
package monitoring

import (
	"errors"
	"sort"
	"time"

	"github.com/parkwatch/parkwatch/internal/monitoring/parkkihubi"
	"github.com/parkwatch/parkwatch/pkg/geojson"
)

// Service errors.
var (
	ErrRegionNotFound    = errors.New("region not found")
	ErrSourceUnavailable = errors.New("monitoring source unavailable")
)

// RegionOverview is one region joined with its current statistics and the
// geometry summaries the dashboard map needs.
type RegionOverview struct {
	ID           string
	Name         string
	Capacity     int
	ParkingCount int
	Centroid     geojson.Point
	Bounds       geojson.Bounds
	Geometry     geojson.Geometry
}

// Occupancy is the share of estimated capacity in use, clamped to [0, 1].
// Regions without a capacity estimate report 0.
func (r *RegionOverview) Occupancy() float64 {
	if r.Capacity <= 0 {
		return 0
	}
	occupancy := float64(r.ParkingCount) / float64(r.Capacity)
	if occupancy > 1 {
		return 1
	}
	return occupancy
}

// Parking is a valid parking event prepared for the dashboard.
type Parking struct {
	ID             string
	RegionID       string
	ZoneCode       string
	TerminalNumber string
	OperatorName   string
	TimeStart      time.Time
	TimeEnd        time.Time
	Location       geojson.Point
}

// Snapshot is a point-in-time view of every monitored region.
type Snapshot struct {
	// Regions maps region ID to its overview.
	Regions map[string]*RegionOverview

	// FetchedAt is when this snapshot was retrieved.
	FetchedAt time.Time

	// Source is the base URL the snapshot came from.
	Source string
}

// NewSnapshot creates a new empty snapshot.
func NewSnapshot(source string) *Snapshot {
	return &Snapshot{
		Regions:   make(map[string]*RegionOverview),
		FetchedAt: time.Now(),
		Source:    source,
	}
}

// RegionList returns the regions sorted by name, then ID, for stable
// dashboard output.
func (s *Snapshot) RegionList() []*RegionOverview {
	regions := make([]*RegionOverview, 0, len(s.Regions))
	for _, region := range s.Regions {
		regions = append(regions, region)
	}
	sort.Slice(regions, func(i, j int) bool {
		if regions[i].Name != regions[j].Name {
			return regions[i].Name < regions[j].Name
		}
		return regions[i].ID < regions[j].ID
	})
	return regions
}

// TotalParkings sums the valid-parking counts across all regions.
func (s *Snapshot) TotalParkings() int {
	total := 0
	for _, region := range s.Regions {
		total += region.ParkingCount
	}
	return total
}

// toParking converts an upstream valid parking into the dashboard shape.
func toParking(p parkkihubi.ValidParking) Parking {
	parking := Parking{
		ID:             p.ID,
		RegionID:       p.RegionID,
		ZoneCode:       p.ZoneCode,
		TerminalNumber: p.TerminalNumber,
		OperatorName:   p.OperatorName,
		TimeStart:      p.TimeStart,
		TimeEnd:        p.TimeEnd,
	}
	if !p.Location.IsZero() {
		parking.Location = p.Location.Centroid()
	}
	return parking
}
