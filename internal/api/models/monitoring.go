package models

import (
	"github.com/parkwatch/parkwatch/internal/monitoring"
	"github.com/parkwatch/parkwatch/pkg/geojson"
)

// Region represents a monitored region with its current statistics.
type Region struct {
	RegionID     string  `json:"regionId"`
	Name         string  `json:"name"`
	Capacity     int     `json:"capacityEstimate"`
	ParkingCount int     `json:"parkingCount"`
	Occupancy    float64 `json:"occupancy"`
	Centroid     *Point  `json:"centroid,omitempty"`
	Bounds       *GeoBox `json:"bounds,omitempty"`
}

// RegionDetail is a region with its full GeoJSON outline.
type RegionDetail struct {
	Region
	Geometry geojson.Geometry `json:"geometry"`
}

// RegionsResponse represents the region list with snapshot metadata.
type RegionsResponse struct {
	Regions   []Region  `json:"regions"`
	Count     int       `json:"count"`
	FetchedAt Timestamp `json:"fetchedAt"`
	Source    string    `json:"source"`
}

// Parking represents one parking event valid at the queried instant.
type Parking struct {
	ParkingID      string     `json:"parkingId"`
	RegionID       string     `json:"regionId,omitempty"`
	ZoneCode       string     `json:"zoneCode,omitempty"`
	TerminalNumber string     `json:"terminalNumber,omitempty"`
	OperatorName   string     `json:"operatorName,omitempty"`
	TimeStart      Timestamp  `json:"timeStart"`
	TimeEnd        *Timestamp `json:"timeEnd,omitempty"`
	Location       *Point     `json:"location,omitempty"`
}

// ParkingsResponse represents the parkings valid at an instant. Time is
// absent when the query asked for the current state.
type ParkingsResponse struct {
	Parkings []Parking  `json:"parkings"`
	Count    int        `json:"count"`
	Time     *Timestamp `json:"time,omitempty"`
}

// CacheStatus describes the state of the snapshot cache.
type CacheStatus struct {
	HasData     bool       `json:"hasData"`
	FetchedAt   *Timestamp `json:"fetchedAt,omitempty"`
	ExpiresAt   *Timestamp `json:"expiresAt,omitempty"`
	IsExpired   bool       `json:"isExpired"`
	IsStale     bool       `json:"isStale"`
	RegionCount int        `json:"regionCount"`
	Source      string     `json:"source,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}

// RefreshResponse reports the outcome of a forced snapshot refresh.
type RefreshResponse struct {
	Regions   int       `json:"regions"`
	FetchedAt Timestamp `json:"fetchedAt"`
}

// NewRegion converts a region overview into its API representation.
func NewRegion(o *monitoring.RegionOverview) Region {
	region := Region{
		RegionID:     o.ID,
		Name:         o.Name,
		Capacity:     o.Capacity,
		ParkingCount: o.ParkingCount,
		Occupancy:    o.Occupancy(),
	}
	if !o.Geometry.IsZero() {
		region.Centroid = &Point{Lat: o.Centroid.Lat, Lon: o.Centroid.Lon}
		region.Bounds = &GeoBox{
			MinLat: o.Bounds.MinLat,
			MinLon: o.Bounds.MinLon,
			MaxLat: o.Bounds.MaxLat,
			MaxLon: o.Bounds.MaxLon,
		}
	}
	return region
}

// NewRegionDetail converts a region overview including its geometry.
func NewRegionDetail(o *monitoring.RegionOverview) RegionDetail {
	return RegionDetail{
		Region:   NewRegion(o),
		Geometry: o.Geometry,
	}
}

// NewRegionsResponse converts a snapshot into the region list response.
func NewRegionsResponse(snapshot *monitoring.Snapshot) RegionsResponse {
	overviews := snapshot.RegionList()
	regions := make([]Region, 0, len(overviews))
	for _, o := range overviews {
		regions = append(regions, NewRegion(o))
	}
	return RegionsResponse{
		Regions:   regions,
		Count:     len(regions),
		FetchedAt: Timestamp(snapshot.FetchedAt),
		Source:    snapshot.Source,
	}
}

// NewParking converts a parking event into its API representation.
func NewParking(p monitoring.Parking) Parking {
	parking := Parking{
		ParkingID:      p.ID,
		RegionID:       p.RegionID,
		ZoneCode:       p.ZoneCode,
		TerminalNumber: p.TerminalNumber,
		OperatorName:   p.OperatorName,
		TimeStart:      Timestamp(p.TimeStart),
	}
	if !p.TimeEnd.IsZero() {
		end := Timestamp(p.TimeEnd)
		parking.TimeEnd = &end
	}
	if p.Location != (geojson.Point{}) {
		parking.Location = &Point{Lat: p.Location.Lat, Lon: p.Location.Lon}
	}
	return parking
}

// NewCacheStatus converts the snapshot cache state into its API representation.
func NewCacheStatus(cs monitoring.CacheStatus) CacheStatus {
	status := CacheStatus{
		HasData:     cs.HasData,
		IsExpired:   cs.IsExpired,
		IsStale:     cs.IsStale,
		RegionCount: cs.RegionCount,
		Source:      cs.Source,
		LastError:   cs.LastError,
	}
	if cs.HasData {
		fetchedAt := Timestamp(cs.FetchedAt)
		expiresAt := Timestamp(cs.ExpiresAt)
		status.FetchedAt = &fetchedAt
		status.ExpiresAt = &expiresAt
	}
	return status
}
