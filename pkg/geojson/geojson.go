// Package geojson decodes the GeoJSON geometries served by the monitoring API
// and derives the summaries the dashboard renders (centroids, bounding boxes).
// Only the geometry types the API serves are supported: Point, Polygon and
// MultiPolygon.
package geojson

import (
	"encoding/json"
	"fmt"
	"math"
)

// Point is a single WGS84 position. GeoJSON orders coordinates as
// longitude, latitude.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Bounds is an axis-aligned bounding box around a geometry.
type Bounds struct {
	MinLon float64 `json:"minLon"`
	MinLat float64 `json:"minLat"`
	MaxLon float64 `json:"maxLon"`
	MaxLat float64 `json:"maxLat"`
}

// Center returns the middle of the box.
func (b Bounds) Center() Point {
	return Point{
		Lon: (b.MinLon + b.MaxLon) / 2,
		Lat: (b.MinLat + b.MaxLat) / 2,
	}
}

// Geometry is a decoded GeoJSON geometry.
type Geometry struct {
	Type string

	// Point holds the position for Point geometries.
	Point Point

	// Polygons holds one ring set per polygon: a single entry for Polygon
	// geometries, one per member for MultiPolygon. The first ring of each
	// set is the outer boundary.
	Polygons [][][]Point
}

// IsZero reports whether the geometry is absent.
func (g Geometry) IsZero() bool {
	return g.Type == ""
}

// UnmarshalJSON decodes a GeoJSON geometry object. A JSON null leaves the
// geometry zero.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var raw struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Type {
	case "Point":
		var pos []float64
		if err := json.Unmarshal(raw.Coordinates, &pos); err != nil {
			return err
		}
		p, err := toPoint(pos)
		if err != nil {
			return err
		}
		*g = Geometry{Type: raw.Type, Point: p}

	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(raw.Coordinates, &rings); err != nil {
			return err
		}
		poly, err := toPolygon(rings)
		if err != nil {
			return err
		}
		*g = Geometry{Type: raw.Type, Polygons: [][][]Point{poly}}

	case "MultiPolygon":
		var members [][][][]float64
		if err := json.Unmarshal(raw.Coordinates, &members); err != nil {
			return err
		}
		polygons := make([][][]Point, 0, len(members))
		for _, rings := range members {
			poly, err := toPolygon(rings)
			if err != nil {
				return err
			}
			polygons = append(polygons, poly)
		}
		*g = Geometry{Type: raw.Type, Polygons: polygons}

	default:
		return fmt.Errorf("unsupported geometry type %q", raw.Type)
	}

	return nil
}

// MarshalJSON encodes the geometry back into GeoJSON. A zero geometry
// encodes as null.
func (g Geometry) MarshalJSON() ([]byte, error) {
	var coordinates any

	switch g.Type {
	case "":
		return []byte("null"), nil
	case "Point":
		coordinates = fromPoint(g.Point)
	case "Polygon":
		if len(g.Polygons) != 1 {
			return nil, fmt.Errorf("polygon geometry must hold exactly one ring set, has %d", len(g.Polygons))
		}
		coordinates = fromPolygon(g.Polygons[0])
	case "MultiPolygon":
		members := make([][][][]float64, 0, len(g.Polygons))
		for _, poly := range g.Polygons {
			members = append(members, fromPolygon(poly))
		}
		coordinates = members
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}

	return json.Marshal(struct {
		Type        string `json:"type"`
		Coordinates any    `json:"coordinates"`
	}{Type: g.Type, Coordinates: coordinates})
}

// Centroid returns the area-weighted centroid of the geometry. Point
// geometries return the point itself; polygons with no area fall back to
// the mean of their outer-ring vertices.
func (g Geometry) Centroid() Point {
	if g.Type == "Point" {
		return g.Point
	}

	var cLon, cLat, weight float64
	for _, poly := range g.Polygons {
		if len(poly) == 0 {
			continue
		}
		c, a := ringCentroid(poly[0])
		cLon += c.Lon * a
		cLat += c.Lat * a
		weight += a
	}
	if weight > 0 {
		return Point{Lon: cLon / weight, Lat: cLat / weight}
	}

	// Degenerate geometry: average the outer-ring vertices instead.
	var sum Point
	n := 0
	for _, poly := range g.Polygons {
		if len(poly) == 0 {
			continue
		}
		for _, p := range poly[0] {
			sum.Lon += p.Lon
			sum.Lat += p.Lat
			n++
		}
	}
	if n == 0 {
		return Point{}
	}
	return Point{Lon: sum.Lon / float64(n), Lat: sum.Lat / float64(n)}
}

// Bounds returns the bounding box over every position in the geometry.
// Point geometries yield a degenerate box.
func (g Geometry) Bounds() Bounds {
	if g.Type == "Point" {
		return Bounds{MinLon: g.Point.Lon, MinLat: g.Point.Lat, MaxLon: g.Point.Lon, MaxLat: g.Point.Lat}
	}

	b := Bounds{
		MinLon: math.Inf(1),
		MinLat: math.Inf(1),
		MaxLon: math.Inf(-1),
		MaxLat: math.Inf(-1),
	}
	found := false
	for _, poly := range g.Polygons {
		for _, ring := range poly {
			for _, p := range ring {
				found = true
				b.MinLon = math.Min(b.MinLon, p.Lon)
				b.MinLat = math.Min(b.MinLat, p.Lat)
				b.MaxLon = math.Max(b.MaxLon, p.Lon)
				b.MaxLat = math.Max(b.MaxLat, p.Lat)
			}
		}
	}
	if !found {
		return Bounds{}
	}
	return b
}

// ringCentroid computes the centroid of a single ring via the shoelace
// formula. Returns the centroid and the ring's absolute area; a zero area
// means the ring is degenerate and the centroid falls back to the vertex mean.
func ringCentroid(ring []Point) (Point, float64) {
	n := len(ring)
	if n == 0 {
		return Point{}, 0
	}

	var area, cLon, cLat float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cross := ring[i].Lon*ring[j].Lat - ring[j].Lon*ring[i].Lat
		area += cross
		cLon += (ring[i].Lon + ring[j].Lon) * cross
		cLat += (ring[i].Lat + ring[j].Lat) * cross
	}
	area /= 2

	if area == 0 {
		var sum Point
		for _, p := range ring {
			sum.Lon += p.Lon
			sum.Lat += p.Lat
		}
		return Point{Lon: sum.Lon / float64(n), Lat: sum.Lat / float64(n)}, 0
	}

	return Point{Lon: cLon / (6 * area), Lat: cLat / (6 * area)}, math.Abs(area)
}

func toPoint(pos []float64) (Point, error) {
	if len(pos) < 2 {
		return Point{}, fmt.Errorf("position needs at least 2 coordinates, has %d", len(pos))
	}
	return Point{Lon: pos[0], Lat: pos[1]}, nil
}

func toPolygon(rings [][][]float64) ([][]Point, error) {
	poly := make([][]Point, 0, len(rings))
	for _, ring := range rings {
		points := make([]Point, 0, len(ring))
		for _, pos := range ring {
			p, err := toPoint(pos)
			if err != nil {
				return nil, err
			}
			points = append(points, p)
		}
		poly = append(poly, points)
	}
	return poly, nil
}

func fromPoint(p Point) []float64 {
	return []float64{p.Lon, p.Lat}
}

func fromPolygon(poly [][]Point) [][][]float64 {
	rings := make([][][]float64, 0, len(poly))
	for _, ring := range poly {
		positions := make([][]float64, 0, len(ring))
		for _, p := range ring {
			positions = append(positions, fromPoint(p))
		}
		rings = append(rings, positions)
	}
	return rings
}
