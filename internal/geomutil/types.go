// Package geomutil implements GeometryNormalizer (§4.2 of SPEC_FULL.md):
// validity checking, bbox/centroid computation, Douglas-Peucker
// simplification, and canonical encoding of a raw shapefile polygon or
// multipolygon into the s2-shape form the store persists.
package geomutil

import "math"

// Point is a WGS84 (lng, lat) coordinate, matching the ordering shapefiles
// and GeoJSON both use (x, y).
type Point struct {
	Lng float64
	Lat float64
}

// Ring is a closed sequence of points; the first and last points may or
// may not repeat the closing vertex (RawPolygon accepts either).
type Ring []Point

// RawPolygon is one polygon part as read from the shapefile, before
// validation or simplification: an exterior ring plus zero or more holes.
type RawPolygon struct {
	Exterior Ring
	Holes    []Ring
}

// RawGeometry is a polygon or multipolygon as ShapefileReader yields it.
// A single-element Parts is a Polygon; more than one is a MultiPolygon.
type RawGeometry struct {
	Parts []RawPolygon
}

// BBox is an axis-aligned WGS84 envelope.
type BBox struct {
	MinLng float64
	MinLat float64
	MaxLng float64
	MaxLat float64
}

func emptyBBox() BBox {
	return BBox{
		MinLng: math.Inf(1), MinLat: math.Inf(1),
		MaxLng: math.Inf(-1), MaxLat: math.Inf(-1),
	}
}

func (b *BBox) extend(p Point) {
	b.MinLng = min(b.MinLng, p.Lng)
	b.MinLat = min(b.MinLat, p.Lat)
	b.MaxLng = max(b.MaxLng, p.Lng)
	b.MaxLat = max(b.MaxLat, p.Lat)
}

// Covers reports whether (lng, lat) lies within the envelope, inclusive
// of the boundary.
func (b BBox) Covers(lng, lat float64) bool {
	return b.MinLng <= lng && lng <= b.MaxLng && b.MinLat <= lat && lat <= b.MaxLat
}

// Centroid is the area-weighted geometric center of a (multi)polygon.
type Centroid struct {
	Lng float64
	Lat float64
}
