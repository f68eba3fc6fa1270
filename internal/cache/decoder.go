// Package cache implements GeometryDecoder and its fronting LRU (§4.5 of
// SPEC_FULL.md): decoding a stored geometry blob into shapes usable for
// containment and edge-distance tests, bounded by a capacity-C cache of
// decoded entries keyed by district id.
package cache

import (
	"fmt"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/akhenakh/geodistrict/internal/geoenc"
	"github.com/akhenakh/geodistrict/internal/store"
)

// earthRadiusMeters converts an s1.Angle great-circle distance into
// meters, matching geobbolt's calculateMinDistance scaling.
const earthRadiusMeters = 6371000.0

// DecodedGeometry is a district's geometry, decoded and ready for query:
// exact point containment and nearest-edge distance.
type DecodedGeometry struct {
	index  *s2.EncodedS2ShapeIndex
	shapes []s2.Shape
}

// Contains reports whether (lng, lat) lies inside the geometry.
func (d *DecodedGeometry) Contains(lng, lat float64) bool {
	pt := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lng))
	for _, shape := range d.shapes {
		if poly, ok := shape.(*s2.Polygon); ok && poly.ContainsPoint(pt) {
			return true
		}
	}
	return false
}

// DistanceMeters returns the minimum distance from (lng, lat) to any edge
// of the geometry, in meters. Used for the nearest_by_centroid fallback's
// final distance report once a candidate is chosen.
func (d *DecodedGeometry) DistanceMeters(lng, lat float64) float64 {
	pt := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lng))
	minAngle := s1.InfAngle()
	for _, shape := range d.shapes {
		for i := 0; i < shape.NumEdges(); i++ {
			e := shape.Edge(i)
			if d := s2.DistanceFromSegment(pt, e.V0, e.V1); d < minAngle {
				minAngle = d
			}
		}
	}
	if minAngle == s1.InfAngle() {
		return 0
	}
	return float64(minAngle) * earthRadiusMeters
}

// Decoder decodes geometry blobs, caching the result by district id in a
// bounded LRU. Capacity 0 is a valid bypass configuration: every call
// decodes fresh and nothing is retained (§4.5).
type Decoder struct {
	cache    *lru.Cache[string, *DecodedGeometry]
	capacity int
}

// NewDecoder builds a Decoder with the given cache capacity.
func NewDecoder(capacity int) (*Decoder, error) {
	if capacity <= 0 {
		return &Decoder{}, nil
	}
	c, err := lru.New[string, *DecodedGeometry](capacity)
	if err != nil {
		return nil, fmt.Errorf("cache: new lru: %w", err)
	}
	return &Decoder{cache: c, capacity: capacity}, nil
}

// Decode returns the DecodedGeometry for row, decoding row.GeometryBlob
// and populating the cache on a miss.
func (d *Decoder) Decode(row store.Row) (*DecodedGeometry, error) {
	if d.cache != nil {
		if dg, ok := d.cache.Get(row.DistrictID); ok {
			return dg, nil
		}
	}

	index, factory, err := geoenc.DecodeIndex(row.GeometryBlob)
	if err != nil {
		return nil, fmt.Errorf("cache: decode geometry for %s: %w", row.DistrictID, err)
	}
	dg := &DecodedGeometry{index: index, shapes: geoenc.Shapes(factory)}

	if d.cache != nil {
		d.cache.Add(row.DistrictID, dg)
	}
	return dg, nil
}

// Len returns the number of entries currently cached (always 0 in bypass
// mode).
func (d *Decoder) Len() int {
	if d.cache == nil {
		return 0
	}
	return d.cache.Len()
}

// Capacity returns the configured cache capacity (0 means bypass).
func (d *Decoder) Capacity() int { return d.capacity }
