package geomutil

import (
	sfgeom "github.com/peterstace/simplefeatures/geom"
)

// FromSimpleFeatures converts a simplefeatures Polygon or MultiPolygon into
// the package's Ring/Point working representation. It's the boundary
// between the canonical geometry type ShapefileReader hands off (built the
// same way geobbolt's conversion.go walks a geom.Sequence) and the
// coordinate-level math GeometryNormalizer runs. Any other geometry type
// reports ok=false.
func FromSimpleFeatures(g sfgeom.Geometry) (RawGeometry, bool) {
	switch g.Type() {
	case sfgeom.TypePolygon:
		return RawGeometry{Parts: []RawPolygon{ringsFromSFPolygon(g.MustAsPolygon())}}, true
	case sfgeom.TypeMultiPolygon:
		mp := g.MustAsMultiPolygon()
		n := mp.NumPolygons()
		parts := make([]RawPolygon, n)
		for i := 0; i < n; i++ {
			parts[i] = ringsFromSFPolygon(mp.PolygonN(i))
		}
		return RawGeometry{Parts: parts}, true
	default:
		return RawGeometry{}, false
	}
}

func ringsFromSFPolygon(p sfgeom.Polygon) RawPolygon {
	out := RawPolygon{Exterior: ringFromSFLineString(p.ExteriorRing())}
	n := p.NumInteriorRings()
	for i := 0; i < n; i++ {
		out.Holes = append(out.Holes, ringFromSFLineString(p.InteriorRingN(i)))
	}
	return out
}

func ringFromSFLineString(ls sfgeom.LineString) Ring {
	seq := ls.Coordinates()
	n := seq.Length()
	ring := make(Ring, n)
	for i := 0; i < n; i++ {
		xy := seq.GetXY(i)
		ring[i] = Point{Lng: xy.X, Lat: xy.Y}
	}
	return ring
}
