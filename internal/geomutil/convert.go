package geomutil

import "github.com/golang/geo/s2"

// toS2Shapes converts a normalized RawGeometry into the s2.Shape form the
// store persists. A Polygon (single part) and a MultiPolygon (several
// parts) both collapse into one *s2.Polygon carrying one loop per ring,
// following geobbolt's polygonToS2/multiPolygonToS2 treatment: S2 itself
// doesn't distinguish the two, so the district's "is this multi-part"
// knowledge lives only in RawGeometry, not in the persisted shape.
func toS2Shapes(g RawGeometry) ([]s2.Shape, error) {
	var loops []*s2.Loop
	for _, part := range g.Parts {
		loops = append(loops, ringToLoop(part.Exterior, true))
		for _, hole := range part.Holes {
			loops = append(loops, ringToLoop(hole, false))
		}
	}
	poly := s2.PolygonFromOrientedLoops(loops)
	return []s2.Shape{poly}, nil
}

// ringToLoop builds an s2.Loop from r, reversing the vertex order where
// needed so that an exterior ring is counter-clockwise and a hole is
// clockwise, the orientation s2.PolygonFromOrientedLoops reads as shell
// and hole. Input rings may be wound either way.
func ringToLoop(r Ring, exterior bool) *s2.Loop {
	r = openRing(r)
	reverse := (ringArea(r) > 0) != exterior
	pts := make([]s2.Point, len(r))
	for i, p := range r {
		j := i
		if reverse {
			j = len(r) - 1 - i
		}
		pts[j] = s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lng))
	}
	return s2.LoopFromPoints(pts)
}
