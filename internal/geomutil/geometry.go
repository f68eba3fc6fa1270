package geomutil

import "math"

// openRing drops a duplicated closing vertex, returning a ring whose first
// and last points are distinct (the representation internal algorithms in
// this package expect; geobbolt's lineStringLoopToS2Loop makes the same
// adjustment when handing rings to s2.Loop).
func openRing(r Ring) Ring {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return r[:len(r)-1]
	}
	return r
}

// selfIntersects reports whether any two non-adjacent edges of the ring
// cross. It's an O(n^2) segment scan: acceptable at build time, never
// called on the query path.
func selfIntersects(r Ring) bool {
	r = openRing(r)
	n := len(r)
	if n < 4 {
		return false
	}
	for i := 0; i < n; i++ {
		a1, a2 := r[i], r[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Skip edges adjacent to edge i (they legitimately share a vertex).
			if j == i+1 || (j+1)%n == i {
				continue
			}
			b1, b2 := r[j], r[(j+1)%n]
			if segmentsIntersect(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

func segmentsIntersect(p1, p2, p3, p4 Point) bool {
	d1 := cross(p3, p4, p1)
	d2 := cross(p3, p4, p2)
	d3 := cross(p1, p2, p3)
	d4 := cross(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if d1 == 0 && onSegment(p3, p4, p1) {
		return true
	}
	if d2 == 0 && onSegment(p3, p4, p2) {
		return true
	}
	if d3 == 0 && onSegment(p1, p2, p3) {
		return true
	}
	if d4 == 0 && onSegment(p1, p2, p4) {
		return true
	}
	return false
}

func cross(a, b, p Point) float64 {
	return (b.Lng-a.Lng)*(p.Lat-a.Lat) - (b.Lat-a.Lat)*(p.Lng-a.Lng)
}

func onSegment(a, b, p Point) bool {
	return min(a.Lng, b.Lng) <= p.Lng && p.Lng <= max(a.Lng, b.Lng) &&
		min(a.Lat, b.Lat) <= p.Lat && p.Lat <= max(a.Lat, b.Lat)
}

// ringArea returns the signed shoelace area of an (possibly unclosed)
// ring; positive for counter-clockwise winding.
func ringArea(r Ring) float64 {
	r = openRing(r)
	n := len(r)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		p1 := r[i]
		p2 := r[(i+1)%n]
		sum += p1.Lng*p2.Lat - p2.Lng*p1.Lat
	}
	return sum / 2
}

// ringCentroid returns the area-weighted centroid of an (possibly
// unclosed) ring and its signed area (0 area rings return the vertex
// average instead, avoiding a division by zero for degenerate input).
func ringCentroid(r Ring) (Point, float64) {
	r = openRing(r)
	n := len(r)
	if n == 0 {
		return Point{}, 0
	}
	area := ringArea(r)
	if math.Abs(area) < 1e-12 {
		var sx, sy float64
		for _, p := range r {
			sx += p.Lng
			sy += p.Lat
		}
		return Point{Lng: sx / float64(n), Lat: sy / float64(n)}, 0
	}
	var cx, cy float64
	for i := 0; i < n; i++ {
		p1 := r[i]
		p2 := r[(i+1)%n]
		cross := p1.Lng*p2.Lat - p2.Lng*p1.Lat
		cx += (p1.Lng + p2.Lng) * cross
		cy += (p1.Lat + p2.Lat) * cross
	}
	factor := 1 / (6 * area)
	return Point{Lng: cx * factor, Lat: cy * factor}, area
}

// computeBBoxAndCentroid computes the exact envelope and the area-weighted
// centroid across every valid part of g (invariant 2 and 3 of §3).
// Interior rings (holes) subtract their area from the centroid weighting
// the same way a shoelace-based polygon area calculation subtracts holes,
// whichever way each ring is wound.
func computeBBoxAndCentroid(g RawGeometry) (BBox, Centroid) {
	bbox := emptyBBox()
	var weightedX, weightedY, totalArea float64

	for _, part := range g.Parts {
		for _, p := range openRing(part.Exterior) {
			bbox.extend(p)
		}
		for _, hole := range part.Holes {
			for _, p := range openRing(hole) {
				bbox.extend(p)
			}
		}

		centroid, area := ringCentroid(part.Exterior)
		area = math.Abs(area)
		weightedX += centroid.Lng * area
		weightedY += centroid.Lat * area
		totalArea += area

		for _, hole := range part.Holes {
			hCentroid, hArea := ringCentroid(hole)
			hArea = math.Abs(hArea)
			weightedX -= hCentroid.Lng * hArea
			weightedY -= hCentroid.Lat * hArea
			totalArea -= hArea
		}
	}

	if math.Abs(totalArea) < 1e-12 {
		// Degenerate geometry (zero measured area): fall back to the
		// bbox center rather than dividing by ~zero.
		return bbox, Centroid{Lng: (bbox.MinLng + bbox.MaxLng) / 2, Lat: (bbox.MinLat + bbox.MaxLat) / 2}
	}
	return bbox, Centroid{Lng: weightedX / totalArea, Lat: weightedY / totalArea}
}
