package geomutil

import (
	"fmt"

	"github.com/akhenakh/geodistrict/internal/geoenc"
)

// Result is the canonical, persisted form of one district's geometry:
// the exact envelope/centroid of the simplified shape and its encoded
// s2 shape table, ready for internal/store's row writer.
type Result struct {
	BBox         BBox
	Centroid     Centroid
	GeometryBlob []byte
}

// Normalize runs the GeometryNormalizer algorithm (§4.2): validity check,
// bbox/centroid measurement, Douglas-Peucker simplification at tolerance
// (degrees), then canonical s2 encoding. Warnings describes rings or
// MultiPolygon parts dropped along the way; a non-nil error means the
// geometry has no usable parts left (every part self-intersected or
// degenerated) and the caller should skip the record.
func Normalize(raw RawGeometry, tolerance float64) (Result, []string, error) {
	var warnings []string
	var kept []RawPolygon

	for partIdx, part := range raw.Parts {
		if selfIntersects(part.Exterior) {
			warnings = append(warnings, fmt.Sprintf("part %d: self-intersecting exterior ring, dropped", partIdx))
			continue
		}

		simplifiedExterior := simplifyRingOrFallback(part.Exterior, tolerance)
		if len(simplifiedExterior) < 4 {
			warnings = append(warnings, fmt.Sprintf("part %d: degenerate exterior ring after simplification, dropped", partIdx))
			continue
		}

		var holes []Ring
		for holeIdx, hole := range part.Holes {
			if selfIntersects(hole) {
				warnings = append(warnings, fmt.Sprintf("part %d hole %d: self-intersecting, dropped", partIdx, holeIdx))
				continue
			}
			simplifiedHole := simplifyRingOrFallback(hole, tolerance)
			if len(simplifiedHole) < 4 {
				warnings = append(warnings, fmt.Sprintf("part %d hole %d: degenerate after simplification, dropped", partIdx, holeIdx))
				continue
			}
			holes = append(holes, simplifiedHole)
		}

		kept = append(kept, RawPolygon{Exterior: simplifiedExterior, Holes: holes})
	}

	if len(kept) == 0 {
		return Result{}, warnings, fmt.Errorf("geomutil: no valid polygon parts remain after normalization")
	}

	simplified := RawGeometry{Parts: kept}
	bbox, centroid := computeBBoxAndCentroid(simplified)

	shapes, err := toS2Shapes(simplified)
	if err != nil {
		return Result{}, warnings, fmt.Errorf("geomutil: convert to s2 shapes: %w", err)
	}
	blob, err := geoenc.EncodeShapes(shapes)
	if err != nil {
		return Result{}, warnings, fmt.Errorf("geomutil: encode geometry: %w", err)
	}

	return Result{BBox: bbox, Centroid: centroid, GeometryBlob: blob}, warnings, nil
}

// simplifyRingOrFallback applies Douglas-Peucker and falls back to the
// original ring if simplification degenerates it below 4 vertices,
// per §4.2 step 3.
func simplifyRingOrFallback(r Ring, tolerance float64) Ring {
	s := simplify(r, tolerance)
	if len(s) < 4 {
		return r
	}
	return s
}
