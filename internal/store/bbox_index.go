package store

import (
	"github.com/golang/geo/s2"
)

// newIndexer returns the S2 region-term indexer shared by build and query
// paths. Options match the teacher's geobbolt configuration: level 4..16
// covers roughly "country" down to "city block" granularity, MaxCells
// bounds the per-region term count.
func newIndexer() *s2.RegionTermIndexer {
	opts := s2.DefaultRegionTermIndexerOptions()
	opts.MinLevel = 4
	opts.MaxLevel = 16
	opts.MaxCells = 8
	return s2.NewRegionTermIndexer(opts)
}

// pointRegion wraps s2.Point to satisfy s2.Region so RegionTermIndexer can
// generate query terms for a single coordinate. s2.Point has no Region
// methods of its own; this is the same wrapper geobbolt uses for the same
// reason.
type pointRegion struct {
	s2.Point
}

func (p pointRegion) CapBound() s2.Cap                  { return s2.CapFromPoint(p.Point) }
func (p pointRegion) RectBound() s2.Rect                { return s2.RectFromLatLng(s2.LatLngFromPoint(p.Point)) }
func (p pointRegion) ContainsCell(c s2.Cell) bool       { return false }
func (p pointRegion) IntersectsCell(c s2.Cell) bool     { return c.ContainsPoint(p.Point) }
func (p pointRegion) ContainsPoint(other s2.Point) bool { return p.Point == other }
func (p pointRegion) CellUnionBound() []s2.CellID       { return p.CapBound().CellUnionBound() }

// bboxRegion builds the s2.Rect region covering a district's bbox corners.
// s2.Rect already implements s2.Region.
func bboxRegion(b BBox) s2.Rect {
	rect := s2.EmptyRect()
	rect = rect.AddPoint(s2.LatLngFromDegrees(b.MinLat, b.MinLng))
	rect = rect.AddPoint(s2.LatLngFromDegrees(b.MaxLat, b.MaxLng))
	return rect
}

// bboxCoverTerms returns the interior and exterior index terms for a
// district's bbox, mirroring geobbolt's PrepareIndexEntry: interior terms
// are cells wholly inside the rect (a point matching one is guaranteed to
// fall inside the bbox, no further check needed); exterior terms are cells
// intersecting the rect boundary (a point matching only these needs the
// exact 4-inequality bbox recheck before being treated as a true candidate).
func bboxCoverTerms(indexer *s2.RegionTermIndexer, b BBox) (interior, exterior []string) {
	rect := bboxRegion(b)
	rc := &s2.RegionCoverer{
		MinLevel: indexer.Options.MinLevel,
		MaxLevel: indexer.Options.MaxLevel,
		MaxCells: indexer.Options.MaxCells,
	}

	exteriorCells := rc.Covering(rect)
	exterior = indexer.GetIndexTermsForCanonicalCovering(exteriorCells, "")

	interiorCells := rc.InteriorCovering(rect)
	interior = indexer.GetIndexTermsForCanonicalCovering(interiorCells, "")

	return interior, exterior
}

// queryTermsForPoint returns the terms to probe for a single lookup point.
func queryTermsForPoint(indexer *s2.RegionTermIndexer, lng, lat float64) []string {
	pt := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lng))
	return indexer.GetQueryTerms(pointRegion{pt}, "")
}
