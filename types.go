package geodistrict

import "fmt"

// Point is a WGS84 coordinate pair, longitude first to match the store's
// internal ordering.
type Point struct {
	Lng float64
	Lat float64
}

// BBox is an axis-aligned envelope in WGS84 degrees.
type BBox struct {
	MinLng float64
	MinLat float64
	MaxLng float64
	MaxLat float64
}

// Covers reports whether (lng, lat) falls within b, inclusive of the edges.
func (b BBox) Covers(lng, lat float64) bool {
	return b.MinLng <= lng && lng <= b.MaxLng && b.MinLat <= lat && lat <= b.MaxLat
}

// ResultKind distinguishes the four lookup outcomes.
type ResultKind int

const (
	// KindNotFound is reserved for an empty store.
	KindNotFound ResultKind = iota
	// KindExact means the point lies inside the returned district's polygon.
	KindExact
	// KindApproximate means the point lies outside every district and the
	// returned district is the nearest by the fallback rule.
	KindApproximate
	// KindError marks a per-point failure inside LookupBatch: the point's
	// own Err is set and the batch call itself still succeeds. Lookup
	// never returns a result with this kind — it reports the error
	// directly instead.
	KindError
)

func (k ResultKind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindApproximate:
		return "approximate"
	case KindError:
		return "error"
	default:
		return "not_found"
	}
}

// LookupResult is the public answer to a single lookup. Exact and
// Approximate both carry the full district attribute set; Approximate
// additionally carries DistanceMeters. NotFound carries neither. Error
// carries only Err, set when LookupBatch encounters a bad point without
// aborting the rest of the batch.
type LookupResult struct {
	Kind           ResultKind
	DistrictID     string
	Name           string
	StateCode      string
	GradeRange     string
	AreaSqMiles    float64
	SchoolYear     string
	DistanceMeters uint32
	Err            error
}

// Stats summarizes store and cache state for the programmatic stats() op.
type Stats struct {
	TotalDistricts  int
	SchoolYear      string
	Tolerance       float64
	LRUCapacity     int
	LRUSize         int
	MemoryRSSBytes  uint64
}

func (r LookupResult) String() string {
	switch r.Kind {
	case KindExact, KindApproximate:
		return fmt.Sprintf("%s(%s %q dist=%dm)", r.Kind, r.DistrictID, r.Name, r.DistanceMeters)
	case KindError:
		return fmt.Sprintf("error(%v)", r.Err)
	default:
		return "not_found"
	}
}
