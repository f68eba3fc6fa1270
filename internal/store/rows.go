// Package store implements the persistent, read-optimized district store:
// StoreBuilder writes it, DistrictStore (Store) opens it read-only, and a
// two-level spatial index (S2 cell-term coarse filter over each district's
// bbox, numeric bbox recheck as the exact level) answers candidate queries.
package store

// BBox is an axis-aligned WGS84 envelope, (min_lng, min_lat, max_lng, max_lat).
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

// Centroid is a WGS84 point used as the nearest-district tiebreak input.
type Centroid struct {
	Lng float64
	Lat float64
}

// Row is one persisted district record (§3 of SPEC_FULL.md). Grade codes
// and areas are stored and returned in raw source units; the root package
// normalizes them with NormalizeGradeRange and AreaSqMiles when it builds
// a LookupResult.
type Row struct {
	DistrictID   string
	Name         string
	StateCode    string
	GradeLowest  string
	GradeHighest string
	LandAreaM2   float64
	WaterAreaM2  float64
	SchoolYear   string
	BBox         BBox
	Centroid     Centroid
	GeometryBlob []byte
}
