package geodistrict

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/akhenakh/geodistrict/internal/geomutil"
	"github.com/akhenakh/geodistrict/internal/store"
)

func squarePolygon(minLng, minLat, maxLng, maxLat float64) geomutil.RawGeometry {
	ring := geomutil.Ring{
		{Lng: minLng, Lat: minLat},
		{Lng: maxLng, Lat: minLat},
		{Lng: maxLng, Lat: maxLat},
		{Lng: minLng, Lat: maxLat},
		{Lng: minLng, Lat: minLat},
	}
	return geomutil.RawGeometry{Parts: []geomutil.RawPolygon{{Exterior: ring}}}
}

type fixtureDistrict struct {
	id, name, stateCode string
	minLng, minLat       float64
	maxLng, maxLat       float64
}

func buildFixtureStore(t *testing.T, districts []fixtureDistrict) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")
	b, err := store.NewBuilder(path, "fixture.shp", "2023-2024", 1e-6, nil)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	for _, d := range districts {
		result, _, err := geomutil.Normalize(squarePolygon(d.minLng, d.minLat, d.maxLng, d.maxLat), 1e-6)
		if err != nil {
			t.Fatalf("Normalize(%s): %v", d.id, err)
		}
		row := store.Row{
			DistrictID:   d.id,
			Name:         d.name,
			StateCode:    d.stateCode,
			GradeLowest:  "KG",
			GradeHighest: "12",
			LandAreaM2:   2589988.11,
			WaterAreaM2:  0,
			SchoolYear:   "2023-2024",
			BBox:         store.BBox{MinLng: result.BBox.MinLng, MinLat: result.BBox.MinLat, MaxLng: result.BBox.MaxLng, MaxLat: result.BBox.MaxLat},
			Centroid:     store.Centroid{Lng: result.Centroid.Lng, Lat: result.Centroid.Lat},
			GeometryBlob: result.GeometryBlob,
		}
		if err := b.AddDistrict(row); err != nil {
			t.Fatalf("AddDistrict(%s): %v", d.id, err)
		}
	}
	if err := b.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return path
}

// Boston and Manhattan stand in for the spec's scenario table; points
// outside both boxes exercise the approximate fallback.
func fixtureDistricts() []fixtureDistrict {
	return []fixtureDistrict{
		{"2502790", "Boston Public Schools", "25", -71.20, 42.23, -70.92, 42.40},
		{"3651000", "New York City Department Of Education", "36", -74.26, 40.49, -73.70, 40.92},
	}
}

func openFixtureEngine(t *testing.T) *Engine {
	t.Helper()
	path := buildFixtureStore(t, fixtureDistricts())
	e, err := Open(Config{StorePath: path, LRUCapacity: 10, BatchMax: 100})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = e.Shutdown(context.Background()) })
	return e
}

func TestLookupExactMatch(t *testing.T) {
	e := openFixtureEngine(t)
	result, err := e.Lookup(context.Background(), 42.32, -71.06)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if result.Kind != KindExact {
		t.Fatalf("Kind = %v, want KindExact", result.Kind)
	}
	if result.DistrictID != "2502790" {
		t.Errorf("DistrictID = %q, want 2502790", result.DistrictID)
	}
	if result.GradeRange != "K-12" {
		t.Errorf("GradeRange = %q, want K-12", result.GradeRange)
	}
}

func TestLookupApproximateFallback(t *testing.T) {
	e := openFixtureEngine(t)
	// Just outside both districts' bboxes but closer to Boston's centroid.
	result, err := e.Lookup(context.Background(), 42.41, -71.10)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if result.Kind != KindApproximate {
		t.Fatalf("Kind = %v, want KindApproximate", result.Kind)
	}
	if result.DistrictID != "2502790" {
		t.Errorf("DistrictID = %q, want nearest district 2502790", result.DistrictID)
	}
}

func TestLookupValidationErrors(t *testing.T) {
	e := openFixtureEngine(t)
	if _, err := e.Lookup(context.Background(), 100, -71); err == nil {
		t.Error("Lookup(lat=100): expected ErrCoordinateOutOfRange")
	}
	if _, err := e.Lookup(context.Background(), 42, 200); err == nil {
		t.Error("Lookup(lng=200): expected ErrCoordinateOutOfRange")
	}
}

func TestLookupBatchPreservesOrderAndRejectsOversize(t *testing.T) {
	e := openFixtureEngine(t)
	points := []Point{
		{Lat: 42.32, Lng: -71.06},
		{Lat: 40.70, Lng: -73.95},
	}
	results, err := e.LookupBatch(context.Background(), points)
	if err != nil {
		t.Fatalf("LookupBatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].DistrictID != "2502790" || results[1].DistrictID != "3651000" {
		t.Errorf("results = %+v, order not preserved", results)
	}

	oversize := make([]Point, 101)
	if _, err := e.LookupBatch(context.Background(), oversize); err == nil {
		t.Error("LookupBatch: expected error for batch exceeding BatchMax")
	}
}

func TestLookupBatchMixedValidityDoesNotAbort(t *testing.T) {
	e := openFixtureEngine(t)
	points := []Point{
		{Lat: 42.32, Lng: -71.06}, // valid: Boston
		{Lat: 100, Lng: -71},      // invalid: latitude out of range
		{Lat: 40.70, Lng: -73.95}, // valid: NYC
	}
	results, err := e.LookupBatch(context.Background(), points)
	if err != nil {
		t.Fatalf("LookupBatch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if results[0].Kind != KindExact || results[0].DistrictID != "2502790" {
		t.Errorf("results[0] = %+v, want exact match for Boston", results[0])
	}
	if results[1].Kind != KindError || results[1].Err == nil {
		t.Errorf("results[1] = %+v, want KindError with a non-nil Err", results[1])
	}
	if results[2].Kind != KindExact || results[2].DistrictID != "3651000" {
		t.Errorf("results[2] = %+v, want exact match for NYC, not aborted by results[1]'s error", results[2])
	}
}

func TestStatsReportsStoreHeader(t *testing.T) {
	e := openFixtureEngine(t)
	stats, err := e.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalDistricts != 2 {
		t.Errorf("TotalDistricts = %d, want 2", stats.TotalDistricts)
	}
	if stats.SchoolYear != "2023-2024" {
		t.Errorf("SchoolYear = %q", stats.SchoolYear)
	}
	if stats.LRUCapacity != 10 {
		t.Errorf("LRUCapacity = %d, want 10", stats.LRUCapacity)
	}
}

func TestShutdownRejectsSubsequentLookups(t *testing.T) {
	path := buildFixtureStore(t, fixtureDistricts())
	e, err := Open(Config{StorePath: path, LRUCapacity: 10, BatchMax: 100})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := e.Lookup(context.Background(), 42.32, -71.06); err == nil {
		t.Error("Lookup after Shutdown: expected error")
	}
}

func TestOpenMissingStoreReturnsErrStoreMissing(t *testing.T) {
	_, err := Open(Config{StorePath: filepath.Join(t.TempDir(), "missing.db")})
	if err == nil {
		t.Fatal("Open: expected error for missing store")
	}
	if !errors.Is(err, ErrStoreMissing) {
		t.Errorf("Open: err = %v, want ErrStoreMissing", err)
	}
}
