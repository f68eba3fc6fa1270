package store

import (
	"testing"

	bolt "go.etcd.io/bbolt"
)

// bumpStoreVersionForTest rewrites the meta header's builder version in
// place, used only to exercise Store.Open's VersionMismatch path.
func bumpStoreVersionForTest(t *testing.T, path string, version uint32) {
	t.Helper()
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		t.Fatalf("bolt.Open: %v", err)
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketMeta))
		data := b.Get([]byte(metaKey))
		meta, err := decodeMeta(data)
		if err != nil {
			return err
		}
		meta.BuilderVersion = version
		encoded, err := encodeMeta(meta)
		if err != nil {
			return err
		}
		return b.Put([]byte(metaKey), encoded)
	})
	if err != nil {
		t.Fatalf("bump version: %v", err)
	}
}

func TestCandidatesCoveringExactRecheck(t *testing.T) {
	rows := []Row{
		// A wide bbox whose S2 covering cells extend well past the true
		// envelope; only the exact recheck should keep points actually
		// inside the stored numeric bbox.
		testRow("wide", "Wide District", "25",
			BBox{MinLng: -72.0, MinLat: 41.5, MaxLng: -70.5, MaxLat: 43.0},
			Centroid{Lng: -71.25, Lat: 42.25}),
		testRow("far", "Far District", "36",
			BBox{MinLng: -74.5, MinLat: 40.0, MaxLng: -73.5, MaxLat: 41.0},
			Centroid{Lng: -74.0, Lat: 40.5}),
	}
	s := buildTestStore(t, rows)

	rowsFound, err := s.CandidatesCovering(-71.0, 42.0)
	if err != nil {
		t.Fatalf("CandidatesCovering: %v", err)
	}
	foundWide := false
	for _, r := range rowsFound {
		if r.DistrictID == "wide" {
			foundWide = true
		}
		if r.DistrictID == "far" {
			t.Errorf("far district should not cover (-71.0, 42.0)")
		}
	}
	if !foundWide {
		t.Errorf("expected wide district in candidates, got %+v", rowsFound)
	}

	rowsOutside, err := s.CandidatesCovering(-90.0, 0.0)
	if err != nil {
		t.Fatalf("CandidatesCovering: %v", err)
	}
	for _, r := range rowsOutside {
		t.Errorf("expected no candidates far from both districts, got %s", r.DistrictID)
	}
}

func TestNearestByCentroidOrdering(t *testing.T) {
	rows := []Row{
		testRow("near", "Near District", "25",
			BBox{MinLng: -71.1, MinLat: 42.0, MaxLng: -71.0, MaxLat: 42.1},
			Centroid{Lng: -71.05, Lat: 42.05}),
		testRow("mid", "Mid District", "25",
			BBox{MinLng: -72.0, MinLat: 43.0, MaxLng: -71.9, MaxLat: 43.1},
			Centroid{Lng: -71.95, Lat: 43.05}),
		testRow("far", "Far District", "36",
			BBox{MinLng: -80.0, MinLat: 50.0, MaxLng: -79.9, MaxLat: 50.1},
			Centroid{Lng: -79.95, Lat: 50.05}),
	}
	s := buildTestStore(t, rows)

	nearest, err := s.NearestByCentroid(-71.0, 42.0, 2)
	if err != nil {
		t.Fatalf("NearestByCentroid: %v", err)
	}
	if len(nearest) != 2 {
		t.Fatalf("len(nearest) = %d, want 2", len(nearest))
	}
	if nearest[0].DistrictID != "near" {
		t.Errorf("nearest[0] = %s, want near", nearest[0].DistrictID)
	}
	if nearest[1].DistrictID != "mid" {
		t.Errorf("nearest[1] = %s, want mid", nearest[1].DistrictID)
	}
}

func TestByStateCode(t *testing.T) {
	rows := []Row{
		testRow("a", "A", "25", BBox{MinLng: -71, MinLat: 42, MaxLng: -70, MaxLat: 43}, Centroid{Lng: -70.5, Lat: 42.5}),
		testRow("b", "B", "25", BBox{MinLng: -71, MinLat: 44, MaxLng: -70, MaxLat: 45}, Centroid{Lng: -70.5, Lat: 44.5}),
		testRow("c", "C", "36", BBox{MinLng: -74, MinLat: 40, MaxLng: -73, MaxLat: 41}, Centroid{Lng: -73.5, Lat: 40.5}),
	}
	s := buildTestStore(t, rows)

	ids, err := s.ByStateCode("25")
	if err != nil {
		t.Fatalf("ByStateCode: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ByStateCode(25) = %v, want 2 ids", ids)
	}
}
