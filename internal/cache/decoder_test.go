package cache

import (
	"testing"

	"github.com/golang/geo/s2"

	"github.com/akhenakh/geodistrict/internal/geoenc"
	"github.com/akhenakh/geodistrict/internal/store"
)

func squareBlob(t *testing.T, minLng, minLat, maxLng, maxLat float64) []byte {
	t.Helper()
	pts := []s2.Point{
		s2.PointFromLatLng(s2.LatLngFromDegrees(minLat, minLng)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(minLat, maxLng)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(maxLat, maxLng)),
		s2.PointFromLatLng(s2.LatLngFromDegrees(maxLat, minLng)),
	}
	loop := s2.LoopFromPoints(pts)
	poly := s2.PolygonFromOrientedLoops([]*s2.Loop{loop})
	blob, err := geoenc.EncodeShapes([]s2.Shape{poly})
	if err != nil {
		t.Fatalf("EncodeShapes: %v", err)
	}
	return blob
}

func TestDecodeContainsAndDistance(t *testing.T) {
	d, err := NewDecoder(10)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	blob := squareBlob(t, -71.2, 42.2, -70.9, 42.4)

	dg, err := d.Decode(store.Row{DistrictID: "2502790", GeometryBlob: blob})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !dg.Contains(-71.05, 42.3) {
		t.Error("Contains(inside point) = false, want true")
	}
	if dg.Contains(-60.0, 10.0) {
		t.Error("Contains(far point) = true, want false")
	}
	if dist := dg.DistanceMeters(-60.0, 10.0); dist <= 0 {
		t.Errorf("DistanceMeters(far point) = %v, want > 0", dist)
	}
	if dist := dg.DistanceMeters(-71.05, 42.3); dist < 0 {
		t.Errorf("DistanceMeters(inside point) = %v, want >= 0", dist)
	}
}

func TestDecodeCachesByDistrictID(t *testing.T) {
	d, err := NewDecoder(1)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	blobA := squareBlob(t, 0, 0, 1, 1)
	blobB := squareBlob(t, 10, 10, 11, 11)

	if _, err := d.Decode(store.Row{DistrictID: "a", GeometryBlob: blobA}); err != nil {
		t.Fatalf("Decode a: %v", err)
	}
	if d.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", d.Len())
	}
	if _, err := d.Decode(store.Row{DistrictID: "b", GeometryBlob: blobB}); err != nil {
		t.Fatalf("Decode b: %v", err)
	}
	// Capacity 1: adding "b" evicts "a".
	if d.Len() != 1 {
		t.Fatalf("Len() after eviction = %d, want 1", d.Len())
	}
}

func TestDecoderBypassMode(t *testing.T) {
	d, err := NewDecoder(0)
	if err != nil {
		t.Fatalf("NewDecoder(0): %v", err)
	}
	blob := squareBlob(t, 0, 0, 1, 1)
	if _, err := d.Decode(store.Row{DistrictID: "x", GeometryBlob: blob}); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.Len() != 0 {
		t.Errorf("Len() in bypass mode = %d, want 0", d.Len())
	}
	if d.Capacity() != 0 {
		t.Errorf("Capacity() = %d, want 0", d.Capacity())
	}
}

func TestDecodeInvalidBlobErrors(t *testing.T) {
	d, err := NewDecoder(10)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if _, err := d.Decode(store.Row{DistrictID: "bad", GeometryBlob: []byte{0xff, 0xff, 0xff}}); err == nil {
		t.Error("Decode: expected error for malformed blob")
	}
}
