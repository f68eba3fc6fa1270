package geomutil

import "testing"

func square(minLng, minLat, maxLng, maxLat float64) Ring {
	return Ring{
		{Lng: minLng, Lat: minLat},
		{Lng: maxLng, Lat: minLat},
		{Lng: maxLng, Lat: maxLat},
		{Lng: minLng, Lat: maxLat},
		{Lng: minLng, Lat: minLat},
	}
}

func TestRingAreaAndCentroidOfSquare(t *testing.T) {
	r := square(0, 0, 2, 2)
	area := ringArea(r)
	if area != 4 && area != -4 {
		t.Fatalf("ringArea = %v, want +/-4", area)
	}
	c, _ := ringCentroid(r)
	if c.Lng != 1 || c.Lat != 1 {
		t.Errorf("ringCentroid = %+v, want (1,1)", c)
	}
}

func TestComputeBBoxAndCentroidWithHole(t *testing.T) {
	g := RawGeometry{Parts: []RawPolygon{
		{
			Exterior: square(0, 0, 10, 10),
			Holes:    []Ring{square(4, 4, 6, 6)},
		},
	}}
	bbox, centroid := computeBBoxAndCentroid(g)
	if bbox.MinLng != 0 || bbox.MaxLng != 10 || bbox.MinLat != 0 || bbox.MaxLat != 10 {
		t.Fatalf("bbox = %+v, want full 0..10 envelope", bbox)
	}
	// The hole is centered in the square, so subtracting its area shouldn't
	// move the centroid off (5,5).
	if centroid.Lng != 5 || centroid.Lat != 5 {
		t.Errorf("centroid = %+v, want (5,5)", centroid)
	}
}

func TestSelfIntersectsDetectsBowtie(t *testing.T) {
	bowtie := Ring{
		{Lng: 0, Lat: 0},
		{Lng: 2, Lat: 2},
		{Lng: 2, Lat: 0},
		{Lng: 0, Lat: 2},
	}
	if !selfIntersects(bowtie) {
		t.Error("selfIntersects(bowtie) = false, want true")
	}
	if selfIntersects(square(0, 0, 2, 2)) {
		t.Error("selfIntersects(square) = true, want false")
	}
}

func TestSimplifyDropsCollinearPoints(t *testing.T) {
	r := Ring{
		{Lng: 0, Lat: 0},
		{Lng: 1, Lat: 0.0001},
		{Lng: 2, Lat: 0},
		{Lng: 2, Lat: 2},
		{Lng: 0, Lat: 2},
		{Lng: 0, Lat: 0},
	}
	out := simplify(r, 0.01)
	if len(out) >= len(r) {
		t.Errorf("simplify did not reduce vertex count: got %d, want < %d", len(out), len(r))
	}
}

func TestSimplifyFallsBackWhenDegenerate(t *testing.T) {
	tiny := square(0, 0, 0.001, 0.001)
	out := simplifyRingOrFallback(tiny, 10)
	if len(out) != len(tiny) {
		t.Errorf("simplifyRingOrFallback should have fallen back to original ring, got %d points", len(out))
	}
}

func TestNormalizeProducesEncodedGeometry(t *testing.T) {
	g := RawGeometry{Parts: []RawPolygon{{Exterior: square(-71.1, 42.2, -70.9, 42.4)}}}
	result, warnings, err := Normalize(g, 1e-4)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if len(result.GeometryBlob) == 0 {
		t.Error("GeometryBlob is empty")
	}
	if !result.BBox.Covers(result.Centroid.Lng, result.Centroid.Lat) {
		t.Errorf("centroid %+v not within bbox %+v", result.Centroid, result.BBox)
	}
}

func TestNormalizeDropsSelfIntersectingPart(t *testing.T) {
	bowtie := Ring{
		{Lng: 0, Lat: 0},
		{Lng: 2, Lat: 2},
		{Lng: 2, Lat: 0},
		{Lng: 0, Lat: 2},
	}
	good := square(10, 10, 12, 12)
	g := RawGeometry{Parts: []RawPolygon{{Exterior: bowtie}, {Exterior: good}}}
	result, warnings, err := Normalize(g, 1e-4)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly 1", warnings)
	}
	if result.BBox.MinLng != 10 || result.BBox.MaxLng != 12 {
		t.Errorf("bbox = %+v, want only the surviving square's envelope", result.BBox)
	}
}

func TestNormalizeAllPartsInvalid(t *testing.T) {
	bowtie := Ring{
		{Lng: 0, Lat: 0},
		{Lng: 2, Lat: 2},
		{Lng: 2, Lat: 0},
		{Lng: 0, Lat: 2},
	}
	g := RawGeometry{Parts: []RawPolygon{{Exterior: bowtie}}}
	_, _, err := Normalize(g, 1e-4)
	if err == nil {
		t.Fatal("Normalize: expected error when every part is invalid")
	}
}
