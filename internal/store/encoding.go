package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// rowAttrs is the JSON-encoded attribute projection stored ahead of the
// geometry blob in each district's value. Bbox/centroid are included here
// (rather than left to bolt's raw floats) so a Row round-trips through a
// single Get without a second index lookup.
type rowAttrs struct {
	DistrictID   string  `json:"district_id"`
	Name         string  `json:"name"`
	StateCode    string  `json:"state_code"`
	GradeLowest  string  `json:"grade_lowest"`
	GradeHighest string  `json:"grade_highest"`
	LandAreaM2   float64 `json:"land_area_m2"`
	WaterAreaM2  float64 `json:"water_area_m2"`
	SchoolYear   string  `json:"school_year"`
	BBox         BBox    `json:"bbox"`
	Centroid     Centroid `json:"centroid"`
}

// encodeRow serializes a Row as [AttrsLenUvarint][AttrsJSON][GeometryBlob].
// GeometryBlob is the teacher-format varint-framed shape table plus encoded
// s2 shape index (see internal/cache for the decode side); it is opaque
// here and simply appended, since its own internal framing delimits it.
func encodeRow(row Row) ([]byte, error) {
	attrs := rowAttrs{
		DistrictID:   row.DistrictID,
		Name:         row.Name,
		StateCode:    row.StateCode,
		GradeLowest:  row.GradeLowest,
		GradeHighest: row.GradeHighest,
		LandAreaM2:   row.LandAreaM2,
		WaterAreaM2:  row.WaterAreaM2,
		SchoolYear:   row.SchoolYear,
		BBox:         row.BBox,
		Centroid:     row.Centroid,
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("store: encode attrs: %w", err)
	}

	var buf bytes.Buffer
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], uint64(len(attrsJSON)))
	buf.Write(b[:n])
	buf.Write(attrsJSON)
	buf.Write(row.GeometryBlob)
	return buf.Bytes(), nil
}

// decodeRow parses a stored district value back into a Row. The returned
// Row's GeometryBlob slice aliases data and must not be retained past the
// enclosing bolt transaction.
func decodeRow(data []byte) (Row, error) {
	r := bytes.NewReader(data)

	attrsLen, err := binary.ReadUvarint(r)
	if err != nil {
		return Row{}, fmt.Errorf("store: read attrs length: %w", err)
	}
	attrsJSON := make([]byte, attrsLen)
	if _, err := io.ReadFull(r, attrsJSON); err != nil {
		return Row{}, fmt.Errorf("store: read attrs: %w", err)
	}
	var attrs rowAttrs
	if err := json.Unmarshal(attrsJSON, &attrs); err != nil {
		return Row{}, fmt.Errorf("store: unmarshal attrs: %w", err)
	}

	geomOffset := int64(len(data)) - int64(r.Len())
	geometryBlob := data[geomOffset:]

	return Row{
		DistrictID:   attrs.DistrictID,
		Name:         attrs.Name,
		StateCode:    attrs.StateCode,
		GradeLowest:  attrs.GradeLowest,
		GradeHighest: attrs.GradeHighest,
		LandAreaM2:   attrs.LandAreaM2,
		WaterAreaM2:  attrs.WaterAreaM2,
		SchoolYear:   attrs.SchoolYear,
		BBox:         attrs.BBox,
		Centroid:     attrs.Centroid,
		GeometryBlob: geometryBlob,
	}, nil
}

func encodeCentroid(c Centroid) []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], math.Float64bits(c.Lng))
	binary.BigEndian.PutUint64(b[8:16], math.Float64bits(c.Lat))
	return b
}

func decodeCentroid(b []byte) Centroid {
	return Centroid{
		Lng: math.Float64frombits(binary.BigEndian.Uint64(b[0:8])),
		Lat: math.Float64frombits(binary.BigEndian.Uint64(b[8:16])),
	}
}
