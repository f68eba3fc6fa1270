package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc64"

	"github.com/google/uuid"
)

// CurrentBuilderVersion is written into every store's metadata header.
// Store.Open refuses to open a file whose header reports a newer version
// than this.
const CurrentBuilderVersion uint32 = 1

var crcTable = crc64.MakeTable(crc64.ISO)

// Meta is the store's metadata header (§6: builder version, school year
// string, tolerance, district count, CRC of the remainder).
type Meta struct {
	BuilderVersion uint32
	BuildID        uuid.UUID
	SourceFile     string
	SchoolYear     string
	Tolerance      float64
	DistrictCount  uint64
	CRC            uint64
}

func encodeMeta(m Meta) ([]byte, error) {
	type wire struct {
		BuilderVersion uint32  `json:"builder_version"`
		BuildID        string  `json:"build_id"`
		SourceFile     string  `json:"source_file"`
		SchoolYear     string  `json:"school_year"`
		Tolerance      float64 `json:"tolerance"`
		DistrictCount  uint64  `json:"district_count"`
	}
	b, err := json.Marshal(wire{
		BuilderVersion: m.BuilderVersion,
		BuildID:        m.BuildID.String(),
		SourceFile:     m.SourceFile,
		SchoolYear:     m.SchoolYear,
		Tolerance:      m.Tolerance,
		DistrictCount:  m.DistrictCount,
	})
	if err != nil {
		return nil, fmt.Errorf("store: encode meta: %w", err)
	}
	crc := crc64.Checksum(b, crcTable)
	var crcBytes [8]byte
	binary.BigEndian.PutUint64(crcBytes[:], crc)
	return append(crcBytes[:], b...), nil
}

func decodeMeta(data []byte) (Meta, error) {
	if len(data) < 8 {
		return Meta{}, fmt.Errorf("store: %w: metadata too short", ErrStoreCorrupt)
	}
	storedCRC := binary.BigEndian.Uint64(data[:8])
	body := data[8:]
	if crc64.Checksum(body, crcTable) != storedCRC {
		return Meta{}, fmt.Errorf("store: %w: metadata checksum mismatch", ErrStoreCorrupt)
	}

	var wire struct {
		BuilderVersion uint32  `json:"builder_version"`
		BuildID        string  `json:"build_id"`
		SourceFile     string  `json:"source_file"`
		SchoolYear     string  `json:"school_year"`
		Tolerance      float64 `json:"tolerance"`
		DistrictCount  uint64  `json:"district_count"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return Meta{}, fmt.Errorf("store: %w: %v", ErrStoreCorrupt, err)
	}
	buildID, err := uuid.Parse(wire.BuildID)
	if err != nil {
		return Meta{}, fmt.Errorf("store: %w: bad build id: %v", ErrStoreCorrupt, err)
	}
	return Meta{
		BuilderVersion: wire.BuilderVersion,
		BuildID:        buildID,
		SourceFile:     wire.SourceFile,
		SchoolYear:     wire.SchoolYear,
		Tolerance:      wire.Tolerance,
		DistrictCount:  wire.DistrictCount,
		CRC:            storedCRC,
	}, nil
}
