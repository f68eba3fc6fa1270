package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/golang/geo/s2"
	bolt "go.etcd.io/bbolt"
)

const (
	bucketMeta       = "meta"
	bucketDistricts  = "districts"
	bucketCentroids  = "centroids"
	bucketBboxIndex  = "bbox_index"
	bucketStateIndex = "state_index"

	metaKey = "header"
)

// Store is the read-only handle over a built district store. It opens the
// file in shared-read mode and never mutates it; all write paths live in
// Builder.
type Store struct {
	db      *bolt.DB
	indexer *s2.RegionTermIndexer
	meta    Meta
}

// Open opens path read-only. It refuses files whose metadata header
// reports a builder version newer than CurrentBuilderVersion, and
// surfaces ErrStoreCorrupt if the header checksum fails to verify.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoreMissing, path)
		}
		return nil, fmt.Errorf("store: stat %s: %w", path, err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	var meta Meta
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketMeta))
		if b == nil {
			return fmt.Errorf("%w: missing meta bucket", ErrStoreCorrupt)
		}
		data := b.Get([]byte(metaKey))
		if data == nil {
			return fmt.Errorf("%w: missing meta key", ErrStoreCorrupt)
		}
		var derr error
		meta, derr = decodeMeta(data)
		return derr
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if meta.BuilderVersion > CurrentBuilderVersion {
		_ = db.Close()
		return nil, fmt.Errorf("%w: store version %d > supported %d", ErrVersionMismatch, meta.BuilderVersion, CurrentBuilderVersion)
	}

	return &Store{db: db, indexer: newIndexer(), meta: meta}, nil
}

// Close releases the underlying file handle. Safe to call once all queries
// holding a reference to Store have returned.
func (s *Store) Close() error {
	return s.db.Close()
}

// Meta returns the store's cached metadata header; no table scan involved.
func (s *Store) Meta() Meta {
	return s.meta
}

// CandidatesCovering is the bbox-index probe: it returns every district
// whose bbox covers (lng, lat), via an S2 cell-term coarse filter followed
// by an exact 4-inequality bbox recheck for anything not already
// guaranteed by an interior-term match.
func (s *Store) CandidatesCovering(lng, lat float64) ([]Row, error) {
	terms := queryTermsForPoint(s.indexer, lng, lat)

	var interiorIDs, exteriorIDs []string
	seen := make(map[string]struct{})

	err := s.db.View(func(tx *bolt.Tx) error {
		bIdx := tx.Bucket([]byte(bucketBboxIndex))
		if bIdx == nil {
			return nil
		}
		c := bIdx.Cursor()

		for _, term := range terms {
			prefix := []byte("int:" + term + "\x00")
			for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
				id := string(bytes.TrimPrefix(k, prefix))
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					interiorIDs = append(interiorIDs, id)
				}
			}
		}
		for _, term := range terms {
			prefix := []byte("ext:" + term + "\x00")
			for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
				id := string(bytes.TrimPrefix(k, prefix))
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					exteriorIDs = append(exteriorIDs, id)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var rows []Row
	err = s.db.View(func(tx *bolt.Tx) error {
		bObj := tx.Bucket([]byte(bucketDistricts))
		if bObj == nil {
			return nil
		}
		for _, id := range interiorIDs {
			data := bObj.Get([]byte(id))
			if data == nil {
				continue
			}
			row, derr := decodeRow(cloneBytes(data))
			if derr != nil {
				continue
			}
			rows = append(rows, row)
		}
		for _, id := range exteriorIDs {
			data := bObj.Get([]byte(id))
			if data == nil {
				continue
			}
			row, derr := decodeRow(cloneBytes(data))
			if derr != nil {
				continue
			}
			if row.BBox.Covers(lng, lat) {
				rows = append(rows, row)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// NearestByCentroid returns up to k districts ordered by planar squared
// distance of centroid to (lng, lat).
func (s *Store) NearestByCentroid(lng, lat float64, k int) ([]Row, error) {
	if k <= 0 {
		return nil, nil
	}

	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketCentroids))
		if b == nil {
			return nil
		}
		ids = nearestK(func(yield func(id string, clng, clat float64) bool) {
			c := b.Cursor()
			for key, val := c.First(); key != nil; key, val = c.Next() {
				cen := decodeCentroid(val)
				if !yield(string(key), cen.Lng, cen.Lat) {
					return
				}
			}
		}, lng, lat, k)
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(ids))
	err = s.db.View(func(tx *bolt.Tx) error {
		bObj := tx.Bucket([]byte(bucketDistricts))
		if bObj == nil {
			return nil
		}
		for _, id := range ids {
			data := bObj.Get([]byte(id))
			if data == nil {
				continue
			}
			row, derr := decodeRow(cloneBytes(data))
			if derr != nil {
				continue
			}
			rows = append(rows, row)
		}
		return nil
	})
	return rows, err
}

// ByStateCode returns the district ids filed under the given NCES state
// FIPS code via the state-code index.
func (s *Store) ByStateCode(stateCode string) ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketStateIndex))
		if b == nil {
			return nil
		}
		prefix := []byte(stateCode + "\x00")
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			ids = append(ids, string(bytes.TrimPrefix(k, prefix)))
		}
		return nil
	})
	sort.Strings(ids)
	return ids, err
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
