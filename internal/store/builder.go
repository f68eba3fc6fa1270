package store

import (
	"fmt"
	"os"

	"github.com/golang/geo/s2"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// Builder writes the persistent district store (§4.3). One Builder writes
// one store file; it is not reusable across builds.
type Builder struct {
	outputPath string
	tmpPath    string
	db         *bolt.DB
	tx         *bolt.Tx
	indexer    *s2.RegionTermIndexer
	count      uint64
	sourceFile string
	schoolYear string
	tolerance  float64
	logger     *zap.Logger
	done       bool
}

// NewBuilder opens a fresh working file next to outputPath and begins the
// single write transaction that every subsequent AddDistrict call and the
// final Finalize participate in.
func NewBuilder(outputPath, sourceFile, schoolYear string, tolerance float64, logger *zap.Logger) (*Builder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpPath := outputPath + ".building"
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("store: clear stale build file: %w", err)
	}

	db, err := bolt.Open(tmpPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open build file: %w", err)
	}

	tx, err := db.Begin(true)
	if err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("store: begin build transaction: %w", err)
	}

	for _, name := range []string{bucketMeta, bucketDistricts, bucketCentroids, bucketBboxIndex, bucketStateIndex} {
		if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
			_ = tx.Rollback()
			_ = db.Close()
			_ = os.Remove(tmpPath)
			return nil, fmt.Errorf("store: create bucket %s: %w", name, err)
		}
	}

	return &Builder{
		outputPath: outputPath,
		tmpPath:    tmpPath,
		db:         db,
		tx:         tx,
		indexer:    newIndexer(),
		sourceFile: sourceFile,
		schoolYear: schoolYear,
		tolerance:  tolerance,
		logger:     logger,
	}, nil
}

// AddDistrict writes one district row plus its centroid, bbox-index terms,
// and state-code index entry, all within the builder's open transaction.
func (b *Builder) AddDistrict(row Row) error {
	blob, err := encodeRow(row)
	if err != nil {
		return fmt.Errorf("store: encode district %s: %w", row.DistrictID, err)
	}
	if err := b.tx.Bucket([]byte(bucketDistricts)).Put([]byte(row.DistrictID), blob); err != nil {
		return fmt.Errorf("store: put district %s: %w", row.DistrictID, err)
	}
	if err := b.tx.Bucket([]byte(bucketCentroids)).Put([]byte(row.DistrictID), encodeCentroid(row.Centroid)); err != nil {
		return fmt.Errorf("store: put centroid %s: %w", row.DistrictID, err)
	}

	interior, exterior := bboxCoverTerms(b.indexer, row.BBox)
	bIdx := b.tx.Bucket([]byte(bucketBboxIndex))
	for _, term := range interior {
		if err := putIndexTerm(bIdx, "int:"+term, row.DistrictID); err != nil {
			return err
		}
	}
	for _, term := range exterior {
		if err := putIndexTerm(bIdx, "ext:"+term, row.DistrictID); err != nil {
			return err
		}
	}

	if row.StateCode != "" {
		bState := b.tx.Bucket([]byte(bucketStateIndex))
		key := append([]byte(row.StateCode+"\x00"), []byte(row.DistrictID)...)
		if err := bState.Put(key, []byte{1}); err != nil {
			return fmt.Errorf("store: put state index for %s: %w", row.DistrictID, err)
		}
	}

	b.count++
	return nil
}

func putIndexTerm(b *bolt.Bucket, prefixedTerm, districtID string) error {
	key := make([]byte, len(prefixedTerm)+1+len(districtID))
	copy(key, prefixedTerm)
	key[len(prefixedTerm)] = 0
	copy(key[len(prefixedTerm)+1:], districtID)
	return b.Put(key, []byte{1})
}

// Finalize writes the metadata header, commits the build transaction, runs
// a compaction pass so the page layout is dense at read time, and
// atomically installs the result at outputPath. On any error the working
// file is removed and outputPath is left untouched.
func (b *Builder) Finalize() error {
	if b.done {
		return fmt.Errorf("store: builder already finalized")
	}
	b.done = true

	meta := Meta{
		BuilderVersion: CurrentBuilderVersion,
		BuildID:        uuid.New(),
		SourceFile:     b.sourceFile,
		SchoolYear:     b.schoolYear,
		Tolerance:      b.tolerance,
		DistrictCount:  b.count,
	}
	metaBytes, err := encodeMeta(meta)
	if err != nil {
		b.abort()
		return err
	}
	if err := b.tx.Bucket([]byte(bucketMeta)).Put([]byte(metaKey), metaBytes); err != nil {
		b.abort()
		return fmt.Errorf("store: put meta: %w", err)
	}

	if err := b.tx.Commit(); err != nil {
		_ = b.db.Close()
		_ = os.Remove(b.tmpPath)
		return fmt.Errorf("store: commit build transaction: %w", err)
	}
	if err := b.db.Close(); err != nil {
		_ = os.Remove(b.tmpPath)
		return fmt.Errorf("store: close build file: %w", err)
	}

	compactedPath := b.outputPath + ".compact"
	if err := compact(compactedPath, b.tmpPath); err != nil {
		_ = os.Remove(b.tmpPath)
		_ = os.Remove(compactedPath)
		return fmt.Errorf("store: compact: %w", err)
	}
	_ = os.Remove(b.tmpPath)

	if err := os.Rename(compactedPath, b.outputPath); err != nil {
		_ = os.Remove(compactedPath)
		return fmt.Errorf("store: install compacted store: %w", err)
	}

	b.logger.Info("district store built",
		zap.String("path", b.outputPath),
		zap.Uint64("districts", b.count),
		zap.String("school_year", b.schoolYear),
		zap.Float64("tolerance", b.tolerance),
		zap.String("build_id", meta.BuildID.String()),
	)
	return nil
}

// Abort discards the in-progress build, rolling back the transaction and
// removing the working file. Safe to call after a partial AddDistrict
// failure; a no-op after Finalize has run.
func (b *Builder) Abort() {
	if b.done {
		return
	}
	b.done = true
	b.abort()
}

func (b *Builder) abort() {
	_ = b.tx.Rollback()
	_ = b.db.Close()
	_ = os.Remove(b.tmpPath)
}

// compact copies src into a fresh file at dst in key order, using bbolt's
// own compaction helper so freed pages from the build transaction don't
// carry into the store that ships to readers.
func compact(dst, src string) error {
	srcDB, err := bolt.Open(src, 0o600, &bolt.Options{ReadOnly: true})
	if err != nil {
		return err
	}
	defer srcDB.Close()

	dstDB, err := bolt.Open(dst, 0o600, nil)
	if err != nil {
		return err
	}
	defer dstDB.Close()

	return bolt.Compact(dstDB, srcDB, 0)
}
