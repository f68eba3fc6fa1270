package geodistrict

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/akhenakh/geodistrict/internal/cache"
	"github.com/akhenakh/geodistrict/internal/store"
)

// Coverage box a query coordinate must additionally fall inside, beyond
// being finite: the continental US plus Alaska/Hawaii/territories
// footprint this store covers (§4.6 step 1).
const (
	minLat = 18.0
	maxLat = 72.0
	minLng = -180.0
	maxLng = -65.0
)

const (
	nearestFallbackK = 5
	shutdownSoftWait = 5 * time.Second
	shutdownHardWait = 30 * time.Second
)

// Engine is the online lookup service: a read-only Store handle plus a
// bounded geometry cache. An Engine is safe for concurrent use by many
// goroutines; Shutdown drains in-flight queries before closing the store.
type Engine struct {
	store   *store.Store
	decoder *cache.Decoder
	logger  *zap.Logger

	batchMax int

	inFlight sync.WaitGroup
	shutdown atomic.Bool
}

// Open opens the district store named by cfg.StorePath and builds the
// decoder cache around it.
func Open(cfg Config) (*Engine, error) {
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	decoder, err := cache.NewDecoder(cfg.LRUCapacity)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("geodistrict: %w", err)
	}

	return &Engine{
		store:    st,
		decoder:  decoder,
		logger:   cfg.logger(),
		batchMax: cfg.BatchMax,
	}, nil
}

// Lookup runs the 5-step LookupEngine algorithm for one point: validate,
// bbox-filter candidates, exact containment, nearest-centroid fallback,
// not-found.
func (e *Engine) Lookup(ctx context.Context, lat, lng float64) (LookupResult, error) {
	if e.shutdown.Load() {
		return LookupResult{}, ErrCancelled
	}
	e.inFlight.Add(1)
	defer e.inFlight.Done()

	if err := validateCoordinate(lat, lng); err != nil {
		return LookupResult{}, err
	}

	candidates, err := e.store.CandidatesCovering(lng, lat)
	if err != nil {
		return LookupResult{}, fmt.Errorf("geodistrict: candidates_covering: %w", err)
	}

	for _, row := range candidates {
		if err := ctx.Err(); err != nil {
			return LookupResult{}, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		geometry, err := e.decoder.Decode(row)
		if err != nil {
			decErr := &GeometryDecodeError{DistrictID: row.DistrictID, Err: err}
			e.logger.Warn("geometry decode failed, skipping candidate", zap.Error(decErr))
			continue
		}
		if geometry.Contains(lng, lat) {
			return rowToResult(row, KindExact, 0), nil
		}
	}

	nearest, err := e.store.NearestByCentroid(lng, lat, nearestFallbackK)
	if err != nil {
		return LookupResult{}, fmt.Errorf("geodistrict: nearest_by_centroid: %w", err)
	}
	for _, row := range nearest {
		if err := ctx.Err(); err != nil {
			return LookupResult{}, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		geometry, err := e.decoder.Decode(row)
		if err != nil {
			decErr := &GeometryDecodeError{DistrictID: row.DistrictID, Err: err}
			e.logger.Warn("geometry decode failed, skipping nearest candidate", zap.Error(decErr))
			continue
		}
		dist := geometry.DistanceMeters(lng, lat)
		return rowToResult(row, KindApproximate, uint32(dist)), nil
	}

	return LookupResult{Kind: KindNotFound}, nil
}

// LookupBatch runs Lookup independently for each point, preserving input
// order: there is no shared transaction and no early-exit on a single
// point's error. Exceeding cfg.BatchMax fails the whole call before any
// point is processed; a per-point failure after that instead yields a
// KindError result at that point's index and leaves the rest of the
// batch unaffected.
func (e *Engine) LookupBatch(ctx context.Context, points []Point) ([]LookupResult, error) {
	if e.batchMax > 0 && len(points) > e.batchMax {
		return nil, fmt.Errorf("%w: %d points exceeds limit of %d", ErrBatchTooLarge, len(points), e.batchMax)
	}

	results := make([]LookupResult, len(points))
	for i, p := range points {
		r, err := e.Lookup(ctx, p.Lat, p.Lng)
		if err != nil {
			results[i] = LookupResult{Kind: KindError, Err: err}
			continue
		}
		results[i] = r
	}
	return results, nil
}

// Stats reports store and cache state.
func (e *Engine) Stats() (Stats, error) {
	meta := e.store.Meta()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return Stats{
		TotalDistricts: int(meta.DistrictCount),
		SchoolYear:     meta.SchoolYear,
		Tolerance:      meta.Tolerance,
		LRUCapacity:    e.decoder.Capacity(),
		LRUSize:        e.decoder.Len(),
		MemoryRSSBytes: mem.Sys,
	}, nil
}

// Shutdown flips the shutdown flag (new Lookup calls fail immediately
// with ErrCancelled), then waits for in-flight queries to drain: a soft
// grace period, then a hard deadline after which the store is closed
// regardless.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.shutdown.Store(true)

	drained := make(chan struct{})
	go func() {
		e.inFlight.Wait()
		close(drained)
	}()

	soft := time.NewTimer(shutdownSoftWait)
	defer soft.Stop()
	select {
	case <-drained:
		return e.store.Close()
	case <-ctx.Done():
		return e.closeAfterHardDeadline(drained)
	case <-soft.C:
		return e.closeAfterHardDeadline(drained)
	}
}

func (e *Engine) closeAfterHardDeadline(drained <-chan struct{}) error {
	hard := time.NewTimer(shutdownHardWait)
	defer hard.Stop()
	select {
	case <-drained:
	case <-hard.C:
		e.logger.Warn("shutdown hard deadline reached with queries still in flight")
	}
	return e.store.Close()
}

func rowToResult(row store.Row, kind ResultKind, distanceMeters uint32) LookupResult {
	return LookupResult{
		Kind:           kind,
		DistrictID:     row.DistrictID,
		Name:           row.Name,
		StateCode:      row.StateCode,
		GradeRange:     store.NormalizeGradeRange(row.GradeLowest, row.GradeHighest),
		AreaSqMiles:    store.AreaSqMiles(row.LandAreaM2),
		SchoolYear:     row.SchoolYear,
		DistanceMeters: distanceMeters,
	}
}

func validateCoordinate(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) {
		return &ValidationError{Field: "lat", Value: lat, Constraint: "finite", Message: "latitude must be a finite number", err: ErrCoordinateNotFinite}
	}
	if math.IsNaN(lng) || math.IsInf(lng, 0) {
		return &ValidationError{Field: "lng", Value: lng, Constraint: "finite", Message: "longitude must be a finite number", err: ErrCoordinateNotFinite}
	}
	if lat < minLat || lat > maxLat {
		return &ValidationError{Field: "lat", Value: lat, Constraint: fmt.Sprintf("[%g,%g]", minLat, maxLat), Message: "latitude outside supported coverage", err: ErrCoordinateOutOfRange}
	}
	if lng < minLng || lng > maxLng {
		return &ValidationError{Field: "lng", Value: lng, Constraint: fmt.Sprintf("[%g,%g]", minLng, maxLng), Message: "longitude outside supported coverage", err: ErrCoordinateOutOfRange}
	}
	return nil
}

// translateStoreErr maps internal/store's sentinels onto this package's
// public ones, so callers of Open can match errors.Is against
// ErrStoreMissing/ErrStoreCorrupt/ErrVersionMismatch without importing
// internal/store.
func translateStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrStoreMissing):
		return fmt.Errorf("%w: %v", ErrStoreMissing, err)
	case errors.Is(err, store.ErrStoreCorrupt):
		return fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	case errors.Is(err, store.ErrVersionMismatch):
		return fmt.Errorf("%w: %v", ErrVersionMismatch, err)
	default:
		return fmt.Errorf("geodistrict: open store: %w", err)
	}
}
