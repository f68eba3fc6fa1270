package geodistrict

import "go.uber.org/zap"

// Config configures Open. StorePath must name a store built by
// cmd/builddistrictstore; Logger defaults to a no-op logger when nil.
type Config struct {
	// StorePath is the path to the district store file produced by the
	// offline build pipeline.
	StorePath string
	// LRUCapacity bounds the decoded-geometry cache. 0 disables caching:
	// every lookup decodes fresh.
	LRUCapacity int
	// BatchMax upper-bounds LookupBatch's input length; a call exceeding
	// it fails fast before any point is processed.
	BatchMax int
	// Logger receives per-query decode-error diagnostics. Build warnings
	// are not logged here; that's cmd/builddistrictstore's job.
	Logger *zap.Logger
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
