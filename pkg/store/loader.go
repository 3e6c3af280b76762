package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/poimap/pkg/monitoring"
	"github.com/NERVsystems/poimap/pkg/osm"
	"github.com/NERVsystems/poimap/pkg/tracing"
)

const (
	defaultLoaderCacheSize = 8
	cacheTypeSnapshot      = "snapshot"
)

// cacheKey changes whenever the file is rewritten.
type cacheKey struct {
	path    string
	modTime int64
	size    int64
}

// Loader loads snapshots and keeps the decoded result for files that one
// invocation names more than once, such as compare a a.
type Loader struct {
	cache  *lru.Cache[cacheKey, *osm.Snapshot]
	logger *slog.Logger
}

// NewLoader creates a loader holding at most size snapshots.
func NewLoader(size int, logger *slog.Logger) *Loader {
	if size <= 0 {
		size = defaultLoaderCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[cacheKey, *osm.Snapshot](size)
	if err != nil {
		// only fails for a non-positive size
		cache, _ = lru.New[cacheKey, *osm.Snapshot](defaultLoaderCacheSize)
	}
	return &Loader{cache: cache, logger: logger}
}

// Load returns the snapshot at path, decoding the file only when it is not
// cached or has changed since it was cached.
func (l *Loader) Load(ctx context.Context, path string) (*osm.Snapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "store.load",
		trace.WithAttributes(attribute.String(tracing.AttrSnapshotPath, path)))
	defer span.End()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &FileAccessError{Op: OpStat, Path: path, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		tracing.Fail(ctx, err, "stat failed")
		return nil, &FileAccessError{Op: OpStat, Path: path, Err: err}
	}

	key := cacheKey{path: abs, modTime: info.ModTime().UnixNano(), size: info.Size()}
	if snap, ok := l.cache.Get(key); ok {
		monitoring.RecordCacheHit(cacheTypeSnapshot)
		span.SetAttributes(attribute.Bool(tracing.AttrCacheHit, true))
		l.logger.Debug("snapshot cache hit", "path", path)
		return snap, nil
	}
	monitoring.RecordCacheMiss(cacheTypeSnapshot)
	span.SetAttributes(attribute.Bool(tracing.AttrCacheHit, false))

	snap, err := load(ctx, path, info)
	if err != nil {
		tracing.Fail(ctx, err, "load failed")
		return nil, err
	}

	span.SetAttributes(tracing.SnapshotAttributes(path, snap.Len(), len(snap.Skipped()))...)
	points, areas := snap.CountByKind()
	monitoring.RecordElements(points, areas, len(snap.Skipped()))
	l.logger.Debug("loaded snapshot",
		"path", path,
		"elements", snap.Len(),
		"skipped", len(snap.Skipped()),
		"bytes", info.Size())

	l.cache.Add(key, snap)
	return snap, nil
}

// Len returns the number of cached snapshots.
func (l *Loader) Len() int {
	return l.cache.Len()
}
