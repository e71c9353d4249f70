// Package engine composes the in-memory and on-disk tiers into a single
// logical time-series store: the public write/read contract, the flush
// policy that migrates data between tiers, and the maintenance entry
// points.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/xtxerr/findata/internal/config"
	"github.com/xtxerr/findata/internal/logging"
	"github.com/xtxerr/findata/internal/memtable"
	"github.com/xtxerr/findata/internal/segment"
	"github.com/xtxerr/findata/internal/types"
)

// Engine is the storage engine façade. All methods are safe for
// concurrent use from multiple goroutines; flush and compaction run on
// the calling goroutine.
type Engine struct {
	mu sync.RWMutex

	cfg  *config.Config
	mem  *memtable.Memtable
	disk *segment.Store
	log  *slog.Logger

	totalPoints atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

// Stats is a snapshot of engine counters. GetLatest counts a cache hit
// when the in-memory tier answers and a miss when it falls back to the
// segment store. ReadRange counts a hit when its in-memory snapshot is
// non-empty and a miss otherwise; it queries the segment store in both
// cases.
type Stats struct {
	TotalPoints      int64
	CacheHits        int64
	CacheMisses      int64
	CacheHitRatio    float64
	StorageSizeBytes int64
}

// New creates a storage engine rooted at the configured data directory,
// rebuilding the segment index from any files already there.
func New(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	disk, err := segment.Open(cfg.DataDir, cfg.Disk)
	if err != nil {
		return nil, fmt.Errorf("open segment store: %w", err)
	}

	return &Engine{
		cfg:  cfg,
		mem:  memtable.New(),
		disk: disk,
		log:  logging.Component("engine"),
	}, nil
}

// WritePoint inserts a single point into the in-memory tier. Returns
// false when a point with the same timestamp already exists for the
// symbol; a duplicate neither counts nor triggers a flush. When the
// buffer exceeds the configured threshold the write's own goroutine
// performs the flush.
func (e *Engine) WritePoint(p types.Point) bool {
	e.mu.Lock()
	ok := e.mem.Insert(p)
	if ok {
		e.totalPoints.Add(1)
	}
	needsFlush := ok && e.mem.Size() > e.cfg.MaxMemoryPoints
	e.mu.Unlock()

	if needsFlush {
		return e.Flush()
	}
	return ok
}

// WriteBatch inserts a batch of points. Duplicate timestamps within the
// batch or against the buffer are dropped, first arriver wins.
func (e *Engine) WriteBatch(points []types.Point) bool {
	if len(points) == 0 {
		return true
	}

	e.mu.Lock()
	admitted := e.mem.InsertBatch(points)
	e.totalPoints.Add(int64(admitted))
	needsFlush := e.mem.Size() > e.cfg.MaxMemoryPoints
	e.mu.Unlock()

	if needsFlush {
		return e.Flush()
	}
	return true
}

// Flush drains the in-memory tier to the segment store. The collection
// happens under the exclusive engine lock, the disk write happens with
// the lock released, and the buffer is cleared only after the write
// committed. On failure the buffer is left intact for retry.
func (e *Engine) Flush() bool {
	var batch []types.Point

	e.mu.Lock()
	for _, symbol := range e.mem.Symbols() {
		batch = append(batch, e.mem.GetRange(symbol, math.MinInt64, math.MaxInt64)...)
	}
	e.mu.Unlock()

	if len(batch) == 0 {
		return true
	}

	if err := e.disk.WriteBatch(batch); err != nil {
		e.log.Error("flush failed, buffer retained", "points", len(batch), "error", err)
		return false
	}

	e.mu.Lock()
	e.mem.Clear()
	e.mu.Unlock()

	e.log.Debug("flushed memory tier", "points", len(batch))
	return true
}

// ReadRange returns all points for the symbol with
// start <= timestamp <= end across both tiers, sorted by timestamp.
// Points duplicated across tiers are not deduplicated here; compaction
// eliminates them on disk.
func (e *Engine) ReadRange(symbol string, start, end int64) []types.Point {
	e.mu.RLock()
	memPoints := e.mem.GetRange(symbol, start, end)
	e.mu.RUnlock()

	if len(memPoints) > 0 {
		e.cacheHits.Add(1)
	} else {
		e.cacheMisses.Add(1)
	}

	diskPoints, err := e.disk.ReadRange(symbol, start, end)
	if err != nil {
		e.log.Error("disk range read failed", "symbol", symbol, "error", err)
	}

	results := make([]types.Point, 0, len(memPoints)+len(diskPoints))
	results = append(results, memPoints...)
	results = append(results, diskPoints...)

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp < results[j].Timestamp
	})

	return results
}

// GetLatest returns the maximum-timestamp point for the symbol. The
// in-memory tier is consulted first; a flushed symbol falls back to the
// segments sharing the newest end time in the index.
func (e *Engine) GetLatest(symbol string) (types.Point, bool) {
	e.mu.RLock()
	p, ok := e.mem.GetLatest(symbol)
	e.mu.RUnlock()

	if ok {
		e.cacheHits.Add(1)
		return p, true
	}
	e.cacheMisses.Add(1)

	p, ok, err := e.disk.ReadLatest(symbol)
	if err != nil {
		e.log.Error("disk latest read failed", "symbol", symbol, "error", err)
		return types.Point{}, false
	}
	return p, ok
}

// Symbols returns the union of the symbols present in memory and on
// disk, sorted.
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	memSymbols := e.mem.Symbols()
	e.mu.RUnlock()

	seen := make(map[string]bool, len(memSymbols))
	for _, s := range memSymbols {
		seen[s] = true
	}
	for _, s := range e.disk.Symbols() {
		seen[s] = true
	}

	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// Optimize flushes the in-memory tier and compacts every symbol's
// segments, collapsing duplicates and re-segmenting evenly.
func (e *Engine) Optimize() {
	if !e.Flush() {
		e.log.Warn("optimize proceeding with unflushed memory tier")
	}
	e.disk.OptimizeIndex()
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	hits := e.cacheHits.Load()
	misses := e.cacheMisses.Load()

	ratio := 0.0
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	return Stats{
		TotalPoints:      e.totalPoints.Load(),
		CacheHits:        hits,
		CacheMisses:      misses,
		CacheHitRatio:    ratio,
		StorageSizeBytes: e.disk.StorageSize(),
	}
}

// MemorySize returns the live point count of the in-memory tier.
func (e *Engine) MemorySize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mem.Size()
}

// Close flushes any buffered points so a clean shutdown leaves the full
// history recoverable from the data directory.
func (e *Engine) Close() error {
	if !e.Flush() {
		return fmt.Errorf("flush on close failed")
	}
	return nil
}
