// Package memtable implements the in-memory tier: per-symbol sequences of
// points kept strictly sorted by timestamp.
package memtable

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/xtxerr/findata/internal/types"
)

// series holds one symbol's sorted points.
// Invariant: timestamps are strictly increasing, no duplicates.
type series struct {
	mu     sync.RWMutex
	points []types.Point
}

// Memtable is a thread-safe sorted buffer of points keyed by symbol.
// A global reader/writer lock guards the symbol map; each series carries
// its own reader/writer lock. Lock ordering is global first, then series.
type Memtable struct {
	mu     sync.RWMutex
	series map[string]*series

	size atomic.Int64
}

// New creates an empty memtable.
func New() *Memtable {
	return &Memtable{
		series: make(map[string]*series),
	}
}

// getOrCreate returns the series for symbol, creating it if needed.
// Creation upgrades from the shared to the exclusive global lock with a
// double-check, since another writer may have created the series in
// between.
func (m *Memtable) getOrCreate(symbol string) *series {
	m.mu.RLock()
	s, ok := m.series[symbol]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok = m.series[symbol]; ok {
		return s
	}

	s = &series{}
	m.series[symbol] = s
	return s
}

// Insert adds a single point in sorted position. Returns false if a point
// with the same timestamp already exists for the symbol.
func (m *Memtable) Insert(p types.Point) bool {
	s := m.getOrCreate(p.Symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.points), func(i int) bool {
		return s.points[i].Timestamp >= p.Timestamp
	})
	if i < len(s.points) && s.points[i].Timestamp == p.Timestamp {
		return false
	}

	s.points = append(s.points, types.Point{})
	copy(s.points[i+1:], s.points[i:])
	s.points[i] = p

	m.size.Add(1)
	return true
}

// InsertBatch merges a batch of points into the buffer. Each per-symbol
// group is sorted and merged with the existing sequence; for any distinct
// timestamp the earliest-arriving point wins and later duplicates are
// dropped. Returns the net number of newly admitted points.
func (m *Memtable) InsertBatch(points []types.Point) int {
	if len(points) == 0 {
		return 0
	}

	admitted := 0
	for symbol, group := range types.GroupBySymbol(points) {
		types.SortByTimestamp(group)

		s := m.getOrCreate(symbol)
		s.mu.Lock()

		merged := mergeDedup(s.points, group)
		admitted += len(merged) - len(s.points)
		s.points = merged

		s.mu.Unlock()
	}

	m.size.Add(int64(admitted))
	return admitted
}

// mergeDedup merges two timestamp-sorted runs, keeping for each distinct
// timestamp the point that arrived first: existing entries beat incoming
// ones, and within the incoming run the earlier element wins (the run is
// stably sorted, so that is the earlier batch element).
func mergeDedup(existing, incoming []types.Point) []types.Point {
	merged := make([]types.Point, 0, len(existing)+len(incoming))

	i, j := 0, 0
	for i < len(existing) || j < len(incoming) {
		// Drop incoming entries whose timestamp is already admitted.
		if j < len(incoming) && len(merged) > 0 &&
			incoming[j].Timestamp == merged[len(merged)-1].Timestamp {
			j++
			continue
		}

		switch {
		case j >= len(incoming):
			merged = append(merged, existing[i])
			i++
		case i >= len(existing):
			merged = append(merged, incoming[j])
			j++
		case existing[i].Timestamp <= incoming[j].Timestamp:
			merged = append(merged, existing[i])
			i++
		default:
			merged = append(merged, incoming[j])
			j++
		}
	}

	return merged
}

// GetLatest returns the maximum-timestamp point for the symbol.
func (m *Memtable) GetLatest(symbol string) (types.Point, bool) {
	m.mu.RLock()
	s, ok := m.series[symbol]
	m.mu.RUnlock()
	if !ok {
		return types.Point{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.points) == 0 {
		return types.Point{}, false
	}
	return s.points[len(s.points)-1], true
}

// GetRange returns a copy of all points p with start <= p.Timestamp <= end.
// Both bounds are inclusive; the engine's full-range drain passes
// math.MinInt64 and math.MaxInt64.
func (m *Memtable) GetRange(symbol string, start, end int64) []types.Point {
	m.mu.RLock()
	s, ok := m.series[symbol]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	lo := sort.Search(len(s.points), func(i int) bool {
		return s.points[i].Timestamp >= start
	})
	hi := sort.Search(len(s.points), func(i int) bool {
		return s.points[i].Timestamp > end
	})
	if lo >= hi {
		return nil
	}

	out := make([]types.Point, hi-lo)
	copy(out, s.points[lo:hi])
	return out
}

// Clear empties every series. Symbol keys are retained; a flushed symbol
// reports no points until new writes arrive.
func (m *Memtable) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.series {
		s.mu.Lock()
		s.points = nil
		s.mu.Unlock()
	}

	m.size.Store(0)
}

// Symbols returns a snapshot of the current symbol names.
func (m *Memtable) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	symbols := make([]string, 0, len(m.series))
	for symbol := range m.series {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Size returns the total live point count across all symbols.
func (m *Memtable) Size() int {
	return int(m.size.Load())
}
