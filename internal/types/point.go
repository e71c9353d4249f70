// Package types defines the core data model shared by every layer of the
// findata storage engine.
package types

import (
	"sort"
	"time"
)

// Point represents a single scalar observation: a float64 value tagged by
// a symbol and a microsecond-precision timestamp.
// This is the primary data unit flowing through the storage engine.
type Point struct {
	// Symbol is an opaque identifier grouping related points
	// (e.g., "AAPL", "ifInOctets-Gi0-0").
	Symbol string

	// Timestamp is microseconds since the Unix epoch. The engine orders
	// points by this value and never interprets its calendar meaning.
	Timestamp int64

	// Value is the observed measurement.
	Value float64
}

// Time returns the timestamp as a time.Time.
func (p *Point) Time() time.Time {
	return time.UnixMicro(p.Timestamp)
}

// Batch represents a collection of points for batch processing.
type Batch struct {
	Points []Point
}

// NewBatch creates a new batch with the given capacity.
func NewBatch(capacity int) *Batch {
	return &Batch{
		Points: make([]Point, 0, capacity),
	}
}

// Add appends a point to the batch.
func (b *Batch) Add(p Point) {
	b.Points = append(b.Points, p)
}

// Len returns the number of points in the batch.
func (b *Batch) Len() int {
	return len(b.Points)
}

// Clear resets the batch for reuse.
func (b *Batch) Clear() {
	b.Points = b.Points[:0]
}

// GroupBySymbol splits points into per-symbol groups, preserving the
// arrival order within each group.
func GroupBySymbol(points []Point) map[string][]Point {
	grouped := make(map[string][]Point)
	for _, p := range points {
		grouped[p.Symbol] = append(grouped[p.Symbol], p)
	}
	return grouped
}

// SortByTimestamp sorts points in place by ascending timestamp. The sort
// is stable so that, among points sharing a timestamp, the
// earliest-arriving one stays first.
func SortByTimestamp(points []Point) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp < points[j].Timestamp
	})
}
