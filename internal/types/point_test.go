package types

import (
	"testing"
	"time"
)

func TestPointTime(t *testing.T) {
	now := time.Now().Truncate(time.Microsecond)
	p := Point{
		Symbol:    "AAPL",
		Timestamp: now.UnixMicro(),
		Value:     100.5,
	}

	if !p.Time().Equal(now) {
		t.Errorf("expected %v, got %v", now, p.Time())
	}
}

func TestBatch(t *testing.T) {
	batch := NewBatch(10)

	if batch.Len() != 0 {
		t.Errorf("expected empty batch")
	}

	batch.Add(Point{Symbol: "AAPL", Timestamp: 1, Value: 1.0})
	batch.Add(Point{Symbol: "GOOG", Timestamp: 2, Value: 2.0})

	if batch.Len() != 2 {
		t.Errorf("expected 2 points, got %d", batch.Len())
	}

	batch.Clear()
	if batch.Len() != 0 {
		t.Errorf("expected empty batch after clear")
	}
}

func TestGroupBySymbol(t *testing.T) {
	points := []Point{
		{Symbol: "AAPL", Timestamp: 3},
		{Symbol: "GOOG", Timestamp: 1},
		{Symbol: "AAPL", Timestamp: 1},
		{Symbol: "GOOG", Timestamp: 2},
	}

	grouped := GroupBySymbol(points)

	if len(grouped) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(grouped))
	}
	if len(grouped["AAPL"]) != 2 || len(grouped["GOOG"]) != 2 {
		t.Errorf("unexpected group sizes: %d AAPL, %d GOOG",
			len(grouped["AAPL"]), len(grouped["GOOG"]))
	}

	// Arrival order preserved within a group.
	if grouped["AAPL"][0].Timestamp != 3 {
		t.Errorf("expected first AAPL point at ts=3, got %d", grouped["AAPL"][0].Timestamp)
	}
}

func TestSortByTimestamp(t *testing.T) {
	points := []Point{
		{Symbol: "A", Timestamp: 3, Value: 3},
		{Symbol: "A", Timestamp: 1, Value: 1},
		{Symbol: "A", Timestamp: 2, Value: 2},
		{Symbol: "A", Timestamp: 1, Value: 9},
	}

	SortByTimestamp(points)

	for i := 1; i < len(points); i++ {
		if points[i].Timestamp < points[i-1].Timestamp {
			t.Fatalf("not sorted at index %d", i)
		}
	}

	// Stability: the first-arriving ts=1 point keeps its position.
	if points[0].Value != 1 {
		t.Errorf("expected first ts=1 point to be value 1, got %v", points[0].Value)
	}
}
