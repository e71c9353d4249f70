package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xtxerr/findata/internal/config"
	"github.com/xtxerr/findata/internal/export"
	"github.com/xtxerr/findata/internal/types"
)

func newTestService(t *testing.T, dir string) *Service {
	t.Helper()

	svc, err := New(dir, config.Default().Query)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func writeSnapshot(t *testing.T, dir, symbol string, n int) {
	t.Helper()

	w, err := export.NewWriter(filepath.Join(dir, symbol+".parquet"), "zstd")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	points := make([]types.Point, n)
	for i := range points {
		points[i] = types.Point{
			Symbol:    symbol,
			Timestamp: int64(i) * 1000,
			Value:     float64(i),
		}
	}

	if err := w.Write(points); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestExecuteSQL(t *testing.T) {
	svc := newTestService(t, t.TempDir())

	results, err := svc.ExecuteSQL(context.Background(), "SELECT 1 AS value")
	if err != nil {
		t.Fatalf("ExecuteSQL: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	stats := svc.Stats()
	if stats.QueriesExecuted != 1 {
		t.Errorf("expected 1 query executed, got %d", stats.QueriesExecuted)
	}
}

func TestQueryRange(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "AAPL", 100)
	writeSnapshot(t, dir, "GOOG", 50)

	svc := newTestService(t, dir)

	// Inclusive bounds: i = 10..20 is 11 points.
	points, err := svc.QueryRange(context.Background(), "AAPL", 10_000, 20_000)
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(points) != 11 {
		t.Fatalf("expected 11 points, got %d", len(points))
	}
	for i, p := range points {
		if p.Symbol != "AAPL" {
			t.Errorf("point %d: expected symbol AAPL, got %s", i, p.Symbol)
		}
		if i > 0 && points[i].Timestamp <= points[i-1].Timestamp {
			t.Errorf("not sorted at %d", i)
		}
	}
}

func TestQueryRangeNoSnapshots(t *testing.T) {
	svc := newTestService(t, t.TempDir())

	points, err := svc.QueryRange(context.Background(), "AAPL", 0, 1000)
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if points != nil {
		t.Errorf("expected empty result, got %d points", len(points))
	}
}

func TestQueryRangeMaxRows(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "AAPL", 100)

	cfg := config.Default().Query
	cfg.MaxRows = 10

	svc, err := New(dir, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()

	points, err := svc.QueryRange(context.Background(), "AAPL", 0, 1_000_000)
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(points) != 10 {
		t.Errorf("expected 10 points under row cap, got %d", len(points))
	}
}

func TestExecuteSQLOverSnapshots(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "AAPL", 100)

	svc := newTestService(t, dir)

	results, err := svc.ExecuteSQL(context.Background(),
		"SELECT count(*) AS n, avg(value) AS mean FROM read_parquet('"+svc.Pattern()+"')")
	if err != nil {
		t.Fatalf("ExecuteSQL: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 row, got %d", len(results))
	}
}
