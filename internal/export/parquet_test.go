package export

import (
	"path/filepath"
	"testing"

	"github.com/xtxerr/findata/internal/types"
)

func testPoints(symbol string, n int) []types.Point {
	points := make([]types.Point, n)
	for i := range points {
		points[i] = types.Point{
			Symbol:    symbol,
			Timestamp: int64(i) * 1000,
			Value:     float64(i) + 0.5,
		}
	}
	return points
}

func TestWriteAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aapl.parquet")

	written := testPoints("AAPL", 100)

	w, err := NewWriter(path, "zstd")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Write(written); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if w.RowCount() != 100 {
		t.Errorf("expected 100 rows, got %d", w.RowCount())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if r.NumRows() != 100 {
		t.Errorf("expected 100 rows, got %d", r.NumRows())
	}

	points, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(points) != len(written) {
		t.Fatalf("expected %d points, got %d", len(written), len(points))
	}
	for i, p := range points {
		if p != written[i] {
			t.Errorf("point %d: expected %+v, got %+v", i, written[i], p)
		}
	}
}

func TestWriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.parquet")

	w, err := NewWriter(path, "none")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := w.Write(testPoints("X", 1)); err != ErrWriterClosed {
		t.Errorf("expected ErrWriterClosed, got %v", err)
	}

	// Double close is a no-op.
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

type sliceSource []types.Point

func (s sliceSource) ReadRange(symbol string, start, end int64) []types.Point {
	var out []types.Point
	for _, p := range s {
		if p.Symbol == symbol && p.Timestamp >= start && p.Timestamp <= end {
			out = append(out, p)
		}
	}
	return out
}

func TestSnapshotSymbol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.parquet")
	src := sliceSource(testPoints("GOOG", 50))

	n, err := SnapshotSymbol(src, "GOOG", path, "zstd")
	if err != nil {
		t.Fatalf("SnapshotSymbol: %v", err)
	}
	if n != 50 {
		t.Errorf("expected 50 rows, got %d", n)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	points, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(points) != 50 {
		t.Errorf("expected 50 points, got %d", len(points))
	}
}

func TestSnapshotSymbolEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")

	if _, err := SnapshotSymbol(sliceSource(nil), "NONE", path, "zstd"); err == nil {
		t.Error("expected error for symbol with no points")
	}
}
