// Package export writes Parquet snapshots of stored history so external
// tools (and the SQL analytics service) can work on columnar copies
// without touching the segment files.
package export

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/findata/internal/types"
)

// PointRow represents a point in Parquet format.
type PointRow struct {
	Symbol      string  `parquet:"symbol,zstd"`
	TimestampUs int64   `parquet:"timestamp_us"`
	Value       float64 `parquet:"value"`
}

// getCompression maps a config algorithm name to a parquet-go codec.
func getCompression(algorithm string) compress.Codec {
	switch algorithm {
	case "snappy":
		return &parquet.Snappy
	case "zstd", "":
		return &parquet.Zstd
	case "lz4":
		return &parquet.Lz4Raw
	case "gzip":
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// Writer writes points to a Parquet file.
type Writer struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[PointRow]
	rowCount int64
	closed   bool
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = fmt.Errorf("parquet writer is closed")

// NewWriter creates a Parquet writer at path.
func NewWriter(path, compression string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	writer := parquet.NewGenericWriter[PointRow](f,
		parquet.Compression(getCompression(compression)))

	return &Writer{
		path:   path,
		file:   f,
		writer: writer,
	}, nil
}

// Write appends points to the file.
func (w *Writer) Write(points []types.Point) error {
	if len(points) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	rows := make([]PointRow, len(points))
	for i, p := range points {
		rows[i] = PointRow{
			Symbol:      p.Symbol,
			TimestampUs: p.Timestamp,
			Value:       p.Value,
		}
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	w.rowCount += int64(n)
	return nil
}

// Close flushes and closes the writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}

	return w.file.Close()
}

// RowCount returns the number of rows written.
func (w *Writer) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Path returns the file path.
func (w *Writer) Path() string {
	return w.path
}

// Reader reads points from a Parquet file.
type Reader struct {
	file   *os.File
	reader *parquet.GenericReader[PointRow]
	path   string
}

// NewReader opens a Parquet file for reading.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	reader := parquet.NewGenericReader[PointRow](f)

	return &Reader{
		file:   f,
		reader: reader,
		path:   path,
	}, nil
}

// ReadAll reads every point from the file.
func (r *Reader) ReadAll() ([]types.Point, error) {
	rows := make([]PointRow, r.reader.NumRows())

	n, err := r.reader.Read(rows)
	if err != nil && err != io.EOF {
		return nil, err
	}

	points := make([]types.Point, n)
	for i := 0; i < n; i++ {
		points[i] = types.Point{
			Symbol:    rows[i].Symbol,
			Timestamp: rows[i].TimestampUs,
			Value:     rows[i].Value,
		}
	}

	return points, nil
}

// NumRows returns the total number of rows in the file.
func (r *Reader) NumRows() int64 {
	return r.reader.NumRows()
}

// Close closes the reader.
func (r *Reader) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// Source is the read surface a snapshot pulls from; the storage engine
// satisfies it.
type Source interface {
	ReadRange(symbol string, start, end int64) []types.Point
}

// SnapshotSymbol writes a symbol's full history to a Parquet file and
// returns the number of rows written.
func SnapshotSymbol(src Source, symbol, path, compression string) (int64, error) {
	points := src.ReadRange(symbol, math.MinInt64, math.MaxInt64)
	if len(points) == 0 {
		return 0, fmt.Errorf("no points for symbol %s", symbol)
	}

	w, err := NewWriter(path, compression)
	if err != nil {
		return 0, err
	}

	if err := w.Write(points); err != nil {
		w.Close()
		os.Remove(path)
		return 0, err
	}

	if err := w.Close(); err != nil {
		os.Remove(path)
		return 0, err
	}

	return w.RowCount(), nil
}
