// Package query provides SQL analytics over Parquet snapshots using
// DuckDB. It operates on exported columnar copies, never on the live
// segment files.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/xtxerr/findata/internal/config"
	"github.com/xtxerr/findata/internal/types"
)

// Service wraps an in-memory DuckDB database pointed at a directory of
// Parquet snapshots.
type Service struct {
	mu sync.RWMutex

	cfg config.QueryConfig
	dir string
	db  *sql.DB

	stats Stats
}

// Stats holds query statistics.
type Stats struct {
	QueriesExecuted int64
	RowsReturned    int64
	Errors          int64
}

// New creates a query service over the snapshot directory.
func New(dir string, cfg config.QueryConfig) (*Service, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	if cfg.MemoryLimit != "" {
		if _, err := db.Exec(fmt.Sprintf("SET memory_limit='%s'", cfg.MemoryLimit)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set memory limit: %w", err)
		}
	}

	return &Service{
		cfg: cfg,
		dir: dir,
		db:  db,
	}, nil
}

// Close closes the query service.
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// pattern returns the read_parquet glob covering every snapshot.
func (s *Service) pattern() string {
	return filepath.Join(s.dir, "*.parquet")
}

// QueryRange reads a symbol's points from the snapshots, filtered to
// start <= timestamp_us <= end and ordered by timestamp.
func (s *Service) QueryRange(ctx context.Context, symbol string, start, end int64) ([]types.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	query := `
		SELECT symbol, timestamp_us, value
		FROM read_parquet($1)
		WHERE symbol = $2
		  AND timestamp_us >= $3
		  AND timestamp_us <= $4
		ORDER BY timestamp_us
	`
	if s.cfg.MaxRows > 0 {
		query += fmt.Sprintf(" LIMIT %d", s.cfg.MaxRows)
	}

	rows, err := s.db.QueryContext(ctx, query, s.pattern(), symbol, start, end)
	if err != nil {
		// No snapshot files yet is an empty result, not an error.
		return nil, nil
	}
	defer rows.Close()

	var points []types.Point
	for rows.Next() {
		var p types.Point
		if err := rows.Scan(&p.Symbol, &p.Timestamp, &p.Value); err != nil {
			s.stats.Errors++
			return nil, fmt.Errorf("scan row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		s.stats.Errors++
		return nil, err
	}

	s.stats.QueriesExecuted++
	s.stats.RowsReturned += int64(len(points))

	return points, nil
}

// ExecuteSQL runs a raw SQL query. Useful for ad-hoc analytics and
// debugging; the snapshot glob is available via Pattern().
func (s *Service) ExecuteSQL(ctx context.Context, query string) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.stats.Errors++
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}

	s.stats.QueriesExecuted++
	s.stats.RowsReturned += int64(len(results))

	return results, rows.Err()
}

// Pattern returns the snapshot glob for use in raw SQL.
func (s *Service) Pattern() string {
	return s.pattern()
}

// Stats returns a snapshot of the query statistics.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
