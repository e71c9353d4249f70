package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/findata/internal/types"
)

// PointsPerCompactedSegment caps the size of segments produced by
// compaction.
const PointsPerCompactedSegment = 10_000

// Compact rewrites all of a symbol's segments as a series of time-sorted,
// duplicate-free segments of at most PointsPerCompactedSegment points,
// with ids renumbered from 0.
//
// New segments are written under temporary names and renamed into place
// before any old file is unlinked, so a crash mid-compaction leaves a
// readable superset of the data rather than a loss.
func (s *Store) Compact(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compactLocked(symbol)
}

func (s *Store) compactLocked(symbol string) error {
	segs := s.index[symbol]
	if len(segs) == 0 {
		return nil
	}

	all, err := s.readAllSegments(segs, symbol)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return nil
	}

	types.SortByTimestamp(all)
	all = dedupByTimestamp(all)

	type staged struct {
		tmp   string
		final string
		info  Info
	}

	var stages []staged
	cleanup := func() {
		for _, st := range stages {
			os.Remove(st.tmp)
		}
	}

	for i := 0; i < len(all); i += PointsPerCompactedSegment {
		end := i + PointsPerCompactedSegment
		if end > len(all) {
			end = len(all)
		}
		chunk := all[i:end]
		id := uint64(i / PointsPerCompactedSegment)

		final := filepath.Join(s.dir, fileName(symbol, chunk[0].Timestamp, chunk[len(chunk)-1].Timestamp, id))
		tmp := final + ".tmp"

		info, err := s.writeSegmentFile(tmp, chunk)
		if err != nil {
			cleanup()
			return fmt.Errorf("write compacted segment: %w", err)
		}
		info.ID = id
		info.Path = final

		stages = append(stages, staged{tmp: tmp, final: final, info: info})
	}

	// Commit: rename every temporary into place, then drop the old files
	// that were not replaced by a same-named rewrite.
	newPaths := make(map[string]bool, len(stages))
	for _, st := range stages {
		if err := os.Rename(st.tmp, st.final); err != nil {
			cleanup()
			return fmt.Errorf("rename compacted segment: %w", err)
		}
		newPaths[st.final] = true
	}

	for _, old := range segs {
		if newPaths[old.Path] {
			continue
		}
		if err := os.Remove(old.Path); err != nil {
			s.log.Warn("remove old segment", "path", old.Path, "error", err)
		}
	}

	rebuilt := make(map[uint64]Info, len(stages))
	for _, st := range stages {
		rebuilt[st.info.ID] = st.info
	}
	s.index[symbol] = rebuilt

	s.log.Debug("compacted symbol",
		"symbol", symbol,
		"segments_before", len(segs),
		"segments_after", len(rebuilt),
		"points", len(all))

	return nil
}

// readAllSegments reads every segment of a symbol concurrently and
// concatenates the results.
func (s *Store) readAllSegments(segs map[uint64]Info, symbol string) ([]types.Point, error) {
	infos := make([]Info, 0, len(segs))
	for _, info := range segs {
		infos = append(infos, info)
	}

	batches := make([][]types.Point, len(infos))

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for i, info := range infos {
		g.Go(func() error {
			points, err := s.readSegment(info, symbol)
			if err != nil {
				return fmt.Errorf("read segment %s: %w", info.Path, err)
			}
			batches[i] = points
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []types.Point
	for _, batch := range batches {
		all = append(all, batch...)
	}
	return all, nil
}

// dedupByTimestamp removes entries sharing a timestamp from a sorted run,
// keeping the first occurrence.
func dedupByTimestamp(sorted []types.Point) []types.Point {
	if len(sorted) == 0 {
		return sorted
	}

	out := sorted[:1]
	for _, p := range sorted[1:] {
		if p.Timestamp != out[len(out)-1].Timestamp {
			out = append(out, p)
		}
	}
	return out
}

// OptimizeIndex compacts every symbol in the index. Failures are isolated
// per symbol: an error is logged and iteration continues.
func (s *Store) OptimizeIndex() {
	for _, symbol := range s.Symbols() {
		if err := s.Compact(symbol); err != nil {
			s.log.Error("compact symbol", "symbol", symbol, "error", err)
		}
	}
}
