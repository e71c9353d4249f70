package segment

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/xtxerr/findata/internal/codec"
	"github.com/xtxerr/findata/internal/config"
	"github.com/xtxerr/findata/internal/logging"
	"github.com/xtxerr/findata/internal/types"
)

// Store persists per-symbol sorted runs as segment files and keeps a
// two-level metadata index (symbol -> segment id -> Info) that is the
// sole source of truth for discovering segments.
//
// A single reader/writer lock guards the index. Reads acquire shared,
// writes acquire exclusive, and compaction holds exclusive for its whole
// duration.
type Store struct {
	mu    sync.RWMutex
	dir   string
	cfg   config.DiskConfig
	index map[string]map[uint64]Info
	log   *slog.Logger
}

// Open opens (or creates) a segment store rooted at dir and rebuilds the
// metadata index from the files found there.
func Open(dir string, cfg config.DiskConfig) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create segment dir: %w", err)
	}

	s := &Store{
		dir:   dir,
		cfg:   cfg,
		index: make(map[string]map[uint64]Info),
		log:   logging.Component("segment"),
	}

	if err := s.loadExisting(); err != nil {
		return nil, fmt.Errorf("scan segment dir: %w", err)
	}

	return s, nil
}

// loadExisting scans the data directory and reconstructs the index.
// Files with unparseable names or foreign headers are skipped, not
// treated as errors.
func (s *Store) loadExisting() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		symbol, _, _, id, ok := parseFileName(entry.Name())
		if !ok {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		info, err := readHeaderFile(path)
		if err != nil {
			s.log.Warn("skipping unreadable segment", "path", path, "error", err)
			continue
		}
		info.ID = id
		info.Path = path

		segs := s.index[symbol]
		if segs == nil {
			segs = make(map[uint64]Info)
			s.index[symbol] = segs
		}

		// Every discovered file keeps its own id; a filename collision
		// falls back to the next free one.
		if _, taken := segs[info.ID]; taken {
			info.ID = maxID(segs) + 1
		}
		segs[info.ID] = info
	}

	return nil
}

// readHeaderFile reads and validates just the fixed-size header.
func readHeaderFile(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	var h [headerSize]byte
	if _, err := io.ReadFull(f, h[:]); err != nil {
		return Info{}, fmt.Errorf("read header: %w", err)
	}

	return decodeHeader(h[:])
}

func maxID(segs map[uint64]Info) uint64 {
	var max uint64
	for id := range segs {
		if id > max {
			max = id
		}
	}
	return max
}

// nextIDLocked allocates the next segment id for a symbol: max+1, or 0
// when the symbol has no segments. Caller holds the exclusive lock.
func (s *Store) nextIDLocked(symbol string) uint64 {
	segs := s.index[symbol]
	if len(segs) == 0 {
		return 0
	}
	return maxID(segs) + 1
}

// WriteBatch groups points by symbol, sorts each group by timestamp and
// writes one new segment per symbol. The index is updated only after the
// file has been written and closed.
func (s *Store) WriteBatch(points []types.Point) error {
	if len(points) == 0 {
		return nil
	}

	grouped := types.GroupBySymbol(points)

	s.mu.Lock()
	defer s.mu.Unlock()

	for symbol, group := range grouped {
		sorted := make([]types.Point, len(group))
		copy(sorted, group)
		types.SortByTimestamp(sorted)

		id := s.nextIDLocked(symbol)
		path := filepath.Join(s.dir, fileName(symbol, sorted[0].Timestamp, sorted[len(sorted)-1].Timestamp, id))

		info, err := s.writeSegmentFile(path, sorted)
		if err != nil {
			return fmt.Errorf("write segment for %s: %w", symbol, err)
		}
		info.ID = id

		segs := s.index[symbol]
		if segs == nil {
			segs = make(map[uint64]Info)
			s.index[symbol] = segs
		}
		segs[id] = info
	}

	return nil
}

// writeSegmentFile writes one segment file at path and returns its Info.
// A partial file is removed on error; the caller updates the index.
func (s *Store) writeSegmentFile(path string, sorted []types.Point) (Info, error) {
	info := Info{
		StartTime:  sorted[0].Timestamp,
		EndTime:    sorted[len(sorted)-1].Timestamp,
		NumPoints:  uint64(len(sorted)),
		Path:       path,
		Compressed: s.cfg.EnableCompression,
	}

	var payload []byte
	if info.Compressed {
		var err error
		payload, err = codec.Compress(sorted)
		if err != nil {
			return Info{}, fmt.Errorf("compress payload: %w", err)
		}
	} else {
		payload = codec.EncodeRaw(sorted)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return Info{}, fmt.Errorf("create segment file: %w", err)
	}

	header := encodeHeader(&info)
	var sizeField [sizeFieldLen]byte
	binary.LittleEndian.PutUint64(sizeField[:], uint64(len(payload)))

	for _, chunk := range [][]byte{header[:], sizeField[:], payload} {
		if _, err := f.Write(chunk); err != nil {
			f.Close()
			os.Remove(path)
			return Info{}, fmt.Errorf("write segment file: %w", err)
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return Info{}, fmt.Errorf("close segment file: %w", err)
	}

	return info, nil
}

// readSegment reads one whole segment file back as points carrying the
// given symbol.
func (s *Store) readSegment(info Info, symbol string) ([]types.Point, error) {
	data, err := os.ReadFile(info.Path)
	if err != nil {
		return nil, err
	}

	header, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}

	if len(data) < headerSize+sizeFieldLen {
		return nil, fmt.Errorf("data too short for payload size")
	}
	payloadSize := binary.LittleEndian.Uint64(data[headerSize : headerSize+sizeFieldLen])

	body := data[headerSize+sizeFieldLen:]
	if uint64(len(body)) < payloadSize {
		return nil, fmt.Errorf("truncated payload: have %d bytes, header says %d", len(body), payloadSize)
	}
	payload := body[:payloadSize]

	var points []types.Point
	if header.Compressed {
		points, err = codec.Decompress(payload)
	} else {
		points, err = codec.DecodeRaw(payload)
	}
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	if uint64(len(points)) != header.NumPoints {
		return nil, fmt.Errorf("point count mismatch: decoded %d, header says %d", len(points), header.NumPoints)
	}

	for i := range points {
		points[i].Symbol = symbol
	}

	return points, nil
}

// ReadRange returns the union of all points p with
// start <= p.Timestamp <= end across every segment whose time range
// intersects [start, end], sorted by timestamp. Both bounds are
// inclusive.
func (s *Store) ReadRange(symbol string, start, end int64) ([]types.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	segs, ok := s.index[symbol]
	if !ok {
		return nil, nil
	}

	var results []types.Point
	for _, info := range segs {
		if !info.overlaps(start, end) {
			continue
		}

		points, err := s.readSegment(info, symbol)
		if err != nil {
			return nil, fmt.Errorf("read segment %s: %w", info.Path, err)
		}

		for _, p := range points {
			if p.Timestamp >= start && p.Timestamp <= end {
				results = append(results, p)
			}
		}
	}

	types.SortByTimestamp(results)
	return results, nil
}

// ReadLatest returns the maximum-timestamp point for a symbol by reading
// only the segments that share the symbol's newest end time, not the full
// history.
func (s *Store) ReadLatest(symbol string) (types.Point, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	segs, ok := s.index[symbol]
	if !ok || len(segs) == 0 {
		return types.Point{}, false, nil
	}

	var newest int64
	first := true
	for _, info := range segs {
		if first || info.EndTime > newest {
			newest = info.EndTime
			first = false
		}
	}

	var latest types.Point
	found := false
	for _, info := range segs {
		if info.EndTime != newest {
			continue
		}

		points, err := s.readSegment(info, symbol)
		if err != nil {
			return types.Point{}, false, fmt.Errorf("read segment %s: %w", info.Path, err)
		}

		for _, p := range points {
			if !found || p.Timestamp > latest.Timestamp {
				latest = p
				found = true
			}
		}
	}

	return latest, found, nil
}

// Symbols returns a snapshot of all symbols present in the index.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.index))
	for symbol, segs := range s.index {
		if len(segs) > 0 {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

// StorageSize returns the sum of the file sizes of all indexed segments.
func (s *Store) StorageSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, segs := range s.index {
		for _, info := range segs {
			stat, err := os.Stat(info.Path)
			if err != nil {
				continue
			}
			total += stat.Size()
		}
	}
	return total
}

// SegmentCount returns the number of segments indexed for a symbol.
func (s *Store) SegmentCount(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index[symbol])
}
