// Package segment implements the on-disk tier: immutable per-symbol
// segment files, an in-memory metadata index rebuilt from disk on
// startup, and the compaction pass that rewrites a symbol's segments into
// evenly-sized, duplicate-free runs.
//
// File format (binary, little-endian):
//
//	header:  magic u32 | version u16 | flags u16 | start µs i64 | end µs i64 | numPoints u64
//	payload: u64 payload size, then the payload bytes
//
// A compressed payload is the codec's zstd point stream; an uncompressed
// payload is numPoints contiguous 16-byte records. Filenames follow
// <symbol>_<startMicros>_<endMicros>_<segmentID>.seg and are parsed from
// the right, so symbols may contain underscores. The header, not the
// filename, is authoritative; recovery validates both.
package segment

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	fileMagic   uint32 = 0x46444154 // "FDAT"
	fileVersion uint16 = 1

	flagCompressed uint16 = 1 << 0

	headerSize = 32
	// payload size field
	sizeFieldLen = 8

	// FileExt is the segment file extension.
	FileExt = ".seg"
)

// Info describes one on-disk segment: a contiguous, immutable, sorted run
// of points for a single symbol.
type Info struct {
	ID         uint64
	StartTime  int64 // microseconds, inclusive
	EndTime    int64 // microseconds, inclusive
	NumPoints  uint64
	Path       string
	Compressed bool
}

// overlaps reports whether the segment's time range intersects
// [start, end], both bounds inclusive.
func (in *Info) overlaps(start, end int64) bool {
	return in.StartTime <= end && in.EndTime >= start
}

// encodeHeader lays out the fixed-size segment header.
func encodeHeader(in *Info) [headerSize]byte {
	var h [headerSize]byte

	binary.LittleEndian.PutUint32(h[0:4], fileMagic)
	binary.LittleEndian.PutUint16(h[4:6], fileVersion)

	var flags uint16
	if in.Compressed {
		flags |= flagCompressed
	}
	binary.LittleEndian.PutUint16(h[6:8], flags)

	binary.LittleEndian.PutUint64(h[8:16], uint64(in.StartTime))
	binary.LittleEndian.PutUint64(h[16:24], uint64(in.EndTime))
	binary.LittleEndian.PutUint64(h[24:32], in.NumPoints)

	return h
}

// decodeHeader parses and validates the fixed-size segment header.
func decodeHeader(data []byte) (Info, error) {
	if len(data) < headerSize {
		return Info{}, fmt.Errorf("data too short for header: %d bytes", len(data))
	}

	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != fileMagic {
		return Info{}, fmt.Errorf("bad magic 0x%08x", magic)
	}
	if version := binary.LittleEndian.Uint16(data[4:6]); version != fileVersion {
		return Info{}, fmt.Errorf("unsupported version %d", version)
	}

	flags := binary.LittleEndian.Uint16(data[6:8])

	return Info{
		StartTime:  int64(binary.LittleEndian.Uint64(data[8:16])),
		EndTime:    int64(binary.LittleEndian.Uint64(data[16:24])),
		NumPoints:  binary.LittleEndian.Uint64(data[24:32]),
		Compressed: flags&flagCompressed != 0,
	}, nil
}

// fileName builds the canonical segment filename.
func fileName(symbol string, start, end int64, id uint64) string {
	return fmt.Sprintf("%s_%d_%d_%d%s", symbol, start, end, id, FileExt)
}

// parseFileName extracts the symbol, time range and segment id from a
// canonical filename. Returns ok=false for names that do not match the
// convention.
func parseFileName(name string) (symbol string, start, end int64, id uint64, ok bool) {
	if filepath.Ext(name) != FileExt {
		return "", 0, 0, 0, false
	}
	stem := strings.TrimSuffix(name, FileExt)

	parts := strings.Split(stem, "_")
	if len(parts) < 4 {
		return "", 0, 0, 0, false
	}

	// Numeric fields sit at the tail; everything before them is the
	// symbol, which may itself contain underscores.
	var err error
	start, err = strconv.ParseInt(parts[len(parts)-3], 10, 64)
	if err != nil {
		return "", 0, 0, 0, false
	}
	end, err = strconv.ParseInt(parts[len(parts)-2], 10, 64)
	if err != nil {
		return "", 0, 0, 0, false
	}
	id, err = strconv.ParseUint(parts[len(parts)-1], 10, 64)
	if err != nil {
		return "", 0, 0, 0, false
	}

	symbol = strings.Join(parts[:len(parts)-3], "_")
	if symbol == "" {
		return "", 0, 0, 0, false
	}

	return symbol, start, end, id, true
}
