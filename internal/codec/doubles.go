// Package codec implements the numeric compression used by the segment
// store: a delta codec for raw float64 sequences and a zstd-compressed
// framing format for point streams.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Double-sequence format (binary, little-endian):
// - count (8 bytes)
// - count deltas (8 bytes each, float64 bits of value[i] - value[i-1])
//
// The first delta is taken against zero, so decoding is a running sum.

// CompressDoubles delta-encodes a sequence of float64 values.
// Returns nil for an empty input.
func CompressDoubles(values []float64) []byte {
	if len(values) == 0 {
		return nil
	}

	buf := make([]byte, 0, 8+len(values)*8)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(values)))

	prev := 0.0
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v-prev))
		prev = v
	}

	return buf
}

// DecompressDoubles decodes a delta-encoded sequence of float64 values.
func DecompressDoubles(data []byte) ([]float64, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("data too short for count")
	}

	count := binary.LittleEndian.Uint64(data[0:8])
	if uint64(len(data)-8) != count*8 {
		return nil, fmt.Errorf("expected %d delta bytes, have %d", count*8, len(data)-8)
	}

	values := make([]float64, count)
	prev := 0.0
	offset := 8
	for i := range values {
		delta := math.Float64frombits(binary.LittleEndian.Uint64(data[offset:]))
		offset += 8

		prev += delta
		values[i] = prev
	}

	return values, nil
}
