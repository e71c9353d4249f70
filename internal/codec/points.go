package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"

	"github.com/xtxerr/findata/internal/types"
)

// Point-stream format: 16-byte records of (timestamp µs, float64 bits),
// little-endian, zstd-compressed. The symbol is not stored; a segment
// file holds exactly one symbol and the caller reattaches it on read.

const recordSize = 16

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// EncodeRaw lays out points as contiguous 16-byte records.
func EncodeRaw(points []types.Point) []byte {
	buf := make([]byte, 0, len(points)*recordSize)
	for _, p := range points {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(p.Timestamp))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(p.Value))
	}
	return buf
}

// DecodeRaw parses contiguous 16-byte records. The returned points carry
// an empty symbol.
func DecodeRaw(data []byte) ([]types.Point, error) {
	if len(data)%recordSize != 0 {
		return nil, fmt.Errorf("payload length %d is not a multiple of %d", len(data), recordSize)
	}

	points := make([]types.Point, len(data)/recordSize)
	for i := range points {
		offset := i * recordSize
		points[i].Timestamp = int64(binary.LittleEndian.Uint64(data[offset:]))
		points[i].Value = math.Float64frombits(binary.LittleEndian.Uint64(data[offset+8:]))
	}

	return points, nil
}

// Compress encodes points as raw records and compresses them with zstd.
func Compress(points []types.Point) ([]byte, error) {
	if len(points) == 0 {
		return nil, nil
	}
	if encoder == nil {
		return nil, fmt.Errorf("zstd encoder unavailable")
	}
	return encoder.EncodeAll(EncodeRaw(points), nil), nil
}

// Decompress reverses Compress. Round-trips losslessly on
// (timestamp, value); the caller reattaches the symbol.
func Decompress(data []byte) ([]types.Point, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if decoder == nil {
		return nil, fmt.Errorf("zstd decoder unavailable")
	}

	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}

	return DecodeRaw(raw)
}
