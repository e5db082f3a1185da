// Package codec encodes the payloads exchanged between partitioning processes.
//
// Point batches are JSON documents, zstd-compressed once they exceed a size
// threshold. Reduction vectors use a fixed little-endian binary layout so that
// every float64 bit pattern (including ±Inf used as min/max identities)
// survives the round trip unchanged.
package codec

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/arloliu/geoparti/types"
	"github.com/klauspost/compress/zstd"
)

const (
	frameRaw  byte = 0
	frameZstd byte = 1
)

// DefaultCompressionThreshold is the encoded size above which point batches are compressed.
const DefaultCompressionThreshold = 64 * 1024

// ErrCorrupt is returned when a payload cannot be decoded.
var ErrCorrupt = errors.New("corrupt payload")

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

func coders() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil)
	})

	return zstdEnc, zstdDec, zstdErr
}

// EncodePoints serializes a point batch.
//
// Parameters:
//   - points: Points to encode (nil encodes as an empty batch)
//   - threshold: Size in bytes above which the batch is compressed; negative disables compression
//
// Returns:
//   - []byte: Framed payload
//   - error: Marshal or compressor failure
func EncodePoints(points []types.Point, threshold int) ([]byte, error) {
	if points == nil {
		points = []types.Point{}
	}

	body, err := json.Marshal(points)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal points: %w", err)
	}

	return frame(body, threshold)
}

// DecodePoints parses a payload produced by EncodePoints.
func DecodePoints(data []byte) ([]types.Point, error) {
	body, err := unframe(data)
	if err != nil {
		return nil, err
	}

	var points []types.Point
	if err := json.Unmarshal(body, &points); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return points, nil
}

// EncodeExports serializes export records for the return-to-origin exchange.
func EncodeExports(exports []types.Export, threshold int) ([]byte, error) {
	if exports == nil {
		exports = []types.Export{}
	}

	body, err := json.Marshal(exports)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal exports: %w", err)
	}

	return frame(body, threshold)
}

// DecodeExports parses a payload produced by EncodeExports.
func DecodeExports(data []byte) ([]types.Export, error) {
	body, err := unframe(data)
	if err != nil {
		return nil, err
	}

	var exports []types.Export
	if err := json.Unmarshal(body, &exports); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return exports, nil
}

// EncodeFloats encodes a float64 vector bit-exactly.
func EncodeFloats(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}

	return buf
}

// DecodeFloats decodes a vector produced by EncodeFloats.
func DecodeFloats(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("%w: float vector length %d", ErrCorrupt, len(data))
	}

	values := make([]float64, len(data)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
	}

	return values, nil
}

// EncodeUints encodes a uint64 vector.
func EncodeUints(values []uint64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], v)
	}

	return buf
}

// DecodeUints decodes a vector produced by EncodeUints.
func DecodeUints(data []byte) ([]uint64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("%w: uint vector length %d", ErrCorrupt, len(data))
	}

	values := make([]uint64, len(data)/8)
	for i := range values {
		values[i] = binary.LittleEndian.Uint64(data[8*i:])
	}

	return values, nil
}

func frame(body []byte, threshold int) ([]byte, error) {
	if threshold < 0 || len(body) <= threshold {
		out := make([]byte, 0, len(body)+1)
		out = append(out, frameRaw)

		return append(out, body...), nil
	}

	enc, _, err := coders()
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	return enc.EncodeAll(body, []byte{frameZstd}), nil
}

func unframe(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrCorrupt)
	}

	switch data[0] {
	case frameRaw:
		return data[1:], nil
	case frameZstd:
		_, dec, err := coders()
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		body, err := dec.DecodeAll(data[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}

		return body, nil
	default:
		return nil, fmt.Errorf("%w: unknown frame type %d", ErrCorrupt, data[0])
	}
}
