// Package rasterenc encodes raster payloads for storage and export.
// Signal rasters travel as little-endian float32, visibility bitmaps as
// their packed word array. Both layouts are fixed; decoding a blob of
// the wrong size is an error, not a truncation.
package rasterenc

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/meshsight/meshsight/internal/core/domain"
)

// EncodeFloat32 serializes a float64 raster as little-endian float32.
func EncodeFloat32(values []float64) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(float32(v)))
	}
	return out
}

// DecodeFloat32 is the inverse of EncodeFloat32.
func DecodeFloat32(data []byte) ([]float64, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("float32 raster has %d bytes, not a multiple of 4", len(data))
	}
	out := make([]float64, len(data)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:])))
	}
	return out, nil
}

// EncodeBitmap serializes a visibility bitmap's packed words.
func EncodeBitmap(b *domain.Bitmap) []byte {
	out := make([]byte, 8*len(b.Words))
	for i, w := range b.Words {
		binary.LittleEndian.PutUint64(out[8*i:], w)
	}
	return out
}

// DecodeBitmap restores a bitmap of the given shape from packed words.
func DecodeBitmap(data []byte, rows, cols int) (*domain.Bitmap, error) {
	b := domain.NewBitmap(rows, cols)
	if len(data) != 8*len(b.Words) {
		return nil, fmt.Errorf("bitmap for %dx%d needs %d bytes, got %d", rows, cols, 8*len(b.Words), len(data))
	}
	for i := range b.Words {
		b.Words[i] = binary.LittleEndian.Uint64(data[8*i:])
	}
	return b, nil
}

// EncodeUint8 exists for symmetry with the other rasters; overlap counts
// are already bytes.
func EncodeUint8(values []uint8) []byte {
	out := make([]byte, len(values))
	copy(out, values)
	return out
}
