package terrain

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/meshsight/meshsight/internal/core/domain"
)

// Supported tile resolutions: side length in samples per square tile.
const (
	SideSRTM1 = 3601 // 1 arc-second
	SideSRTM3 = 1201 // 3 arc-second
)

// voidThreshold marks data voids in raw tiles; anything below is zeroed.
const voidThreshold = -1000

// TileKey is the integer southwest-corner coordinate of a one-degree tile.
type TileKey struct {
	Lat int
	Lon int
}

// Tile is one parsed terrain tile: a square, north-up elevation raster.
type Tile struct {
	Key     TileKey
	Side    int
	Samples []float32 // row-major, row 0 = north edge
}

// ParseTileName extracts the southwest-corner coordinate from a tile
// filename such as N38W106.hgt or s12e044.hgt.
func ParseTileName(name string) (TileKey, error) {
	base := strings.ToUpper(name)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if len(base) != 7 {
		return TileKey{}, fmt.Errorf("tile name %q: want form N38W106", name)
	}

	latSign := 0
	switch base[0] {
	case 'N':
		latSign = 1
	case 'S':
		latSign = -1
	default:
		return TileKey{}, fmt.Errorf("tile name %q: bad hemisphere %q", name, base[0])
	}

	lonSign := 0
	switch base[3] {
	case 'E':
		lonSign = 1
	case 'W':
		lonSign = -1
	default:
		return TileKey{}, fmt.Errorf("tile name %q: bad hemisphere %q", name, base[3])
	}

	lat, err := strconv.Atoi(base[1:3])
	if err != nil {
		return TileKey{}, fmt.Errorf("tile name %q: latitude: %w", name, err)
	}
	lon, err := strconv.Atoi(base[4:7])
	if err != nil {
		return TileKey{}, fmt.Errorf("tile name %q: longitude: %w", name, err)
	}

	return TileKey{Lat: latSign * lat, Lon: lonSign * lon}, nil
}

// sideForSize maps a tile's byte size to its side length, or 0 if the
// size matches neither supported resolution.
func sideForSize(size int64) int {
	switch size {
	case 2 * SideSRTM1 * SideSRTM1:
		return SideSRTM1
	case 2 * SideSRTM3 * SideSRTM3:
		return SideSRTM3
	default:
		return 0
	}
}

// ReadTile reads and decodes one terrain tile file. Samples are
// big-endian signed 16-bit; voids are replaced with 0.
func ReadTile(path string) (*Tile, error) {
	key, err := ParseTileName(baseName(path))
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tile: %w", err)
	}

	side := sideForSize(int64(len(raw)))
	if side == 0 {
		return nil, &domain.FormatError{File: path, Size: int64(len(raw))}
	}

	samples := make([]float32, side*side)
	for i := range samples {
		v := int16(uint16(raw[2*i])<<8 | uint16(raw[2*i+1]))
		if v < voidThreshold {
			v = 0
		}
		samples[i] = float32(v)
	}

	return &Tile{Key: key, Side: side, Samples: samples}, nil
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
