package terrain

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/meshsight/meshsight/internal/core/domain"
	"github.com/meshsight/meshsight/internal/pkg/metrics"
)

// MaxGridDim bounds the cropped grid: the line-of-sight engine is cubic
// in grid dimension, so larger windows are decimated down to this size.
const MaxGridDim = 512

// Loader assembles elevation grids from a directory of terrain tiles.
type Loader struct {
	// MaxDim overrides MaxGridDim when positive (tests use small grids).
	MaxDim int
	// Concurrency bounds parallel tile reads. Defaults to 4.
	Concurrency int
	// Logger receives per-tile debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

func (l *Loader) maxDim() int {
	if l.MaxDim > 0 {
		return l.MaxDim
	}
	return MaxGridDim
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// LoadRegion reads every tile intersecting the requested bounds, stitches
// them into one composite grid, crops to the bounds, and subsamples when
// the window exceeds the dimension cap. Returns NoDataError when no tile
// intersects and FormatError when a tile file is malformed.
func (l *Loader) LoadRegion(ctx context.Context, dir string, b domain.Bounds) (*domain.ElevationGrid, error) {
	// Integer-degree tile range covering the request.
	latLo := int(math.Floor(b.MinLat))
	latHi := int(math.Floor(b.MaxLat))
	lonLo := int(math.Floor(b.MinLon))
	lonHi := int(math.Floor(b.MaxLon))

	paths, err := l.scanDir(dir, latLo, latHi, lonLo, lonHi)
	if err != nil {
		return nil, err
	}

	tiles, err := l.readAll(ctx, paths)
	if err != nil {
		return nil, err
	}
	if len(tiles) == 0 {
		return nil, &domain.NoDataError{Bounds: b}
	}

	big, rows, cols, err := stitch(tiles, latLo, latHi, lonLo, lonHi)
	if err != nil {
		return nil, err
	}

	// The full stitched grid spans whole degrees.
	full := domain.Bounds{
		MinLat: float64(latLo), MaxLat: float64(latHi + 1),
		MinLon: float64(lonLo), MaxLon: float64(lonHi + 1),
	}

	cropped, cr, cc, err := crop(big, rows, cols, full, b)
	if err != nil {
		return nil, err
	}

	samples, sr, sc, factor := subsample(cropped, cr, cc, l.maxDim())
	if factor > 1 {
		l.logger().Debug("terrain grid subsampled",
			"factor", factor, "rows", sr, "cols", sc)
	}

	grid, err := domain.NewElevationGrid(sr, sc, b)
	if err != nil {
		return nil, err
	}
	for i, v := range samples {
		grid.Samples[i] = float64(v)
	}
	grid.SubsampleFactor = factor

	l.logger().Info("terrain grid assembled",
		"tiles", len(tiles), "rows", sr, "cols", sc, "subsample", factor)
	return grid, nil
}

// scanDir lists tile files in dir whose coordinate key falls in range.
// Files that do not look like tiles are ignored; intersecting tiles with
// unparseable names are not possible by construction.
func (l *Loader) scanDir(dir string, latLo, latHi, lonLo, lonHi int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".hgt") {
			continue
		}
		key, err := ParseTileName(e.Name())
		if err != nil {
			l.logger().Warn("skipping unparseable tile name", "file", e.Name(), "error", err)
			continue
		}
		if key.Lat < latLo || key.Lat > latHi || key.Lon < lonLo || key.Lon > lonHi {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// readAll decodes tiles concurrently. Each read is independent; results
// are collected over a channel into the lookup map, never mutated shared.
func (l *Loader) readAll(ctx context.Context, paths []string) (map[TileKey]*Tile, error) {
	conc := l.Concurrency
	if conc <= 0 {
		conc = 4
	}

	type result struct {
		tile *Tile
		err  error
	}

	sem := make(chan struct{}, conc)
	results := make(chan result, len(paths))
	var wg sync.WaitGroup

	for _, p := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				results <- result{err: err}
				return
			}
			t, err := ReadTile(path)
			if err != nil {
				metrics.TileReadErrorsTotal.Inc()
			} else {
				metrics.TilesLoadedTotal.Inc()
				l.logger().Debug("loaded tile", "file", baseName(path), "side", t.Side)
			}
			results <- result{tile: t, err: err}
		}(p)
	}
	wg.Wait()
	close(results)

	tiles := make(map[TileKey]*Tile, len(paths))
	for r := range results {
		if r.err != nil {
			return nil, r.err
		}
		tiles[r.tile.Key] = r.tile
	}
	return tiles, nil
}

// stitch places tiles into one composite using stride side-1: adjacent
// tiles share their border row/column, so a plain side stride would
// duplicate edges. Missing tiles leave their region zero-filled.
func stitch(tiles map[TileKey]*Tile, latLo, latHi, lonLo, lonHi int) ([]float32, int, int, error) {
	var side int
	for _, t := range tiles {
		if side == 0 {
			side = t.Side
		} else if t.Side != side {
			return nil, 0, 0, &domain.FormatError{File: tileName(t.Key), Size: int64(2 * t.Side * t.Side)}
		}
	}

	nLat := latHi - latLo + 1
	nLon := lonHi - lonLo + 1
	rows := nLat*(side-1) + 1
	cols := nLon*(side-1) + 1
	big := make([]float32, rows*cols)

	// North to south.
	for i := 0; i < nLat; i++ {
		lat := latHi - i
		for j := 0; j < nLon; j++ {
			lon := lonLo + j
			t, ok := tiles[TileKey{Lat: lat, Lon: lon}]
			if !ok {
				continue
			}
			r0 := i * (side - 1)
			c0 := j * (side - 1)
			for r := 0; r < side; r++ {
				copy(big[(r0+r)*cols+c0:(r0+r)*cols+c0+side], t.Samples[r*side:(r+1)*side])
			}
		}
	}
	return big, rows, cols, nil
}

// crop converts the requested window into a row/column range by inverting
// the composite's linear resolution mapping, clamped to its extents.
func crop(big []float32, rows, cols int, full, want domain.Bounds) ([]float32, int, int, error) {
	latRes := (full.MaxLat - full.MinLat) / float64(rows-1)
	lonRes := (full.MaxLon - full.MinLon) / float64(cols-1)

	r0 := int((full.MaxLat - want.MaxLat) / latRes)
	r1 := int((full.MaxLat-want.MinLat)/latRes) + 1
	c0 := int((want.MinLon - full.MinLon) / lonRes)
	c1 := int((want.MaxLon-full.MinLon)/lonRes) + 1

	if r0 < 0 {
		r0 = 0
	}
	if r1 > rows {
		r1 = rows
	}
	if c0 < 0 {
		c0 = 0
	}
	if c1 > cols {
		c1 = cols
	}

	cr := r1 - r0
	cc := c1 - c0
	if cr < 2 || cc < 2 {
		return nil, 0, 0, &domain.DegenerateInputError{Rows: cr, Cols: cc}
	}

	out := make([]float32, cr*cc)
	for r := 0; r < cr; r++ {
		copy(out[r*cc:(r+1)*cc], big[(r0+r)*cols+c0:(r0+r)*cols+c1])
	}
	return out, cr, cc, nil
}

// subsample decimates the grid by an integer stride when either dimension
// exceeds maxDim. Nearest-sample: every factor-th row and column survives.
func subsample(samples []float32, rows, cols, maxDim int) ([]float32, int, int, int) {
	if rows <= maxDim && cols <= maxDim {
		return samples, rows, cols, 1
	}

	longest := rows
	if cols > longest {
		longest = cols
	}
	factor := longest/maxDim + 1

	sr := (rows + factor - 1) / factor
	sc := (cols + factor - 1) / factor
	out := make([]float32, sr*sc)
	for r := 0; r < sr; r++ {
		for c := 0; c < sc; c++ {
			out[r*sc+c] = samples[(r*factor)*cols+c*factor]
		}
	}
	return out, sr, sc, factor
}

func tileName(k TileKey) string {
	ns, ew := "N", "E"
	lat, lon := k.Lat, k.Lon
	if lat < 0 {
		ns, lat = "S", -lat
	}
	if lon < 0 {
		ew, lon = "W", -lon
	}
	return fmt.Sprintf("%s%02d%s%03d.hgt", ns, lat, ew, lon)
}
