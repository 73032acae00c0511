package domain

import "math/bits"

// ElevationGrid is a rectangular grid of elevation samples in meters.
// Samples are row-major with row 0 at the northern edge and column 0 at
// the western edge. The grid-to-geographic mapping is edge-aligned:
// row 0 sits exactly on MaxLat and the last row exactly on MinLat.
type ElevationGrid struct {
	Rows    int       `json:"rows"`
	Cols    int       `json:"cols"`
	Bounds  Bounds    `json:"bounds"`
	Samples []float64 `json:"-"`

	// SubsampleFactor records the decimation stride applied while the
	// grid was built (1 = full resolution). Informational only.
	SubsampleFactor int `json:"subsample_factor"`
}

// NewElevationGrid allocates a zero-filled grid.
func NewElevationGrid(rows, cols int, b Bounds) (*ElevationGrid, error) {
	if rows < 2 || cols < 2 {
		return nil, &DegenerateInputError{Rows: rows, Cols: cols}
	}
	return &ElevationGrid{
		Rows:            rows,
		Cols:            cols,
		Bounds:          b,
		Samples:         make([]float64, rows*cols),
		SubsampleFactor: 1,
	}, nil
}

// At returns the sample at (row, col). Callers must stay in range.
func (g *ElevationGrid) At(r, c int) float64 { return g.Samples[r*g.Cols+c] }

// Set writes the sample at (row, col).
func (g *ElevationGrid) Set(r, c int, v float64) { g.Samples[r*g.Cols+c] = v }

// LatRes returns degrees of latitude per row step.
func (g *ElevationGrid) LatRes() float64 {
	return (g.Bounds.MaxLat - g.Bounds.MinLat) / float64(g.Rows-1)
}

// LonRes returns degrees of longitude per column step.
func (g *ElevationGrid) LonRes() float64 {
	return (g.Bounds.MaxLon - g.Bounds.MinLon) / float64(g.Cols-1)
}

// CellOf maps a geographic point to its grid cell. The returned indices
// may fall outside the grid when the point does; InBounds tells.
func (g *ElevationGrid) CellOf(p GeoPoint) (row, col int) {
	row = int((g.Bounds.MaxLat - p.Lat) / g.LatRes())
	col = int((p.Lon - g.Bounds.MinLon) / g.LonRes())
	return row, col
}

// InBounds reports whether (row, col) addresses a cell of the grid.
func (g *ElevationGrid) InBounds(row, col int) bool {
	return row >= 0 && row < g.Rows && col >= 0 && col < g.Cols
}

// MinMax returns the smallest and largest sample values.
func (g *ElevationGrid) MinMax() (min, max float64) {
	if len(g.Samples) == 0 {
		return 0, 0
	}
	min, max = g.Samples[0], g.Samples[0]
	for _, v := range g.Samples[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// Bitmap is a bit-per-cell raster sharing the shape of an elevation grid.
type Bitmap struct {
	Rows  int      `json:"rows"`
	Cols  int      `json:"cols"`
	Words []uint64 `json:"-"`
}

// NewBitmap allocates a cleared bitmap.
func NewBitmap(rows, cols int) *Bitmap {
	n := rows * cols
	return &Bitmap{Rows: rows, Cols: cols, Words: make([]uint64, (n+63)/64)}
}

// Set marks the cell at (row, col).
func (b *Bitmap) Set(row, col int) { b.SetBit(row*b.Cols + col) }

// Get reports whether the cell at (row, col) is set.
func (b *Bitmap) Get(row, col int) bool { return b.Bit(row*b.Cols + col) }

// SetBit marks the cell at linear index i (row-major).
func (b *Bitmap) SetBit(i int) { b.Words[i>>6] |= 1 << uint(i&63) }

// Bit reports whether the cell at linear index i is set.
func (b *Bitmap) Bit(i int) bool { return b.Words[i>>6]&(1<<uint(i&63)) != 0 }

// Count returns the number of set cells.
func (b *Bitmap) Count() int {
	n := 0
	for _, w := range b.Words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Or folds another bitmap of identical shape into this one.
func (b *Bitmap) Or(other *Bitmap) {
	for i, w := range other.Words {
		b.Words[i] |= w
	}
}

// Clone returns an independent copy.
func (b *Bitmap) Clone() *Bitmap {
	out := &Bitmap{Rows: b.Rows, Cols: b.Cols, Words: make([]uint64, len(b.Words))}
	copy(out.Words, b.Words)
	return out
}
