package viewshed

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/meshsight/meshsight/internal/core/domain"
)

// Ground resolution assumption: terrain cells are treated as 30 m square
// when converting a node's range in kilometers to a cell radius and when
// converting cell distance to kilometers for the signal model.
const (
	MetersPerCell = 30.0
	cellKm        = MetersPerCell / 1000.0
	minDistKm     = 0.01 // floor before the log-distance term
)

// Radio defaults applied when a node carries no hardware profile.
const (
	DefaultTxPowerDBm   = 27.0
	DefaultFrequencyMHz = 906.0
)

// blockToleranceM is how far terrain may poke above the sight line before
// a ray counts as blocked.
const blockToleranceM = 1.0

// Observer is a node snapped onto an elevation grid.
type Observer struct {
	Name             string
	Row              int
	Col              int
	GroundElevationM float64
	AntennaHeightM   float64
	MaxRangeCells    float64
	TxPowerDBm       float64
	FrequencyMHz     float64
}

// SnapNode maps a node's geographic position onto the grid and derives
// the observer parameters. A position that snaps outside the grid is an
// error: it means node data and terrain bounds disagree.
func SnapNode(grid *domain.ElevationGrid, node *domain.Node) (Observer, error) {
	row, col := grid.CellOf(node.Location)
	if !grid.InBounds(row, col) {
		return Observer{}, &domain.ObserverOffGridError{
			Node: node.Name, Row: row, Col: col, Rows: grid.Rows, Cols: grid.Cols,
		}
	}

	tx := DefaultTxPowerDBm
	freq := DefaultFrequencyMHz
	if hw := node.Hardware; hw != nil {
		if hw.TxPowerDBm > 0 {
			tx = hw.TxPowerDBm
		}
		if hw.FrequencyMHz > 0 {
			freq = hw.FrequencyMHz
		}
	}

	return Observer{
		Name:             node.Name,
		Row:              row,
		Col:              col,
		GroundElevationM: grid.At(row, col),
		AntennaHeightM:   node.AntennaHeightM,
		MaxRangeCells:    math.Floor(node.MaxRangeKm * 1000 / MetersPerCell),
		TxPowerDBm:       tx,
		FrequencyMHz:     freq,
	}, nil
}

// Engine computes per-observer viewsheds. The zero value is ready to use.
type Engine struct {
	// Workers bounds the number of rows computed in parallel.
	// Defaults to GOMAXPROCS.
	Workers int
}

// Compute produces the visibility bitmap and signal raster for one
// observer. Rows are independent, so they are distributed across a worker
// pool; each worker writes only its own rows. Cancellation is honored
// between rows. The result is deterministic regardless of worker count.
func (e *Engine) Compute(ctx context.Context, grid *domain.ElevationGrid, obs Observer) (*domain.ViewshedResult, error) {
	rows, cols := grid.Rows, grid.Cols
	if !grid.InBounds(obs.Row, obs.Col) {
		return nil, &domain.ObserverOffGridError{
			Node: obs.Name, Row: obs.Row, Col: obs.Col, Rows: rows, Cols: cols,
		}
	}

	sig := make([]float64, rows*cols)
	for i := range sig {
		sig[i] = domain.SignalSentinelDBm
	}
	vis := make([]uint8, rows*cols)

	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > rows {
		workers = rows
	}

	rowCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range rowCh {
				if ctx.Err() != nil {
					return
				}
				computeRow(grid, obs, r, vis, sig)
			}
		}()
	}

feed:
	for r := 0; r < rows; r++ {
		select {
		case rowCh <- r:
		case <-ctx.Done():
			break feed
		}
	}
	close(rowCh)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bitmap := domain.NewBitmap(rows, cols)
	for i, v := range vis {
		if v != 0 {
			bitmap.SetBit(i)
		}
	}

	return &domain.ViewshedResult{
		Rows:       rows,
		Cols:       cols,
		Bounds:     grid.Bounds,
		Visibility: bitmap,
		Signal:     sig,
		ComputedAt: time.Now().UTC(),
	}, nil
}

// computeRow evaluates every target cell in row r against the observer.
func computeRow(grid *domain.ElevationGrid, obs Observer, r int, vis []uint8, sig []float64) {
	rows, cols := grid.Rows, grid.Cols
	obsH := obs.GroundElevationM + obs.AntennaHeightM
	freqTerm := 20 * math.Log10(obs.FrequencyMHz)

	dr := float64(r - obs.Row)
	for c := 0; c < cols; c++ {
		dc := float64(c - obs.Col)
		dist := math.Sqrt(dr*dr + dc*dc)

		idx := r*cols + c
		if dist < 0.5 {
			// The observer's own cell.
			vis[idx] = 1
			sig[idx] = domain.NearFieldSignalDBm
			continue
		}
		if dist > obs.MaxRangeCells {
			continue
		}

		// March the segment toward the target, oversampled so no
		// intervening cell is skipped. Only interior steps can block:
		// neither the observer's cell nor the target itself is tested.
		steps := int(dist*1.5) + 1
		targetElev := grid.At(r, c)
		blocked := false
		for s := 1; s < steps; s++ {
			t := float64(s) / float64(steps)
			si := int(float64(obs.Row) + dr*t)
			sj := int(float64(obs.Col) + dc*t)
			if si < 0 || si >= rows || sj < 0 || sj >= cols {
				continue
			}
			needed := obsH + (targetElev-obsH)*t
			if grid.At(si, sj) > needed+blockToleranceM {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}

		vis[idx] = 1
		distKm := dist * cellKm
		if distKm < minDistKm {
			distKm = minDistKm
		}
		fspl := 20*math.Log10(distKm) + freqTerm + 32.44
		sig[idx] = obs.TxPowerDBm - fspl
	}
}
