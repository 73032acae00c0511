package viewshed

import (
	"fmt"
	"time"

	"github.com/meshsight/meshsight/internal/core/domain"
)

// Merge folds per-node viewsheds into a project-level coverage picture.
// The fold is commutative and associative: input order never changes the
// output. All inputs must share one shape.
func Merge(results []*domain.ViewshedResult) (*domain.MergedCoverage, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("merge: no viewshed results")
	}

	rows, cols := results[0].Rows, results[0].Cols
	total := rows * cols

	combined := domain.NewBitmap(rows, cols)
	overlap := make([]uint8, total)
	best := make([]float64, total)
	for i := range best {
		best[i] = domain.SignalSentinelDBm
	}

	for _, res := range results {
		if res.Rows != rows || res.Cols != cols {
			return nil, fmt.Errorf("merge: shape mismatch: %dx%d vs %dx%d",
				res.Rows, res.Cols, rows, cols)
		}
		combined.Or(res.Visibility)
		for i := 0; i < total; i++ {
			if !res.Visibility.Bit(i) {
				continue
			}
			if overlap[i] < 255 {
				overlap[i]++
			}
			if res.Signal[i] > best[i] {
				best[i] = res.Signal[i]
			}
		}
	}

	visCells := combined.Count()
	overlapCells := 0
	for _, n := range overlap {
		if n >= 2 {
			overlapCells++
		}
	}

	coveragePct := 100 * float64(visCells) / float64(total)
	overlapPct := 0.0
	if visCells > 0 {
		overlapPct = 100 * float64(overlapCells) / float64(total)
	}

	return &domain.MergedCoverage{
		ProjectID:   results[0].ProjectID,
		Rows:        rows,
		Cols:        cols,
		Bounds:      results[0].Bounds,
		Combined:    combined,
		Overlap:     overlap,
		BestSignal:  best,
		CoveragePct: coveragePct,
		OverlapPct:  overlapPct,
		ComputedAt:  time.Now().UTC(),
	}, nil
}
