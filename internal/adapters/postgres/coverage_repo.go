package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/meshsight/meshsight/internal/core/domain"
	"github.com/meshsight/meshsight/internal/pkg/rasterenc"
)

// CoverageRepo implements ports.CoverageRepository with pgx.
type CoverageRepo struct {
	db *DB
}

// NewCoverageRepo creates a new CoverageRepo.
func NewCoverageRepo(db *DB) *CoverageRepo {
	return &CoverageRepo{db: db}
}

// Save stores a project's merged coverage, replacing any previous one.
func (r *CoverageRepo) Save(ctx context.Context, cov *domain.MergedCoverage, nodeCount int) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO merged_coverages (project_id, rows, cols, min_lat, max_lat, min_lon, max_lon,
		                              combined, overlap, best_signal,
		                              node_count, coverage_pct, overlap_pct, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (project_id) DO UPDATE
		SET rows = EXCLUDED.rows, cols = EXCLUDED.cols,
		    min_lat = EXCLUDED.min_lat, max_lat = EXCLUDED.max_lat,
		    min_lon = EXCLUDED.min_lon, max_lon = EXCLUDED.max_lon,
		    combined = EXCLUDED.combined, overlap = EXCLUDED.overlap,
		    best_signal = EXCLUDED.best_signal,
		    node_count = EXCLUDED.node_count,
		    coverage_pct = EXCLUDED.coverage_pct, overlap_pct = EXCLUDED.overlap_pct,
		    computed_at = EXCLUDED.computed_at
	`, cov.ProjectID, cov.Rows, cov.Cols,
		cov.Bounds.MinLat, cov.Bounds.MaxLat, cov.Bounds.MinLon, cov.Bounds.MaxLon,
		rasterenc.EncodeBitmap(cov.Combined), cov.Overlap,
		rasterenc.EncodeFloat32(cov.BestSignal),
		nodeCount, cov.CoveragePct, cov.OverlapPct, cov.ComputedAt)
	return err
}

// GetSummary returns the scalar view of a project's coverage, without the
// raster blobs.
func (r *CoverageRepo) GetSummary(ctx context.Context, projectID string) (*domain.CoverageSummary, error) {
	var sum domain.CoverageSummary
	err := r.db.Pool.QueryRow(ctx, `
		SELECT project_id, rows, cols, node_count, coverage_pct, overlap_pct, computed_at
		FROM merged_coverages WHERE project_id = $1
	`, projectID).Scan(
		&sum.ProjectID, &sum.Rows, &sum.Cols, &sum.NodeCount,
		&sum.CoveragePct, &sum.OverlapPct, &sum.ComputedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sum, nil
}
