package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/meshsight/meshsight/internal/core/domain"
	"github.com/meshsight/meshsight/internal/pkg/rasterenc"
)

// GridRepo implements ports.GridRepository with pgx. Elevation samples
// are stored as a little-endian float32 blob; float64 precision adds
// nothing over 1-meter SRTM data.
type GridRepo struct {
	db *DB
}

// NewGridRepo creates a new GridRepo.
func NewGridRepo(db *DB) *GridRepo {
	return &GridRepo{db: db}
}

// Save stores a project's assembled grid, replacing any previous one.
func (r *GridRepo) Save(ctx context.Context, projectID string, g *domain.ElevationGrid) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO elevation_grids (project_id, rows, cols, min_lat, max_lat, min_lon, max_lon, subsample_factor, samples)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (project_id) DO UPDATE
		SET rows = EXCLUDED.rows, cols = EXCLUDED.cols,
		    min_lat = EXCLUDED.min_lat, max_lat = EXCLUDED.max_lat,
		    min_lon = EXCLUDED.min_lon, max_lon = EXCLUDED.max_lon,
		    subsample_factor = EXCLUDED.subsample_factor,
		    samples = EXCLUDED.samples,
		    created_at = now()
	`, projectID, g.Rows, g.Cols,
		g.Bounds.MinLat, g.Bounds.MaxLat, g.Bounds.MinLon, g.Bounds.MaxLon,
		g.SubsampleFactor, rasterenc.EncodeFloat32(g.Samples))
	return err
}

// GetByProject returns a project's stored grid.
func (r *GridRepo) GetByProject(ctx context.Context, projectID string) (*domain.ElevationGrid, error) {
	var (
		rows, cols, factor int
		b                  domain.Bounds
		blob               []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT rows, cols, min_lat, max_lat, min_lon, max_lon, subsample_factor, samples
		FROM elevation_grids WHERE project_id = $1
	`, projectID).Scan(&rows, &cols, &b.MinLat, &b.MaxLat, &b.MinLon, &b.MaxLon, &factor, &blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	g, err := domain.NewElevationGrid(rows, cols, b)
	if err != nil {
		return nil, err
	}
	samples, err := rasterenc.DecodeFloat32(blob)
	if err != nil {
		return nil, err
	}
	if len(samples) != rows*cols {
		return nil, errors.New("elevation blob does not match grid shape")
	}
	g.Samples = samples
	g.SubsampleFactor = factor
	return g, nil
}
