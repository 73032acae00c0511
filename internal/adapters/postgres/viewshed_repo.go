package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/meshsight/meshsight/internal/core/domain"
	"github.com/meshsight/meshsight/internal/pkg/rasterenc"
)

// ViewshedRepo implements ports.ViewshedRepository with pgx. Visibility
// travels as the bitmap's packed words, signal as float32.
type ViewshedRepo struct {
	db *DB
}

// NewViewshedRepo creates a new ViewshedRepo.
func NewViewshedRepo(db *DB) *ViewshedRepo {
	return &ViewshedRepo{db: db}
}

// Save stores a node's viewshed, replacing any previous result.
func (r *ViewshedRepo) Save(ctx context.Context, res *domain.ViewshedResult) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO viewshed_results (project_id, node_id, rows, cols, min_lat, max_lat, min_lon, max_lon, visibility, signal, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (project_id, node_id) DO UPDATE
		SET rows = EXCLUDED.rows, cols = EXCLUDED.cols,
		    min_lat = EXCLUDED.min_lat, max_lat = EXCLUDED.max_lat,
		    min_lon = EXCLUDED.min_lon, max_lon = EXCLUDED.max_lon,
		    visibility = EXCLUDED.visibility, signal = EXCLUDED.signal,
		    computed_at = EXCLUDED.computed_at
	`, res.ProjectID, res.NodeID, res.Rows, res.Cols,
		res.Bounds.MinLat, res.Bounds.MaxLat, res.Bounds.MinLon, res.Bounds.MaxLon,
		rasterenc.EncodeBitmap(res.Visibility), rasterenc.EncodeFloat32(res.Signal),
		res.ComputedAt)
	return err
}

// GetByNode returns a node's stored viewshed.
func (r *ViewshedRepo) GetByNode(ctx context.Context, projectID, nodeID string) (*domain.ViewshedResult, error) {
	var (
		res      domain.ViewshedResult
		visBlob  []byte
		sigBlob  []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT rows, cols, min_lat, max_lat, min_lon, max_lon, visibility, signal, computed_at
		FROM viewshed_results WHERE project_id = $1 AND node_id = $2
	`, projectID, nodeID).Scan(
		&res.Rows, &res.Cols,
		&res.Bounds.MinLat, &res.Bounds.MaxLat, &res.Bounds.MinLon, &res.Bounds.MaxLon,
		&visBlob, &sigBlob, &res.ComputedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	res.ProjectID = projectID
	res.NodeID = nodeID
	if res.Visibility, err = rasterenc.DecodeBitmap(visBlob, res.Rows, res.Cols); err != nil {
		return nil, err
	}
	if res.Signal, err = rasterenc.DecodeFloat32(sigBlob); err != nil {
		return nil, err
	}
	return &res, nil
}
