package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/meshsight/meshsight/internal/core/domain"
)

// ProjectRepo implements ports.ProjectRepository with pgx.
type ProjectRepo struct {
	db *DB
}

// NewProjectRepo creates a new ProjectRepo.
func NewProjectRepo(db *DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

// Create inserts a project. The region geography column is derived from
// the bounds so PostGIS can answer spatial queries against projects.
func (r *ProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	return r.db.Pool.QueryRow(ctx, `
		INSERT INTO projects (id, name, min_lat, max_lat, min_lon, max_lon, region)
		VALUES ($1, $2, $3, $4, $5, $6,
		        ST_MakeEnvelope($5, $3, $6, $4, 4326)::geography)
		RETURNING created_at
	`, p.ID, p.Name, p.Bounds.MinLat, p.Bounds.MaxLat, p.Bounds.MinLon, p.Bounds.MaxLon).
		Scan(&p.CreatedAt)
}

// GetByID returns a project by UUID.
func (r *ProjectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, min_lat, max_lat, min_lon, max_lon, created_at
		FROM projects WHERE id = $1
	`, id).Scan(
		&p.ID, &p.Name,
		&p.Bounds.MinLat, &p.Bounds.MaxLat, &p.Bounds.MinLon, &p.Bounds.MaxLon,
		&p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns all projects, newest first.
func (r *ProjectRepo) List(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, min_lat, max_lat, min_lon, max_lon, created_at
		FROM projects
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(
			&p.ID, &p.Name,
			&p.Bounds.MinLat, &p.Bounds.MaxLat, &p.Bounds.MinLon, &p.Bounds.MaxLon,
			&p.CreatedAt,
		); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
