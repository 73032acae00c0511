package ports

import (
	"context"

	"github.com/meshsight/meshsight/internal/core/domain"
)

// ProjectRepository persists planning projects.
type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context) ([]domain.Project, error)
}

// NodeRepository persists mesh node placements.
type NodeRepository interface {
	Create(ctx context.Context, node *domain.Node) error
	GetByID(ctx context.Context, id string) (*domain.Node, error)
	ListByProject(ctx context.Context, projectID string) ([]domain.Node, error)
	// UpdateGroundElevation records the elevation sampled at the node's
	// snapped grid cell during computation.
	UpdateGroundElevation(ctx context.Context, id string, elevationM float64) error
}

// HardwareProfileRepository persists radio hardware profiles.
type HardwareProfileRepository interface {
	Upsert(ctx context.Context, profile *domain.HardwareProfile) error
	GetByID(ctx context.Context, id string) (*domain.HardwareProfile, error)
}

// GridRepository persists assembled elevation grids, one per project.
type GridRepository interface {
	Save(ctx context.Context, projectID string, grid *domain.ElevationGrid) error
	GetByProject(ctx context.Context, projectID string) (*domain.ElevationGrid, error)
}

// ViewshedRepository persists per-node viewshed results.
type ViewshedRepository interface {
	Save(ctx context.Context, result *domain.ViewshedResult) error
	GetByNode(ctx context.Context, projectID, nodeID string) (*domain.ViewshedResult, error)
}

// CoverageRepository persists merged project coverage.
type CoverageRepository interface {
	Save(ctx context.Context, coverage *domain.MergedCoverage, nodeCount int) error
	GetSummary(ctx context.Context, projectID string) (*domain.CoverageSummary, error)
}
