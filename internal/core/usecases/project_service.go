package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/meshsight/meshsight/internal/core/domain"
	"github.com/meshsight/meshsight/internal/core/ports"
	"github.com/meshsight/meshsight/internal/pkg/geospatial"
)

// ProjectService handles project lifecycle.
type ProjectService struct {
	projects ports.ProjectRepository
	cache    ports.CacheService
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projects ports.ProjectRepository, cache ports.CacheService) *ProjectService {
	return &ProjectService{projects: projects, cache: cache}
}

// Create makes a project from explicit bounds, or from a center point and
// radius in kilometers when bounds is nil.
func (s *ProjectService) Create(ctx context.Context, name string, bounds *domain.Bounds, center *domain.GeoPoint, radiusKm float64) (*domain.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("project name must not be empty")
	}

	var b domain.Bounds
	switch {
	case bounds != nil:
		b = *bounds
	case center != nil && radiusKm > 0:
		b = geospatial.BoundsAround(center.Lat, center.Lon, radiusKm)
	default:
		return nil, fmt.Errorf("either bounds or center+radius_km is required")
	}
	if !b.Valid() {
		return nil, fmt.Errorf("bounds have no extent: %+v", b)
	}

	project := &domain.Project{
		ID:     uuid.NewString(),
		Name:   name,
		Bounds: b,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

// Get returns a single project, read-through cached.
func (s *ProjectService) Get(ctx context.Context, id string) (*domain.Project, error) {
	cacheKey := "projects:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var p domain.Project
			if err := json.Unmarshal(data, &p); err == nil {
				return &p, nil
			}
		}
	}

	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(p); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600)
		}
	}
	return p, nil
}

// List returns all projects.
func (s *ProjectService) List(ctx context.Context) ([]domain.Project, error) {
	return s.projects.List(ctx)
}
