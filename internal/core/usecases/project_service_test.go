package usecases_test

import (
	"context"
	"math"
	"testing"

	"github.com/meshsight/meshsight/internal/core/domain"
	"github.com/meshsight/meshsight/internal/core/usecases"
)

func TestProjectService_Create_FromBounds(t *testing.T) {
	var created *domain.Project
	repo := &mockProjectRepo{
		createFn: func(ctx context.Context, p *domain.Project) error {
			created = p
			return nil
		},
	}
	svc := usecases.NewProjectService(repo, nil)

	b := domain.Bounds{MinLat: 45, MaxLat: 46, MinLon: 7, MaxLon: 8}
	project, err := svc.Create(context.Background(), "valley", &b, nil, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if project.ID == "" {
		t.Error("expected generated ID")
	}
	if project.Bounds != b {
		t.Errorf("expected bounds %+v, got %+v", b, project.Bounds)
	}
	if created == nil {
		t.Error("project never reached the repository")
	}
}

func TestProjectService_Create_FromCenter(t *testing.T) {
	svc := usecases.NewProjectService(&mockProjectRepo{}, nil)

	center := domain.GeoPoint{Lat: 45.0, Lon: 7.0}
	project, err := svc.Create(context.Background(), "radial", nil, &center, 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	b := project.Bounds
	if !b.Valid() {
		t.Fatalf("invalid derived bounds %+v", b)
	}
	// The window is centered on the point.
	if math.Abs((b.MinLat+b.MaxLat)/2-center.Lat) > 1e-9 {
		t.Errorf("bounds not centered on latitude: %+v", b)
	}
	if math.Abs((b.MinLon+b.MaxLon)/2-center.Lon) > 1e-9 {
		t.Errorf("bounds not centered on longitude: %+v", b)
	}
	// 5 km of latitude is about 0.0449 degrees each way.
	latDelta := (b.MaxLat - b.MinLat) / 2
	if math.Abs(latDelta-5.0/111.32) > 1e-9 {
		t.Errorf("unexpected latitude half-extent %v", latDelta)
	}
	// Longitude degrees stretch with latitude.
	lonDelta := (b.MaxLon - b.MinLon) / 2
	if lonDelta <= latDelta {
		t.Errorf("longitude half-extent %v should exceed latitude %v at 45N", lonDelta, latDelta)
	}
}

func TestProjectService_Create_MissingName(t *testing.T) {
	svc := usecases.NewProjectService(&mockProjectRepo{}, nil)
	b := domain.Bounds{MinLat: 45, MaxLat: 46, MinLon: 7, MaxLon: 8}
	if _, err := svc.Create(context.Background(), "", &b, nil, 0); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestProjectService_Create_NoGeometry(t *testing.T) {
	svc := usecases.NewProjectService(&mockProjectRepo{}, nil)
	if _, err := svc.Create(context.Background(), "nowhere", nil, nil, 0); err == nil {
		t.Error("expected error without bounds or center")
	}
}

func TestProjectService_Create_EmptyBounds(t *testing.T) {
	svc := usecases.NewProjectService(&mockProjectRepo{}, nil)
	b := domain.Bounds{MinLat: 45, MaxLat: 45, MinLon: 7, MaxLon: 8}
	if _, err := svc.Create(context.Background(), "flatline", &b, nil, 0); err == nil {
		t.Error("expected error for zero-extent bounds")
	}
}

func TestProjectService_Get_CachesResult(t *testing.T) {
	calls := 0
	repo := &mockProjectRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Project, error) {
			calls++
			return testProject(), nil
		},
	}
	svc := usecases.NewProjectService(repo, &mockCache{})

	for i := 0; i < 3; i++ {
		if _, err := svc.Get(context.Background(), "p1"); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 repository read, got %d", calls)
	}
}
