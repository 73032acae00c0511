package usecases_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/meshsight/meshsight/internal/core/domain"
	"github.com/meshsight/meshsight/internal/core/usecases"
)

// --- Mock repositories ---

type mockProjectRepo struct {
	createFn  func(ctx context.Context, p *domain.Project) error
	getByIDFn func(ctx context.Context, id string) (*domain.Project, error)
	listFn    func(ctx context.Context) ([]domain.Project, error)
}

func (m *mockProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	return nil
}
func (m *mockProjectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}
func (m *mockProjectRepo) List(ctx context.Context) ([]domain.Project, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

type mockNodeRepo struct {
	createFn        func(ctx context.Context, n *domain.Node) error
	getByIDFn       func(ctx context.Context, id string) (*domain.Node, error)
	listByProjectFn func(ctx context.Context, projectID string) ([]domain.Node, error)
	elevations      map[string]float64
}

func (m *mockNodeRepo) Create(ctx context.Context, n *domain.Node) error {
	if m.createFn != nil {
		return m.createFn(ctx, n)
	}
	return nil
}
func (m *mockNodeRepo) GetByID(ctx context.Context, id string) (*domain.Node, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}
func (m *mockNodeRepo) ListByProject(ctx context.Context, projectID string) ([]domain.Node, error) {
	if m.listByProjectFn != nil {
		return m.listByProjectFn(ctx, projectID)
	}
	return nil, nil
}
func (m *mockNodeRepo) UpdateGroundElevation(ctx context.Context, id string, elevationM float64) error {
	if m.elevations == nil {
		m.elevations = make(map[string]float64)
	}
	m.elevations[id] = elevationM
	return nil
}

type mockHardwareRepo struct {
	upsertFn  func(ctx context.Context, p *domain.HardwareProfile) error
	getByIDFn func(ctx context.Context, id string) (*domain.HardwareProfile, error)
}

func (m *mockHardwareRepo) Upsert(ctx context.Context, p *domain.HardwareProfile) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, p)
	}
	return nil
}
func (m *mockHardwareRepo) GetByID(ctx context.Context, id string) (*domain.HardwareProfile, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

type mockGridRepo struct {
	saved map[string]*domain.ElevationGrid
}

func (m *mockGridRepo) Save(ctx context.Context, projectID string, g *domain.ElevationGrid) error {
	if m.saved == nil {
		m.saved = make(map[string]*domain.ElevationGrid)
	}
	m.saved[projectID] = g
	return nil
}
func (m *mockGridRepo) GetByProject(ctx context.Context, projectID string) (*domain.ElevationGrid, error) {
	if g, ok := m.saved[projectID]; ok {
		return g, nil
	}
	return nil, domain.ErrNotFound
}

type mockViewshedRepo struct {
	saved []*domain.ViewshedResult
}

func (m *mockViewshedRepo) Save(ctx context.Context, r *domain.ViewshedResult) error {
	m.saved = append(m.saved, r)
	return nil
}
func (m *mockViewshedRepo) GetByNode(ctx context.Context, projectID, nodeID string) (*domain.ViewshedResult, error) {
	for _, r := range m.saved {
		if r.ProjectID == projectID && r.NodeID == nodeID {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

type mockCoverageRepo struct {
	saved     *domain.MergedCoverage
	nodeCount int
}

func (m *mockCoverageRepo) Save(ctx context.Context, cov *domain.MergedCoverage, nodeCount int) error {
	m.saved = cov
	m.nodeCount = nodeCount
	return nil
}
func (m *mockCoverageRepo) GetSummary(ctx context.Context, projectID string) (*domain.CoverageSummary, error) {
	if m.saved == nil {
		return nil, domain.ErrNotFound
	}
	return &domain.CoverageSummary{
		ProjectID:   projectID,
		Rows:        m.saved.Rows,
		Cols:        m.saved.Cols,
		NodeCount:   m.nodeCount,
		CoveragePct: m.saved.CoveragePct,
		OverlapPct:  m.saved.OverlapPct,
		ComputedAt:  m.saved.ComputedAt,
	}, nil
}

type mockCache struct {
	data map[string][]byte
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("cache miss")
}
func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = value
	return nil
}
func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

// --- Test fixtures ---

// projectBounds is a quarter-degree window inside tile N45E007.
var projectBounds = domain.Bounds{MinLat: 45.25, MaxLat: 45.5, MinLon: 7.25, MaxLon: 7.5}

// writeFlatTile writes a synthetic 3 arc-second N45E007 tile at constant
// 100 m elevation into a temp dir and returns the dir.
func writeFlatTile(t *testing.T) string {
	t.Helper()
	const side = 1201
	raw := make([]byte, 2*side*side)
	for i := 0; i < side*side; i++ {
		raw[2*i] = 0
		raw[2*i+1] = 100
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "N45E007.hgt"), raw, 0o644); err != nil {
		t.Fatalf("write tile: %v", err)
	}
	return dir
}

func testProject() *domain.Project {
	return &domain.Project{ID: "p1", Name: "ridge", Bounds: projectBounds}
}

func testNodes() []domain.Node {
	return []domain.Node{
		{ID: "n1", ProjectID: "p1", Name: "Gateway",
			Location:       domain.GeoPoint{Lat: 45.375, Lon: 7.375},
			AntennaHeightM: 15, MaxRangeKm: 10, Role: domain.RoleGateway},
		{ID: "n2", ProjectID: "p1", Name: "Leaf-East",
			Location:       domain.GeoPoint{Lat: 45.4, Lon: 7.45},
			AntennaHeightM: 5, MaxRangeKm: 4, Role: domain.RoleClient},
	}
}

// --- Tests ---

func TestCoverageService_ComputeProject(t *testing.T) {
	tileDir := writeFlatTile(t)

	projects := &mockProjectRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Project, error) {
			return testProject(), nil
		},
	}
	nodes := &mockNodeRepo{
		listByProjectFn: func(ctx context.Context, projectID string) ([]domain.Node, error) {
			return testNodes(), nil
		},
	}
	grids := &mockGridRepo{}
	viewsheds := &mockViewshedRepo{}
	coverages := &mockCoverageRepo{}

	svc := usecases.NewCoverageService(projects, nodes, grids, viewsheds, coverages,
		nil, nil, nil, tileDir)

	var stages []string
	svc.Progress = func(ev domain.ComputeProgress) {
		stages = append(stages, ev.Stage)
	}

	summary, err := svc.ComputeProject(context.Background(), "p1")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if summary.NodeCount != 2 {
		t.Errorf("expected 2 nodes, got %d", summary.NodeCount)
	}
	// Flat terrain: both nodes see their whole range circle.
	if summary.CoveragePct <= 0 {
		t.Errorf("expected positive coverage, got %v", summary.CoveragePct)
	}
	if summary.Rows < 2 || summary.Cols < 2 {
		t.Errorf("degenerate summary shape %dx%d", summary.Rows, summary.Cols)
	}

	if grids.saved["p1"] == nil {
		t.Error("elevation grid was not persisted")
	}
	if len(viewsheds.saved) != 2 {
		t.Fatalf("expected 2 stored viewsheds, got %d", len(viewsheds.saved))
	}
	if viewsheds.saved[0].NodeID != "n1" || viewsheds.saved[1].NodeID != "n2" {
		t.Error("viewsheds stored out of node order")
	}
	if coverages.saved == nil {
		t.Fatal("merged coverage was not persisted")
	}
	if coverages.nodeCount != 2 {
		t.Errorf("expected node count 2 on save, got %d", coverages.nodeCount)
	}

	// Snapped ground elevation was written back.
	if nodes.elevations["n1"] != 100 {
		t.Errorf("expected ground elevation 100 recorded, got %v", nodes.elevations["n1"])
	}

	// terrain, one per node, merge, then the stored-results confirmation.
	want := []string{"terrain", "viewshed", "viewshed", "merge", "persist"}
	if len(stages) != len(want) {
		t.Fatalf("expected stages %v, got %v", want, stages)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("stage %d: want %s, got %s", i, want[i], stages[i])
		}
	}
}

func TestCoverageService_ComputeProject_NoNodes(t *testing.T) {
	projects := &mockProjectRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Project, error) {
			return testProject(), nil
		},
	}
	svc := usecases.NewCoverageService(projects, &mockNodeRepo{},
		&mockGridRepo{}, &mockViewshedRepo{}, &mockCoverageRepo{},
		nil, nil, nil, t.TempDir())

	if _, err := svc.ComputeProject(context.Background(), "p1"); err == nil {
		t.Error("expected error for project without nodes")
	}
}

func TestCoverageService_ComputeProject_ProjectMissing(t *testing.T) {
	svc := usecases.NewCoverageService(&mockProjectRepo{}, &mockNodeRepo{},
		&mockGridRepo{}, &mockViewshedRepo{}, &mockCoverageRepo{},
		nil, nil, nil, t.TempDir())

	_, err := svc.ComputeProject(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCoverageService_ComputeProject_NoTerrain(t *testing.T) {
	projects := &mockProjectRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Project, error) {
			return testProject(), nil
		},
	}
	nodes := &mockNodeRepo{
		listByProjectFn: func(ctx context.Context, projectID string) ([]domain.Node, error) {
			return testNodes(), nil
		},
	}
	svc := usecases.NewCoverageService(projects, nodes,
		&mockGridRepo{}, &mockViewshedRepo{}, &mockCoverageRepo{},
		nil, nil, nil, t.TempDir()) // empty dir: no tiles

	_, err := svc.ComputeProject(context.Background(), "p1")
	var noData *domain.NoDataError
	if !errors.As(err, &noData) {
		t.Errorf("expected NoDataError, got %v", err)
	}
}

func TestCoverageService_GetCoverage_ReadThrough(t *testing.T) {
	coverages := &mockCoverageRepo{
		saved: &domain.MergedCoverage{
			ProjectID: "p1", Rows: 64, Cols: 64, CoveragePct: 42.0,
		},
		nodeCount: 3,
	}
	cache := &mockCache{}
	svc := usecases.NewCoverageService(&mockProjectRepo{}, &mockNodeRepo{},
		&mockGridRepo{}, &mockViewshedRepo{}, coverages,
		cache, nil, nil, t.TempDir())

	first, err := svc.GetCoverage(context.Background(), "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if first.CoveragePct != 42.0 {
		t.Errorf("expected 42%%, got %v", first.CoveragePct)
	}

	// The repo result is now cached; wipe the repo and read again.
	coverages.saved = nil
	second, err := svc.GetCoverage(context.Background(), "p1")
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if second.CoveragePct != 42.0 {
		t.Errorf("expected cached 42%%, got %v", second.CoveragePct)
	}
}

func TestCoverageService_TerrainPreview(t *testing.T) {
	tileDir := writeFlatTile(t)
	svc := usecases.NewCoverageService(&mockProjectRepo{}, &mockNodeRepo{},
		&mockGridRepo{}, &mockViewshedRepo{}, &mockCoverageRepo{},
		nil, nil, nil, tileDir)

	preview, err := svc.TerrainPreview(context.Background(), projectBounds)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.Rows < 2 || preview.Cols < 2 {
		t.Errorf("degenerate preview %dx%d", preview.Rows, preview.Cols)
	}
	if preview.MinElevationM != 100 || preview.MaxElevationM != 100 {
		t.Errorf("expected flat 100 m terrain, got [%v,%v]",
			preview.MinElevationM, preview.MaxElevationM)
	}
}

func TestCoverageService_TerrainPreview_InvalidBounds(t *testing.T) {
	svc := usecases.NewCoverageService(&mockProjectRepo{}, &mockNodeRepo{},
		&mockGridRepo{}, &mockViewshedRepo{}, &mockCoverageRepo{},
		nil, nil, nil, t.TempDir())

	b := domain.Bounds{MinLat: 46, MaxLat: 45, MinLon: 7, MaxLon: 8}
	if _, err := svc.TerrainPreview(context.Background(), b); err == nil {
		t.Error("expected error for inverted bounds")
	}
}
