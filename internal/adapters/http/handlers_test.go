package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/meshsight/meshsight/internal/adapters/http"
	"github.com/meshsight/meshsight/internal/core/domain"
	"github.com/meshsight/meshsight/internal/core/usecases"
)

// ---- Mock repositories ----

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
	return nil
}

type mockHardwareRepo struct {
	getByIDFn func(ctx context.Context, id string) (*domain.HardwareProfile, error)
	upsertFn  func(ctx context.Context, p *domain.HardwareProfile) error
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
	getByProjectFn func(ctx context.Context, projectID string) (*domain.ElevationGrid, error)
}

func (m *mockGridRepo) Save(ctx context.Context, projectID string, g *domain.ElevationGrid) error {
	return nil
}
func (m *mockGridRepo) GetByProject(ctx context.Context, projectID string) (*domain.ElevationGrid, error) {
	if m.getByProjectFn != nil {
		return m.getByProjectFn(ctx, projectID)
	}
	return nil, domain.ErrNotFound
}

type mockViewshedRepo struct {
	getByNodeFn func(ctx context.Context, projectID, nodeID string) (*domain.ViewshedResult, error)
}

func (m *mockViewshedRepo) Save(ctx context.Context, r *domain.ViewshedResult) error { return nil }
func (m *mockViewshedRepo) GetByNode(ctx context.Context, projectID, nodeID string) (*domain.ViewshedResult, error) {
	if m.getByNodeFn != nil {
		return m.getByNodeFn(ctx, projectID, nodeID)
	}
	return nil, domain.ErrNotFound
}

type mockCoverageRepo struct {
	getSummaryFn func(ctx context.Context, projectID string) (*domain.CoverageSummary, error)
}

func (m *mockCoverageRepo) Save(ctx context.Context, cov *domain.MergedCoverage, nodeCount int) error {
	return nil
}
func (m *mockCoverageRepo) GetSummary(ctx context.Context, projectID string) (*domain.CoverageSummary, error) {
	if m.getSummaryFn != nil {
		return m.getSummaryFn(ctx, projectID)
	}
	return nil, domain.ErrNotFound
}

// ---- Test helpers ----

var testBounds = domain.Bounds{MinLat: 45.0, MaxLat: 45.1, MinLon: 7.0, MaxLon: 7.1}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	projects := &mockProjectRepo{}
	nodes := &mockNodeRepo{}
	d := &handler.Dependencies{
		Projects: usecases.NewProjectService(projects, nil),
		Nodes:    usecases.NewNodeService(nodes, projects, &mockHardwareRepo{}),
		Coverage: usecases.NewCoverageService(projects, nodes,
			&mockGridRepo{}, &mockViewshedRepo{}, &mockCoverageRepo{},
			nil, nil, nil, "./terrain"),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ---- Project handler tests ----

func TestCreateProject_FromCenter(t *testing.T) {
	deps := makeDeps()
	app := setupApp(deps)

	body := `{"name":"alpine-mesh","center":{"lat":45.05,"lon":7.05},"radius_km":5}`
	req := httptest.NewRequest("POST", "/v1/projects", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var project domain.Project
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		t.Fatal(err)
	}
	if project.ID == "" {
		t.Error("expected generated project ID")
	}
	if project.Bounds.MinLat >= project.Bounds.MaxLat {
		t.Errorf("expected bounds derived from center+radius, got %+v", project.Bounds)
	}
}

func TestCreateProject_MissingName(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"center":{"lat":45.05,"lon":7.05},"radius_km":5}`
	req := httptest.NewRequest("POST", "/v1/projects", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Status int    `json:"status"`
		Code   string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request error, got %s", apiErr.Code)
	}
}

func TestCreateProject_NoBoundsNoCenter(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/projects", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListProjects_Pagination(t *testing.T) {
	projects := make([]domain.Project, 5)
	for i := range projects {
		projects[i] = domain.Project{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Project %d", i), Bounds: testBounds}
	}

	deps := makeDeps(func(d *handler.Dependencies) {
		d.Projects = usecases.NewProjectService(&mockProjectRepo{
			listFn: func(ctx context.Context) ([]domain.Project, error) { return projects, nil },
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/projects?offset=2&limit=2", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.Project `json:"data"`
		Pagination struct {
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
			Total  int `json:"total"`
		} `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Pagination.Total != 5 {
		t.Errorf("expected total 5, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 2 {
		t.Errorf("expected 2 projects in page, got %d", len(result.Data))
	}
	if result.Data[0].ID != "p2" {
		t.Errorf("expected page to start at p2, got %s", result.Data[0].ID)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/projects/nonexistent-id", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetProject_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Projects = usecases.NewProjectService(&mockProjectRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.Project, error) {
				return &domain.Project{ID: id, Name: "ridge-survey", Bounds: testBounds}, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/projects/abc-123", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var project domain.Project
	json.NewDecoder(resp.Body).Decode(&project)
	if project.Name != "ridge-survey" {
		t.Errorf("expected ridge-survey, got %s", project.Name)
	}
}

// ---- Node handler tests ----

func projectDeps(nodes *mockNodeRepo) *handler.Dependencies {
	projects := &mockProjectRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Project, error) {
			return &domain.Project{ID: id, Name: "test", Bounds: testBounds}, nil
		},
	}
	return &handler.Dependencies{
		Projects: usecases.NewProjectService(projects, nil),
		Nodes:    usecases.NewNodeService(nodes, projects, &mockHardwareRepo{}),
		Coverage: usecases.NewCoverageService(projects, nodes,
			&mockGridRepo{}, &mockViewshedRepo{}, &mockCoverageRepo{},
			nil, nil, nil, "./terrain"),
	}
}

func TestAddNode_Success(t *testing.T) {
	app := setupApp(projectDeps(&mockNodeRepo{}))

	body := `{"name":"Gateway","location":{"lat":45.05,"lon":7.05},"antenna_height_m":15,"max_range_km":10,"role":0}`
	req := httptest.NewRequest("POST", "/v1/projects/p1/nodes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var node domain.Node
	json.NewDecoder(resp.Body).Decode(&node)
	if node.ID == "" {
		t.Error("expected generated node ID")
	}
	if node.ProjectID != "p1" {
		t.Errorf("expected project p1, got %s", node.ProjectID)
	}
}

func TestAddNode_OutsideBounds(t *testing.T) {
	app := setupApp(projectDeps(&mockNodeRepo{}))

	body := `{"name":"Stray","location":{"lat":50.0,"lon":7.05}}`
	req := httptest.NewRequest("POST", "/v1/projects/p1/nodes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for node outside bounds, got %d", resp.StatusCode)
	}
}

func TestAddNode_AppliesDefaults(t *testing.T) {
	var created *domain.Node
	nodes := &mockNodeRepo{
		createFn: func(ctx context.Context, n *domain.Node) error {
			created = n
			return nil
		},
	}
	app := setupApp(projectDeps(nodes))

	body := `{"name":"Minimal","location":{"lat":45.05,"lon":7.05},"role":9}`
	req := httptest.NewRequest("POST", "/v1/projects/p1/nodes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if created == nil {
		t.Fatal("expected node to reach the repository")
	}
	if created.AntennaHeightM != 2 {
		t.Errorf("expected default antenna height 2, got %v", created.AntennaHeightM)
	}
	if created.MaxRangeKm != 5 {
		t.Errorf("expected default range 5, got %v", created.MaxRangeKm)
	}
	if created.Role != domain.RoleClient {
		t.Errorf("expected out-of-range role clamped to client, got %v", created.Role)
	}
}

func TestListNodes_DistanceAnnotation(t *testing.T) {
	nodes := &mockNodeRepo{
		listByProjectFn: func(ctx context.Context, projectID string) ([]domain.Node, error) {
			return []domain.Node{
				{ID: "n1", Name: "Gateway", Location: domain.GeoPoint{Lat: 45.05, Lon: 7.05}, Role: domain.RoleGateway},
				{ID: "n2", Name: "Leaf", Location: domain.GeoPoint{Lat: 45.08, Lon: 7.09}, Role: domain.RoleClient},
			}, nil
		},
	}
	app := setupApp(projectDeps(nodes))

	req := httptest.NewRequest("GET", "/v1/projects/p1/nodes", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Nodes []struct {
			Name      string  `json:"name"`
			Role      string  `json:"role"`
			DistanceM float64 `json:"distance_from_center_m"`
		} `json:"nodes"`
		Count int `json:"count"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Count != 2 {
		t.Fatalf("expected 2 nodes, got %d", result.Count)
	}
	if result.Nodes[0].Role != "gateway" {
		t.Errorf("expected role string gateway, got %s", result.Nodes[0].Role)
	}
	// The gateway sits at the bounds center; the leaf does not.
	if result.Nodes[0].DistanceM > 1 {
		t.Errorf("expected near-zero distance for center node, got %v", result.Nodes[0].DistanceM)
	}
	if result.Nodes[1].DistanceM < 1000 {
		t.Errorf("expected leaf node kilometers from center, got %v", result.Nodes[1].DistanceM)
	}
}

// ---- Coverage handler tests ----

func TestComputeCoverage_ProjectNotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/projects/missing/compute", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetCoverage_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Coverage = usecases.NewCoverageService(
			&mockProjectRepo{}, &mockNodeRepo{},
			&mockGridRepo{}, &mockViewshedRepo{},
			&mockCoverageRepo{
				getSummaryFn: func(ctx context.Context, projectID string) (*domain.CoverageSummary, error) {
					return &domain.CoverageSummary{
						ProjectID: projectID, Rows: 256, Cols: 256,
						NodeCount: 5, CoveragePct: 72.5, OverlapPct: 12.1,
					}, nil
				},
			},
			nil, nil, nil, "./terrain")
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/projects/p1/coverage", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var summary domain.CoverageSummary
	json.NewDecoder(resp.Body).Decode(&summary)
	if summary.CoveragePct != 72.5 {
		t.Errorf("expected coverage 72.5, got %v", summary.CoveragePct)
	}
	if summary.NodeCount != 5 {
		t.Errorf("expected 5 nodes, got %d", summary.NodeCount)
	}
}

func TestGetCoverage_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/projects/p1/coverage", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetNodeViewshed_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/projects/p1/nodes/n1/viewshed", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetNodeViewshed_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Coverage = usecases.NewCoverageService(
			&mockProjectRepo{}, &mockNodeRepo{},
			&mockGridRepo{},
			&mockViewshedRepo{
				getByNodeFn: func(ctx context.Context, projectID, nodeID string) (*domain.ViewshedResult, error) {
					return &domain.ViewshedResult{
						NodeID: nodeID, ProjectID: projectID,
						Rows: 128, Cols: 128, Bounds: testBounds,
					}, nil
				},
			},
			&mockCoverageRepo{}, nil, nil, nil, "./terrain")
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/projects/p1/nodes/n1/viewshed", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var vs usecases.NodeViewshed
	json.NewDecoder(resp.Body).Decode(&vs)
	if vs.Rows != 128 || vs.Cols != 128 {
		t.Errorf("expected 128x128 viewshed, got %dx%d", vs.Rows, vs.Cols)
	}
	if vs.VisibilityURL != "" {
		t.Error("expected no raster links without an object store")
	}
}

// ---- Terrain handler tests ----

func TestTerrainPreview_BadBounds(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/terrain/preview?min_lat=45.1&max_lat=45.0&min_lon=7.0&max_lon=7.1", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for inverted bounds, got %d", resp.StatusCode)
	}
}

func TestTerrainPreview_MissingParams(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/terrain/preview", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Hardware profile tests ----

func TestSaveHardwareProfile_Defaults(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"name":"LoRa 868"}`
	req := httptest.NewRequest("POST", "/v1/hardware-profiles", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var profile domain.HardwareProfile
	json.NewDecoder(resp.Body).Decode(&profile)
	if profile.ID == "" {
		t.Error("expected generated profile ID")
	}
	if profile.TxPowerDBm != 27 {
		t.Errorf("expected default tx power 27, got %v", profile.TxPowerDBm)
	}
	if profile.FrequencyMHz != 906 {
		t.Errorf("expected default frequency 906, got %v", profile.FrequencyMHz)
	}
	if profile.RxSensitivityDBm != -130 {
		t.Errorf("expected default sensitivity -130, got %v", profile.RxSensitivityDBm)
	}
}

func TestSaveHardwareProfile_DuplicateName(t *testing.T) {
	projects := &mockProjectRepo{}
	profiles := &mockHardwareRepo{
		upsertFn: func(ctx context.Context, p *domain.HardwareProfile) error {
			return fmt.Errorf("profile name %q: %w", p.Name, domain.ErrConflict)
		},
	}
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Nodes = usecases.NewNodeService(&mockNodeRepo{}, projects, profiles)
	})
	app := setupApp(deps)

	body := `{"name":"LoRa 868"}`
	req := httptest.NewRequest("POST", "/v1/hardware-profiles", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 409 {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "conflict" {
		t.Errorf("expected code conflict, got %q", apiErr.Code)
	}
}

func TestSaveHardwareProfile_MissingName(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/hardware-profiles", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- System tests ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Status string `json:"status"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Status != "healthy" {
		t.Errorf("expected healthy, got %s", result.Status)
	}
}

func TestSecurityHeaders(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got %q", got)
	}
	if got := resp.Header.Get("X-API-Version"); got != "1.0.0" {
		t.Errorf("expected API version header, got %q", got)
	}
}
