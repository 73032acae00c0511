package usecases

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meshsight/meshsight/internal/core/domain"
	"github.com/meshsight/meshsight/internal/core/ports"
)

// Node defaults: a mast below one meter is treated as a 2 m pole, and an
// unset range falls back to a conservative 5 km.
const (
	defaultAntennaHeightM = 2.0
	defaultMaxRangeKm     = 5.0
)

// NodeService handles node placement within a project.
type NodeService struct {
	nodes    ports.NodeRepository
	projects ports.ProjectRepository
	profiles ports.HardwareProfileRepository
}

// NewNodeService creates a new NodeService.
func NewNodeService(nodes ports.NodeRepository, projects ports.ProjectRepository, profiles ports.HardwareProfileRepository) *NodeService {
	return &NodeService{nodes: nodes, projects: projects, profiles: profiles}
}

// Add validates and stores a node. Placements outside the project bounds
// are rejected up front: they would fail the whole computation later.
func (s *NodeService) Add(ctx context.Context, projectID string, node *domain.Node) (*domain.Node, error) {
	if node.Name == "" {
		return nil, fmt.Errorf("node name must not be empty")
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", projectID, err)
	}
	if !project.Bounds.Contains(node.Location) {
		return nil, fmt.Errorf("node %q at (%.4f, %.4f) lies outside project bounds",
			node.Name, node.Location.Lat, node.Location.Lon)
	}

	if node.AntennaHeightM < 1 {
		node.AntennaHeightM = defaultAntennaHeightM
	}
	if node.MaxRangeKm <= 0 {
		node.MaxRangeKm = defaultMaxRangeKm
	}
	if node.Role < domain.RoleGateway || node.Role > domain.RoleClient {
		node.Role = domain.RoleClient
	}

	if node.HardwareProfileID != "" {
		hw, err := s.profiles.GetByID(ctx, node.HardwareProfileID)
		if err != nil {
			return nil, fmt.Errorf("hardware profile %s: %w", node.HardwareProfileID, err)
		}
		node.Hardware = hw
	}

	node.ID = uuid.NewString()
	node.ProjectID = projectID
	if err := s.nodes.Create(ctx, node); err != nil {
		return nil, fmt.Errorf("create node: %w", err)
	}
	return node, nil
}

// List returns all nodes of a project.
func (s *NodeService) List(ctx context.Context, projectID string) ([]domain.Node, error) {
	return s.nodes.ListByProject(ctx, projectID)
}

// Get returns a single node.
func (s *NodeService) Get(ctx context.Context, id string) (*domain.Node, error) {
	return s.nodes.GetByID(ctx, id)
}

// SaveProfile stores or updates a hardware profile.
func (s *NodeService) SaveProfile(ctx context.Context, p *domain.HardwareProfile) (*domain.HardwareProfile, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("profile name must not be empty")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.TxPowerDBm <= 0 {
		p.TxPowerDBm = 27
	}
	if p.FrequencyMHz <= 0 {
		p.FrequencyMHz = 906
	}
	if p.RxSensitivityDBm >= 0 {
		p.RxSensitivityDBm = -130
	}
	if err := s.profiles.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("save hardware profile: %w", err)
	}
	return p, nil
}
