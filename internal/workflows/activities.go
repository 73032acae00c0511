package workflows

import (
	"context"
	"fmt"

	"github.com/meshsight/meshsight/internal/core/domain"
	"github.com/meshsight/meshsight/internal/core/ports"
	"github.com/meshsight/meshsight/internal/core/terrain"
	"github.com/meshsight/meshsight/internal/core/viewshed"
)

// CoverageActivities holds the activity implementations for the coverage
// workflow. Each activity is restartable: inputs are IDs and all state
// lives in the repositories.
type CoverageActivities struct {
	Projects  ports.ProjectRepository
	Nodes     ports.NodeRepository
	Grids     ports.GridRepository
	Viewsheds ports.ViewshedRepository
	Coverages ports.CoverageRepository
	Events    ports.EventPublisher

	Loader     *terrain.Loader
	Engine     *viewshed.Engine
	TileSource string
}

// BuildTerrainGrid assembles the elevation grid for a project's bounds
// and persists it for the per-node activities.
func (a *CoverageActivities) BuildTerrainGrid(ctx context.Context, projectID string) error {
	project, err := a.Projects.GetByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load project %s: %w", projectID, err)
	}

	dir, cleanup, err := terrain.ResolveSource(ctx, a.TileSource)
	if err != nil {
		return err
	}
	defer cleanup()

	grid, err := a.Loader.LoadRegion(ctx, dir, project.Bounds)
	if err != nil {
		return err
	}
	return a.Grids.Save(ctx, projectID, grid)
}

// ListProjectNodes returns the IDs of a project's nodes.
func (a *CoverageActivities) ListProjectNodes(ctx context.Context, projectID string) ([]string, error) {
	nodes, err := a.Nodes.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("project %s has no nodes", projectID)
	}
	ids := make([]string, len(nodes))
	for i := range nodes {
		ids[i] = nodes[i].ID
	}
	return ids, nil
}

// ComputeNodeViewshed runs the line-of-sight engine for one node against
// the project's stored grid and persists the result.
func (a *CoverageActivities) ComputeNodeViewshed(ctx context.Context, projectID, nodeID string) error {
	grid, err := a.Grids.GetByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load grid for %s: %w", projectID, err)
	}
	node, err := a.Nodes.GetByID(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("load node %s: %w", nodeID, err)
	}

	obs, err := viewshed.SnapNode(grid, node)
	if err != nil {
		return err
	}
	if err := a.Nodes.UpdateGroundElevation(ctx, nodeID, obs.GroundElevationM); err != nil {
		return fmt.Errorf("update node %s elevation: %w", nodeID, err)
	}

	res, err := a.Engine.Compute(ctx, grid, obs)
	if err != nil {
		return err
	}
	res.ProjectID = projectID
	res.NodeID = nodeID
	if err := a.Viewsheds.Save(ctx, res); err != nil {
		return fmt.Errorf("save viewshed: %w", err)
	}

	if a.Events != nil {
		_ = a.Events.PublishProgress(ctx, &domain.ComputeProgress{
			ProjectID: projectID, Stage: "viewshed", Node: node.Name,
		})
	}
	return nil
}

// MergeProjectCoverage folds every stored viewshed into the project
// coverage and returns the summary.
func (a *CoverageActivities) MergeProjectCoverage(ctx context.Context, projectID string) (*domain.CoverageSummary, error) {
	nodes, err := a.Nodes.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}

	results := make([]*domain.ViewshedResult, 0, len(nodes))
	for i := range nodes {
		res, err := a.Viewsheds.GetByNode(ctx, projectID, nodes[i].ID)
		if err != nil {
			return nil, fmt.Errorf("load viewshed for node %s: %w", nodes[i].Name, err)
		}
		results = append(results, res)
	}

	merged, err := viewshed.Merge(results)
	if err != nil {
		return nil, err
	}
	merged.ProjectID = projectID
	if err := a.Coverages.Save(ctx, merged, len(nodes)); err != nil {
		return nil, fmt.Errorf("save merged coverage: %w", err)
	}

	return &domain.CoverageSummary{
		ProjectID:   projectID,
		Rows:        merged.Rows,
		Cols:        merged.Cols,
		NodeCount:   len(nodes),
		CoveragePct: merged.CoveragePct,
		OverlapPct:  merged.OverlapPct,
		ComputedAt:  merged.ComputedAt,
	}, nil
}

// PublishCompletion emits the final coverage summary to the event bus.
func (a *CoverageActivities) PublishCompletion(ctx context.Context, summary domain.CoverageSummary) error {
	if a.Events == nil {
		return nil
	}
	return a.Events.PublishCompleted(ctx, &summary)
}
