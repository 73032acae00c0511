package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/meshsight/meshsight/internal/core/domain"
)

// CoverageInput is the input for the coverage workflow.
type CoverageInput struct {
	ProjectID string
}

// CoverageWorkflow orchestrates a durable coverage computation: terrain
// assembly, one viewshed activity per node (fanned out), merge, and
// completion event. Activities exchange only IDs; rasters stay in the
// database between stages.
func CoverageWorkflow(ctx workflow.Context, input CoverageInput) (*domain.CoverageSummary, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting coverage workflow", "project", input.ProjectID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
			// Bad terrain or off-grid nodes will not fix themselves.
			NonRetryableErrorTypes: []string{"FormatError", "NoDataError", "DegenerateInputError", "ObserverOffGridError"},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Assemble and persist the elevation grid
	if err := workflow.ExecuteActivity(ctx, "BuildTerrainGrid", input.ProjectID).Get(ctx, nil); err != nil {
		return nil, err
	}

	// Step 2: List nodes, then fan out one viewshed per node
	var nodeIDs []string
	if err := workflow.ExecuteActivity(ctx, "ListProjectNodes", input.ProjectID).Get(ctx, &nodeIDs); err != nil {
		return nil, err
	}

	futures := make([]workflow.Future, 0, len(nodeIDs))
	for _, nodeID := range nodeIDs {
		futures = append(futures, workflow.ExecuteActivity(ctx, "ComputeNodeViewshed", input.ProjectID, nodeID))
	}
	for i, f := range futures {
		if err := f.Get(ctx, nil); err != nil {
			logger.Error("viewshed activity failed", "node", nodeIDs[i], "error", err)
			return nil, err
		}
	}

	// Step 3: Merge per-node results into the project coverage
	var summary domain.CoverageSummary
	if err := workflow.ExecuteActivity(ctx, "MergeProjectCoverage", input.ProjectID).Get(ctx, &summary); err != nil {
		return nil, err
	}

	// Step 4: Announce completion. Best effort; the result is durable.
	if err := workflow.ExecuteActivity(ctx, "PublishCompletion", summary).Get(ctx, nil); err != nil {
		logger.Warn("completion event failed", "error", err)
	}

	logger.Info("Coverage workflow finished",
		"project", input.ProjectID,
		"coverage_pct", summary.CoveragePct)
	return &summary, nil
}
