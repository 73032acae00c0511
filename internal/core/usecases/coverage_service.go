package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/meshsight/meshsight/internal/core/domain"
	"github.com/meshsight/meshsight/internal/core/ports"
	"github.com/meshsight/meshsight/internal/core/terrain"
	"github.com/meshsight/meshsight/internal/core/viewshed"
	"github.com/meshsight/meshsight/internal/pkg/metrics"
	"github.com/meshsight/meshsight/internal/pkg/rasterenc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("meshsight/usecases")

// CoverageService runs the full coverage pipeline for a project:
// terrain assembly, per-node viewsheds, merge, persistence.
type CoverageService struct {
	projects  ports.ProjectRepository
	nodes     ports.NodeRepository
	grids     ports.GridRepository
	viewsheds ports.ViewshedRepository
	coverages ports.CoverageRepository
	cache     ports.CacheService
	events    ports.EventPublisher
	rasters   ports.RasterStore

	loader     *terrain.Loader
	engine     *viewshed.Engine
	tileSource string

	// Progress, when set, receives stage transitions in addition to the
	// event publisher. Used by the importer CLI for console feedback.
	Progress func(domain.ComputeProgress)
}

// NewCoverageService wires the pipeline. cache, events, and rasters may
// be nil; the pipeline then runs without caching, eventing, or exports.
func NewCoverageService(
	projects ports.ProjectRepository,
	nodes ports.NodeRepository,
	grids ports.GridRepository,
	viewsheds ports.ViewshedRepository,
	coverages ports.CoverageRepository,
	cache ports.CacheService,
	events ports.EventPublisher,
	rasters ports.RasterStore,
	tileSource string,
) *CoverageService {
	return &CoverageService{
		projects:   projects,
		nodes:      nodes,
		grids:      grids,
		viewsheds:  viewsheds,
		coverages:  coverages,
		cache:      cache,
		events:     events,
		rasters:    rasters,
		loader:     &terrain.Loader{},
		engine:     &viewshed.Engine{},
		tileSource: tileSource,
	}
}

func (s *CoverageService) report(ctx context.Context, ev domain.ComputeProgress) {
	if s.Progress != nil {
		s.Progress(ev)
	}
	if s.events != nil {
		if err := s.events.PublishProgress(ctx, &ev); err != nil {
			slog.Warn("publish progress failed", "error", err)
		}
	}
}

// ComputeProject executes the pipeline for every node of the project.
// There is no partial-success mode: a loader failure or a single node
// failing to compute aborts the whole request.
func (s *CoverageService) ComputeProject(ctx context.Context, projectID string) (*domain.CoverageSummary, error) {
	ctx, span := tracer.Start(ctx, "coverage.compute",
		trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	start := time.Now()

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", projectID, err)
	}

	nodes, err := s.nodes.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("project %s has no nodes", projectID)
	}

	s.report(ctx, domain.ComputeProgress{ProjectID: projectID, Stage: "terrain", Total: len(nodes)})

	dir, cleanup, err := terrain.ResolveSource(ctx, s.tileSource)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	grid, err := s.loader.LoadRegion(ctx, dir, project.Bounds)
	if err != nil {
		return nil, fmt.Errorf("assemble terrain for %s: %w", projectID, err)
	}
	if err := s.grids.Save(ctx, projectID, grid); err != nil {
		return nil, fmt.Errorf("save elevation grid: %w", err)
	}

	results := make([]*domain.ViewshedResult, 0, len(nodes))
	for i := range nodes {
		// Cooperative cancellation between observers: the per-node pass
		// is cubic in grid dimension.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node := &nodes[i]

		obs, err := viewshed.SnapNode(grid, node)
		if err != nil {
			return nil, err
		}
		if err := s.nodes.UpdateGroundElevation(ctx, node.ID, obs.GroundElevationM); err != nil {
			return nil, fmt.Errorf("update node %s elevation: %w", node.Name, err)
		}

		nodeStart := time.Now()
		res, err := s.engine.Compute(ctx, grid, obs)
		if err != nil {
			return nil, fmt.Errorf("viewshed for node %s: %w", node.Name, err)
		}
		metrics.ViewshedComputeSeconds.Observe(time.Since(nodeStart).Seconds())

		res.NodeID = node.ID
		res.ProjectID = projectID
		if err := s.viewsheds.Save(ctx, res); err != nil {
			return nil, fmt.Errorf("save viewshed for node %s: %w", node.Name, err)
		}
		if err := s.exportViewshed(ctx, res); err != nil {
			return nil, err
		}
		results = append(results, res)

		s.report(ctx, domain.ComputeProgress{
			ProjectID: projectID, Stage: "viewshed", Node: node.Name,
			Done: i + 1, Total: len(nodes),
		})
	}

	s.report(ctx, domain.ComputeProgress{ProjectID: projectID, Stage: "merge", Done: len(nodes), Total: len(nodes)})

	merged, err := viewshed.Merge(results)
	if err != nil {
		return nil, err
	}
	merged.ProjectID = projectID

	if err := s.coverages.Save(ctx, merged, len(nodes)); err != nil {
		return nil, fmt.Errorf("save merged coverage: %w", err)
	}
	if err := s.exportCoverage(ctx, merged); err != nil {
		return nil, err
	}

	s.report(ctx, domain.ComputeProgress{ProjectID: projectID, Stage: "persist", Done: len(nodes), Total: len(nodes)})

	summary := &domain.CoverageSummary{
		ProjectID:   projectID,
		Rows:        merged.Rows,
		Cols:        merged.Cols,
		NodeCount:   len(nodes),
		CoveragePct: merged.CoveragePct,
		OverlapPct:  merged.OverlapPct,
		ComputedAt:  merged.ComputedAt,
	}

	if s.cache != nil {
		if data, err := json.Marshal(summary); err == nil {
			_ = s.cache.Set(ctx, coverageCacheKey(projectID), data, 600)
		}
	}
	if s.events != nil {
		if err := s.events.PublishCompleted(ctx, summary); err != nil {
			slog.Warn("publish completion failed", "error", err)
		}
	}

	span.SetAttributes(
		attribute.Int("coverage.nodes", len(nodes)),
		attribute.Float64("coverage.percent", summary.CoveragePct),
	)

	metrics.CoveragePercentage.Set(summary.CoveragePct)
	metrics.ComputeRequestsTotal.Inc()
	slog.Info("coverage computed",
		"project", projectID,
		"nodes", len(nodes),
		"grid", fmt.Sprintf("%dx%d", merged.Rows, merged.Cols),
		"coverage_pct", fmt.Sprintf("%.1f", summary.CoveragePct),
		"overlap_pct", fmt.Sprintf("%.1f", summary.OverlapPct),
		"elapsed", time.Since(start).String(),
	)
	return summary, nil
}

// GetCoverage returns the persisted summary for a project, read-through
// cached.
func (s *CoverageService) GetCoverage(ctx context.Context, projectID string) (*domain.CoverageSummary, error) {
	key := coverageCacheKey(projectID)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var sum domain.CoverageSummary
			if err := json.Unmarshal(data, &sum); err == nil {
				metrics.CacheHits.WithLabelValues("coverage").Inc()
				return &sum, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("coverage").Inc()
	}

	sum, err := s.coverages.GetSummary(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if data, err := json.Marshal(sum); err == nil {
			_ = s.cache.Set(ctx, key, data, 600)
		}
	}
	return sum, nil
}

// NodeViewshed describes one node's stored viewshed plus download links
// for the raster payloads (empty when no object store is configured).
type NodeViewshed struct {
	NodeID        string        `json:"node_id"`
	ProjectID     string        `json:"project_id"`
	Rows          int           `json:"rows"`
	Cols          int           `json:"cols"`
	Bounds        domain.Bounds `json:"bounds"`
	ComputedAt    time.Time     `json:"computed_at"`
	VisibilityURL string        `json:"visibility_url,omitempty"`
	SignalURL     string        `json:"signal_url,omitempty"`
}

// GetNodeViewshed returns viewshed metadata and presigned raster links.
func (s *CoverageService) GetNodeViewshed(ctx context.Context, projectID, nodeID string) (*NodeViewshed, error) {
	res, err := s.viewsheds.GetByNode(ctx, projectID, nodeID)
	if err != nil {
		return nil, err
	}

	out := &NodeViewshed{
		NodeID:     nodeID,
		ProjectID:  projectID,
		Rows:       res.Rows,
		Cols:       res.Cols,
		Bounds:     res.Bounds,
		ComputedAt: res.ComputedAt,
	}
	if s.rasters != nil {
		if url, err := s.rasters.PresignedURL(ctx, visibilityKey(projectID, nodeID), time.Hour); err == nil {
			out.VisibilityURL = url
		}
		if url, err := s.rasters.PresignedURL(ctx, signalKey(projectID, nodeID), time.Hour); err == nil {
			out.SignalURL = url
		}
	}
	return out, nil
}

// TerrainPreview assembles a grid for the bounds without computing any
// viewshed: a cheap dry run to inspect shape and elevation range.
func (s *CoverageService) TerrainPreview(ctx context.Context, b domain.Bounds) (*domain.TerrainPreview, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("invalid bounds: %+v", b)
	}

	key := fmt.Sprintf("terrain:preview:%.4f:%.4f:%.4f:%.4f", b.MinLat, b.MaxLat, b.MinLon, b.MaxLon)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var p domain.TerrainPreview
			if err := json.Unmarshal(data, &p); err == nil {
				metrics.CacheHits.WithLabelValues("terrain_preview").Inc()
				return &p, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("terrain_preview").Inc()
	}

	dir, cleanup, err := terrain.ResolveSource(ctx, s.tileSource)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	grid, err := s.loader.LoadRegion(ctx, dir, b)
	if err != nil {
		return nil, err
	}

	min, max := grid.MinMax()
	preview := &domain.TerrainPreview{
		Rows:            grid.Rows,
		Cols:            grid.Cols,
		Bounds:          grid.Bounds,
		SubsampleFactor: grid.SubsampleFactor,
		MinElevationM:   min,
		MaxElevationM:   max,
	}

	// Terrain never changes; cache generously.
	if s.cache != nil {
		if data, err := json.Marshal(preview); err == nil {
			_ = s.cache.Set(ctx, key, data, 3600)
		}
	}
	return preview, nil
}

func (s *CoverageService) exportViewshed(ctx context.Context, res *domain.ViewshedResult) error {
	if s.rasters == nil {
		return nil
	}
	if err := s.rasters.Put(ctx, visibilityKey(res.ProjectID, res.NodeID),
		rasterenc.EncodeBitmap(res.Visibility), "application/octet-stream"); err != nil {
		return fmt.Errorf("export visibility raster: %w", err)
	}
	if err := s.rasters.Put(ctx, signalKey(res.ProjectID, res.NodeID),
		rasterenc.EncodeFloat32(res.Signal), "application/octet-stream"); err != nil {
		return fmt.Errorf("export signal raster: %w", err)
	}
	return nil
}

func (s *CoverageService) exportCoverage(ctx context.Context, cov *domain.MergedCoverage) error {
	if s.rasters == nil {
		return nil
	}
	base := "projects/" + cov.ProjectID + "/coverage/"
	if err := s.rasters.Put(ctx, base+"combined.bin",
		rasterenc.EncodeBitmap(cov.Combined), "application/octet-stream"); err != nil {
		return fmt.Errorf("export combined raster: %w", err)
	}
	if err := s.rasters.Put(ctx, base+"overlap.u8",
		cov.Overlap, "application/octet-stream"); err != nil {
		return fmt.Errorf("export overlap raster: %w", err)
	}
	if err := s.rasters.Put(ctx, base+"best_signal.f32",
		rasterenc.EncodeFloat32(cov.BestSignal), "application/octet-stream"); err != nil {
		return fmt.Errorf("export best-signal raster: %w", err)
	}
	return nil
}

func coverageCacheKey(projectID string) string { return "coverage:summary:" + projectID }

func visibilityKey(projectID, nodeID string) string {
	return "projects/" + projectID + "/nodes/" + nodeID + "/visibility.bin"
}

func signalKey(projectID, nodeID string) string {
	return "projects/" + projectID + "/nodes/" + nodeID + "/signal.f32"
}
