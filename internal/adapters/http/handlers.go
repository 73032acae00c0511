package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/meshsight/meshsight/internal/core/domain"
	"github.com/meshsight/meshsight/internal/pkg/geospatial"
)

// createProjectRequest accepts explicit bounds or a center point with a
// radius in kilometers.
type createProjectRequest struct {
	Name     string           `json:"name"`
	Bounds   *domain.Bounds   `json:"bounds,omitempty"`
	Center   *domain.GeoPoint `json:"center,omitempty"`
	RadiusKm float64          `json:"radius_km,omitempty"`
}

// CreateProjectHandler creates a planning project.
func CreateProjectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createProjectRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		project, err := deps.Projects.Create(c.Context(), req.Name, req.Bounds, req.Center, req.RadiusKm)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		return c.Status(201).JSON(project)
	}
}

// ListProjectsHandler returns all projects with offset/limit pagination.
func ListProjectsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projects, err := deps.Projects.List(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}

		offset, limit := parsePagination(c)

		total := len(projects)
		if offset >= total {
			projects = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			projects = projects[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: projects, Pagination: pg})
	}
}

// GetProjectHandler returns a single project by ID.
func GetProjectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "project id is required")
		}
		project, err := deps.Projects.Get(c.Context(), id)
		if err != nil {
			return errNotFound(c, "project not found")
		}
		return c.JSON(project)
	}
}

// addNodeRequest places a node inside a project.
type addNodeRequest struct {
	Name              string          `json:"name"`
	Location          domain.GeoPoint `json:"location"`
	AntennaHeightM    float64         `json:"antenna_height_m"`
	MaxRangeKm        float64         `json:"max_range_km"`
	Role              int             `json:"role"`
	HardwareProfileID string          `json:"hardware_profile_id,omitempty"`
}

// AddNodeHandler adds a node to a project.
func AddNodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID := c.Params("id")
		if projectID == "" {
			return errBadRequest(c, "project id is required")
		}

		var req addNodeRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		node := &domain.Node{
			Name:              req.Name,
			Location:          req.Location,
			AntennaHeightM:    req.AntennaHeightM,
			MaxRangeKm:        req.MaxRangeKm,
			Role:              domain.NodeRole(req.Role),
			HardwareProfileID: req.HardwareProfileID,
		}
		created, err := deps.Nodes.Add(c.Context(), projectID, node)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		return c.Status(201).JSON(created)
	}
}

// ListNodesHandler returns a project's nodes, each annotated with its
// distance from the project's bounds center.
func ListNodesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID := c.Params("id")
		if projectID == "" {
			return errBadRequest(c, "project id is required")
		}

		project, err := deps.Projects.Get(c.Context(), projectID)
		if err != nil {
			return errNotFound(c, "project not found")
		}
		nodes, err := deps.Nodes.List(c.Context(), projectID)
		if err != nil {
			return errInternal(c, err.Error())
		}

		centerLat := (project.Bounds.MinLat + project.Bounds.MaxLat) / 2
		centerLon := (project.Bounds.MinLon + project.Bounds.MaxLon) / 2

		type nodeResp struct {
			domain.Node
			Role      string  `json:"role"`
			DistanceM float64 `json:"distance_from_center_m"`
		}
		out := make([]nodeResp, 0, len(nodes))
		for _, n := range nodes {
			out = append(out, nodeResp{
				Node: n,
				Role: n.Role.String(),
				DistanceM: geospatial.Haversine(centerLat, centerLon,
					n.Location.Lat, n.Location.Lon),
			})
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(fiber.Map{"nodes": out, "count": len(out)})
	}
}

// ComputeCoverageHandler runs the full coverage pipeline synchronously
// and returns the summary. The route carries a long timeout; the
// pipeline aborts cooperatively when it fires.
func ComputeCoverageHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID := c.Params("id")
		if projectID == "" {
			return errBadRequest(c, "project id is required")
		}

		summary, err := deps.Coverage.ComputeProject(c.Context(), projectID)
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(summary)
	}
}

// GetCoverageHandler returns the persisted coverage summary.
func GetCoverageHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID := c.Params("id")
		if projectID == "" {
			return errBadRequest(c, "project id is required")
		}

		summary, err := deps.Coverage.GetCoverage(c.Context(), projectID)
		if err != nil {
			return domainError(c, err)
		}
		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(summary)
	}
}

// GetNodeViewshedHandler returns a node's viewshed metadata plus raster
// download links.
func GetNodeViewshedHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID := c.Params("id")
		nodeID := c.Params("nodeID")
		if projectID == "" || nodeID == "" {
			return errBadRequest(c, "project id and node id are required")
		}

		vs, err := deps.Coverage.GetNodeViewshed(c.Context(), projectID, nodeID)
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(vs)
	}
}

// TerrainPreviewHandler assembles a grid for a bbox without computing
// any viewshed. GET /v1/terrain/preview?min_lat=…&max_lat=…&min_lon=…&max_lon=…
func TerrainPreviewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		b := domain.Bounds{
			MinLat: c.QueryFloat("min_lat", 0),
			MaxLat: c.QueryFloat("max_lat", 0),
			MinLon: c.QueryFloat("min_lon", 0),
			MaxLon: c.QueryFloat("max_lon", 0),
		}
		if !b.Valid() {
			return errBadRequest(c, "min_lat/max_lat/min_lon/max_lon must describe a non-empty box")
		}

		preview, err := deps.Coverage.TerrainPreview(c.Context(), b)
		if err != nil {
			return domainError(c, err)
		}
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(preview)
	}
}

// SaveHardwareProfileHandler creates or updates a hardware profile.
func SaveHardwareProfileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var profile domain.HardwareProfile
		if err := c.BodyParser(&profile); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		saved, err := deps.Nodes.SaveProfile(c.Context(), &profile)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return errConflict(c, err.Error())
			}
			return errBadRequest(c, err.Error())
		}
		return c.Status(201).JSON(saved)
	}
}
