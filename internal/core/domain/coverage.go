package domain

import "time"

// Signal raster sentinel values (dBm).
const (
	// SignalSentinelDBm marks cells that are out of range or never evaluated.
	SignalSentinelDBm = -999.0
	// NearFieldSignalDBm is assigned to the observer's own cell.
	NearFieldSignalDBm = -60.0
)

// ViewshedResult is the per-node output of the line-of-sight engine:
// a visibility bitmap plus a signal-strength raster, both shaped like
// the source elevation grid.
type ViewshedResult struct {
	NodeID     string    `json:"node_id"`
	ProjectID  string    `json:"project_id"`
	Rows       int       `json:"rows"`
	Cols       int       `json:"cols"`
	Bounds     Bounds    `json:"bounds"`
	Visibility *Bitmap   `json:"-"`
	Signal     []float64 `json:"-"`
	ComputedAt time.Time `json:"computed_at"`
}

// MergedCoverage combines per-node viewsheds across a project.
type MergedCoverage struct {
	ProjectID string `json:"project_id"`
	Rows      int    `json:"rows"`
	Cols      int    `json:"cols"`
	Bounds    Bounds `json:"bounds"`

	// Combined has a cell set when at least one node sees it.
	Combined *Bitmap `json:"-"`
	// Overlap counts how many nodes see each cell, saturating at 255.
	Overlap []uint8 `json:"-"`
	// BestSignal holds the strongest signal across nodes per cell,
	// SignalSentinelDBm where no node reaches.
	BestSignal []float64 `json:"-"`

	// CoveragePct is the share of cells visible to at least one node.
	CoveragePct float64 `json:"coverage_pct"`
	// OverlapPct is the share of cells visible to two or more nodes.
	OverlapPct float64 `json:"overlap_pct"`

	ComputedAt time.Time `json:"computed_at"`
}

// ComputeProgress reports a stage transition during a coverage
// computation. It feeds the optional progress hook and the event bus;
// the engine itself never prints.
type ComputeProgress struct {
	ProjectID string `json:"project_id"`
	Stage     string `json:"stage"` // terrain | viewshed | merge | persist
	Node      string `json:"node,omitempty"`
	Done      int    `json:"done"`
	Total     int    `json:"total"`
}

// TerrainPreview is a stitch-only dry run: grid shape and elevation range
// for a window, without any viewshed computation.
type TerrainPreview struct {
	Rows            int     `json:"rows"`
	Cols            int     `json:"cols"`
	Bounds          Bounds  `json:"bounds"`
	SubsampleFactor int     `json:"subsample_factor"`
	MinElevationM   float64 `json:"min_elevation_m"`
	MaxElevationM   float64 `json:"max_elevation_m"`
}

// CoverageSummary is the scalar view of a merged coverage, served by the
// API and cached without the raster payloads.
type CoverageSummary struct {
	ProjectID   string    `json:"project_id"`
	Rows        int       `json:"rows"`
	Cols        int       `json:"cols"`
	NodeCount   int       `json:"node_count"`
	CoveragePct float64   `json:"coverage_pct"`
	OverlapPct  float64   `json:"overlap_pct"`
	ComputedAt  time.Time `json:"computed_at"`
}
