package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Throughput
	MetricRequestsPerSec = "api.requests_per_second"

	// Pipeline
	MetricTerrainLoadTime  = "terrain.load_seconds"
	MetricViewshedDuration = "coverage.viewshed_seconds"

	// Availability
	MetricUptime = "service.uptime_percentage"

	// Business
	MetricProjectsComputed = "business.projects_computed"
	MetricCoveragePercent  = "business.coverage_percent"
)
