package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/meshsight/meshsight/internal/adapters/postgres"
	"github.com/meshsight/meshsight/internal/core/domain"
	"github.com/meshsight/meshsight/internal/core/usecases"
	"github.com/meshsight/meshsight/internal/pkg/config"
	"github.com/meshsight/meshsight/internal/pkg/logging"
)

// nodeSpec is one entry of a --nodes JSON file.
type nodeSpec struct {
	Name           string  `json:"name"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Role           int     `json:"role"`
	MaxRangeKm     float64 `json:"max_range_km"`
	AntennaHeightM float64 `json:"antenna_height_m"`
}

func main() {
	var (
		name      = flag.String("name", "", "project name (required)")
		center    = flag.String("center", "", "center point as lat,lon (required)")
		radiusKm  = flag.Float64("radius-km", 5, "half-extent of the project window in km")
		tiles     = flag.String("tiles", "", "terrain tile directory or archive (defaults to config)")
		nodesFile = flag.String("nodes", "", "JSON file with node placements (default: synthetic layout)")
	)
	flag.Parse()

	logging.Setup("info", "text")

	if *name == "" || *center == "" {
		flag.Usage()
		os.Exit(2)
	}
	centerLat, centerLon, err := parseCenter(*center)
	if err != nil {
		log.Fatalf("parse center: %v", err)
	}

	cfg, err := config.Load("meshsight-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	tileSource := cfg.Terrain.TileSource
	if *tiles != "" {
		tileSource = *tiles
	}

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.PoolSize))
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	projectRepo := postgres.NewProjectRepo(db)
	nodeRepo := postgres.NewNodeRepo(db)
	hardwareRepo := postgres.NewHardwareRepo(db)

	projectSvc := usecases.NewProjectService(projectRepo, nil)
	nodeSvc := usecases.NewNodeService(nodeRepo, projectRepo, hardwareRepo)
	coverageSvc := usecases.NewCoverageService(
		projectRepo, nodeRepo,
		postgres.NewGridRepo(db), postgres.NewViewshedRepo(db), postgres.NewCoverageRepo(db),
		nil, nil, nil, tileSource)
	coverageSvc.Progress = func(ev domain.ComputeProgress) {
		if ev.Node != "" {
			fmt.Printf("  [%d/%d] %s: %s\n", ev.Done, ev.Total, ev.Stage, ev.Node)
		} else {
			fmt.Printf("  %s\n", ev.Stage)
		}
	}

	project, err := projectSvc.Create(ctx, *name, nil,
		&domain.GeoPoint{Lat: centerLat, Lon: centerLon}, *radiusKm)
	if err != nil {
		log.Fatalf("create project: %v", err)
	}
	slog.Info("project created", "id", project.ID, "name", project.Name)

	profile, err := nodeSvc.SaveProfile(ctx, &domain.HardwareProfile{
		Name:             "Meshtastic 906MHz",
		TxPowerDBm:       27,
		RxSensitivityDBm: -130,
		FrequencyMHz:     906,
		SpreadingFactor:  12,
	})
	if err != nil {
		log.Fatalf("hardware profile: %v", err)
	}

	specs, err := loadNodeSpecs(*nodesFile, centerLat, centerLon, *radiusKm)
	if err != nil {
		log.Fatalf("node placements: %v", err)
	}
	for _, s := range specs {
		node := &domain.Node{
			Name:              s.Name,
			Location:          domain.GeoPoint{Lat: s.Lat, Lon: s.Lon},
			Role:              domain.NodeRole(s.Role),
			MaxRangeKm:        s.MaxRangeKm,
			AntennaHeightM:    s.AntennaHeightM,
			HardwareProfileID: profile.ID,
		}
		if _, err := nodeSvc.Add(ctx, project.ID, node); err != nil {
			log.Fatalf("add node %s: %v", s.Name, err)
		}
		slog.Info("node placed", "name", s.Name, "role", node.Role.String())
	}

	fmt.Println("Computing coverage...")
	summary, err := coverageSvc.ComputeProject(ctx, project.ID)
	if err != nil {
		log.Fatalf("compute: %v", err)
	}

	fmt.Printf("\nProject %s (%s)\n", project.Name, project.ID)
	fmt.Printf("  grid:     %dx%d\n", summary.Rows, summary.Cols)
	fmt.Printf("  nodes:    %d\n", summary.NodeCount)
	fmt.Printf("  coverage: %.1f%%\n", summary.CoveragePct)
	fmt.Printf("  overlap:  %.1f%%\n", summary.OverlapPct)
}

func parseCenter(s string) (lat, lon float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want lat,lon, got %q", s)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	return lat, lon, err
}

// loadNodeSpecs reads placements from a JSON file, or lays out the
// default synthetic network: a tall gateway near the center, two relays
// north and south, two low leaf nodes east and west.
func loadNodeSpecs(path string, centerLat, centerLon, radiusKm float64) ([]nodeSpec, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var specs []nodeSpec
		if err := json.Unmarshal(data, &specs); err != nil {
			return nil, err
		}
		if len(specs) == 0 {
			return nil, fmt.Errorf("no nodes in %s", path)
		}
		return specs, nil
	}

	degLat := radiusKm / 111.32
	degLon := radiusKm / (111.32 * math.Cos(centerLat*math.Pi/180))

	return []nodeSpec{
		{Name: "Gateway", Lat: centerLat + degLat*0.3, Lon: centerLon - degLon*0.1,
			Role: 0, MaxRangeKm: 10, AntennaHeightM: 15},
		{Name: "Relay-North", Lat: centerLat + degLat*0.6, Lon: centerLon + degLon*0.3,
			Role: 1, MaxRangeKm: 7, AntennaHeightM: 10},
		{Name: "Relay-South", Lat: centerLat - degLat*0.4, Lon: centerLon - degLon*0.3,
			Role: 1, MaxRangeKm: 7, AntennaHeightM: 10},
		{Name: "Leaf-East", Lat: centerLat + degLat*0.1, Lon: centerLon + degLon*0.6,
			Role: 2, MaxRangeKm: 4, AntennaHeightM: 5},
		{Name: "Leaf-West", Lat: centerLat - degLat*0.2, Lon: centerLon - degLon*0.5,
			Role: 2, MaxRangeKm: 4, AntennaHeightM: 5},
	}, nil
}
