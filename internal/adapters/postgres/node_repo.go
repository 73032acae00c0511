package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/meshsight/meshsight/internal/core/domain"
)

// NodeRepo implements ports.NodeRepository with pgx.
type NodeRepo struct {
	db *DB
}

// NewNodeRepo creates a new NodeRepo.
func NewNodeRepo(db *DB) *NodeRepo {
	return &NodeRepo{db: db}
}

// Create inserts a node.
func (r *NodeRepo) Create(ctx context.Context, n *domain.Node) error {
	var profileID *string
	if n.HardwareProfileID != "" {
		profileID = &n.HardwareProfileID
	}
	return r.db.Pool.QueryRow(ctx, `
		INSERT INTO nodes (id, project_id, name, location, antenna_height_m, role, max_range_km, hardware_profile_id)
		VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography, $6, $7, $8, $9)
		RETURNING created_at
	`, n.ID, n.ProjectID, n.Name, n.Location.Lon, n.Location.Lat,
		n.AntennaHeightM, int(n.Role), n.MaxRangeKm, profileID).
		Scan(&n.CreatedAt)
}

const nodeColumns = `
	n.id, n.project_id, n.name,
	ST_Y(n.location::geometry) as lat,
	ST_X(n.location::geometry) as lon,
	n.ground_elevation_m, n.antenna_height_m, n.role, n.max_range_km,
	COALESCE(n.hardware_profile_id::text, ''), n.created_at,
	h.id, h.name, h.tx_power_dbm, h.antenna_gain_dbi, h.cable_loss_db,
	h.rx_sensitivity_dbm, h.frequency_mhz, h.spreading_factor`

func scanNode(row pgx.Row) (*domain.Node, error) {
	var n domain.Node
	var role int
	var hwID, hwName *string
	var hwTx, hwGain, hwLoss, hwRx, hwFreq *float64
	var hwSF *int

	err := row.Scan(
		&n.ID, &n.ProjectID, &n.Name,
		&n.Location.Lat, &n.Location.Lon,
		&n.GroundElevationM, &n.AntennaHeightM, &role, &n.MaxRangeKm,
		&n.HardwareProfileID, &n.CreatedAt,
		&hwID, &hwName, &hwTx, &hwGain, &hwLoss, &hwRx, &hwFreq, &hwSF,
	)
	if err != nil {
		return nil, err
	}
	n.Role = domain.NodeRole(role)
	if hwID != nil {
		n.Hardware = &domain.HardwareProfile{
			ID:               *hwID,
			Name:             *hwName,
			TxPowerDBm:       *hwTx,
			AntennaGainDBi:   *hwGain,
			CableLossDB:      *hwLoss,
			RxSensitivityDBm: *hwRx,
			FrequencyMHz:     *hwFreq,
			SpreadingFactor:  *hwSF,
		}
	}
	return &n, nil
}

// GetByID returns a node with its hardware profile joined in.
func (r *NodeRepo) GetByID(ctx context.Context, id string) (*domain.Node, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes n
		LEFT JOIN hardware_profiles h ON h.id = n.hardware_profile_id
		WHERE n.id = $1
	`, id)
	n, err := scanNode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// ListByProject returns a project's nodes in creation order, which is the
// order computations iterate them in.
func (r *NodeRepo) ListByProject(ctx context.Context, projectID string) ([]domain.Node, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes n
		LEFT JOIN hardware_profiles h ON h.id = n.hardware_profile_id
		WHERE n.project_id = $1
		ORDER BY n.created_at
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []domain.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

// UpdateGroundElevation records the sampled grid elevation for a node.
func (r *NodeRepo) UpdateGroundElevation(ctx context.Context, id string, elevationM float64) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE nodes SET ground_elevation_m = $2 WHERE id = $1
	`, id, elevationM)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
