package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/meshsight/meshsight/internal/core/domain"
)

// HardwareRepo implements ports.HardwareProfileRepository with pgx.
type HardwareRepo struct {
	db *DB
}

// NewHardwareRepo creates a new HardwareRepo.
func NewHardwareRepo(db *DB) *HardwareRepo {
	return &HardwareRepo{db: db}
}

// Upsert inserts or updates a hardware profile.
func (r *HardwareRepo) Upsert(ctx context.Context, p *domain.HardwareProfile) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO hardware_profiles (id, name, tx_power_dbm, antenna_gain_dbi, cable_loss_db, rx_sensitivity_dbm, frequency_mhz, spreading_factor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, tx_power_dbm = EXCLUDED.tx_power_dbm,
		    antenna_gain_dbi = EXCLUDED.antenna_gain_dbi,
		    cable_loss_db = EXCLUDED.cable_loss_db,
		    rx_sensitivity_dbm = EXCLUDED.rx_sensitivity_dbm,
		    frequency_mhz = EXCLUDED.frequency_mhz,
		    spreading_factor = EXCLUDED.spreading_factor
	`, p.ID, p.Name, p.TxPowerDBm, p.AntennaGainDBi, p.CableLossDB,
		p.RxSensitivityDBm, p.FrequencyMHz, p.SpreadingFactor)

	// Profile names are unique; a violation means another profile already
	// holds this name.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("profile name %q: %w", p.Name, domain.ErrConflict)
	}
	return err
}

// GetByID returns a hardware profile by UUID.
func (r *HardwareRepo) GetByID(ctx context.Context, id string) (*domain.HardwareProfile, error) {
	var p domain.HardwareProfile
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, tx_power_dbm, antenna_gain_dbi, cable_loss_db, rx_sensitivity_dbm, frequency_mhz, spreading_factor
		FROM hardware_profiles WHERE id = $1
	`, id).Scan(
		&p.ID, &p.Name, &p.TxPowerDBm, &p.AntennaGainDBi, &p.CableLossDB,
		&p.RxSensitivityDBm, &p.FrequencyMHz, &p.SpreadingFactor,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
