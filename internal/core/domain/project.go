package domain

import "time"

// NodeRole classifies a mesh node's function in the network.
type NodeRole int

const (
	RoleGateway NodeRole = iota
	RoleRouter
	RoleClient
)

func (r NodeRole) String() string {
	switch r {
	case RoleGateway:
		return "gateway"
	case RoleRouter:
		return "router"
	case RoleClient:
		return "client"
	default:
		return "unknown"
	}
}

// Project groups a set of mesh nodes over one geographic area.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Bounds    Bounds    `json:"bounds"`
	CreatedAt time.Time `json:"created_at"`
}

// HardwareProfile describes a radio. Only TxPowerDBm and FrequencyMHz
// feed the signal model; the remaining fields are planning metadata.
type HardwareProfile struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	TxPowerDBm       float64 `json:"tx_power_dbm"`
	AntennaGainDBi   float64 `json:"antenna_gain_dbi"`
	CableLossDB      float64 `json:"cable_loss_db"`
	RxSensitivityDBm float64 `json:"rx_sensitivity_dbm"`
	FrequencyMHz     float64 `json:"frequency_mhz"`
	SpreadingFactor  int     `json:"spreading_factor"`
}

// Node is a planned mesh node placement.
type Node struct {
	ID                string           `json:"id"`
	ProjectID         string           `json:"project_id"`
	Name              string           `json:"name"`
	Location          GeoPoint         `json:"location"`
	GroundElevationM  float64          `json:"ground_elevation_m"` // filled from the grid during compute
	AntennaHeightM    float64          `json:"antenna_height_m"`
	Role              NodeRole         `json:"role"`
	MaxRangeKm        float64          `json:"max_range_km"`
	HardwareProfileID string           `json:"hardware_profile_id,omitempty"`
	Hardware          *HardwareProfile `json:"hardware,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}
