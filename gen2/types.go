package gen2

import "github.com/spanpanel/spanpanel-go/models"

// authRegisterResponse is the body of POST /api/v1/auth/register.
type authRegisterResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	IssuedAtMs  int64  `json:"iat_ms"`
}

// StatusInfo is the decoded body of GET /api/v1/status.
type StatusInfo struct {
	SerialNumber string `json:"serial_number"`
	Firmware     string `json:"firmware_version"`
	Online       bool   `json:"online"`
}

// BranchInfo is one physical tab reading from GET /api/v1/panel.
type BranchInfo struct {
	TabNumber  int     `json:"id"`
	PowerWatts float64 `json:"instantPowerW"`
}

// PanelState is the decoded body of GET /api/v1/panel.
type PanelState struct {
	MainRelayState models.RelayState `json:"mainRelayState"`
	GridPower      float64           `json:"instantGridPowerW"`
	Branches       []BranchInfo      `json:"branches"`

	// DSM (demand-side management) fields, per
	// original_source/const.py DSM_GRID_UP/DSM_GRID_DOWN and
	// PANEL_ON_GRID/PANEL_OFF_GRID. Optional: empty when the panel does not
	// report a DSM state.
	DSMGridState string `json:"dsmGridState,omitempty"`
	DSMState     string `json:"dsmState,omitempty"`
}

const dsmOnGrid = "PANEL_ON_GRID"

// CircuitInfo is one entry in the decoded body of GET /api/v1/circuits,
// including synthetic entries for unmapped tabs (spec §4.4).
type CircuitInfo struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Tabs         []int             `json:"tabs"`
	RelayState   models.RelayState `json:"relayState"`
	Priority     models.Priority   `json:"priority"`
	InstantPower float64           `json:"instantPowerW"`
	ProducedWh   float64           `json:"producedEnergyWh"`
	ConsumedWh   float64           `json:"consumedEnergyWh"`
	Synthetic    bool              `json:"-"`
}

// circuitsResponse is the raw wire shape before unmapped-tab synthesis.
type circuitsResponse struct {
	Circuits map[string]CircuitInfo `json:"circuits"`
}

// storageSOEResponse is the decoded body of GET /api/v1/storage/soe.
type storageSOEResponse struct {
	SOEPercent float64 `json:"soe_percent"`
}

// circuitUpdateRequest is the body of POST /api/v1/circuits/{id}.
type circuitUpdateRequest struct {
	RelayStateIn *string `json:"relayStateIn,omitempty"`
	PriorityIn   *string `json:"priorityIn,omitempty"`
}

// CircuitUpdateResult is the decoded body of a successful circuit update.
type CircuitUpdateResult struct {
	Status     string            `json:"status"`
	CircuitID  string            `json:"id"`
	RelayState models.RelayState `json:"relayState,omitempty"`
	Priority   models.Priority   `json:"priority,omitempty"`
}
