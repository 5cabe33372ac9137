package simulation

import (
	"time"

	"github.com/spanpanel/spanpanel-go/models"
)

// BranchSample is one physical tab's instantaneous power reading, after
// tab-sync splitting and the global override multiplier have been applied.
type BranchSample struct {
	TabNumber  int
	PowerWatts float64
}

// CircuitSnapshot is the simulation engine's per-circuit view for one
// generation tick.
type CircuitSnapshot struct {
	ID           string
	Name         string
	TemplateName string
	Tabs         []int
	RelayState   models.RelayState
	Priority     models.Priority
	InstantPower float64
	ProducedWh   float64
	ConsumedWh   float64
	LastUpdate   time.Time

	// Synthetic marks a circuit synthesized for an unmapped tab: it
	// contributes to branch readings but never to the panel/real-circuit
	// aggregate invariants (spec §3.2).
	Synthetic bool
}

// Status is the hardware/network/system view returned by get_status().
type Status struct {
	SerialNumber string
	TotalTabs    int
	MainSize     int
	Simulated    bool
	Online       bool
}

// PanelData is the single coherent result of one generation pass: panel
// state, circuits, status and SOE all derive from it (spec §4.7.4).
type PanelData struct {
	GeneratedAt  time.Time
	Status       Status
	GridPower    float64
	MainProduced float64
	MainConsumed float64
	StorageSOE   float64
	Circuits     map[string]CircuitSnapshot
	Branches     []BranchSample
}

// RelayChangeResult is the synthetic result returned by SetCircuitRelay
// (spec §4.7.6).
type RelayChangeResult struct {
	Status     string
	CircuitID  string
	RelayState models.RelayState
}
