package models

import "strings"

// PanelGeneration identifies which hardware generation a client connects to
// (spec §4.9).
type PanelGeneration string

const (
	GenerationGen2 PanelGeneration = "gen2"
	GenerationGen3 PanelGeneration = "gen3"
)

// Capabilities is a bitmask of features a transport implementation
// supports, read by applications at setup time to decide which feature
// surfaces to expose (spec §4.9).
type Capabilities uint32

const (
	CapRelayControl Capabilities = 1 << iota
	CapPriorityControl
	CapEnergyHistory
	CapBattery
	CapAuthentication
	CapSolar
	CapDSMState
	CapHardwareStatus
	CapPushStreaming
)

// CapabilitiesGen2Full is every flag a Gen2 transport supports.
const CapabilitiesGen2Full = CapRelayControl | CapPriorityControl | CapEnergyHistory |
	CapBattery | CapAuthentication | CapSolar | CapDSMState | CapHardwareStatus

// CapabilitiesGen3Initial is what the current Gen3 transport supports.
const CapabilitiesGen3Initial = CapPushStreaming

var capabilityNames = []struct {
	flag Capabilities
	name string
}{
	{CapRelayControl, "RELAY_CONTROL"},
	{CapPriorityControl, "PRIORITY_CONTROL"},
	{CapEnergyHistory, "ENERGY_HISTORY"},
	{CapBattery, "BATTERY"},
	{CapAuthentication, "AUTHENTICATION"},
	{CapSolar, "SOLAR"},
	{CapDSMState, "DSM_STATE"},
	{CapHardwareStatus, "HARDWARE_STATUS"},
	{CapPushStreaming, "PUSH_STREAMING"},
}

// Has reports whether flag is set in c.
func (c Capabilities) Has(flag Capabilities) bool { return c&flag != 0 }

// String lists the set flag names, for logging.
func (c Capabilities) String() string {
	if c == 0 {
		return "NONE"
	}
	var names []string
	for _, cn := range capabilityNames {
		if c.Has(cn.flag) {
			names = append(names, cn.name)
		}
	}
	return strings.Join(names, "|")
}

// DSMState carries demand-side-management state: the panel's coordination
// state with the grid. Gen2-only; populated from the panel status
// response's demand-side fields (spec §3/§4.9).
type DSMState struct {
	GridState       string
	ContactorClosed bool
}

// CircuitSnapshot is a transport-agnostic view of a single circuit's state
// and metrics (spec §4.9). Fields only one transport reports are pointers,
// nil when absent.
type CircuitSnapshot struct {
	CircuitID string
	Name      string
	PowerW    float64
	VoltageV  float64
	CurrentA  float64
	IsOn      bool

	// Gen2-only.
	RelayState       *RelayState
	Priority         *Priority
	Tabs             []int
	EnergyProducedWh *float64
	EnergyConsumedWh *float64

	// Gen3-only.
	ApparentPowerVA  *float64
	ReactivePowerVar *float64
	FrequencyHz      *float64
	PowerFactor      *float64
	IsDualPhase      bool
}

// Snapshot is the transport-agnostic panel snapshot returned by every
// transport's get_snapshot()/GetSnapshot() (spec §4.9).
type Snapshot struct {
	Generation      PanelGeneration
	SerialNumber    string
	FirmwareVersion string
	Circuits        map[string]CircuitSnapshot
	MainPowerW      float64

	// Gen2-only.
	MainRelayState *RelayState
	GridPowerW     *float64
	BatterySOE     *float64
	DSM            *DSMState

	// Gen3-only.
	MainVoltageV   *float64
	MainCurrentA   *float64
	MainFrequency  *float64
}
