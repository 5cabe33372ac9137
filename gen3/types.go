package gen3

// circuitInfo is static information about a circuit discovered via
// GetInstances (spec §4.8.2).
type circuitInfo struct {
	circuitID      int
	name           string
	metricIID      int
	nameIID        int
	isDualPhase    bool
	breakerPosition int
}

// circuitMetrics is the latest decoded power reading for one circuit or the
// main feed (spec §4.8.4).
type circuitMetrics struct {
	powerW           float64
	voltageV         float64
	currentA         float64
	apparentPowerVA  float64
	reactivePowerVar float64
	frequencyHz      float64
	powerFactor      float64
	isOn             bool

	voltageAV float64
	voltageBV float64
	currentAA float64
	currentBA float64
}

// panelData aggregates discovery and streaming state (spec §4.8.2/§4.8.4).
type panelData struct {
	serial         string
	firmware       string
	panelResourceID string
	circuits       map[int]circuitInfo
	metrics        map[int]circuitMetrics
	mainFeed       circuitMetrics
}

func newPanelData() panelData {
	return panelData{circuits: make(map[int]circuitInfo), metrics: make(map[int]circuitMetrics)}
}
