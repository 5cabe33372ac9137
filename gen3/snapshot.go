package gen3

import (
	"strconv"

	"github.com/spanpanel/spanpanel-go/models"
)

// GetSnapshot returns the current streaming data as a unified,
// transport-agnostic snapshot. Cheap; issues no RPC (spec §4.8.6).
func (c *Client) GetSnapshot() models.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	circuits := make(map[string]models.CircuitSnapshot, len(c.data.circuits))
	for cid, info := range c.data.circuits {
		m := c.data.metrics[cid]
		id := strconv.Itoa(cid)
		snap := models.CircuitSnapshot{
			CircuitID:   id,
			Name:        info.name,
			PowerW:      m.powerW,
			VoltageV:    m.voltageV,
			CurrentA:    m.currentA,
			IsOn:        m.isOn,
			IsDualPhase: info.isDualPhase,
		}
		if m.apparentPowerVA != 0 {
			v := m.apparentPowerVA
			snap.ApparentPowerVA = &v
		}
		if m.reactivePowerVar != 0 {
			v := m.reactivePowerVar
			snap.ReactivePowerVar = &v
		}
		if m.frequencyHz != 0 {
			v := m.frequencyHz
			snap.FrequencyHz = &v
		}
		if m.powerFactor != 0 {
			v := m.powerFactor
			snap.PowerFactor = &v
		}
		circuits[id] = snap
	}

	snapshot := models.Snapshot{
		Generation:      models.GenerationGen3,
		SerialNumber:    c.data.serial,
		FirmwareVersion: c.data.firmware,
		Circuits:        circuits,
		MainPowerW:      c.data.mainFeed.powerW,
	}
	if c.data.mainFeed.voltageV != 0 {
		v := c.data.mainFeed.voltageV
		snapshot.MainVoltageV = &v
	}
	if c.data.mainFeed.currentA != 0 {
		v := c.data.mainFeed.currentA
		snapshot.MainCurrentA = &v
	}
	if c.data.mainFeed.frequencyHz != 0 {
		v := c.data.mainFeed.frequencyHz
		snapshot.MainFrequency = &v
	}
	return snapshot
}
