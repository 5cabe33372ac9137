package gen2

import (
	"context"

	"github.com/spanpanel/spanpanel-go/models"
)

// Capabilities reports this transport's feature flags (spec §4.9): Gen2
// supports everything except push-streaming.
func (c *Client) Capabilities() models.Capabilities { return models.CapabilitiesGen2Full }

// Close releases resources held by the client. The underlying *http.Client
// is long-lived and does not require explicit teardown; Close exists so
// Client satisfies the unified root Client interface alongside Gen3, which
// does own a connection to tear down (spec §4.9/§4.10).
func (c *Client) Close() error { return nil }

// GetSnapshot returns a transport-neutral view of panel state, assembled
// from the panel state, circuits and (when available) storage SOE reads
// (spec §4.9). It issues the same RPCs/cache lookups GetPanelState and
// GetCircuits would.
func (c *Client) GetSnapshot(ctx context.Context) (models.Snapshot, error) {
	panelState, err := c.GetPanelState(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}
	circuits, err := c.GetCircuits(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}
	status, err := c.GetStatus(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}

	snapshot := models.Snapshot{
		Generation:      models.GenerationGen2,
		SerialNumber:    status.SerialNumber,
		FirmwareVersion: status.Firmware,
		Circuits:        make(map[string]models.CircuitSnapshot, len(circuits)),
		GridPowerW:      floatPtr(panelState.GridPower),
	}
	relay := panelState.MainRelayState
	snapshot.MainRelayState = &relay

	if panelState.DSMGridState != "" || panelState.DSMState != "" {
		snapshot.DSM = &models.DSMState{
			GridState:       panelState.DSMGridState,
			ContactorClosed: panelState.DSMState == dsmOnGrid,
		}
	}

	for id, ci := range circuits {
		relayState := ci.RelayState
		priority := ci.Priority
		produced := ci.ProducedWh
		consumed := ci.ConsumedWh
		cs := models.CircuitSnapshot{
			CircuitID:        id,
			Name:             ci.Name,
			PowerW:           ci.InstantPower,
			IsOn:             ci.RelayState == models.RelayClosed,
			RelayState:       &relayState,
			Priority:         &priority,
			Tabs:             ci.Tabs,
			EnergyProducedWh: &produced,
			EnergyConsumedWh: &consumed,
		}
		snapshot.Circuits[id] = cs
		snapshot.MainPowerW += ci.InstantPower
	}

	if soe, err := c.GetStorageSOE(ctx); err == nil {
		snapshot.BatterySOE = floatPtr(soe)
	}

	return snapshot, nil
}

func floatPtr(v float64) *float64 { return &v }
