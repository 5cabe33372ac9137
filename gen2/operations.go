package gen2

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spanpanel/spanpanel-go/errs"
	"github.com/spanpanel/spanpanel-go/internal/retry"
	"github.com/spanpanel/spanpanel-go/internal/simulation"
	"github.com/spanpanel/spanpanel-go/internal/telemetry/events"
	"github.com/spanpanel/spanpanel-go/models"
)

// GetStatus returns hardware/network/system state. No authentication
// required; cacheable.
func (c *Client) GetStatus(ctx context.Context) (StatusInfo, error) {
	if c.sim != nil {
		st, err := c.sim.GetStatus()
		if err != nil {
			return StatusInfo{}, err
		}
		return StatusInfo{SerialNumber: st.SerialNumber, Firmware: "simulated", Online: st.Online}, nil
	}

	if v, ok := c.cache.Get(cacheKeyStatus); ok {
		return v.(StatusInfo), nil
	}
	result, err := retry.Do(ctx, c.retry, func(ctx context.Context, attempt int) (StatusInfo, error) {
		var resp StatusInfo
		err := c.doJSON(ctx, http.MethodGet, pathStatus, nil, &resp)
		return resp, err
	})
	if err != nil {
		return StatusInfo{}, err
	}
	c.cache.Set(cacheKeyStatus, result)
	return result, nil
}

// GetPanelState returns main relay, grid power and per-branch samples.
// Requires authentication; cacheable.
func (c *Client) GetPanelState(ctx context.Context) (PanelState, error) {
	if c.sim != nil {
		data, err := c.sim.GetPanelState()
		if err != nil {
			return PanelState{}, err
		}
		return panelStateFromSim(data), nil
	}

	if v, ok := c.cache.Get(cacheKeyPanel); ok {
		return v.(PanelState), nil
	}
	result, err := retry.Do(ctx, c.retry, func(ctx context.Context, attempt int) (PanelState, error) {
		var resp PanelState
		err := c.doJSON(ctx, http.MethodGet, pathPanel, nil, &resp)
		return resp, err
	})
	if err != nil {
		return PanelState{}, err
	}
	c.cache.Set(cacheKeyPanel, result)
	return result, nil
}

func panelStateFromSim(data *simulation.PanelData) PanelState {
	branches := make([]BranchInfo, 0, len(data.Branches))
	for _, b := range data.Branches {
		branches = append(branches, BranchInfo{TabNumber: b.TabNumber, PowerWatts: b.PowerWatts})
	}
	return PanelState{
		MainRelayState: models.RelayClosed,
		GridPower:      data.GridPower,
		Branches:       branches,
	}
}

// GetCircuits returns the circuit map, augmented with synthetic circuits
// for unmapped tabs (spec §4.4). Requires authentication; cacheable.
func (c *Client) GetCircuits(ctx context.Context) (map[string]CircuitInfo, error) {
	if c.sim != nil {
		snaps, err := c.sim.GetCircuits()
		if err != nil {
			return nil, err
		}
		out := make(map[string]CircuitInfo, len(snaps))
		for id, cs := range snaps {
			out[id] = CircuitInfo{
				ID: cs.ID, Name: cs.Name, Tabs: cs.Tabs,
				RelayState: cs.RelayState, Priority: cs.Priority,
				InstantPower: cs.InstantPower, ProducedWh: cs.ProducedWh,
				ConsumedWh: cs.ConsumedWh, Synthetic: cs.Synthetic,
			}
		}
		return out, nil
	}

	if v, ok := c.cache.Get(cacheKeyCircuits); ok {
		return v.(map[string]CircuitInfo), nil
	}

	result, err := retry.Do(ctx, c.retry, func(ctx context.Context, attempt int) (map[string]CircuitInfo, error) {
		var resp circuitsResponse
		if err := c.doJSON(ctx, http.MethodGet, pathCircuits, nil, &resp); err != nil {
			return nil, err
		}
		panel, err := c.GetPanelState(ctx)
		if err != nil {
			return nil, err
		}
		return synthesizeUnmappedTabs(resp.Circuits, panel), nil
	})
	if err != nil {
		return nil, err
	}
	c.cache.Set(cacheKeyCircuits, result)
	return result, nil
}

// synthesizeUnmappedTabs emits a synthetic circuit for every branch whose
// tab is not referenced by any real circuit (spec §4.4).
func synthesizeUnmappedTabs(real map[string]CircuitInfo, panel PanelState) map[string]CircuitInfo {
	referenced := make(map[int]bool)
	for _, ci := range real {
		for _, t := range ci.Tabs {
			referenced[t] = true
		}
	}
	out := make(map[string]CircuitInfo, len(real))
	for id, ci := range real {
		out[id] = ci
	}
	for _, b := range panel.Branches {
		if referenced[b.TabNumber] {
			continue
		}
		id := fmt.Sprintf("%s%d", unmappedIDPrefix, b.TabNumber)
		out[id] = CircuitInfo{
			ID:           id,
			Name:         fmt.Sprintf("%s%d", unmappedNamePrefix, b.TabNumber),
			Tabs:         []int{b.TabNumber},
			RelayState:   models.RelayUnknown,
			Priority:     models.PriorityNonEssential,
			InstantPower: b.PowerWatts,
			Synthetic:    true,
		}
	}
	return out
}

// GetStorageSOE returns the battery state-of-energy percentage. Requires
// authentication; cacheable.
func (c *Client) GetStorageSOE(ctx context.Context) (float64, error) {
	if c.sim != nil {
		return c.sim.GetStorageSOE()
	}

	if v, ok := c.cache.Get(cacheKeyStorage); ok {
		return v.(float64), nil
	}
	result, err := retry.Do(ctx, c.retry, func(ctx context.Context, attempt int) (float64, error) {
		var resp storageSOEResponse
		err := c.doJSON(ctx, http.MethodGet, pathStorageSOE, nil, &resp)
		return resp.SOEPercent, err
	})
	if err != nil {
		return 0, err
	}
	c.cache.Set(cacheKeyStorage, result)
	return result, nil
}

// SetCircuitRelay validates the enum value locally first, then sets the
// circuit's relay state. Invalidates circuits/panel cache keys.
func (c *Client) SetCircuitRelay(ctx context.Context, circuitID string, state string) (CircuitUpdateResult, error) {
	parsed, err := models.ParseRelayState(state)
	if err != nil {
		return CircuitUpdateResult{}, errs.Wrap(errs.Validation, "gen2: set_circuit_relay", err)
	}

	if c.sim != nil {
		res, err := c.sim.SetCircuitRelay(circuitID, string(parsed))
		if err != nil {
			return CircuitUpdateResult{}, err
		}
		c.publishCircuitEvent(ctx, circuitID, "relay_state", string(parsed))
		return CircuitUpdateResult{Status: res.Status, CircuitID: res.CircuitID, RelayState: res.RelayState}, nil
	}

	s := string(parsed)
	body := mustMarshal(circuitUpdateRequest{RelayStateIn: &s})
	result, err := retry.Do(ctx, c.retry, func(ctx context.Context, attempt int) (CircuitUpdateResult, error) {
		var resp CircuitUpdateResult
		err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf(pathCircuitFmt, circuitID), body, &resp)
		return resp, err
	})
	if err != nil {
		return CircuitUpdateResult{}, err
	}
	c.invalidateCircuitViews()
	c.publishCircuitEvent(ctx, circuitID, "relay_state", s)
	return result, nil
}

// SetCircuitPriority validates the enum value locally first, then sets the
// circuit's priority. Invalidates circuits/panel cache keys.
func (c *Client) SetCircuitPriority(ctx context.Context, circuitID string, priority string) (CircuitUpdateResult, error) {
	parsed, err := models.ParsePriority(priority)
	if err != nil {
		return CircuitUpdateResult{}, errs.Wrap(errs.Validation, "gen2: set_circuit_priority", err)
	}

	if c.sim != nil {
		if err := c.sim.SetCircuitPriority(circuitID, string(parsed)); err != nil {
			return CircuitUpdateResult{}, err
		}
		c.publishCircuitEvent(ctx, circuitID, "priority", string(parsed))
		return CircuitUpdateResult{Status: "success", CircuitID: circuitID, Priority: parsed}, nil
	}

	p := string(parsed)
	body := mustMarshal(circuitUpdateRequest{PriorityIn: &p})
	result, err := retry.Do(ctx, c.retry, func(ctx context.Context, attempt int) (CircuitUpdateResult, error) {
		var resp CircuitUpdateResult
		err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf(pathCircuitFmt, circuitID), body, &resp)
		return resp, err
	})
	if err != nil {
		return CircuitUpdateResult{}, err
	}
	c.invalidateCircuitViews()
	c.publishCircuitEvent(ctx, circuitID, "priority", p)
	return result, nil
}

// publishCircuitEvent is a no-op when no events.Bus is configured.
func (c *Client) publishCircuitEvent(ctx context.Context, circuitID, field, value string) {
	if c.events == nil {
		return
	}
	_ = c.events.PublishCtx(ctx, events.Event{
		Category: events.CategoryCircuit,
		Type:     "circuit_updated",
		Labels:   map[string]string{"circuit_id": circuitID, "field": field},
		Fields:   map[string]interface{}{"value": value},
	})
}

func (c *Client) invalidateCircuitViews() {
	c.cache.Invalidate(cacheKeyCircuits)
	c.cache.Invalidate(cacheKeyPanel)
}
