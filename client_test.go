package spanpanel

import (
	"context"
	"testing"
	"time"

	"github.com/spanpanel/spanpanel-go/gen3"
	"github.com/spanpanel/spanpanel-go/internal/retry"
	"github.com/spanpanel/spanpanel-go/internal/telemetry/events"
	"github.com/spanpanel/spanpanel-go/internal/telemetry/metrics"
	"github.com/spanpanel/spanpanel-go/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simConfig() models.SimulationConfig {
	return models.SimulationConfig{
		Panel: models.PanelSpec{SerialNumber: "SN-1", TotalTabs: 2, MainSize: 200},
		CircuitTemplates: map[string]models.CircuitTemplate{
			"fridge": {
				Name:            "fridge",
				EnergyProfile:   models.EnergyProfile{Mode: models.ModeConsumer, PowerRangeMin: 50, PowerRangeMax: 300, TypicalPower: 150, PowerVariation: 0},
				DefaultPriority: models.PriorityNiceToHave,
			},
		},
		Circuits: []models.CircuitDecl{
			{ID: "c1", Name: "Fridge", TemplateName: "fridge", Tabs: []int{1}},
		},
	}
}

func TestNewClientSimulationReturnsGen2(t *testing.T) {
	c, err := NewClient(t.Context(), "unused", WithSimulation(simConfig()))
	require.NoError(t, err)
	assert.Equal(t, models.CapabilitiesGen2Full, c.Capabilities())

	_, ok := c.(AuthCapable)
	assert.True(t, ok, "simulated Gen2 client should satisfy AuthCapable")
	_, ok = c.(CircuitControlCapable)
	assert.True(t, ok, "simulated Gen2 client should satisfy CircuitControlCapable")
	_, ok = c.(EnergyCapable)
	assert.True(t, ok, "simulated Gen2 client should satisfy EnergyCapable")
	_, ok = c.(StreamingCapable)
	assert.False(t, ok, "Gen2 client must not satisfy StreamingCapable")
}

func TestNewClientSimulationGetSnapshot(t *testing.T) {
	c, err := NewClient(t.Context(), "unused", WithSimulation(simConfig()))
	require.NoError(t, err)
	snap, err := c.GetSnapshot(t.Context())
	require.NoError(t, err)
	assert.Equal(t, models.GenerationGen2, snap.Generation)
	assert.Contains(t, snap.Circuits, "c1")
}

func TestNewClientExplicitGen3RequiresReachableHost(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	_, err := NewClient(ctx, "127.0.0.1", WithGeneration(Gen3), WithPort(1))
	assert.Error(t, err)
}

func TestNewClientAutoDetectReportsBothEndpointsWhenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	_, err := NewClient(ctx, "127.0.0.1", WithPort(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Gen2")
	assert.Contains(t, err.Error(), "Gen3")
}

func TestGen3AdapterSatisfiesClientAndStreamingCapable(t *testing.T) {
	adapter := &gen3Adapter{Client: gen3.New(gen3.Config{Host: "127.0.0.1", Port: 1, Delayer: retry.RealDelayer{}})}
	var c Client = adapter
	var sc StreamingCapable = adapter

	assert.Equal(t, models.CapabilitiesGen3Initial, c.Capabilities())

	unregister := sc.RegisterCallback(func() {})
	require.NotNil(t, unregister)
	unregister()

	snap, err := c.GetSnapshot(t.Context())
	require.NoError(t, err)
	assert.Equal(t, models.GenerationGen3, snap.Generation)
}

func TestNewClientWithEventBusPublishesCircuitEvents(t *testing.T) {
	bus := events.NewBus(metrics.NewNoopProvider())
	sub, err := bus.Subscribe(4)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	c, err := NewClient(t.Context(), "unused", WithSimulation(simConfig()), WithEventBus(bus))
	require.NoError(t, err)

	cc := c.(CircuitControlCapable)
	_, err = cc.SetCircuitRelay(t.Context(), "c1", "open")
	require.NoError(t, err)

	select {
	case ev := <-sub.C():
		assert.Equal(t, events.CategoryCircuit, ev.Category)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for circuit event via WithEventBus")
	}
}

func TestProbeFailsFastOnUnreachableHost(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	c, err := newGen2Client("127.0.0.1", options{port: 1, retryPolicy: retry.Policy{MaxAttempts: 0, Multiplier: 2}})
	require.NoError(t, err)
	defer c.Close()
	assert.Error(t, probe(ctx, c))
}
