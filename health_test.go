package spanpanel

import (
	"testing"
	"time"

	"github.com/spanpanel/spanpanel-go/telemetry/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthReportsHealthyForReachableSimulationClient(t *testing.T) {
	c, err := NewClient(t.Context(), "unused", WithSimulation(simConfig()))
	require.NoError(t, err)

	eval := Health(c, time.Second)
	snap := eval.Evaluate(t.Context())
	assert.Equal(t, health.StatusHealthy, snap.Overall)
	require.Len(t, snap.Probes, 1)
	assert.Equal(t, "gen2", snap.Probes[0].Name)
}

func TestHealthZeroTTLFallsBackToPolicyDefault(t *testing.T) {
	c, err := NewClient(t.Context(), "unused", WithSimulation(simConfig()))
	require.NoError(t, err)

	eval := Health(c, 0)
	snap := eval.Evaluate(t.Context())
	assert.Equal(t, health.StatusHealthy, snap.Overall)
}
