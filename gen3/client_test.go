package gen3

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spanpanel/spanpanel-go/errs"
	"github.com/spanpanel/spanpanel-go/internal/retry"
	"github.com/spanpanel/spanpanel-go/models"
)

func TestNewDefaultsDelayerToReal(t *testing.T) {
	c := New(Config{Host: "127.0.0.1", Port: defaultPort})
	_, ok := c.delayer.(retry.RealDelayer)
	assert.True(t, ok)
}

func TestNewHonorsProvidedDelayer(t *testing.T) {
	c := New(Config{Delayer: instantDelayer{}})
	_, ok := c.delayer.(instantDelayer)
	assert.True(t, ok)
}

func TestCapabilitiesIsPushStreamingOnly(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, models.CapabilitiesGen3Initial, c.Capabilities())
	assert.True(t, c.Capabilities().Has(models.CapPushStreaming))
	assert.False(t, c.Capabilities().Has(models.CapRelayControl))
}

func TestConnectedFalseBeforeConnect(t *testing.T) {
	c := New(Config{})
	assert.False(t, c.Connected())
}

func TestUnaryFailsWhenNotConnected(t *testing.T) {
	c := New(Config{})
	_, err := c.unary(context.Background(), methodGetInstances, nil)
	require.Error(t, err)
	assert.Equal(t, errs.Connection, errs.KindOf(err))
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestTestConnectionFailsAgainstUnreachableHost(t *testing.T) {
	c := New(Config{Host: "127.0.0.1", Port: freePort(t)})
	err := c.TestConnection(context.Background())
	require.Error(t, err)
}

func TestPingDelegatesToTestConnection(t *testing.T) {
	c := New(Config{Host: "127.0.0.1", Port: freePort(t)})
	err := c.Ping(context.Background())
	require.Error(t, err)
}

func TestSessionIDIsStableAndNonEmpty(t *testing.T) {
	c := New(Config{})
	id := c.SessionID()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, c.SessionID())

	other := New(Config{})
	assert.NotEqual(t, id, other.SessionID())
}

func TestCloseWithoutConnectIsSafe(t *testing.T) {
	c := New(Config{})
	require.NoError(t, c.Close())
	assert.False(t, c.Connected())
}
