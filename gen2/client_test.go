package gen2

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/spanpanel/spanpanel-go/errs"
	"github.com/spanpanel/spanpanel-go/internal/retry"
	"github.com/spanpanel/spanpanel-go/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, Multiplier: 2}
}

func simConfig() models.SimulationConfig {
	return models.SimulationConfig{
		Panel: models.PanelSpec{SerialNumber: "SN-1", TotalTabs: 4, MainSize: 200},
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

func newSimClient(t *testing.T) *Client {
	t.Helper()
	cfg := simConfig()
	c, err := New(Config{Host: "unused", Port: 0, Retry: testPolicy(), Simulation: &cfg})
	require.NoError(t, err)
	return c
}

func TestNewRejectsNegativeCacheTTL(t *testing.T) {
	_, err := New(Config{Host: "h", Port: 1, CacheTTL: -time.Second, Retry: testPolicy()})
	assert.Error(t, err)
}

func TestGetPanelStateSimulationCoversAllTabs(t *testing.T) {
	c := newSimClient(t)
	ps, err := c.GetPanelState(t.Context())
	require.NoError(t, err)
	// simConfig declares a 4-tab panel with only tab 1 assigned to a
	// circuit; the other three are synthesized as unmapped branches.
	assert.Len(t, ps.Branches, 4)
}

func TestSimulatingReportsMode(t *testing.T) {
	c := newSimClient(t)
	assert.True(t, c.Simulating())

	real, err := New(Config{Host: "h", Port: 1, Retry: testPolicy()})
	require.NoError(t, err)
	assert.False(t, real.Simulating())
}

func TestReloadSimulationConfigRejectedOnNonSimulatingClient(t *testing.T) {
	real, err := New(Config{Host: "h", Port: 1, Retry: testPolicy()})
	require.NoError(t, err)
	assert.Error(t, real.ReloadSimulationConfig(simConfig()))
}

func TestReloadSimulationConfigSwapsCircuits(t *testing.T) {
	c := newSimClient(t)
	next := simConfig()
	next.Circuits = []models.CircuitDecl{
		{ID: "c2", Name: "Freezer", TemplateName: "fridge", Tabs: []int{1}},
	}
	require.NoError(t, c.ReloadSimulationConfig(next))

	circuits, err := c.GetCircuits(t.Context())
	require.NoError(t, err)
	assert.Contains(t, circuits, "c2")
	assert.NotContains(t, circuits, "c1")
}

func TestAuthenticateSimulationShortcut(t *testing.T) {
	c := newSimClient(t)
	tok, err := c.Authenticate(t.Context(), "name", "desc")
	require.NoError(t, err)
	assert.Equal(t, "simulated-token", tok.Value)
}

func TestSetAccessTokenIdempotentWhenUnchanged(t *testing.T) {
	c := newSimClient(t)
	c.SetAccessToken("abc")
	first := c.token.Load()
	c.SetAccessToken("abc")
	second := c.token.Load()
	assert.Same(t, first, second)

	c.SetAccessToken("def")
	third := c.token.Load()
	assert.NotSame(t, first, third)
	assert.Equal(t, "def", third.Value)
}

func TestSetAccessTokenNeverRecreatesHTTPClient(t *testing.T) {
	c := newSimClient(t)
	before := c.http
	c.SetAccessToken("tok1")
	c.SetAccessToken("tok2")
	assert.Same(t, before, c.http)
}

func TestPingRealHTTPSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathStatus, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(StatusInfo{SerialNumber: "SN-1", Online: true})
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	c, err := New(Config{Host: host, Port: port, Retry: testPolicy()})
	require.NoError(t, err)
	require.NoError(t, c.Ping(t.Context()))
}

func TestDoJSONClassifiesNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("unauthorized"))
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	c, err := New(Config{Host: host, Port: port, Retry: testPolicy()})
	require.NoError(t, err)

	err = c.Ping(t.Context())
	require.Error(t, err)
	assert.Equal(t, errs.Auth, errs.KindOf(err))
}

func TestDoJSONSendsAuthorizationHeaderWhenTokenSet(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(StatusInfo{})
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	c, err := New(Config{Host: host, Port: port, Retry: testPolicy(), InitialToken: "tok"})
	require.NoError(t, err)
	_, err = c.GetStatus(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
}

// splitHostPort pulls host/port out of an httptest server URL for Config.
func splitHostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return u.Hostname(), port
}
