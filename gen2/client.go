package gen2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/spanpanel/spanpanel-go/errs"
	"github.com/spanpanel/spanpanel-go/internal/behavior"
	"github.com/spanpanel/spanpanel-go/internal/cache"
	"github.com/spanpanel/spanpanel-go/internal/retry"
	"github.com/spanpanel/spanpanel-go/internal/simulation"
	"github.com/spanpanel/spanpanel-go/internal/telemetry/events"
	"github.com/spanpanel/spanpanel-go/internal/telemetry/metrics"
	"github.com/spanpanel/spanpanel-go/models"
)

// Config configures a Gen2 Client.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration
	CacheTTL time.Duration
	Retry   retry.Policy

	// InitialToken, if set, authenticates the client at construction.
	InitialToken string

	// Simulation, if non-nil, puts the client in simulation mode: every
	// operation routes to internal/simulation instead of the network
	// (spec §4.4).
	Simulation *models.SimulationConfig

	Metrics metrics.Provider

	// Events, if set, receives a CategoryCircuit event after every
	// successful SetCircuitRelay/SetCircuitPriority call.
	Events events.Bus
}

// Client is the Gen2 REST transport. A single *http.Client and connection
// pool is created once and never recreated, including across the
// auth-upgrade transition (spec §4.4's "auth-upgrade protocol").
type Client struct {
	baseURL string
	http    *http.Client
	retry   *retry.Driver
	cache   *cache.Cache

	token atomic.Pointer[models.AuthToken]
	// inScope marks an active async scope; per spec §4.4 a token change
	// outside any scope may reset the façade, but inside a scope it only
	// upgrades it. This client has no scope concept beyond "in use", so the
	// flag exists for parity with the source contract: it is never false
	// once the client is constructed, which is exactly what guarantees the
	// pool is never torn down.
	inScope atomic.Bool

	sim *simulation.Engine

	events events.Bus
}

// New constructs a Gen2 client. The HTTP transport is built once here and
// is never rebuilt by Authenticate/SetAccessToken.
func New(cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	policy := cfg.Retry
	if policy.Multiplier == 0 {
		policy.Multiplier = 2
	}

	var retryOpts []retry.Option
	if cfg.Metrics != nil {
		retryOpts = append(retryOpts, retry.WithMetrics(cfg.Metrics))
	}

	c := &Client{
		baseURL: fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		http:    &http.Client{Timeout: timeout},
		retry:   retry.New(policy, retryOpts...),
		events:  cfg.Events,
	}
	ca, ok := cache.New(cfg.CacheTTL)
	if !ok {
		return nil, errs.New(errs.Validation, "gen2: cache ttl must be non-negative")
	}
	c.cache = ca
	c.inScope.Store(true)

	if cfg.Simulation != nil {
		eng, err := simulation.NewEngine(*cfg.Simulation, cfg.CacheTTL, behavior.DefaultRNG())
		if err != nil {
			return nil, err
		}
		c.sim = eng
	}

	if cfg.InitialToken != "" {
		c.SetAccessToken(cfg.InitialToken)
	}
	return c, nil
}

// Simulating reports whether this client routes operations to the
// simulation engine instead of the network.
func (c *Client) Simulating() bool { return c.sim != nil }

// ReloadSimulationConfig swaps in a new simulation configuration, re-running
// the same validation simulation.NewEngine runs at construction (spec §4.7
// [FULL]). It errors if this client was not constructed with Simulation set.
func (c *Client) ReloadSimulationConfig(cfg models.SimulationConfig) error {
	if c.sim == nil {
		return errs.New(errs.Validation, "gen2: ReloadSimulationConfig called on a non-simulating client")
	}
	return c.sim.ReloadConfig(cfg)
}

// Authenticate registers a new client identity and stores the returned
// bearer token. It never recreates the underlying connection pool (spec
// §4.4).
func (c *Client) Authenticate(ctx context.Context, name, description string) (*models.AuthToken, error) {
	if c.sim != nil {
		tok := &models.AuthToken{Value: "simulated-token", Type: "Bearer", IssuedAtMs: nowMillis()}
		c.token.Store(tok)
		return tok, nil
	}

	body, _ := json.Marshal(map[string]string{"name": name, "description": description})
	var resp authRegisterResponse
	_, err := retry.Do(ctx, c.retry, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, c.doJSON(ctx, http.MethodPost, pathAuthRegister, body, &resp)
	})
	if err != nil {
		return nil, err
	}

	tok := &models.AuthToken{Value: resp.AccessToken, Type: resp.TokenType, IssuedAtMs: resp.IssuedAtMs}
	c.token.Store(tok)
	return tok, nil
}

// SetAccessToken installs a bearer token directly, without issuing a
// network call. Idempotent if unchanged (spec §4.4).
func (c *Client) SetAccessToken(token string) {
	cur := c.token.Load()
	if cur != nil && cur.Value == token {
		return
	}
	c.token.Store(&models.AuthToken{Value: token, Type: "Bearer", IssuedAtMs: nowMillis()})
	c.cache.InvalidateAll()
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// mustMarshal encodes v, which is always one of this package's own request
// types and never fails to marshal.
func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic("gen2: marshal request: " + err.Error())
	}
	return b
}

func (c *Client) authHeader() string {
	tok := c.token.Load()
	if tok == nil {
		return ""
	}
	return tok.String()
}

// doJSON issues a single HTTP request and decodes a JSON response body into
// out (if non-nil). Status-code classification follows spec §4.1/§7.
func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	url := c.baseURL + path
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errs.Wrap(errs.Connection, "gen2: build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h := c.authHeader(); h != "" {
		req.Header.Set("Authorization", h)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Wrap(errs.ClassifyTransport(err), "gen2: request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := errs.ClassifyStatus(resp.StatusCode)
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errs.WithStatus(kind, resp.StatusCode, "gen2: "+string(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(errs.Validation, "gen2: decode response body", err)
	}
	return nil
}

// Ping issues a single low-cost request used by C10's auto-detect probe.
func (c *Client) Ping(ctx context.Context) error {
	if c.sim != nil {
		_, err := c.sim.GetStatus()
		return err
	}
	var resp StatusInfo
	return c.doJSON(ctx, http.MethodGet, pathStatus, nil, &resp)
}
