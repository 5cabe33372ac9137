package gen3

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/spanpanel/spanpanel-go/errs"
	"github.com/spanpanel/spanpanel-go/internal/retry"
	"github.com/spanpanel/spanpanel-go/internal/telemetry/events"
	"github.com/spanpanel/spanpanel-go/internal/telemetry/metrics"
	"github.com/spanpanel/spanpanel-go/models"
)

// Config configures a Gen3 Client.
type Config struct {
	Host string
	Port int

	// Delayer overrides the reconnect wait; tests substitute a fake clock.
	Delayer retry.Delayer

	Metrics metrics.Provider

	// Events, if set, receives a CategoryConnection event on Connect/Close
	// transitions and a CategoryStream event after every decoded streaming
	// notification.
	Events events.Bus
}

// Callback is invoked once after every successfully decoded streaming
// notification (spec §4.8.5).
type Callback func()

// Client is the Gen3 streaming transport: a single grpc.ClientConn,
// discovered circuit topology, the latest streamed metrics, and a
// registered-callback fan-out list.
type Client struct {
	host string
	port int

	// sessionID identifies one Client instance across reconnects, so log
	// lines and wrapped errors from a dropped-and-resumed stream can be
	// correlated back to the same logical subscription.
	sessionID string

	conn    *grpc.ClientConn
	delayer retry.Delayer

	mu                 sync.RWMutex
	data               panelData
	metricIIDToCircuit map[int]int

	connected atomic.Bool

	streamMu     sync.Mutex
	streamCancel context.CancelFunc
	streamDone   chan struct{}

	callbacksMu sync.RWMutex
	callbacks   []registeredCallback
	callbackSeq int

	reconnects metrics.Counter
	events     events.Bus
}

var errConnNotOpen = errs.New(errs.Connection, "gen3: channel is not open")

// New constructs a disconnected Gen3 client. Call Connect to dial and run
// discovery.
func New(cfg Config) *Client {
	delayer := cfg.Delayer
	if delayer == nil {
		delayer = retry.RealDelayer{}
	}
	var reconnects metrics.Counter
	if cfg.Metrics != nil {
		reconnects = cfg.Metrics.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "spanpanel",
			Subsystem: "gen3",
			Name:      "stream_reconnects_total",
			Help:      "Gen3 streaming Subscribe reconnect attempts after a dropped stream",
		}})
	}
	return &Client{
		host:       cfg.Host,
		port:       cfg.Port,
		sessionID:  uuid.NewString(),
		delayer:    delayer,
		data:       newPanelData(),
		reconnects: reconnects,
		events:     cfg.Events,
	}
}

// publishEvent is a no-op when no events.Bus is configured.
func (c *Client) publishEvent(ev events.Event) {
	if c.events == nil {
		return
	}
	if ev.Labels == nil {
		ev.Labels = map[string]string{}
	}
	ev.Labels["session_id"] = c.sessionID
	_ = c.events.Publish(ev)
}

// SessionID identifies this Client instance for log correlation; it is
// stable for the Client's lifetime and does not change across reconnects.
func (c *Client) SessionID() string { return c.sessionID }

// Capabilities reports this transport's feature flags (spec §4.9): Gen3
// initial support is push-streaming only.
func (c *Client) Capabilities() models.Capabilities { return models.CapabilitiesGen3Initial }

// Connect dials the panel and performs discovery (spec §4.8.2).
func (c *Client) Connect(ctx context.Context) error {
	conn, err := grpc.NewClient(
		fmt.Sprintf("%s:%d", c.host, c.port),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                keepaliveTime,
			Timeout:             keepaliveTimeout,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		c.connected.Store(false)
		return errs.Wrap(errs.Connection, "gen3["+c.sessionID+"]: dial", err)
	}
	c.conn = conn

	instances, err := c.unary(ctx, methodGetInstances, nil)
	if err != nil {
		c.connected.Store(false)
		return errs.Wrap(errs.ClassifyRPC(err), "gen3["+c.sessionID+"]: get instances", err)
	}
	c.mu.Lock()
	c.parseInstances(instances)
	c.mu.Unlock()

	c.fetchCircuitNames(ctx)
	c.connected.Store(true)
	c.publishEvent(events.Event{Category: events.CategoryConnection, Type: "connected"})
	return nil
}

// Close disconnects and stops any active streaming task.
func (c *Client) Close() error {
	c.connected.Store(false)
	c.StopStreaming()
	c.publishEvent(events.Event{Category: events.CategoryConnection, Type: "closed"})
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// Connected reports whether Connect has succeeded and Close has not since
// been called.
func (c *Client) Connected() bool { return c.connected.Load() }

// Ping reports whether the panel is reachable, delegating to TestConnection
// (spec §4.8.7).
func (c *Client) Ping(ctx context.Context) error {
	return c.TestConnection(ctx)
}

// TestConnection opens a short-lived channel, issues a single GetInstances
// with a 5s timeout, and succeeds iff the response is non-empty. Used by
// C10 for auto-detect; does not require or mutate an existing Connect
// session (spec §4.8.7).
func (c *Client) TestConnection(ctx context.Context) error {
	conn, err := grpc.NewClient(
		fmt.Sprintf("%s:%d", c.host, c.port),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return errs.Wrap(errs.Connection, "gen3: test_connection dial", err)
	}
	defer conn.Close()

	probeCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	var reply []byte
	req := []byte{}
	if err := conn.Invoke(probeCtx, methodGetInstances, &req, &reply, grpc.ForceCodec(rawBytesCodec{})); err != nil {
		return errs.Wrap(errs.ClassifyRPC(err), "gen3: test_connection", err)
	}
	if len(reply) == 0 {
		return errs.New(errs.Connection, "gen3: test_connection: empty response")
	}
	return nil
}

// unary issues a single unary RPC through the raw-bytes codec.
func (c *Client) unary(ctx context.Context, method string, req []byte) ([]byte, error) {
	if c.conn == nil {
		return nil, errs.New(errs.Connection, "gen3: not connected")
	}
	var reply []byte
	if err := c.conn.Invoke(ctx, method, &req, &reply, grpc.ForceCodec(rawBytesCodec{})); err != nil {
		return nil, err
	}
	return reply, nil
}
