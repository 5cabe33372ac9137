package spanpanel

import (
	"context"
	"fmt"
	"time"

	"github.com/spanpanel/spanpanel-go/errs"
	"github.com/spanpanel/spanpanel-go/gen2"
	"github.com/spanpanel/spanpanel-go/gen3"
	"github.com/spanpanel/spanpanel-go/internal/retry"
	"github.com/spanpanel/spanpanel-go/internal/telemetry/events"
	"github.com/spanpanel/spanpanel-go/internal/telemetry/metrics"
	"github.com/spanpanel/spanpanel-go/models"
)

// Generation pins NewClient to a known transport instead of probing
// (spec §4.10).
type Generation = models.PanelGeneration

const (
	Gen2 = models.GenerationGen2
	Gen3 = models.GenerationGen3
)

const (
	defaultGen2Port = 80
	defaultGen3Port = 50065
	probeTimeout    = 5 * time.Second
)

// options collects the factory knobs every transport needs a subset of.
type options struct {
	generation   Generation
	autoDetect   bool
	port         int
	timeout      time.Duration
	cacheTTL     time.Duration
	retryPolicy  retry.Policy
	initialToken string
	simulation   *models.SimulationConfig
	metrics      metrics.Provider
	events       events.Bus
}

// Option configures NewClient.
type Option func(*options)

// WithGeneration pins the factory to a known generation instead of probing
// both (spec §4.10).
func WithGeneration(g Generation) Option {
	return func(o *options) { o.generation = g; o.autoDetect = false }
}

// WithPort overrides the transport's default port
// (80 for Gen2, 50065 for Gen3).
func WithPort(port int) Option { return func(o *options) { o.port = port } }

// WithTimeout sets the Gen2 HTTP client timeout; ignored for Gen3.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithCacheTTL sets the Gen2 read-cache TTL; ignored for Gen3.
func WithCacheTTL(d time.Duration) Option { return func(o *options) { o.cacheTTL = d } }

// WithRetryPolicy overrides the bounded-attempt retry policy C4/C3 use for
// reads, relay/priority writes and authentication; ignored for Gen3, which reconnects on a fixed delay
// instead (spec §4.8.3).
func WithRetryPolicy(p retry.Policy) Option { return func(o *options) { o.retryPolicy = p } }

// WithInitialToken authenticates a Gen2 client at construction; ignored for
// Gen3.
func WithInitialToken(token string) Option { return func(o *options) { o.initialToken = token } }

// WithSimulation puts a Gen2 client in simulation mode instead of dialing
// the network; ignored for Gen3. Simulation also forces generation
// detection to Gen2, since there is nothing to probe.
func WithSimulation(cfg models.SimulationConfig) Option {
	return func(o *options) {
		o.simulation = &cfg
		o.generation = Gen2
		o.autoDetect = false
	}
}

// WithMetrics wires a metrics.Provider into whichever transport is
// constructed.
func WithMetrics(p metrics.Provider) Option { return func(o *options) { o.metrics = p } }

// WithEventBus wires an events.Bus into whichever transport is constructed:
// Gen2 publishes a CategoryCircuit event after every successful relay/
// priority write, Gen3 publishes CategoryConnection and CategoryStream
// events as it connects, reconnects, and decodes notifications.
func WithEventBus(b events.Bus) Option { return func(o *options) { o.events = b } }

func defaultOptions() options {
	return options{autoDetect: true, retryPolicy: retry.Policy{MaxAttempts: 2, BaseDelay: 200 * time.Millisecond, Multiplier: 2}}
}

// NewClient constructs a Client for host, per spec §4.10: with an explicit
// WithGeneration option it builds that transport directly; otherwise it
// probes Gen2 first, then Gen3, and returns whichever responds.
func NewClient(ctx context.Context, host string, opts ...Option) (Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if !o.autoDetect {
		switch o.generation {
		case Gen3:
			return newGen3Client(ctx, host, o)
		default:
			return newGen2Client(host, o)
		}
	}

	gen2Port := o.port
	if gen2Port == 0 {
		gen2Port = defaultGen2Port
	}
	gen2Candidate, err := newGen2Client(host, withPort(o, gen2Port))
	if err == nil {
		if perr := probe(ctx, gen2Candidate); perr == nil {
			return gen2Candidate, nil
		}
		_ = gen2Candidate.Close()
	}

	gen3Port := o.port
	if gen3Port == 0 {
		gen3Port = defaultGen3Port
	}
	gen3Candidate, err := newGen3Client(ctx, host, withPort(o, gen3Port))
	if err == nil {
		if perr := probe(ctx, gen3Candidate); perr == nil {
			return gen3Candidate, nil
		}
		_ = gen3Candidate.Close()
	}

	return nil, errs.New(errs.Connection, fmt.Sprintf(
		"spanpanel: could not reach panel at %s via Gen2 (HTTP, port %d) or Gen3 (gRPC, port %d); verify the host address and ensure the panel is online",
		host, gen2Port, gen3Port,
	))
}

func withPort(o options, port int) options {
	o.port = port
	return o
}

func newGen2Client(host string, o options) (*gen2.Client, error) {
	return gen2.New(gen2.Config{
		Host:         host,
		Port:         o.port,
		Timeout:      o.timeout,
		CacheTTL:     o.cacheTTL,
		Retry:        o.retryPolicy,
		InitialToken: o.initialToken,
		Simulation:   o.simulation,
		Metrics:      o.metrics,
		Events:       o.events,
	})
}

func newGen3Client(ctx context.Context, host string, o options) (*gen3Adapter, error) {
	c := gen3.New(gen3.Config{Host: host, Port: o.port, Metrics: o.metrics, Events: o.events})
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return &gen3Adapter{Client: c}, nil
}

// probe runs a single short-timeout ping (not the full retry policy: spec
// §4.10 describes a probe, not a retried operation).
func probe(ctx context.Context, c Client) error {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	driver := retry.New(retry.Policy{MaxAttempts: 0, BaseDelay: 0, Multiplier: 2})
	_, err := retry.Do(probeCtx, driver, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, c.Ping(ctx)
	})
	return err
}
