// Package retry implements the bounded-attempt exponential-backoff retry
// driver (C3). The Delayer hook is the direct generalization of the
// teacher's internal/ratelimit.Clock/sleepWithContext pair to a simpler,
// non-rate-limiting use case: callers get a process-wide-free way to
// substitute a test delay implementation instead of a real sleep.
package retry

import (
	"context"
	"time"

	"github.com/spanpanel/spanpanel-go/errs"
	"github.com/spanpanel/spanpanel-go/internal/telemetry/metrics"
)

// Delayer performs (or simulates) a wait, honoring ctx cancellation. The
// default implementation sleeps for real; tests substitute one that
// records requested durations without actually blocking.
type Delayer interface {
	Delay(ctx context.Context, d time.Duration) error
}

// RealDelayer sleeps for real, respecting context cancellation.
type RealDelayer struct{}

func (RealDelayer) Delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy is the bounded-attempt exponential backoff policy from spec §4.3:
// (max_attempts >= 0, base_delay >= 0, multiplier >= 1).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// Driver runs operations under a Policy using a Delayer.
type Driver struct {
	policy  Policy
	delayer Delayer

	attempts metrics.Counter
	backoff  metrics.Histogram
}

// Option configures a Driver at construction.
type Option func(*Driver)

// WithDelayer overrides the delay hook (tests substitute a fake clock).
func WithDelayer(d Delayer) Option {
	return func(dr *Driver) {
		if d != nil {
			dr.delayer = d
		}
	}
}

// WithMetrics wires a metrics.Provider to publish attempt/backoff telemetry.
func WithMetrics(provider metrics.Provider) Option {
	return func(dr *Driver) {
		if provider == nil {
			return
		}
		dr.attempts = provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "spanpanel", Subsystem: "retry", Name: "attempts_total", Help: "Retry attempts made",
		}})
		dr.backoff = provider.NewHistogram(metrics.HistogramOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "spanpanel", Subsystem: "retry", Name: "backoff_seconds", Help: "Backoff delay requested",
		}})
	}
}

// New constructs a Driver. A multiplier below 1 or a negative base delay is
// clamped to the nearest valid value (1 and 0 respectively) rather than
// rejected, since spec.md only constrains the operation-level contract, not
// construction-time validation of the policy itself.
func New(policy Policy, opts ...Option) *Driver {
	if policy.Multiplier < 1 {
		policy.Multiplier = 1
	}
	if policy.BaseDelay < 0 {
		policy.BaseDelay = 0
	}
	if policy.MaxAttempts < 0 {
		policy.MaxAttempts = 0
	}
	d := &Driver{policy: policy, delayer: RealDelayer{}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Op is the operation the driver runs. It returns the result (opaque to the
// driver) and an error; the driver inspects the error's classified Kind via
// errs.KindOf to decide whether to retry.
type Op[T any] func(ctx context.Context, attempt int) (T, error)

// Do runs op, retrying per the driver's policy. max_attempts=0 means a
// single attempt with no retry (spec §4.3).
func Do[T any](ctx context.Context, d *Driver, op Op[T]) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		if d.attempts != nil {
			d.attempts.Inc(1)
		}
		result, err := op(ctx, attempt)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			// Cancellation is terminal: never retried (spec §5).
			return zero, err
		}
		kind := errs.KindOf(err)
		if !errs.Retryable(kind) {
			return zero, err
		}
		if attempt >= d.policy.MaxAttempts {
			return zero, err
		}
		delay := backoffFor(d.policy, attempt)
		if d.backoff != nil {
			d.backoff.Observe(delay.Seconds())
		}
		if werr := d.delayer.Delay(ctx, delay); werr != nil {
			return zero, werr
		}
	}
}

func backoffFor(p Policy, attempt int) time.Duration {
	mult := 1.0
	for i := 0; i < attempt; i++ {
		mult *= p.Multiplier
	}
	return time.Duration(float64(p.BaseDelay) * mult)
}
