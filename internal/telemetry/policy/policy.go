// Package policy centralizes the few telemetry knobs the client library
// tunes internally, so a default isn't hard-coded in more than one place.
package policy

import "time"

// TelemetryPolicy holds runtime-tunable telemetry knobs. Durations are
// expected to be positive; zero values fall back to the defaults in
// Default().
type TelemetryPolicy struct {
	Health HealthPolicy
}

// HealthPolicy tunes Health's probe rollup.
type HealthPolicy struct {
	// ProbeTTL is the default cache window for health.Evaluator when a
	// caller does not supply one explicitly.
	ProbeTTL time.Duration
}

// Default returns the library's baked-in telemetry defaults.
func Default() TelemetryPolicy {
	return TelemetryPolicy{
		Health: HealthPolicy{ProbeTTL: 2 * time.Second},
	}
}

// Normalize returns a copy of p with non-positive fields replaced by
// Default()'s values.
func (p TelemetryPolicy) Normalize() TelemetryPolicy {
	c := p
	if c.Health.ProbeTTL <= 0 {
		c.Health.ProbeTTL = Default().Health.ProbeTTL
	}
	return c
}
