// Package behavior implements the stateless circuit power function (C6): a
// pure mapping (circuit template, wall-clock, relay state, per-circuit
// state, rng) -> instantaneous watt sample. All randomness is drawn from an
// injectable RNG so tests are reproducible; production wiring seeds
// math/rand once at process start (spec.md's non-goal explicitly leaves the
// numeric-library choice unconstrained, and no example repo in the pack
// pulls in a third-party sampler for this kind of uniform jitter).
package behavior

import (
	"math"
	"time"

	"github.com/spanpanel/spanpanel-go/models"
)

// RNG is the minimal random source the behavior engine needs.
type RNG interface {
	// Float64 returns a pseudo-random number in [0,1).
	Float64() float64
}

// PerCircuitState is the subset of runtime state the behavior engine reads;
// it never mutates it — accumulation is C7's job.
type PerCircuitState struct {
	CycleStart time.Time
}

// CircuitPower computes the instantaneous watt sample for one circuit at
// instant now, following spec §4.6 steps 1-7 in order.
func CircuitPower(template models.CircuitTemplate, now time.Time, relay models.RelayState, rng RNG, state PerCircuitState) float64 {
	if relay == models.RelayOpen {
		return 0
	}

	profile := template.EnergyProfile
	base := profile.TypicalPower * uniformNoise(rng, profile.PowerVariation)

	base = applyTimeOfDay(template, profile, now, base)
	base = applyCycling(template, now, state, base)
	base = applySmartGrid(template, now, base)
	base = applyBattery(template, now, rng, base)

	return profile.Clamp(base)
}

// uniformNoise returns a multiplicative factor in [1-v, 1+v].
func uniformNoise(rng RNG, variation float64) float64 {
	if variation <= 0 {
		return 1
	}
	return 1 - variation + 2*variation*rng.Float64()
}

func applyTimeOfDay(template models.CircuitTemplate, profile models.EnergyProfile, now time.Time, base float64) float64 {
	hour := now.Hour()
	tod := template.TimeOfDay
	if tod == nil || !tod.Enabled {
		return applyDefaultSolarCurve(now, base)
	}
	if f, ok := tod.HourFactors[hour]; ok {
		base *= f
	} else if containsHour(tod.PeakHours, hour) || containsHour(tod.ProductionHours, hour) {
		base *= tod.PeakFactor
	}
	if profile.Mode == models.ModeProducer {
		inListedHours := containsHour(tod.ProductionHours, hour) || hourFactorsContains(tod.HourFactors, hour)
		if !inListedHours {
			return 0
		}
	}
	return base
}

func containsHour(hours []int, hour int) bool {
	for _, h := range hours {
		if h == hour {
			return true
		}
	}
	return false
}

func hourFactorsContains(m map[int]float64, hour int) bool {
	_, ok := m[hour]
	return ok
}

// applyDefaultSolarCurve is used when no explicit time-of-day profile is
// configured: 0 between 18:00 and 06:00, a sine half-wave normalized to
// [0,1] peaking at noon between 06:00 and 18:00.
func applyDefaultSolarCurve(now time.Time, base float64) float64 {
	return base * SolarIntensity(now)
}

// SolarIntensity is the shared normalized [0,1] solar curve used both by the
// default time-of-day behavior (step 3) and the battery charge behavior
// (step 6) — factored out so both call sites share one implementation,
// matching the original Python's helper reuse.
func SolarIntensity(now time.Time) float64 {
	hour := now.Hour()
	if hour < 6 || hour >= 18 {
		return 0
	}
	// Map [6,18) to [0, pi]; sin peaks at hour=12.
	frac := (float64(hour) - 6) / 12
	return math.Sin(frac * math.Pi)
}

// DemandFactor is an evening-peaked multiplier used by the battery
// discharge behavior: 1.0 outside 17:00-21:00, 1.3 inside it.
func DemandFactor(now time.Time) float64 {
	hour := now.Hour()
	if hour >= 17 && hour < 21 {
		return 1.3
	}
	return 1.0
}

func applyCycling(template models.CircuitTemplate, now time.Time, state PerCircuitState, base float64) float64 {
	c := template.Cycling
	if c == nil || !c.Enabled || (c.OnMinutes <= 0 && c.OffMinutes <= 0) {
		return base
	}
	period := c.OnMinutes + c.OffMinutes
	if period <= 0 {
		return base
	}
	start := state.CycleStart
	if start.IsZero() {
		start = now
	}
	elapsedMin := int(now.Sub(start).Minutes()) % period
	if elapsedMin < c.OnMinutes {
		return base
	}
	return 0
}

func applySmartGrid(template models.CircuitTemplate, now time.Time, base float64) float64 {
	sg := template.SmartGrid
	if sg == nil || !sg.Enabled {
		return base
	}
	hour := now.Hour()
	if hour >= 17 && hour < 21 {
		return base * (1 - sg.PeakReductionFactor)
	}
	return base
}

func applyBattery(template models.CircuitTemplate, now time.Time, rng RNG, base float64) float64 {
	b := template.Battery
	if b == nil || !b.Enabled {
		return base
	}
	hour := now.Hour()
	switch {
	case containsHour(b.ChargeHours, hour):
		return math.Abs(b.MaxCharge) * SolarIntensity(now)
	case containsHour(b.DischargeHours, hour):
		return b.MaxDischarge * DemandFactor(now)
	case containsHour(b.IdleHours, hour):
		return sampleIdleRange(rng, b.IdlePowerRange)
	default:
		// Transition hour: a small fraction of base.
		return base * 0.10
	}
}

// sampleIdleRange uniformly samples within the configured idle power range.
//
// Open question (spec §9, preserved as specified): the source normalizes a
// mixed-sign range like [-50, +50] to [0, 50] by swapping/clamping rather
// than sampling across the signed range. That quirk is preserved here
// rather than "fixed," per spec §9's explicit instruction to keep it; a
// cleaner policy (sample the original signed range) is left to reviewers.
func sampleIdleRange(rng RNG, r [2]float64) float64 {
	lo, hi := r[0], r[1]
	if lo > hi {
		lo, hi = hi, lo
	}
	lo = math.Max(0, lo)
	hi = math.Abs(hi)
	if hi < lo {
		hi = lo
	}
	return lo + (hi-lo)*rng.Float64()
}
