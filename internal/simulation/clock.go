package simulation

import (
	"strings"
	"sync"
	"time"

	"github.com/spanpanel/spanpanel-go/errs"
)

// timeFormats are the layouts accepted for simulation_start_time: a local
// datetime, optionally with a trailing "Z" (spec §4.7.2).
var timeFormats = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseStartTime(s string) (time.Time, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(s), "Z")
	for _, layout := range timeFormats {
		if t, err := time.ParseInLocation(layout, trimmed, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errs.New(errs.SimulationConfig, "simulation_start_time could not be parsed")
}

// SimulationClock computes "now" as real_now + offset*acceleration once a
// simulated start time has been established (spec §4.7.2).
type SimulationClock struct {
	mu           sync.RWMutex
	offset       time.Duration
	acceleration float64
	active       bool
	initialized  bool
	realNow      func() time.Time

	pendingOverride *string
}

// NewSimulationClock returns a clock in real-wall-clock mode.
func NewSimulationClock() *SimulationClock {
	return &SimulationClock{acceleration: 1, realNow: time.Now}
}

// Init applies the configuration's simulation-time request, if any. A parse
// failure surfaces as SimulationConfig. Any override requested before Init
// was stashed via Override and is applied here, after the configured start
// time (if any) is resolved.
func (c *SimulationClock) Init(startTime string, acceleration float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if acceleration > 0 {
		c.acceleration = acceleration
	}
	if startTime != "" {
		start, err := parseStartTime(startTime)
		if err != nil {
			return err
		}
		c.offset = start.Sub(c.realNow())
		c.active = true
	}
	if c.pendingOverride != nil {
		pending := *c.pendingOverride
		c.pendingOverride = nil
		c.applyOverrideLocked(pending)
	}
	c.initialized = true
	return nil
}

// Override resets the simulated start time at runtime. A string that fails
// to parse disables simulation-time mode and falls back to real now, per
// spec §4.7.2 — it does not return an error, since a runtime override
// parse failure is explicitly a fallback, not a construction-time failure.
// An override issued before Init is stashed and applied during Init.
func (c *SimulationClock) Override(startTime string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		s := startTime
		c.pendingOverride = &s
		return
	}
	c.applyOverrideLocked(startTime)
}

func (c *SimulationClock) applyOverrideLocked(startTime string) {
	start, err := parseStartTime(startTime)
	if err != nil {
		c.active = false
		c.offset = 0
		return
	}
	c.offset = start.Sub(c.realNow())
	c.active = true
}

// Now returns the current simulated (or real) instant.
func (c *SimulationClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.realNow()
	if !c.active {
		return now
	}
	return now.Add(time.Duration(float64(c.offset) * c.acceleration))
}
