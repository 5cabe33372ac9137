// Package simulation implements the simulation engine (C7): configuration
// validation, the simulation clock, per-tick panel-data generation, the
// override table, and SOE modeling. It is the route C4 takes instead of the
// network when operating in simulation mode.
package simulation

import (
	"sync"
	"time"

	"github.com/spanpanel/spanpanel-go/errs"
	"github.com/spanpanel/spanpanel-go/internal/behavior"
	"github.com/spanpanel/spanpanel-go/internal/cache"
	"github.com/spanpanel/spanpanel-go/models"
)

const fullSimDataKey = "full_sim_data"

// Engine is the stateful simulation core. It owns the per-circuit state
// table and the override table (spec §5): both are protected by mu, the
// "lightweight mutex" the concurrency model calls for in lieu of true
// single-threading.
type Engine struct {
	cfg       models.SimulationConfig
	validTabs []int
	clock     *SimulationClock
	cache     *cache.Cache
	rng       behavior.RNG

	mu        sync.Mutex
	states    map[string]*models.CircuitState
	overrides *models.OverrideTable

	batteryCapacityRef float64
	soe                float64
	soeInitialized     bool

	initOnce sync.Once
	initErr  error
}

// NewEngine validates cfg once (spec §4.7.1) and returns a ready-to-use
// engine. rng may be nil, in which case a process-seeded default is used.
func NewEngine(cfg models.SimulationConfig, cacheTTL time.Duration, rng behavior.RNG) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	c, ok := cache.New(cacheTTL)
	if !ok {
		return nil, errs.New(errs.Validation, "simulation cache ttl must be non-negative")
	}
	if rng == nil {
		rng = behavior.DefaultRNG()
	}

	validTabs := make([]int, cfg.Panel.TotalTabs)
	for i := range validTabs {
		validTabs[i] = i + 1
	}

	var capRef float64
	for _, tmpl := range cfg.CircuitTemplates {
		if tmpl.Battery != nil && tmpl.Battery.Enabled {
			capRef += absf(tmpl.Battery.MaxCharge)
		}
	}

	return &Engine{
		cfg:                cfg,
		validTabs:          validTabs,
		clock:              NewSimulationClock(),
		cache:              c,
		rng:                rng,
		states:             make(map[string]*models.CircuitState),
		overrides:          models.NewOverrideTable(),
		batteryCapacityRef: capRef,
	}, nil
}

// ensureInit lazily initializes the simulation clock exactly once, under a
// double-checked pattern: sync.Once already serializes concurrent first
// callers so only one performs the work (spec §5).
func (e *Engine) ensureInit() error {
	e.initOnce.Do(func() {
		e.initErr = e.clock.Init(e.cfg.SimulationStartTime, e.cfg.TimeAcceleration)
	})
	return e.initErr
}

// ReloadConfig re-validates cfg and, if valid, swaps it in as the engine's
// active configuration, invalidating the memoized tick and per-circuit
// state so the next read regenerates from scratch. The caller (not this
// package) is responsible for watching the config file and parsing its YAML
// into cfg; internal/configwatch only signals that the file changed (spec
// §4.7 [FULL] supplement).
func (e *Engine) ReloadConfig(cfg models.SimulationConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}

	validTabs := make([]int, cfg.Panel.TotalTabs)
	for i := range validTabs {
		validTabs[i] = i + 1
	}
	var capRef float64
	for _, tmpl := range cfg.CircuitTemplates {
		if tmpl.Battery != nil && tmpl.Battery.Enabled {
			capRef += absf(tmpl.Battery.MaxCharge)
		}
	}

	e.mu.Lock()
	e.cfg = cfg
	e.validTabs = validTabs
	e.batteryCapacityRef = capRef
	e.states = make(map[string]*models.CircuitState)
	e.overrides = models.NewOverrideTable()
	e.mu.Unlock()

	e.cache.Invalidate(fullSimDataKey)
	return nil
}

// OverrideClock applies a runtime simulation-time override (spec §4.7.2).
func (e *Engine) OverrideClock(startTime string) {
	e.clock.Override(startTime)
	e.cache.Invalidate(fullSimDataKey)
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// generate produces (or returns the memoized) coherent PanelData for the
// current tick (spec §4.7.3/§4.7.4).
func (e *Engine) generate() (*PanelData, error) {
	if err := e.ensureInit(); err != nil {
		return nil, err
	}
	if v, ok := e.cache.Get(fullSimDataKey); ok {
		return v.(*PanelData), nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Re-check after acquiring the lock: a concurrent caller may have
	// generated this tick's data while we waited.
	if v, ok := e.cache.Get(fullSimDataKey); ok {
		return v.(*PanelData), nil
	}

	now := e.clock.Now()
	data := e.generateLocked(now)
	e.cache.Set(fullSimDataKey, data)
	return data, nil
}

func (e *Engine) generateLocked(now time.Time) *PanelData {
	globalMult := 1.0
	if e.overrides.GlobalPowerMult != nil {
		globalMult = *e.overrides.GlobalPowerMult
	}

	circuits := make(map[string]CircuitSnapshot, len(e.cfg.Circuits))
	branchPower := make(map[int]float64, e.cfg.Panel.TotalTabs)
	referencedTabs := make(map[int]bool, e.cfg.Panel.TotalTabs)

	var gridPower, mainProduced, mainConsumed float64
	var netBatteryPower float64
	var hasBattery bool

	// Snapshot the prior tick's timestamp before the loop below overwrites
	// each circuit's LastUpdate with now; the SOE delta needs the elapsed
	// time since the previous generation, not zero.
	deltaHoursSOE := e.priorTickDelta(now)

	for _, decl := range e.cfg.Circuits {
		for _, t := range decl.Tabs {
			referencedTabs[t] = true
		}
		tmpl := e.cfg.CircuitTemplates[decl.TemplateName]

		state, existed := e.states[decl.ID]
		if !existed {
			state = &models.CircuitState{
				CircuitID:  decl.ID,
				RelayState: models.RelayClosed,
				Priority:   tmpl.DefaultPriority,
				LastUpdate: now,
			}
			e.states[decl.ID] = state
		}

		override := e.overrides.PerCircuit[decl.ID]

		effectiveRelay := state.RelayState
		if override.RelayState != nil {
			effectiveRelay = *override.RelayState
		}

		var power float64
		if override.PowerOverride != nil {
			power = *override.PowerOverride
		} else {
			power = behavior.CircuitPower(tmpl, now, effectiveRelay, e.rng, behavior.PerCircuitState{CycleStart: state.CycleStart})
		}

		deltaHours := now.Sub(state.LastUpdate).Hours()
		if deltaHours < 0 {
			deltaHours = 0
		}
		switch {
		case power < 0:
			state.ProducedWh += absf(power) * deltaHours
		case power > 0:
			state.ConsumedWh += power * deltaHours
		}

		if override.RelayState != nil {
			state.RelayState = *override.RelayState
		}
		if override.Priority != nil {
			state.Priority = *override.Priority
		}
		state.LastPower = power
		state.LastUpdate = now

		if tmpl.Battery != nil && tmpl.Battery.Enabled {
			hasBattery = true
			netBatteryPower += power
		}

		effectivePower := power * globalMult
		splitTabPower(decl.Tabs, effectivePower, e.findTabSync(decl.Tabs), branchPower)

		gridPower += effectivePower
		mainProduced += state.ProducedWh
		mainConsumed += state.ConsumedWh

		circuits[decl.ID] = CircuitSnapshot{
			ID:           decl.ID,
			Name:         decl.Name,
			TemplateName: decl.TemplateName,
			Tabs:         decl.Tabs,
			RelayState:   state.RelayState,
			Priority:     state.Priority,
			InstantPower: effectivePower,
			ProducedWh:   state.ProducedWh,
			ConsumedWh:   state.ConsumedWh,
			LastUpdate:   state.LastUpdate,
		}
	}

	// Unmapped tabs: synthesize a virtual circuit per tab with no circuit
	// declaration (spec §4.7.3 step 3). These contribute to branch readings
	// only, never to the grid/main-meter aggregates above.
	unmappedTemplates := make(map[int]models.CircuitTemplate, len(e.cfg.UnmappedTabTemplates))
	for _, u := range e.cfg.UnmappedTabTemplates {
		unmappedTemplates[u.TabNumber] = u.Template
	}
	for _, tab := range e.validTabs {
		if referencedTabs[tab] {
			continue
		}
		tmpl, ok := unmappedTemplates[tab]
		if !ok {
			tmpl = neutralUnmappedTemplate()
		}
		power := behavior.CircuitPower(tmpl, now, models.RelayClosed, e.rng, behavior.PerCircuitState{})
		power *= globalMult
		branchPower[tab] += power

		id := unmappedCircuitID(tab)
		circuits[id] = CircuitSnapshot{
			ID:           id,
			Name:         unmappedCircuitName(tab),
			TemplateName: "",
			Tabs:         []int{tab},
			RelayState:   models.RelayUnknown,
			Priority:     models.PriorityNonEssential,
			InstantPower: power,
			LastUpdate:   now,
			Synthetic:    true,
		}
	}

	branches := make([]BranchSample, 0, len(e.validTabs))
	for _, tab := range e.validTabs {
		branches = append(branches, BranchSample{TabNumber: tab, PowerWatts: branchPower[tab]})
	}

	e.updateSOELocked(hasBattery, netBatteryPower*globalMult, deltaHoursSOE)

	return &PanelData{
		GeneratedAt: now,
		Status: Status{
			SerialNumber: e.cfg.Panel.SerialNumber,
			TotalTabs:    e.cfg.Panel.TotalTabs,
			MainSize:     e.cfg.Panel.MainSize,
			Simulated:    true,
			Online:       true,
		},
		GridPower:    gridPower,
		MainProduced: mainProduced,
		MainConsumed: mainConsumed,
		StorageSOE:   e.soe,
		Circuits:     circuits,
		Branches:     branches,
	}
}

// priorTickDelta reports hours since the most recent generation, using the
// earliest per-circuit LastUpdate recorded before this pass as a proxy; the
// very first tick has no prior timestamp and contributes no SOE delta. Must
// be called before the generation loop overwrites LastUpdate.
func (e *Engine) priorTickDelta(now time.Time) float64 {
	var earliest time.Time
	for _, s := range e.states {
		if earliest.IsZero() || s.LastUpdate.Before(earliest) {
			earliest = s.LastUpdate
		}
	}
	if earliest.IsZero() || earliest.Equal(now) {
		return 0
	}
	d := now.Sub(earliest).Hours()
	if d < 0 {
		return 0
	}
	return d
}

// updateSOELocked applies spec §4.7.3 step 8: base 50%, a delta scaled from
// net battery power over the tick, clamped to [15,95]. The capacity
// reference (sum of |max_charge| across battery-enabled templates) has no
// exact formula in the source; here it is treated as the power level that
// moves SOE by 10 points per hour, which keeps the delta roughly
// proportional to battery size without inventing a separate capacity field.
func (e *Engine) updateSOELocked(hasBattery bool, netPower, deltaHours float64) {
	if !e.soeInitialized {
		e.soe = 50
		e.soeInitialized = true
	}
	if !hasBattery || e.batteryCapacityRef <= 0 || deltaHours <= 0 {
		return
	}
	delta := (netPower / e.batteryCapacityRef) * 10 * deltaHours
	e.soe += delta
	if e.soe < 15 {
		e.soe = 15
	}
	if e.soe > 95 {
		e.soe = 95
	}
}

func neutralUnmappedTemplate() models.CircuitTemplate {
	return models.CircuitTemplate{
		EnergyProfile: models.EnergyProfile{Mode: models.ModeConsumer},
	}
}

func unmappedCircuitID(tab int) string   { return "unmapped_tab_" + itoa(tab) }
func unmappedCircuitName(tab int) string { return "Unmapped Tab " + itoa(tab) }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// findTabSync locates the TabSync entry matching decl's tab set, if any
// (order-insensitive).
func (e *Engine) findTabSync(tabs []int) *models.TabSync {
	if len(tabs) != 2 {
		return nil
	}
	want := sortedPair(tabs)
	for i := range e.cfg.TabSyncs {
		s := &e.cfg.TabSyncs[i]
		if len(s.Tabs) != 2 {
			continue
		}
		if sortedPair(s.Tabs) == want {
			return s
		}
	}
	return nil
}

func sortedPair(tabs []int) [2]int {
	a, b := tabs[0], tabs[1]
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// splitTabPower divides a circuit's aggregate power across its tabs per the
// matching TabSync's power_split rule, or assigns full power to the first
// tab and zero to the rest when no sync applies (spec §4.7.3 step 2b).
func splitTabPower(tabs []int, power float64, sync *models.TabSync, out map[int]float64) {
	if len(tabs) == 0 {
		return
	}
	if len(tabs) == 1 || sync == nil {
		out[tabs[0]] += power
		for _, t := range tabs[1:] {
			// Ensure every tab has an entry even if it carries no power.
			out[t] += 0
		}
		return
	}
	switch sync.PowerSplit {
	case models.SplitEqual:
		half := power / 2
		for _, t := range tabs {
			out[t] += half
		}
	case models.SplitPrimarySecondary:
		out[tabs[0]] += power
		for _, t := range tabs[1:] {
			out[t] += 0
		}
	default:
		out[tabs[0]] += power
	}
}

// GetPanelState returns the panel-level view for the current tick.
func (e *Engine) GetPanelState() (*PanelData, error) { return e.generate() }

// GetCircuits returns the per-circuit view for the current tick.
func (e *Engine) GetCircuits() (map[string]CircuitSnapshot, error) {
	d, err := e.generate()
	if err != nil {
		return nil, err
	}
	return d.Circuits, nil
}

// GetStatus returns the hardware/network/system view for the current tick.
func (e *Engine) GetStatus() (Status, error) {
	d, err := e.generate()
	if err != nil {
		return Status{}, err
	}
	return d.Status, nil
}

// GetStorageSOE returns the battery state-of-energy percentage for the
// current tick.
func (e *Engine) GetStorageSOE() (float64, error) {
	d, err := e.generate()
	if err != nil {
		return 0, err
	}
	return d.StorageSOE, nil
}

// SetCircuitRelay validates state against {OPEN, CLOSED}, records it as a
// per-circuit override, invalidates the memoized tick, and returns a
// synthetic success result (spec §4.7.6).
func (e *Engine) SetCircuitRelay(circuitID, rawState string) (RelayChangeResult, error) {
	state, err := models.ParseRelayState(rawState)
	if err != nil {
		return RelayChangeResult{}, errs.Wrap(errs.Validation, "set_circuit_relay", err)
	}

	e.mu.Lock()
	ov := e.overrides.PerCircuit[circuitID]
	s := state
	ov.RelayState = &s
	e.overrides.PerCircuit[circuitID] = ov
	e.mu.Unlock()

	e.cache.Invalidate(fullSimDataKey)
	return RelayChangeResult{Status: "success", CircuitID: circuitID, RelayState: state}, nil
}

// SetCircuitPriority records a priority override for one circuit.
func (e *Engine) SetCircuitPriority(circuitID, rawPriority string) error {
	priority, err := models.ParsePriority(rawPriority)
	if err != nil {
		return errs.Wrap(errs.Validation, "set_circuit_priority", err)
	}
	e.mu.Lock()
	ov := e.overrides.PerCircuit[circuitID]
	p := priority
	ov.Priority = &p
	e.overrides.PerCircuit[circuitID] = ov
	e.mu.Unlock()

	e.cache.Invalidate(fullSimDataKey)
	return nil
}

// SetCircuitPowerOverride records an absolute power override for one
// circuit, bypassing the behavior engine entirely on subsequent ticks.
func (e *Engine) SetCircuitPowerOverride(circuitID string, watts float64) {
	e.mu.Lock()
	ov := e.overrides.PerCircuit[circuitID]
	w := watts
	ov.PowerOverride = &w
	e.overrides.PerCircuit[circuitID] = ov
	e.mu.Unlock()
	e.cache.Invalidate(fullSimDataKey)
}

// SetGlobalPowerMultiplier records the multiplicative override applied to
// every sample after per-circuit computation (spec §4.7.5).
func (e *Engine) SetGlobalPowerMultiplier(mult float64) {
	e.mu.Lock()
	m := mult
	e.overrides.GlobalPowerMult = &m
	e.mu.Unlock()
	e.cache.Invalidate(fullSimDataKey)
}

// ClearCircuitOverrides removes every override recorded for one circuit.
func (e *Engine) ClearCircuitOverrides(circuitID string) {
	e.mu.Lock()
	delete(e.overrides.PerCircuit, circuitID)
	e.mu.Unlock()
	e.cache.Invalidate(fullSimDataKey)
}

// ClearAllOverrides removes every per-circuit and global override.
func (e *Engine) ClearAllOverrides() {
	e.mu.Lock()
	e.overrides = models.NewOverrideTable()
	e.mu.Unlock()
	e.cache.Invalidate(fullSimDataKey)
}
