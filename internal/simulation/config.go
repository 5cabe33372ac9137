package simulation

import (
	"fmt"

	"github.com/spanpanel/spanpanel-go/errs"
	"github.com/spanpanel/spanpanel-go/internal/phase"
	"github.com/spanpanel/spanpanel-go/models"
)

// validateConfig runs the structural and numeric checks from spec §4.7.1,
// once, at load. Every failure surfaces as a SimulationConfig kind.
func validateConfig(cfg models.SimulationConfig) error {
	if len(cfg.CircuitTemplates) == 0 {
		return errs.New(errs.SimulationConfig, "circuit_templates must be a non-empty mapping")
	}
	if len(cfg.Circuits) == 0 {
		return errs.New(errs.SimulationConfig, "circuits must be a non-empty ordered list")
	}
	if cfg.Panel.SerialNumber == "" || cfg.Panel.TotalTabs <= 0 || cfg.Panel.MainSize <= 0 {
		return errs.New(errs.SimulationConfig, "panel_config requires serial_number, total_tabs and main_size")
	}

	for name, tmpl := range cfg.CircuitTemplates {
		if tmpl.DefaultPriority == "" {
			return errs.New(errs.SimulationConfig, fmt.Sprintf("circuit template %q missing priority", name))
		}
		ep := tmpl.EnergyProfile
		if ep.PowerRangeMin > ep.PowerRangeMax {
			return errs.New(errs.SimulationConfig, fmt.Sprintf("circuit template %q has power_range_min > power_range_max", name))
		}
		if ep.TypicalPower < ep.PowerRangeMin || ep.TypicalPower > ep.PowerRangeMax {
			return errs.New(errs.SimulationConfig, fmt.Sprintf("circuit template %q typical_power %.2f outside power range [%.2f, %.2f]", name, ep.TypicalPower, ep.PowerRangeMin, ep.PowerRangeMax))
		}
	}

	ids := make(map[string]bool, len(cfg.Circuits))
	for _, c := range cfg.Circuits {
		if c.ID == "" || c.Name == "" || c.TemplateName == "" || len(c.Tabs) == 0 {
			return errs.New(errs.SimulationConfig, "every circuit requires id, name, template and tabs")
		}
		if _, ok := cfg.CircuitTemplates[c.TemplateName]; !ok {
			return errs.New(errs.SimulationConfig, fmt.Sprintf("circuit %q references undeclared template %q", c.ID, c.TemplateName))
		}
		ids[c.ID] = true
	}

	validTabs := make([]int, cfg.Panel.TotalTabs)
	for i := range validTabs {
		validTabs[i] = i + 1
	}
	for _, sync := range cfg.TabSyncs {
		if !sync.IsSplitPhase() {
			continue
		}
		a, b := sync.Tabs[0], sync.Tabs[1]
		if ok, msg := phase.ValidatePairing(a, b, validTabs); !ok {
			return errs.New(errs.SimulationConfig, fmt.Sprintf("tab synchronization [%d,%d] invalid: %s", a, b, msg))
		}
	}

	return nil
}
