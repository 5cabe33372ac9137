package spanpanel

import (
	"context"

	"github.com/spanpanel/spanpanel-go/gen2"
	"github.com/spanpanel/spanpanel-go/gen3"
	"github.com/spanpanel/spanpanel-go/models"
)

// gen3Adapter narrows *gen3.Client to the Client/StreamingCapable
// interfaces. gen2.Client already matches both their method sets directly
// and needs no adapter; gen3.Client's GetSnapshot is ctx-less and
// error-less (it reads cached stream state, issuing no RPC) and its
// RegisterCallback takes the named gen3.Callback type rather than a bare
// func(), so both need a thin translation here.
type gen3Adapter struct {
	*gen3.Client
}

// GetSnapshot adapts gen3.Client.GetSnapshot to the unified Client
// signature. ctx is accepted for interface parity but unused: reading the
// latest streamed metrics never blocks or fails (spec §4.8.6).
func (a gen3Adapter) GetSnapshot(ctx context.Context) (models.Snapshot, error) {
	return a.Client.GetSnapshot(), nil
}

// RegisterCallback adapts the bare func() signature StreamingCapable
// exposes to gen3.Client's named Callback parameter type.
func (a gen3Adapter) RegisterCallback(cb func()) func() {
	return a.Client.RegisterCallback(gen3.Callback(cb))
}

var (
	_ Client           = gen3Adapter{}
	_ StreamingCapable = gen3Adapter{}
)

var (
	_ Client                = (*gen2.Client)(nil)
	_ AuthCapable           = (*gen2.Client)(nil)
	_ CircuitControlCapable = (*gen2.Client)(nil)
	_ EnergyCapable         = (*gen2.Client)(nil)
)
