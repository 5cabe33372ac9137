// Package spanpanel is the unified entry point for talking to a SPAN smart
// panel over either transport generation: the mature Gen2 HTTP/REST API
// (package gen2) or the streaming Gen3 gRPC API (package gen3). Callers that
// do not care which generation a given host speaks construct a Client
// through NewClient and dispatch on Capabilities(); callers who already know
// the generation can use gen2.New/gen3.New directly.
package spanpanel

import (
	"context"

	"github.com/spanpanel/spanpanel-go/gen2"
	"github.com/spanpanel/spanpanel-go/models"
)

// Client is the core protocol every transport satisfies (spec §4.9),
// grounded on original_source/protocol.py's SpanPanelClientProtocol.
type Client interface {
	// Capabilities reports which optional interfaces below this Client also
	// satisfies, without a type assertion.
	Capabilities() models.Capabilities
	Ping(ctx context.Context) error
	GetSnapshot(ctx context.Context) (models.Snapshot, error)
	Close() error
}

// AuthCapable is satisfied by transports requiring token authentication
// (Gen2 only). Check CapAuthentication before asserting to this interface.
type AuthCapable interface {
	Authenticate(ctx context.Context, name, description string) (*models.AuthToken, error)
	SetAccessToken(token string)
}

// CircuitControlCapable is satisfied by transports that can write circuit
// relay/priority state (Gen2 only). Check CapRelayControl/CapPriorityControl
// before asserting to this interface.
type CircuitControlCapable interface {
	SetCircuitRelay(ctx context.Context, circuitID, state string) (gen2.CircuitUpdateResult, error)
	SetCircuitPriority(ctx context.Context, circuitID, priority string) (gen2.CircuitUpdateResult, error)
}

// EnergyCapable is satisfied by transports that expose battery
// state-of-energy (Gen2 only). Check CapBattery before asserting to this
// interface; the same value is also available on Snapshot.BatterySOE.
type EnergyCapable interface {
	GetStorageSOE(ctx context.Context) (float64, error)
}

// StreamingCapable is satisfied by transports that push real-time updates
// (Gen3 only). Check CapPushStreaming before asserting to this interface.
type StreamingCapable interface {
	RegisterCallback(cb func()) func()
	StartStreaming(ctx context.Context)
	StopStreaming()
}
