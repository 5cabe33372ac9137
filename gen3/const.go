// Package gen3 implements the Gen3 streaming client (C8): circuit discovery
// over a unary GetInstances call, real-time power metrics over a
// server-streaming Subscribe call, and callback fan-out to registered
// observers. The outer RPC transport is google.golang.org/grpc; the
// trait-handler frame format itself is gen3/wire, hand-rolled per spec.
package gen3

import "time"

const (
	defaultPort = 50065

	serviceName  = "io.span.panel.protocols.traithandler.TraitHandlerService"
	methodGetInstances = "/" + serviceName + "/GetInstances"
	methodSubscribe    = "/" + serviceName + "/Subscribe"
	methodGetRevision  = "/" + serviceName + "/GetRevision"

	// Trait ids, per original_source/grpc/const.py. Only circuitNames and
	// powerMetrics are ever decoded; the remainder are reserved trait ids
	// the firmware exposes on the same TraitHandlerService that this
	// client does not yet have a decode path for (breaker topology/config
	// and relay state telemetry — none carry the storage/battery data
	// this spec scopes out for Gen3).
	traitBreakerGroups = 15
	traitCircuitNames  = 16
	traitBreakerConfig = 17
	traitPowerMetrics  = 26
	traitRelayState    = 27
	traitBreakerParams = 31

	vendorSpan       = 1
	productGen3Panel = 4

	mainFeedIID = 1

	breakerOffVoltageMV = 5000

	reconnectDelay = 5 * time.Second
	pingTimeout    = 5 * time.Second
	keepaliveTime  = 30 * time.Second
	keepaliveTimeout = 10 * time.Second
)
