// Package gen2 implements the Gen2 REST transport (C4): a single
// long-lived HTTP client, an auth-upgrade protocol that never tears down
// the underlying connection pool, and the schema-derived operation set from
// spec §4.4/§6. In simulation mode every operation routes to
// internal/simulation instead of the network.
package gen2

import "time"

const (
	defaultTimeout = 10 * time.Second

	pathAuthRegister = "/api/v1/auth/register"
	pathStatus       = "/api/v1/status"
	pathPanel        = "/api/v1/panel"
	pathCircuits     = "/api/v1/circuits"
	pathStorageSOE   = "/api/v1/storage/soe"
	pathCircuitFmt   = "/api/v1/circuits/%s"

	cacheKeyStatus    = "status"
	cacheKeyPanel     = "panel"
	cacheKeyCircuits  = "circuits"
	cacheKeyStorage    = "storage_soe"
	unmappedIDPrefix   = "unmapped_tab_"
	unmappedNamePrefix = "Unmapped Tab "
)
