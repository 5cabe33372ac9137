package spanpanel

import (
	"context"
	"time"

	"github.com/spanpanel/spanpanel-go/internal/telemetry/policy"
	"github.com/spanpanel/spanpanel-go/models"
	"github.com/spanpanel/spanpanel-go/telemetry/health"
)

// Health builds a health.Evaluator with one probe that pings c, named after
// c's generation. A ttl of zero falls back to the library's default probe
// TTL. Applications juggling more than one Client (e.g. during a
// Gen2-to-Gen3 migration window) can Register additional probes on the
// returned Evaluator.
func Health(c Client, ttl time.Duration) *health.Evaluator {
	if ttl <= 0 {
		ttl = policy.Default().Health.ProbeTTL
	}
	probeName := "gen2"
	if c.Capabilities() == models.CapabilitiesGen3Initial {
		probeName = "gen3"
	}
	eval := health.NewEvaluator(ttl)
	eval.Register(health.ProbeFunc(func(ctx context.Context) health.ProbeResult {
		if err := c.Ping(ctx); err != nil {
			return health.Unhealthy(probeName, err.Error())
		}
		return health.Healthy(probeName)
	}))
	return eval
}
