package policy

import (
	"testing"
	"time"
)

func TestDefaultHealthProbeTTL(t *testing.T) {
	if got := Default().Health.ProbeTTL; got != 2*time.Second {
		t.Fatalf("expected 2s default probe TTL, got %v", got)
	}
}

func TestNormalizeFillsNonPositiveProbeTTL(t *testing.T) {
	p := TelemetryPolicy{}
	n := p.Normalize()
	if n.Health.ProbeTTL != Default().Health.ProbeTTL {
		t.Fatalf("expected normalize to fill in default TTL, got %v", n.Health.ProbeTTL)
	}
}

func TestNormalizeLeavesPositiveProbeTTLUntouched(t *testing.T) {
	p := TelemetryPolicy{Health: HealthPolicy{ProbeTTL: 9 * time.Second}}
	n := p.Normalize()
	if n.Health.ProbeTTL != 9*time.Second {
		t.Fatalf("expected normalize to leave positive TTL untouched, got %v", n.Health.ProbeTTL)
	}
}
