package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryable(t *testing.T) {
	cases := map[Kind]bool{
		Connection:       true,
		Timeout:          true,
		RetriableServer:  true,
		Auth:             false,
		Server:           false,
		ApiError:         false,
		Validation:       false,
		SimulationConfig: false,
	}
	for kind, want := range cases {
		assert.Equalf(t, want, Retryable(kind), "kind=%s", kind)
	}
}

func TestClassifyStatusNeverUsesSubstringMatching(t *testing.T) {
	// A generic error whose message happens to contain "401" must not be
	// reclassified as Auth: classification only ever consults the
	// structured status field.
	err := New(ApiError, "unexpected failure mentioning 401 in passing")
	assert.Equal(t, ApiError, KindOf(err))

	assert.Equal(t, Auth, ClassifyStatus(401))
	assert.Equal(t, Auth, ClassifyStatus(403))
	assert.Equal(t, Server, ClassifyStatus(500))
	assert.Equal(t, RetriableServer, ClassifyStatus(502))
	assert.Equal(t, RetriableServer, ClassifyStatus(503))
	assert.Equal(t, RetriableServer, ClassifyStatus(504))
	assert.Equal(t, ApiError, ClassifyStatus(409))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(Connection, "dial failed", cause)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, Connection, KindOf(err))
}

func TestKindOfDefaultsToApiErrorForUnknownErrors(t *testing.T) {
	assert.Equal(t, ApiError, KindOf(errors.New("some unrelated failure")))
}
