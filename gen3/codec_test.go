package gen3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawBytesCodecRoundTrip(t *testing.T) {
	codec := rawBytesCodec{}
	want := []byte{1, 2, 3, 4}

	encoded, err := codec.Marshal(&want)
	require.NoError(t, err)
	assert.Equal(t, want, encoded)

	var got []byte
	require.NoError(t, codec.Unmarshal(encoded, &got))
	assert.Equal(t, want, got)
}

func TestRawBytesCodecRejectsWrongType(t *testing.T) {
	codec := rawBytesCodec{}
	_, err := codec.Marshal("not a byte pointer")
	assert.Error(t, err)

	var got []byte
	assert.Error(t, codec.Unmarshal([]byte{1}, "not a byte pointer"))
	_ = got
}

func TestRawBytesCodecName(t *testing.T) {
	assert.Equal(t, "raw-span-trait", rawBytesCodec{}.Name())
}
