package behavior

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	mathrand "math/rand"
)

// DefaultRNG returns a production RNG seeded from crypto/rand once, wrapped
// in the package's minimal RNG interface.
func DefaultRNG() RNG {
	seed := cryptoSeed()
	return mathrand.New(mathrand.NewSource(seed))
}

func cryptoSeed() int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(0).SetUint64(^uint64(0)>>1))
	if err != nil {
		var buf [8]byte
		_, _ = rand.Read(buf[:])
		return int64(binary.LittleEndian.Uint64(buf[:]))
	}
	return n.Int64()
}

// FixedRNG is a deterministic RNG for tests: it always returns the same
// value.
type FixedRNG float64

func (f FixedRNG) Float64() float64 { return float64(f) }

// SequenceRNG cycles through a fixed sequence of values, for tests that need
// more than one deterministic draw.
type SequenceRNG struct {
	Values []float64
	idx    int
}

func (s *SequenceRNG) Float64() float64 {
	if len(s.Values) == 0 {
		return 0.5
	}
	v := s.Values[s.idx%len(s.Values)]
	s.idx++
	return v
}
