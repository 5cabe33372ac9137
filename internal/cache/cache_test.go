package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }
func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestNewRejectsNegativeTTL(t *testing.T) {
	_, ok := New(-time.Second)
	assert.False(t, ok)
}

func TestZeroTTLDisablesCaching(t *testing.T) {
	c, ok := New(0)
	require.True(t, ok)
	c.Set("k", "v")
	_, hit := c.Get("k")
	assert.False(t, hit)
}

// Property 4: two reads within TTL of the same key return the same content;
// a read after TTL re-queries the source exactly once.
func TestCacheTTLSingleRefresh(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c, ok := New(10*time.Second, WithClock(clock))
	require.True(t, ok)

	queries := 0
	source := func() string {
		queries++
		return "value"
	}

	get := func(key string) string {
		if v, hit := c.Get(key); hit {
			return v.(string)
		}
		v := source()
		c.Set(key, v)
		return v
	}

	v1 := get("k")
	clock.advance(5 * time.Second)
	v2 := get("k")
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, queries)

	clock.advance(6 * time.Second) // total 11s elapsed since insert, past 10s TTL
	v3 := get("k")
	assert.Equal(t, "value", v3)
	assert.Equal(t, 2, queries)
}

func TestInvalidate(t *testing.T) {
	c, _ := New(time.Minute)
	c.Set("k", 1)
	c.Invalidate("k")
	_, hit := c.Get("k")
	assert.False(t, hit)
}

func TestInvalidateAll(t *testing.T) {
	c, _ := New(time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.InvalidateAll()
	_, hitA := c.Get("a")
	_, hitB := c.Get("b")
	assert.False(t, hitA)
	assert.False(t, hitB)
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := New(time.Minute)
	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func(i int) {
			c.Set("k", i)
			c.Get("k")
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 20; i++ {
		<-done
	}
}
