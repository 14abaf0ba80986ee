package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)}
}

func TestShardedCache_SetGet(t *testing.T) {
	c := New[string](Options{TTL: time.Minute})
	c.Set("a", "1")

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, "1", v)
	require.Equal(t, 1, c.Len())

	_, ok = c.Get("missing")
	require.False(t, ok)
}

func TestShardedCache_TTL_Expiry(t *testing.T) {
	clock := newClock()
	c := New[json.RawMessage](Options{TTL: 300 * time.Second, Now: clock.Now})

	c.Set("https://api.example.com/users/1", json.RawMessage(`{"login":"gauravmeee"}`))

	clock.Advance(299 * time.Second)
	v, ok := c.Get("https://api.example.com/users/1")
	require.True(t, ok, "expected hit before expiry")
	require.JSONEq(t, `{"login":"gauravmeee"}`, string(v))

	// expiresAt itself is already outside the visibility window
	clock.Advance(time.Second)
	_, ok = c.Get("https://api.example.com/users/1")
	require.False(t, ok, "expected miss at expiry")
	require.Equal(t, 0, c.Len())

	require.Equal(t, 1, c.PurgeExpired())
	require.Equal(t, 0, c.PurgeExpired())
}

func TestShardedCache_ZeroTTLNeverExpires(t *testing.T) {
	clock := newClock()
	c := New[int](Options{Now: clock.Now})
	c.Set("k", 7)

	clock.Advance(1000 * time.Hour)
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, 7, v)
	require.Equal(t, 0, c.PurgeExpired())
}

func TestShardedCache_OverwriteRestartsTTL(t *testing.T) {
	clock := newClock()
	c := New[string](Options{TTL: 10 * time.Second, Now: clock.Now})

	c.Set("k", "old")
	clock.Advance(8 * time.Second)
	c.Set("k", "new")
	clock.Advance(8 * time.Second)

	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "new", v)
}

func TestShardedCache_RefreshAfterExpiry(t *testing.T) {
	clock := newClock()
	c := New[string](Options{TTL: time.Second, Now: clock.Now})

	c.Set("k", "v1")
	clock.Advance(2 * time.Second)
	_, ok := c.Get("k")
	require.False(t, ok)

	c.Set("k", "v2")
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "v2", v)
}

func TestShardedCache_PurgeKeepsLiveEntries(t *testing.T) {
	clock := newClock()
	c := New[int](Options{TTL: 10 * time.Second, Shards: 4, Now: clock.Now})

	for i := 0; i < 20; i++ {
		c.Set(fmt.Sprintf("old-%d", i), i)
	}
	clock.Advance(6 * time.Second)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("new-%d", i), i)
	}
	clock.Advance(5 * time.Second)

	require.Equal(t, 20, c.PurgeExpired())
	require.Equal(t, 5, c.Len())
}

func TestShardedCache_Concurrent(t *testing.T) {
	keys := 100
	rounds := 200

	c := New[int](Options{TTL: time.Minute})
	var wg sync.WaitGroup
	for i := 0; i < keys; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i)
			for r := 0; r < rounds; r++ {
				c.Set(key, r)
				_, _ = c.Get(key)
				_, _ = c.Get("shared")
			}
		}()
	}
	wg.Wait()

	require.Equal(t, keys, c.Len())
	for i := 0; i < keys; i++ {
		v, ok := c.Get(fmt.Sprintf("key-%d", i))
		require.True(t, ok)
		require.Equal(t, rounds-1, v, "last set wins")
	}
}
