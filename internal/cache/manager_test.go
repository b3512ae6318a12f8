package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/devpulse/internal/config"
)

type point struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

func counter(calls *int, value []point) func(context.Context) ([]point, error) {
	return func(context.Context) ([]point, error) {
		*calls++
		return value, nil
	}
}

func newBolt(t *testing.T) *BoltBackend {
	b, err := NewBoltBackend(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestFetch_MemoryOnly(t *testing.T) {
	m := NewManager(time.Minute, 0, nil)
	ctx := context.Background()
	want := []point{{"2024-01", 3}}

	calls := 0
	for i := 0; i < 3; i++ {
		got, err := Fetch(ctx, m, Key("monthly-commits", "all"), counter(&calls, want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, Stats{MemoryHits: 2, Misses: 1}, m.Stats())
}

func TestFetch_NilManagerAlwaysLoads(t *testing.T) {
	calls := 0
	for i := 0; i < 2; i++ {
		_, err := Fetch(context.Background(), nil, "k", counter(&calls, nil))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestFetch_ErrorsAreNotCached(t *testing.T) {
	m := NewManager(time.Minute, 0, nil)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := Fetch(ctx, m, "k", func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	got, err := Fetch(ctx, m, "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestFetch_SharedTierSurvivesNewManager(t *testing.T) {
	backend := newBolt(t)
	ctx := context.Background()
	want := []point{{"2024-01", 3}, {"2024-02", 5}}
	key := Key("monthly-commits", "repos:1,2", "2024-02")

	calls := 0
	first := NewManager(time.Minute, time.Hour, backend)
	_, err := Fetch(ctx, first, key, counter(&calls, want))
	require.NoError(t, err)

	// Fresh memory tier, same shared tier
	second := NewManager(time.Minute, time.Hour, backend)
	got, err := Fetch(ctx, second, key, counter(&calls, nil))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), second.Stats().SharedHits)

	// Promoted to memory
	_, err = Fetch(ctx, second, key, counter(&calls, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.Stats().MemoryHits)
}

func TestRefresh_Overwrites(t *testing.T) {
	m := NewManager(time.Minute, time.Hour, newBolt(t))
	ctx := context.Background()

	calls := 0
	_, err := Fetch(ctx, m, "devpulse:k", counter(&calls, []point{{"2024-01", 1}}))
	require.NoError(t, err)

	_, err = Refresh(ctx, m, "devpulse:k", counter(&calls, []point{{"2024-01", 2}}))
	require.NoError(t, err)

	got, err := Fetch(ctx, m, "devpulse:k", counter(&calls, nil))
	require.NoError(t, err)
	assert.Equal(t, []point{{"2024-01", 2}}, got)
	assert.Equal(t, 2, calls)
}

func TestBoltBackend_Expiry(t *testing.T) {
	b := newBolt(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	require.NoError(t, b.Set(ctx, "short", []byte(`1`), time.Minute))
	require.NoError(t, b.Set(ctx, "forever", []byte(`2`), 0))

	v, ok, err := b.Get(ctx, "short")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`1`), v)

	now = now.Add(time.Minute)
	_, ok, err = b.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok, "entry expires at its deadline")

	_, ok, err = b.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBoltBackend_SweepAndPurge(t *testing.T) {
	b := newBolt(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	require.NoError(t, b.Set(ctx, Key("a"), []byte(`1`), time.Second))
	require.NoError(t, b.Set(ctx, Key("b"), []byte(`2`), time.Hour))
	require.NoError(t, b.Set(ctx, Key("c"), []byte(`3`), time.Hour))
	require.NoError(t, b.Set(ctx, "other", []byte(`4`), 0))

	m := NewManager(time.Minute, time.Hour, b)

	now = now.Add(time.Minute)
	n, err := m.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = NewManager(time.Minute, 0, nil).Sweep()
	require.NoError(t, err)
	assert.Zero(t, n, "memory-only managers have nothing to sweep")

	purged, err := m.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	_, ok, err := b.Get(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok, "keys outside the namespace are kept")
}

func TestOpen_SelectsBackend(t *testing.T) {
	m, err := Open(context.Background(), testCacheConfig(""))
	require.NoError(t, err)
	assert.Nil(t, m.backend)

	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	m, err = Open(context.Background(), testCacheConfig(path))
	require.NoError(t, err)
	defer m.Close()
	assert.IsType(t, &BoltBackend{}, m.backend)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

// Runs against a disposable Redis named by DEVPULSE_TEST_REDIS_ADDR
func TestRedisBackend_Integration(t *testing.T) {
	addr := os.Getenv("DEVPULSE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DEVPULSE_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	r, err := NewRedisBackend(ctx, addr, "", 0)
	require.NoError(t, err)
	defer r.Close()

	key := Key("test", time.Now().Format(time.RFC3339Nano))
	require.NoError(t, r.Set(ctx, key, []byte(`{"x":1}`), time.Minute))

	v, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"x":1}`, string(v))

	n, err := r.DeletePrefix(ctx, Key("test"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	_, ok, err = r.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, r.HealthCheck(ctx))
}

func testCacheConfig(boltPath string) config.CacheConfig {
	return config.CacheConfig{MemoryTTL: time.Minute, SharedTTL: time.Hour, BoltPath: boltPath}
}
