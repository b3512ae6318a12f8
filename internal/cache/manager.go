// Package cache provides the two-tier result cache in front of the analytics
// queries: an in-process go-cache tier backed by a shared Redis or bbolt tier.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/rohankatakam/devpulse/internal/config"
	"github.com/rohankatakam/devpulse/internal/errors"
	"github.com/rohankatakam/devpulse/internal/logging"
)

// Backend is the shared cache tier. A missing key is (nil, false, nil).
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Stats counts lookups per tier
type Stats struct {
	MemoryHits int64 `json:"memory_hits"`
	SharedHits int64 `json:"shared_hits"`
	Misses     int64 `json:"misses"`
}

// Manager handles cache operations
type Manager struct {
	mem       *gocache.Cache
	backend   Backend
	sharedTTL time.Duration
	logger    *slog.Logger

	memoryHits atomic.Int64
	sharedHits atomic.Int64
	misses     atomic.Int64
}

// NewManager creates a cache manager. backend may be nil for a memory-only cache.
func NewManager(memoryTTL, sharedTTL time.Duration, backend Backend) *Manager {
	if memoryTTL <= 0 {
		memoryTTL = time.Minute
	}
	return &Manager{
		mem:       gocache.New(memoryTTL, 2*memoryTTL),
		backend:   backend,
		sharedTTL: sharedTTL,
		logger:    logging.Component("cache"),
	}
}

// Open builds a manager from config: Redis when an address is set, otherwise
// bbolt when a path is set, otherwise memory only.
func Open(ctx context.Context, cfg config.CacheConfig) (*Manager, error) {
	var (
		backend Backend
		err     error
	)
	switch {
	case cfg.RedisAddr != "":
		backend, err = NewRedisBackend(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case cfg.BoltPath != "":
		backend, err = NewBoltBackend(cfg.BoltPath)
	}
	if err != nil {
		return nil, errors.CacheError(err, "failed to open shared cache")
	}
	return NewManager(cfg.MemoryTTL, cfg.SharedTTL, backend), nil
}

// get looks key up in memory, then in the shared tier. Shared values are
// decoded into dest and promoted to memory.
func (m *Manager) get(ctx context.Context, key string, dest interface{}) (interface{}, bool) {
	if v, ok := m.mem.Get(key); ok {
		m.memoryHits.Add(1)
		return v, true
	}
	if m.backend == nil {
		m.misses.Add(1)
		return nil, false
	}

	data, ok, err := m.backend.Get(ctx, key)
	if err != nil {
		m.logger.Warn("shared cache read failed", "key", key, "error", err)
	}
	if !ok || err != nil {
		m.misses.Add(1)
		return nil, false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		m.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		m.misses.Add(1)
		return nil, false
	}
	m.sharedHits.Add(1)
	return dest, true
}

// set stores value in both tiers. Shared tier failures are logged.
func (m *Manager) set(ctx context.Context, key string, value interface{}) {
	m.mem.Set(key, value, gocache.DefaultExpiration)
	if m.backend == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		m.logger.Warn("failed to encode cache entry", "key", key, "error", err)
		return
	}
	if err := m.backend.Set(ctx, key, data, m.sharedTTL); err != nil {
		m.logger.Warn("shared cache write failed", "key", key, "error", err)
	}
}

// Fetch returns the cached value for key, calling load and storing its result on a miss.
// Load errors are returned and never cached.
func Fetch[T any](ctx context.Context, m *Manager, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if m == nil {
		return load(ctx)
	}

	if v, ok := m.get(ctx, key, new(T)); ok {
		switch cached := v.(type) {
		case T:
			return cached, nil
		case *T:
			m.mem.Set(key, *cached, gocache.DefaultExpiration)
			return *cached, nil
		}
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	m.set(ctx, key, value)
	return value, nil
}

// Refresh recomputes key with load and overwrites both tiers
func Refresh[T any](ctx context.Context, m *Manager, key string, load func(ctx context.Context) (T, error)) (T, error) {
	value, err := load(ctx)
	if err != nil || m == nil {
		return value, err
	}
	m.set(ctx, key, value)
	return value, nil
}

// Stats returns lookup counters since the manager was created
func (m *Manager) Stats() Stats {
	return Stats{
		MemoryHits: m.memoryHits.Load(),
		SharedHits: m.sharedHits.Load(),
		Misses:     m.misses.Load(),
	}
}

type prefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// Purge drops every entry in both tiers and returns the shared entries removed
func (m *Manager) Purge(ctx context.Context) (int64, error) {
	m.mem.Flush()
	d, ok := m.backend.(prefixDeleter)
	if !ok {
		return 0, nil
	}
	n, err := d.DeletePrefix(ctx, keyPrefix+":")
	if err != nil {
		return n, fmt.Errorf("purge shared cache: %w", err)
	}
	m.logger.Info("cache purged", "shared_entries", n)
	return n, nil
}

type sweeper interface {
	Sweep() (int, error)
}

// Sweep removes expired shared entries when the backend needs it. Redis
// expires keys itself, so only the bbolt tier does any work.
func (m *Manager) Sweep() (int, error) {
	s, ok := m.backend.(sweeper)
	if !ok {
		return 0, nil
	}
	return s.Sweep()
}

// Close releases the shared tier
func (m *Manager) Close() error {
	if m.backend == nil {
		return nil
	}
	return m.backend.Close()
}
