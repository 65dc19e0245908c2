package cache

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bd4predict/predict-api/internal/domain"
	"github.com/bd4predict/predict-api/internal/metrics"
)

// Stats represents cache performance statistics
type Stats struct {
	MemoryHits   int64     `json:"memory_hits"`
	MemoryMisses int64     `json:"memory_misses"`
	RemoteHits   int64     `json:"remote_hits"`
	RemoteMisses int64     `json:"remote_misses"`
	ErrorCount   int64     `json:"error_count"`
	LastReset    time.Time `json:"last_reset"`
}

// Tiered checks process memory first (tier 1) and then a shared remote
// cache (tier 2). Remote failures are logged and treated as misses.
type Tiered struct {
	memory domain.PredictionCache
	remote domain.PredictionCache
	logger *logrus.Logger

	statsMu sync.Mutex
	stats   Stats
}

// NewTiered creates a two-tier cache. remote may be nil.
func NewTiered(memory, remote domain.PredictionCache, logger *logrus.Logger) *Tiered {
	return &Tiered{
		memory: memory,
		remote: remote,
		logger: logger,
		stats:  Stats{LastReset: time.Now()},
	}
}

func (t *Tiered) Get(ctx context.Context, key string) (*domain.PredictionResult, bool, error) {
	// Try memory cache first (Tier 1)
	if r, ok, _ := t.memory.Get(ctx, key); ok {
		t.record(func(s *Stats) { s.MemoryHits++ })
		metrics.CacheLookup("memory", true)
		return r, true, nil
	}
	t.record(func(s *Stats) { s.MemoryMisses++ })
	metrics.CacheLookup("memory", false)

	if t.remote == nil {
		return nil, false, nil
	}

	// Try remote cache (Tier 2)
	r, ok, err := t.remote.Get(ctx, key)
	if err != nil {
		t.record(func(s *Stats) { s.ErrorCount++ })
		t.logger.WithError(err).Debug("Remote cache lookup failed")
		return nil, false, nil
	}
	if !ok {
		t.record(func(s *Stats) { s.RemoteMisses++ })
		metrics.CacheLookup("redis", false)
		return nil, false, nil
	}
	t.record(func(s *Stats) { s.RemoteHits++ })
	metrics.CacheLookup("redis", true)

	// Populate memory cache for next time
	_ = t.memory.Set(ctx, key, r)
	return r, true, nil
}

func (t *Tiered) Set(ctx context.Context, key string, result *domain.PredictionResult) error {
	if err := t.memory.Set(ctx, key, result); err != nil {
		return err
	}
	if t.remote != nil {
		if err := t.remote.Set(ctx, key, result); err != nil {
			t.record(func(s *Stats) { s.ErrorCount++ })
			t.logger.WithError(err).Debug("Remote cache write failed")
		}
	}
	return nil
}

// Stats returns a snapshot of the cache statistics.
func (t *Tiered) Stats() Stats {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.stats
}

// Close releases the remote tier's connections.
func (t *Tiered) Close() error {
	if c, ok := t.remote.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *Tiered) record(update func(*Stats)) {
	t.statsMu.Lock()
	update(&t.stats)
	t.statsMu.Unlock()
}

// New builds the cache described by config: memory only, or memory in
// front of Redis when a Redis URL is set. It returns nil when caching is
// disabled.
func New(config domain.CacheConfig, logger *logrus.Logger) (*Tiered, error) {
	if !config.Enabled {
		return nil, nil
	}
	memory := NewMemoryCache(config.MaxItems, config.DefaultTTL)
	if config.RedisURL == "" {
		return NewTiered(memory, nil, logger), nil
	}
	remote, err := NewRedisCache(config, logger)
	if err != nil {
		return nil, err
	}
	return NewTiered(memory, remote, logger), nil
}
