// Package cache stores prediction results keyed by model version and record
// content, in process memory and optionally in Redis.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bd4predict/predict-api/internal/domain"
)

// MemoryCache is an in-process LRU with per-entry expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, *domain.PredictionResult]
}

// NewMemoryCache creates a memory cache holding at most size entries for ttl.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 1000
	}
	return &MemoryCache{lru: expirable.NewLRU[string, *domain.PredictionResult](size, nil, ttl)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (*domain.PredictionResult, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, result *domain.PredictionResult) error {
	m.lru.Add(key, result)
	return nil
}

// Len returns the number of live entries.
func (m *MemoryCache) Len() int { return m.lru.Len() }

// Purge drops every entry.
func (m *MemoryCache) Purge() { m.lru.Purge() }
