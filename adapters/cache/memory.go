package cache

import (
	"context"
	"fmt"
	"time"

	ristretto "github.com/dgraph-io/ristretto/v2"
	"github.com/layer-3/garuda/ports"
)

// Memory is an in-process implementation of the Cache interface. It is the
// default backend when no shared cache is configured; entries are lost on
// restart, which only costs refetches.
type Memory struct {
	cache *ristretto.Cache[string, string]
}

// NewMemory creates a new in-memory cache.
func NewMemory() (*Memory, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 100_000,
		MaxCost:     1_000_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	return &Memory{cache: cache}, nil
}

// GetValue returns the cached value for key.
func (m *Memory) GetValue(ctx context.Context, key string) (string, bool, error) {
	value, found := m.cache.Get(key)
	return value, found, nil
}

// SetValue stores value under key for the given TTL.
func (m *Memory) SetValue(ctx context.Context, key string, value string, ttl time.Duration) error {
	m.cache.SetWithTTL(key, value, 1, ttl)

	// Ristretto admits writes asynchronously; wait so the entry is
	// visible to the next read.
	m.cache.Wait()

	return nil
}

// Close releases the cache resources.
func (m *Memory) Close() {
	m.cache.Close()
}

var _ ports.Cache = (*Memory)(nil)
