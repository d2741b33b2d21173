package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

var errCacheClosed = errors.New("memory session cache closed")

// MemorySessionCache is a single-process session cache for deployments
// without Redis. Sessions do not survive restarts and are not shared
// between instances.
type MemorySessionCache struct {
	cache  *ristretto.Cache[string, string]
	closed atomic.Bool
}

// NewMemorySessionCache sizes the cache for maxEntries live tokens.
func NewMemorySessionCache(maxEntries int64) (*MemorySessionCache, error) {
	if maxEntries <= 0 {
		maxEntries = 100000
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("init memory session cache: %w", err)
	}
	return &MemorySessionCache{cache: cache}, nil
}

// Get returns the stored token and whether it is present and unexpired.
func (m *MemorySessionCache) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if m.closed.Load() {
		return "", false, errCacheClosed
	}
	val, ok := m.cache.Get(key)
	return val, ok, nil
}

// Set writes key and confirms the write is visible to Get. A write the
// cache declines to admit is reported as an error.
func (m *MemorySessionCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed.Load() {
		return errCacheClosed
	}
	if !m.cache.SetWithTTL(key, value, 1, ttl) {
		return fmt.Errorf("memory session cache dropped write for %s", key)
	}
	m.cache.Wait()

	// The admission policy may still reject the item after Wait.
	stored, ok := m.cache.Get(key)
	if !ok || stored != value {
		return fmt.Errorf("memory session cache rejected write for %s", key)
	}
	return nil
}

// Delete removes keys. Missing keys are not an error.
func (m *MemorySessionCache) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed.Load() {
		return errCacheClosed
	}
	for _, key := range keys {
		m.cache.Del(key)
	}
	m.cache.Wait()
	return nil
}

// Close releases cache goroutines.
func (m *MemorySessionCache) Close() {
	if m != nil && m.closed.CompareAndSwap(false, true) {
		m.cache.Close()
	}
}
