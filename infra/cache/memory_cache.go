package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kichcoin/ledger/pkg/domain"
)

// MemoryCache implements RateCache using in-memory storage
type MemoryCache struct {
	mu        sync.RWMutex
	rates     *domain.ExchangeRates
	expiresAt time.Time
	now       func() time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{now: time.Now}
}

// Get retrieves the snapshot from cache
func (c *MemoryCache) Get(_ context.Context) (*domain.ExchangeRates, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.rates == nil || c.now().After(c.expiresAt) {
		return nil, nil
	}
	cp := *c.rates
	return &cp, nil
}

// Set stores the snapshot with TTL
func (c *MemoryCache) Set(_ context.Context, rates *domain.ExchangeRates, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *rates
	c.rates = &cp
	c.expiresAt = c.now().Add(ttl)
	return nil
}

// Delete drops the cached snapshot
func (c *MemoryCache) Delete(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rates = nil
	return nil
}
