package cache

import (
	"context"
	"sync"
	"time"

	"classroom-economy/services"
)

type entry struct {
	snap    services.Snapshot
	expires time.Time
}

// MemoryCache is an in-process snapshot cache for single-instance and dev setups.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MemoryCache{ttl: ttl, entries: map[string]entry{}}
}

func (c *MemoryCache) GetSnapshot(_ context.Context, userID string) (*services.Snapshot, bool) {
	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	snap := e.snap
	return &snap, true
}

func (c *MemoryCache) SetSnapshot(_ context.Context, snap *services.Snapshot) {
	c.mu.Lock()
	c.entries[snap.UserID] = entry{snap: *snap, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *MemoryCache) Invalidate(_ context.Context, userIDs ...string) {
	c.mu.Lock()
	for _, id := range userIDs {
		delete(c.entries, id)
	}
	c.mu.Unlock()
}
