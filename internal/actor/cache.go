package actor

import (
	"context"
	"sync"
	"time"

	id "warden/pkg/domain"
)

// Cache stores resolved actors for a bounded time.
type Cache interface {
	// Get returns the cached actors among ids; absent or expired ids are omitted.
	Get(ctx context.Context, ids []id.ActorID) (map[id.ActorID]Actor, error)
	Set(ctx context.Context, actors ...Actor) error
	Remove(ctx context.Context, actorID id.ActorID) error
}

type cacheEntry struct {
	actor     Actor
	expiresAt time.Time
}

// MemoryCache is a process-local Cache. Reads never block; concurrent writes
// to one key are last-write-wins.
type MemoryCache struct {
	entries sync.Map // id.ActorID -> cacheEntry
	ttl     time.Duration
	clock   func() time.Time
}

// MemoryCacheOption configures a MemoryCache.
type MemoryCacheOption func(*MemoryCache)

// WithCacheClock replaces time.Now for expiry checks.
func WithCacheClock(clock func() time.Time) MemoryCacheOption {
	return func(c *MemoryCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewMemoryCache constructs a cache whose entries live for ttl.
func NewMemoryCache(ttl time.Duration, opts ...MemoryCacheOption) *MemoryCache {
	c := &MemoryCache{ttl: ttl, clock: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, ids []id.ActorID) (map[id.ActorID]Actor, error) {
	now := c.clock()
	out := make(map[id.ActorID]Actor, len(ids))
	for _, actorID := range ids {
		v, ok := c.entries.Load(actorID)
		if !ok {
			continue
		}
		entry := v.(cacheEntry)
		if !now.Before(entry.expiresAt) {
			c.entries.CompareAndDelete(actorID, v)
			continue
		}
		out[actorID] = entry.actor
	}
	return out, nil
}

func (c *MemoryCache) Set(_ context.Context, actors ...Actor) error {
	expiresAt := c.clock().Add(c.ttl)
	for _, a := range actors {
		c.entries.Store(a.ID, cacheEntry{actor: a, expiresAt: expiresAt})
	}
	return nil
}

func (c *MemoryCache) Remove(_ context.Context, actorID id.ActorID) error {
	c.entries.Delete(actorID)
	return nil
}
