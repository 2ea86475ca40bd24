package directory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/trainhub/trainhub/pkg/auth"
)

// CacheConfig sizes the lookup cache
type CacheConfig struct {
	MaxEntries int
	TTL        time.Duration
}

// DefaultCacheConfig returns a small cache with a short TTL
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxEntries: 1024,
		TTL:        time.Minute,
	}
}

// CacheStats reports cache hit counters
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// CachedDirectory caches positive lookups in front of a Store.
// Misses are never cached so a user becomes visible right after registering.
type CachedDirectory struct {
	store  Store
	cache  *lru.LRU[string, User]
	hits   atomic.Uint64
	misses atomic.Uint64

	// generation changes around every Register; a lookup that overlapped one does not fill the cache
	mu         sync.Mutex
	generation uint64
}

// NewCachedDirectory wraps store with an expiring LRU cache
func NewCachedDirectory(store Store, cfg CacheConfig) *CachedDirectory {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultCacheConfig().MaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig().TTL
	}

	return &CachedDirectory{
		store: store,
		cache: lru.NewLRU[string, User](cfg.MaxEntries, nil, cfg.TTL),
	}
}

// LookupByTelegramID serves from cache, falling back to the store
func (c *CachedDirectory) LookupByTelegramID(ctx context.Context, telegramID string) (*User, error) {
	if u, ok := c.cache.Get(telegramID); ok {
		c.hits.Add(1)
		return &u, nil
	}
	c.misses.Add(1)

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	u, err := c.store.LookupByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.generation == gen {
		c.cache.Add(telegramID, *u)
	}
	c.mu.Unlock()

	return u, nil
}

// GroupByAccessCode is not cached
func (c *CachedDirectory) GroupByAccessCode(ctx context.Context, code string) (*Group, error) {
	return c.store.GroupByAccessCode(ctx, code)
}

// Register writes through. The committed record replaces any entry cached while the write was in flight.
func (c *CachedDirectory) Register(ctx context.Context, profile Profile, role auth.Role, group *Group) (*User, error) {
	c.bump(profile.TelegramID)

	u, err := c.store.Register(ctx, profile, role, group)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if err != nil {
		c.cache.Remove(profile.TelegramID)
		return nil, err
	}
	c.cache.Add(profile.TelegramID, *u)
	return u, nil
}

func (c *CachedDirectory) bump(telegramID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.cache.Remove(telegramID)
}

// Stats returns the current counters
func (c *CachedDirectory) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.cache.Len(),
	}
}
