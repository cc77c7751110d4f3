package devops

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// maxExtensions bounds how often a hot entry can slide its expiration.
const maxExtensions = 6

type cacheEntry struct {
	Value       any
	Expiration  time.Time
	AccessCount int
	OriginalTTL time.Duration
}

// metadataCache is a sliding-window TTL cache for schema metadata. Identical
// concurrent loads are collapsed into one remote call.
type metadataCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	group   singleflight.Group
	now     func() time.Time
}

func newMetadataCache() *metadataCache {
	return &metadataCache{
		entries: make(map[string]*cacheEntry),
		now:     time.Now,
	}
}

func (c *metadataCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		log.Debug().Str("key", key).Msg("Cache miss")
		return nil, false
	}

	now := c.now()
	if now.After(entry.Expiration) {
		delete(c.entries, key)
		log.Debug().Str("key", key).Msg("Cache entry expired")
		return nil, false
	}
	log.Debug().Str("key", key).Msg("Cache hit")

	if entry.AccessCount < maxExtensions {
		entry.Expiration = now.Add(entry.OriginalTTL)
		entry.AccessCount++
		log.Trace().Str("key", key).Int("count", entry.AccessCount).Msg("Extended cache TTL")
	}

	return entry.Value, true
}

func (c *metadataCache) put(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{
		Value:       value,
		Expiration:  c.now().Add(ttl),
		OriginalTTL: ttl,
		AccessCount: 1,
	}
	log.Debug().Str("key", key).Dur("ttl", ttl).Msg("Added to cache")
}

func (c *metadataCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// load returns the cached value for key or calls fn once, even when several
// goroutines ask for the same key at the same time. Errors are not cached.
func (c *metadataCache) load(key string, ttl time.Duration, fn func() (any, error)) (any, error) {
	if ttl <= 0 {
		return fn()
	}
	if v, ok := c.get(key); ok {
		return v, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		v, err := fn()
		if err != nil {
			return nil, err
		}
		c.put(key, v, ttl)
		return v, nil
	})
	if shared {
		log.Debug().Str("key", key).Msg("Joined in-flight request")
	}
	return v, err
}

// cached is the typed front of metadataCache.load.
func cached[T any](c *metadataCache, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	v, err := c.load(key, ttl, func() (any, error) { return fn() })
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
