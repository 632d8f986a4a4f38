package categorizer

import (
	"sync"
	"time"
)

// DefaultCacheTTL is how long a categorization stays valid when no TTL is
// configured.
const DefaultCacheTTL = 60 * time.Minute

// cacheEntry is one cached categorization together with its expiry.
type cacheEntry struct {
	value     Categorization
	expiresAt time.Time
}

// Cache is a concurrent lookaside cache of categorizations keyed by cookie
// name. Entries expire after the configured TTL and are purged lazily on
// lookup rather than swept in the background. It is constructed once and
// shared by all concurrent scans; a colliding Store simply overwrites, which
// is harmless because entries are idempotent per name.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewCache creates an empty cache whose entries live for ttl. A non-positive
// ttl falls back to DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Lookup splits names into cached hits and missing names. Entries found
// expired are deleted on the spot.
func (c *Cache) Lookup(names []string) (map[string]Categorization, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hits := make(map[string]Categorization)
	missing := make([]string, 0, len(names))
	now := c.now()

	for _, name := range names {
		entry, ok := c.entries[name]
		switch {
		case !ok:
			missing = append(missing, name)
		case now.Before(entry.expiresAt):
			hits[name] = entry.value
		default:
			delete(c.entries, name)
			missing = append(missing, name)
		}
	}

	return hits, missing
}

// Store inserts fresh categorizations, stamping each with now + TTL.
func (c *Cache) Store(values map[string]Categorization) {
	if len(values) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	for name, value := range values {
		c.entries[name] = cacheEntry{value: value, expiresAt: expiresAt}
	}
}

// Len returns the number of entries currently resident, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
