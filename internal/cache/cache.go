// Package cache provides a TTL memory cache for read-mostly HTTP endpoints.
package cache

import (
	"strings"
	"sync"
	"time"
)

// entry is one cached response
type entry struct {
	payload     []byte
	statusCode  int
	contentType string
	expiresAt   time.Time
}

// Stats is a point-in-time snapshot of cache accounting
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Sets      int64 `json:"sets"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
	Bytes     int64 `json:"bytes"`
}

// Cache is an owned TTL cache instance. A background sweep removes expired
// entries on a fixed interval independent of request traffic. Safe for
// concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	bytes   int64

	hits      int64
	misses    int64
	sets      int64
	evictions int64

	sweepDone chan struct{}
	closeOnce sync.Once

	onHit      func()
	onMiss     func()
	onSet      func()
	onEviction func()
}

// Option customizes a Cache
type Option func(*Cache)

// WithCounters installs metric hooks fired on hit, miss, set, and eviction.
// Any hook may be nil.
func WithCounters(onHit, onMiss, onSet, onEviction func()) Option {
	return func(c *Cache) {
		c.onHit = onHit
		c.onMiss = onMiss
		c.onSet = onSet
		c.onEviction = onEviction
	}
}

// New creates a Cache and starts its sweep loop
func New(sweepInterval time.Duration, opts ...Option) *Cache {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	c := &Cache{
		entries:   make(map[string]entry),
		sweepDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.sweepLoop(sweepInterval)
	return c
}

// Close stops the sweep loop
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.sweepDone)
	})
}

// Get returns the cached payload for key if present and unexpired
func (c *Cache) Get(key string) ([]byte, int, string, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		if c.onMiss != nil {
			c.onMiss()
		}
		return nil, 0, "", false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	if c.onHit != nil {
		c.onHit()
	}
	return e.payload, e.statusCode, e.contentType, true
}

// Set stores a payload under key with the given TTL
func (c *Cache) Set(key string, payload []byte, statusCode int, contentType string, ttl time.Duration) {
	stored := make([]byte, len(payload))
	copy(stored, payload)

	c.mu.Lock()
	if old, ok := c.entries[key]; ok {
		c.bytes -= int64(len(old.payload))
	}
	c.entries[key] = entry{
		payload:     stored,
		statusCode:  statusCode,
		contentType: contentType,
		expiresAt:   time.Now().Add(ttl),
	}
	c.bytes += int64(len(stored))
	c.sets++
	c.mu.Unlock()

	if c.onSet != nil {
		c.onSet()
	}
}

// Clear removes entries whose key contains pattern. An empty pattern clears
// everything and resets counters.
func (c *Cache) Clear(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pattern == "" {
		removed := len(c.entries)
		c.entries = make(map[string]entry)
		c.bytes = 0
		c.hits, c.misses, c.sets, c.evictions = 0, 0, 0, 0
		return removed
	}

	removed := 0
	for key, e := range c.entries {
		if strings.Contains(key, pattern) {
			c.bytes -= int64(len(e.payload))
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the cache accounting
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Sets:      c.sets,
		Evictions: c.evictions,
		Entries:   len(c.entries),
		Bytes:     c.bytes,
	}
}

// sweepLoop removes expired entries until Close
func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.sweepDone:
			return
		case <-ticker.C:
			c.sweep(time.Now())
		}
	}
}

// sweep removes entries that expired before now
func (c *Cache) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			c.bytes -= int64(len(e.payload))
			delete(c.entries, key)
			c.evictions++
			removed++
			if c.onEviction != nil {
				c.onEviction()
			}
		}
	}
	return removed
}
