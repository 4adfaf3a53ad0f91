// Package cache provides the scan-result cache: a bounded, TTL- and
// source-mtime-aware in-memory tier, optionally backed by a persistent
// SQLite store that survives process restarts.
package cache

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/eihwaz/internal/apperr"
)

// Entry is one cached value. Values are serialized bytes so the cache hands
// out copies, never live references into a caller's result.
type Entry struct {
	Key         string
	Value       []byte
	CreatedAt   time.Time
	ExpiresAt   time.Time
	SourceMtime time.Time
}

func (e *Entry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// stale reports whether the source directory has been modified after the
// entry was cached.
func (e *Entry) stale(currentMtime time.Time) bool {
	return currentMtime.After(e.SourceMtime)
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Entries   int `json:"entries"`
	Hits      int `json:"hits"`
	Misses    int `json:"misses"`
	Evictions int `json:"evictions"`
}

// Cache is safe for concurrent use. A single mutex guards both the index
// and the eviction bookkeeping; no lock is held across a store syscall
// longer than necessary to update in-memory state.
type Cache struct {
	logger     *slog.Logger
	maxEntries int
	ttl        time.Duration
	store      *Store

	mu      sync.Mutex
	entries map[string]*Entry
	stats   Stats
}

// New creates a cache. maxEntries <= 0 means unbounded; ttl <= 0 applies a
// one-hour default. store may be nil for a memory-only cache.
func New(logger *slog.Logger, maxEntries int, ttl time.Duration, store *Store) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		logger:     logger,
		maxEntries: maxEntries,
		ttl:        ttl,
		store:      store,
		entries:    make(map[string]*Entry),
	}
}

// Get returns the cached value for key. A hit is valid only when the entry
// has not expired and currentMtime has not advanced past the source mtime
// recorded at caching time; invalid entries are discarded.
func (c *Cache) Get(key string, currentMtime time.Time) ([]byte, bool) {
	now := time.Now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if !e.expired(now) && !e.stale(currentMtime) {
			c.stats.Hits++
			c.mu.Unlock()
			return e.Value, true
		}
		delete(c.entries, key)
	}
	c.stats.Misses++
	c.mu.Unlock()

	if c.store == nil {
		return nil, false
	}

	e, err := c.store.Get(key)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			c.logger.Debug("cache: store read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	if e.expired(now) || e.stale(currentMtime) {
		if delErr := c.store.Delete(key); delErr != nil {
			c.logger.Debug("cache: store delete failed", slog.String("error", delErr.Error()))
		}
		return nil, false
	}

	// Promote to the memory tier. The miss above already counted; the
	// promoted entry serves future gets as hits.
	c.mu.Lock()
	c.evictForSpace()
	c.entries[key] = e
	c.mu.Unlock()
	return e.Value, true
}

// Set caches value under key, recording sourceMtime for coherence checks,
// and writes through to the persistent store when one is configured.
func (c *Cache) Set(key string, value []byte, sourceMtime time.Time) {
	now := time.Now()
	e := &Entry{
		Key:         key,
		Value:       value,
		CreatedAt:   now,
		ExpiresAt:   now.Add(c.ttl),
		SourceMtime: sourceMtime,
	}

	c.mu.Lock()
	c.evictForSpace()
	c.entries[key] = e
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Put(e); err != nil {
			c.logger.Debug("cache: store write failed", slog.String("error", err.Error()))
		}
	}
}

// Delete removes key from both tiers.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Delete(key); err != nil {
			c.logger.Debug("cache: store delete failed", slog.String("error", err.Error()))
		}
	}
}

// Clear drops every memory entry and, when a store is configured, every
// persisted entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Clear(); err != nil {
			c.logger.Debug("cache: store clear failed", slog.String("error", err.Error()))
		}
	}
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}

// evictForSpace removes oldest-created entries until one slot is free.
// Caller must hold mu.
func (c *Cache) evictForSpace() {
	if c.maxEntries <= 0 {
		return
	}
	for len(c.entries) >= c.maxEntries {
		oldestKey := ""
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.CreatedAt.Before(oldest) {
				oldestKey = k
				oldest = e.CreatedAt
			}
		}
		if oldestKey == "" {
			return
		}
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}
