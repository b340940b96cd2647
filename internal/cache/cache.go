// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

// Package cache provides the TTL memoization layer for recommendation
// results. Entries carry dependency tags so engagement writes can
// invalidate by predicate instead of flushing the whole cache.
package cache

import (
	"context"
	"sync"
	"time"
)

// Entry represents a cached item with expiration and dependency tags.
type Entry struct {
	Data       interface{}
	ComputedAt time.Time
	ExpiresAt  time.Time
	Tags       []string
}

// Cache is a thread-safe in-memory cache with TTL support and tag-based
// invalidation.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	defaultTTL time.Duration
	stats      statsCounters
}

// statsCounters tracks cache performance metrics.
type statsCounters struct {
	mu            sync.Mutex
	hits          int64
	misses        int64
	evictions     int64
	invalidations int64
	lastCleanup   time.Time
}

// Stats is a point-in-time snapshot of cache metrics.
type Stats struct {
	Hits          int64     `json:"hits"`
	Misses        int64     `json:"misses"`
	Evictions     int64     `json:"evictions"`
	Invalidations int64     `json:"invalidations"`
	TotalKeys     int64     `json:"total_keys"`
	HitRate       float64   `json:"hit_rate"`
	LastCleanup   time.Time `json:"last_cleanup"`
}

// New creates a cache with the given default TTL. Expired entries are
// dropped lazily on read; call Sweep for periodic cleanup.
func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &Cache{
		entries:    make(map[string]Entry),
		defaultTTL: defaultTTL,
		stats:      statsCounters{lastCleanup: time.Now()},
	}
}

// Get retrieves a live value. Expired entries are deleted and counted as
// misses.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.recordMiss()
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if current, still := c.entries[key]; still && time.Now().After(current.ExpiresAt) {
			delete(c.entries, key)
			c.recordEviction()
		}
		c.mu.Unlock()
		c.recordMiss()
		return nil, false
	}

	c.recordHit()
	return entry.Data, true
}

// Set stores a value with the default TTL and the given dependency tags.
func (c *Cache) Set(key string, value interface{}, tags ...string) {
	c.SetWithTTL(key, value, c.defaultTTL, tags...)
}

// SetWithTTL stores a value with a custom TTL.
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration, tags ...string) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()

	c.mu.Lock()
	c.entries[key] = Entry{
		Data:       value,
		ComputedAt: now,
		ExpiresAt:  now.Add(ttl),
		Tags:       tags,
	}
	c.mu.Unlock()
}

// GetOrCompute returns the live cached value for key, or runs compute and
// stores its result with the given TTL and tags. A failed compute is never
// stored, so an error cannot poison the cache. The second return reports
// whether the value came from the cache.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration,
	tags []string, compute func(context.Context) (interface{}, error)) (interface{}, bool, error) {

	if value, ok := c.Get(key); ok {
		return value, true, nil
	}

	value, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}

	c.SetWithTTL(key, value, ttl, tags...)
	return value, false, nil
}

// Delete removes a single entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes all entries.
func (c *Cache) Clear() int {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]Entry)
	c.mu.Unlock()

	c.stats.mu.Lock()
	c.stats.invalidations += int64(n)
	c.stats.mu.Unlock()
	return n
}

// Invalidate removes every entry the predicate matches and returns how many
// were dropped. The predicate sees the key and the entry's dependency tags.
func (c *Cache) Invalidate(pred func(key string, tags []string) bool) int {
	c.mu.Lock()
	n := 0
	for key, entry := range c.entries {
		if pred(key, entry.Tags) {
			delete(c.entries, key)
			n++
		}
	}
	c.mu.Unlock()

	if n > 0 {
		c.stats.mu.Lock()
		c.stats.invalidations += int64(n)
		c.stats.mu.Unlock()
	}
	return n
}

// InvalidatePost drops every entry whose result could include the given
// post: entries tagged with the post itself, with its category, or marked
// volatile (trending/personalized, which shift on any engagement write).
// Over-invalidation is fine; serving stale results to the writer is not.
func (c *Cache) InvalidatePost(postID, categoryID string) int {
	postTag := TagPost(postID)
	categoryTag := TagCategory(categoryID)

	return c.Invalidate(func(_ string, tags []string) bool {
		for _, tag := range tags {
			if tag == postTag || tag == TagVolatile {
				return true
			}
			if categoryID != "" && tag == categoryTag {
				return true
			}
		}
		return false
	})
}

// Sweep removes expired entries once and returns the number of keys left.
// Intended to be driven by a supervised janitor.
func (c *Cache) Sweep() int {
	c.cleanup()

	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cleanup removes all expired entries.
func (c *Cache) cleanup() {
	now := time.Now()

	c.mu.Lock()
	evicted := int64(0)
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	c.mu.Unlock()

	c.stats.mu.Lock()
	c.stats.evictions += evicted
	c.stats.lastCleanup = now
	c.stats.mu.Unlock()
}

// GetStats returns a snapshot of cache metrics.
func (c *Cache) GetStats() Stats {
	c.mu.RLock()
	keys := int64(len(c.entries))
	c.mu.RUnlock()

	c.stats.mu.Lock()
	defer c.stats.mu.Unlock()

	total := c.stats.hits + c.stats.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.stats.hits) / float64(total) * 100.0
	}

	return Stats{
		Hits:          c.stats.hits,
		Misses:        c.stats.misses,
		Evictions:     c.stats.evictions,
		Invalidations: c.stats.invalidations,
		TotalKeys:     keys,
		HitRate:       rate,
		LastCleanup:   c.stats.lastCleanup,
	}
}

func (c *Cache) recordHit() {
	c.stats.mu.Lock()
	c.stats.hits++
	c.stats.mu.Unlock()
}

func (c *Cache) recordMiss() {
	c.stats.mu.Lock()
	c.stats.misses++
	c.stats.mu.Unlock()
}

func (c *Cache) recordEviction() {
	c.stats.mu.Lock()
	c.stats.evictions++
	c.stats.mu.Unlock()
}
