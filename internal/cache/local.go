package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// minPurgeInterval bounds how often the background sweep runs for short TTLs.
const minPurgeInterval = time.Second

// LocalCache implements Cache in process memory.
// This is suitable for single-instance deployments.
type LocalCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     Clock

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewLocalCache creates an in-memory cache. A nil clock uses time.Now.
// With a positive ttl a background sweep purges expired entries every ttl
// until Close is called.
func NewLocalCache(ttl time.Duration, clock Clock) *LocalCache {
	if ttl <= 0 {
		return newLocalCache(ttl, clock, nil)
	}
	ticker := time.NewTicker(max(ttl, minPurgeInterval))
	c := newLocalCache(ttl, clock, ticker.C)
	go func() {
		<-c.done
		ticker.Stop()
	}()
	return c
}

// newLocalCache sweeps on every value received from ticks. A nil ticks disables the sweep.
func newLocalCache(ttl time.Duration, clock Clock, ticks <-chan time.Time) *LocalCache {
	if clock == nil {
		clock = time.Now
	}
	c := &LocalCache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     clock,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if ticks == nil {
		close(c.done)
		return c
	}
	go c.purgeLoop(ticks)
	return c
}

func (c *LocalCache) purgeLoop(ticks <-chan time.Time) {
	defer close(c.done)
	for {
		select {
		case <-ticks:
			if n := c.Purge(); n > 0 {
				slog.Debug("purged expired cache entries", "purged", n, "remaining", c.Len())
			}
		case <-c.stop:
			return
		}
	}
}

// Get returns the value for key if it has not expired. Expired entries are removed.
func (c *LocalCache) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if e.expired(c.now(), c.ttl) {
		c.mu.Lock()
		// re-check, a concurrent Set may have refreshed it
		if cur, ok := c.entries[key]; ok && cur.expired(c.now(), c.ttl) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.Value, true, nil
}

// Set stores value under key.
func (c *LocalCache) Set(_ context.Context, key string, value json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{Value: value, InsertedAt: c.now()}
	return nil
}

// Purge removes every expired entry and returns how many were dropped.
func (c *LocalCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, e := range c.entries {
		if e.expired(now, c.ttl) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (c *LocalCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background sweep. It is safe to call more than once.
func (c *LocalCache) Close() error {
	c.closeOnce.Do(func() { close(c.stop) })
	<-c.done
	return nil
}
