// Package cache implements the persistent query cache for secondary-source
// searches. The cache maps a normalized query string to a ranked candidate
// list, is bounded in size, and evicts by insertion order (oldest first).
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/dvallejo/tunesync/internal/domain"
)

// Entry is one cached search: a ranked candidate list plus its fetch time.
type Entry struct {
	Query      string                   `json:"query"`
	Candidates []domain.CandidateResult `json:"candidates"`
	FetchedAt  time.Time                `json:"fetched_at"`
}

// Store is the persistence boundary for the cache. Implementations must
// preserve entry order across Save/Load so eviction priority survives a
// restart.
type Store interface {
	Load() ([]Entry, error)
	Save(entries []Entry) error
}

// Cache is the in-memory query cache. Lookups may run concurrently; stores
// are serialized.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	order    []string // insertion order, oldest first
	capacity int

	// saveMu serializes writes to the persistence store so an older
	// snapshot can never land on disk after a newer one.
	saveMu sync.Mutex
	store  Store
}

// New creates a cache with the given capacity, loading persisted entries
// from store. A nil store keeps the cache memory-only. Load failures and
// unreadable entries are discarded, never fatal.
func New(capacity int, store Store) *Cache {
	c := &Cache{
		entries:  make(map[string]Entry),
		capacity: capacity,
		store:    store,
	}

	if store != nil {
		if persisted, err := store.Load(); err == nil {
			for _, e := range persisted {
				key := NormalizeKey(e.Query)
				if key == "" || len(e.Candidates) == 0 {
					continue
				}
				if _, ok := c.entries[key]; !ok {
					c.order = append(c.order, key)
				}
				c.entries[key] = e
			}
			c.evictLocked()
		}
	}

	return c
}

// NormalizeKey case-normalizes and whitespace-collapses a query string into
// its cache key form.
func NormalizeKey(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Lookup returns the cached entry for query, if present.
func (c *Cache) Lookup(query string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[NormalizeKey(query)]
	return e, ok
}

// Store inserts or overwrites the candidates for query and enforces
// capacity. Re-storing an existing key refreshes its insertion position.
// The persisted snapshot is written after every mutation.
func (c *Cache) Store(query string, candidates []domain.CandidateResult) {
	key := NormalizeKey(query)
	if key == "" {
		return
	}

	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		c.removeFromOrder(key)
	}
	c.entries[key] = Entry{
		Query:      key,
		Candidates: candidates,
		FetchedAt:  time.Now(),
	}
	c.order = append(c.order, key)
	c.evictLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if c.store != nil {
		_ = c.store.Save(snapshot)
	}
}

// Len returns the number of cached queries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Flush writes the current snapshot to the persistence store.
func (c *Cache) Flush() error {
	if c.store == nil {
		return nil
	}

	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.RLock()
	snapshot := c.snapshotLocked()
	c.mu.RUnlock()

	return c.store.Save(snapshot)
}

// Clear drops every entry and persists the empty state.
func (c *Cache) Clear() error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.order = nil
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	return c.store.Save(nil)
}

// evictLocked removes the earliest-inserted entries until the cache is at or
// under capacity. Caller must hold the write lock.
func (c *Cache) evictLocked() {
	if c.capacity <= 0 {
		return
	}
	for len(c.entries) > c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *Cache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// snapshotLocked copies entries in insertion order. Caller must hold at
// least the read lock.
func (c *Cache) snapshotLocked() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, key := range c.order {
		if e, ok := c.entries[key]; ok {
			out = append(out, e)
		}
	}
	return out
}
