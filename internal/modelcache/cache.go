package modelcache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrBackendConstruction marks a failed artifact parse or backend
// instantiation inside Get. The cache keeps no entry for a failed
// construction, so a later Get retries independently.
var ErrBackendConstruction = errors.New("backend construction failed")

// Backend is a live, ready-to-score instantiation of a model artifact. The
// cache owns its lifetime exclusively: Close is called on eviction and no
// other component may hold a backend across cache invalidation.
type Backend interface {
	Close() error
}

// Key identifies one backend per worker process: the scope the host engine
// assigns this worker's session plus the model's unique id.
type Key struct {
	ScopeID  string
	ModelUID string
}

func (k Key) String() string {
	return k.ScopeID + "/" + k.ModelUID
}

// Construct builds a backend on a cache miss. Implementations typically parse
// the model artifact and stand up the in-process scoring engine.
type Construct func(ctx context.Context) (Backend, error)

type entry struct {
	backend    Backend
	lastAccess atomic.Int64 // unix nanos, touched on every hit
}

func (e *entry) touch() {
	e.lastAccess.Store(time.Now().UnixNano())
}

// Cache maps model identities to live scoring backends, one per worker
// process. Construction is single-flight: concurrent first accesses of the
// same key produce exactly one backend, and every caller gets that instance.
// Unrelated keys never serialize against each other.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]*entry
	group   singleflight.Group

	cleanupStarted atomic.Bool

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	Entries   int
	Hits      int64
	Misses    int64
	Evictions int64
}

// New returns an empty cache. Call StartCleanup once to enable idle eviction.
func New() *Cache {
	return &Cache{entries: make(map[Key]*entry)}
}

// Get returns the live backend for key, constructing it via construct on the
// first access. A failed construction leaves no entry behind and surfaces as
// ErrBackendConstruction to every waiting caller.
//
// Callers must not keep the returned backend across operations: each logical
// scoring operation re-fetches, which refreshes the idle clock and keeps the
// handle safe from the eviction scan.
func (c *Cache) Get(ctx context.Context, key Key, construct Construct) (Backend, error) {
	c.mu.RLock()
	e := c.entries[key]
	c.mu.RUnlock()
	if e != nil {
		c.hits.Add(1)
		e.touch()
		return e.backend, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// Re-check under the flight: a concurrent winner may have inserted.
		c.mu.RLock()
		existing := c.entries[key]
		c.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		backend, err := construct(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: model %s: %v", ErrBackendConstruction, key.ModelUID, err)
		}
		ne := &entry{backend: backend}
		ne.touch()
		c.mu.Lock()
		c.entries[key] = ne
		c.mu.Unlock()
		return ne, nil
	})
	if err != nil {
		return nil, err
	}
	e = v.(*entry)
	e.touch()
	return e.backend, nil
}

// Remove evicts one key immediately, closing its backend.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	e := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()
	if e != nil {
		closeBackend(key, e.backend)
	}
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats snapshots the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:   c.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// StartCleanup launches the background eviction task: every interval it scans
// all entries and closes those idle longer than idleAfter. Idempotent:
// repeated calls are no-ops and the first call reports true. The task runs
// for the life of the process; process teardown reclaims it.
func (c *Cache) StartCleanup(interval, idleAfter time.Duration) bool {
	if !c.cleanupStarted.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			c.evictIdle(idleAfter)
		}
	}()
	return true
}

// evictIdle removes entries whose last access is older than idleAfter.
// Backends are closed outside the lock so a slow Close never stalls scorers.
func (c *Cache) evictIdle(idleAfter time.Duration) {
	cutoff := time.Now().Add(-idleAfter).UnixNano()

	c.mu.Lock()
	var victims []Key
	for k, e := range c.entries {
		if e.lastAccess.Load() < cutoff {
			victims = append(victims, k)
		}
	}
	closed := make([]Backend, 0, len(victims))
	for _, k := range victims {
		closed = append(closed, c.entries[k].backend)
		delete(c.entries, k)
	}
	c.mu.Unlock()

	for i, b := range closed {
		c.evictions.Add(1)
		log.Printf("modelcache: evicting idle backend %s", victims[i])
		closeBackend(victims[i], b)
	}
}

func closeBackend(key Key, b Backend) {
	if err := b.Close(); err != nil {
		log.Printf("modelcache: closing backend %s: %v", key, err)
	}
}
