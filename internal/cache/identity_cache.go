package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stepup-id/api/internal/domain"
)

const (
	// DefaultTTL is how long a snapshot stays valid after insertion.
	DefaultTTL = 10 * time.Minute

	// DefaultCapacity bounds the number of live entries.
	DefaultCapacity = 10000

	// evictFraction of entries (those closest to expiry) are dropped when
	// an insert finds the cache at capacity.
	evictFraction = 0.20
)

type entry struct {
	snapshot  domain.FactorSnapshot
	expiresAt time.Time
}

// IdentityCache is a bounded TTL cache of factor-state snapshots sitting in
// front of the persistent store. A lookup never returns an expired entry.
// Safe for concurrent use.
type IdentityCache struct {
	mu       sync.Mutex
	entries  map[uuid.UUID]entry
	ttl      time.Duration
	capacity int

	now  func() time.Time // swapped in tests
	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a cache with the given entry TTL and capacity ceiling and
// starts a background janitor that sweeps expired entries. Call Shutdown
// when done.
func New(ttl time.Duration, capacity int) *IdentityCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &IdentityCache{
		entries:  make(map[uuid.UUID]entry),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	c.wg.Add(1)
	go c.janitor()
	return c
}

// Get returns the cached snapshot for id. Stale entries are treated as
// absent and removed.
func (c *IdentityCache) Get(id uuid.UUID) (domain.FactorSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return domain.FactorSnapshot{}, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, id)
		return domain.FactorSnapshot{}, false
	}
	return e.snapshot, true
}

// Put inserts a snapshot with expiry now+TTL, overwriting any prior entry.
// When the cache is at capacity, the 20% of entries nearest to expiry are
// evicted first.
func (c *IdentityCache) Put(id uuid.UUID, snapshot domain.FactorSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[id]; !exists && len(c.entries) >= c.capacity {
		c.evictNearestLocked()
	}
	c.entries[id] = entry{snapshot: snapshot, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate removes the entry for id, if any. Called after every factor
// mutation so a stale snapshot can never gate a login.
func (c *IdentityCache) Invalidate(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Len returns the number of entries currently held, including any that
// expired but have not been swept yet.
func (c *IdentityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Shutdown stops the janitor and releases the entries.
func (c *IdentityCache) Shutdown() {
	close(c.done)
	c.wg.Wait()

	c.mu.Lock()
	c.entries = make(map[uuid.UUID]entry)
	c.mu.Unlock()
}

// evictNearestLocked drops the entries with the nearest expiresAt, an
// approximation of least-remaining-lifetime. Caller holds c.mu.
func (c *IdentityCache) evictNearestLocked() {
	n := int(float64(len(c.entries)) * evictFraction)
	if n < 1 {
		n = 1
	}

	type victim struct {
		id        uuid.UUID
		expiresAt time.Time
	}
	victims := make([]victim, 0, len(c.entries))
	for id, e := range c.entries {
		victims = append(victims, victim{id: id, expiresAt: e.expiresAt})
	}
	sort.Slice(victims, func(i, j int) bool {
		return victims[i].expiresAt.Before(victims[j].expiresAt)
	})
	for i := 0; i < n && i < len(victims); i++ {
		delete(c.entries, victims[i].id)
	}
}

// janitor sweeps expired entries so abandoned identities do not pin memory
// until the next Put crosses the capacity ceiling.
func (c *IdentityCache) janitor() {
	defer c.wg.Done()

	interval := c.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *IdentityCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, id)
		}
	}
}
