package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepup-id/api/internal/domain"
)

func newTestCache(t *testing.T, ttl time.Duration, capacity int) (*IdentityCache, *time.Time) {
	t.Helper()
	c := New(ttl, capacity)
	t.Cleanup(c.Shutdown)

	now := time.Now()
	c.now = func() time.Time { return now }
	return c, &now
}

func snapshotFor(id uuid.UUID) domain.FactorSnapshot {
	confirmed := time.Now()
	return domain.FactorSnapshot{
		IdentityID:  id,
		Method:      domain.MethodTOTP,
		Email:       "user@example.com",
		ConfirmedAt: &confirmed,
	}
}

func TestGet_Missing(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)

	_, ok := c.Get(uuid.New())
	assert.False(t, ok)
}

func TestPutGet_RoundTrip(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)
	id := uuid.New()

	c.Put(id, snapshotFor(id))

	got, ok := c.Get(id)
	require.True(t, ok)
	assert.Equal(t, id, got.IdentityID)
	assert.Equal(t, domain.MethodTOTP, got.Method)
}

func TestGet_NeverReturnsExpired(t *testing.T) {
	c, now := newTestCache(t, 10*time.Minute, 10)
	id := uuid.New()

	c.Put(id, snapshotFor(id))

	*now = now.Add(11 * time.Minute)
	_, ok := c.Get(id)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "stale entry should be removed on read")
}

func TestPut_Overwrites(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)
	id := uuid.New()

	c.Put(id, snapshotFor(id))
	updated := snapshotFor(id)
	updated.Method = domain.MethodEmail
	c.Put(id, updated)

	got, ok := c.Get(id)
	require.True(t, ok)
	assert.Equal(t, domain.MethodEmail, got.Method)
	assert.Equal(t, 1, c.Len())
}

func TestInvalidate(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)
	id := uuid.New()

	c.Put(id, snapshotFor(id))
	c.Invalidate(id)

	_, ok := c.Get(id)
	assert.False(t, ok)
}

func TestPut_EvictsNearestExpiryAtCapacity(t *testing.T) {
	c, now := newTestCache(t, 10*time.Minute, 10)

	// Fill to capacity with staggered insertion times so expiries differ.
	ids := make([]uuid.UUID, 10)
	for i := range ids {
		ids[i] = uuid.New()
		c.Put(ids[i], snapshotFor(ids[i]))
		*now = now.Add(time.Second)
	}
	require.Equal(t, 10, c.Len())

	trigger := uuid.New()
	c.Put(trigger, snapshotFor(trigger))

	// 20% of 10 = 2 oldest evicted, then the new entry inserted.
	assert.Equal(t, 9, c.Len())
	_, ok := c.Get(ids[0])
	assert.False(t, ok, "entry nearest expiry should be evicted")
	_, ok = c.Get(ids[1])
	assert.False(t, ok, "second-nearest entry should be evicted")
	_, ok = c.Get(ids[2])
	assert.True(t, ok)
	_, ok = c.Get(trigger)
	assert.True(t, ok)
}

func TestSweep_RemovesExpired(t *testing.T) {
	c, now := newTestCache(t, 10*time.Minute, 100)

	stale := uuid.New()
	c.Put(stale, snapshotFor(stale))

	*now = now.Add(5 * time.Minute)
	fresh := uuid.New()
	c.Put(fresh, snapshotFor(fresh))

	*now = now.Add(6 * time.Minute)
	c.sweep()

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(fresh)
	assert.True(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute, 1000)
	defer c.Shutdown()

	ids := make([]uuid.UUID, 32)
	for i := range ids {
		ids[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				id := ids[(seed+i)%len(ids)]
				switch i % 3 {
				case 0:
					c.Put(id, snapshotFor(id))
				case 1:
					c.Get(id)
				default:
					c.Invalidate(id)
				}
			}
		}(w)
	}
	wg.Wait()
}

func TestShutdown_ClearsEntries(t *testing.T) {
	c := New(time.Minute, 10)
	id := uuid.New()
	c.Put(id, snapshotFor(id))

	c.Shutdown()
	assert.Equal(t, 0, c.Len())
}
