// Package querycache memoizes read queries per tenant and entity and drops
// them when an EntityChanged event for that pair arrives.
package querycache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/carehub/carehub/internal/platform/eventbus"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
	gen       uint64
}

// Cache is safe for concurrent use. Concurrent misses on the same key
// share one load.
type Cache struct {
	ttl   time.Duration
	group singleflight.Group
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]map[string]entry // scope -> key -> entry
	gens    map[string]uint64           // scope -> generation
}

func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]map[string]entry),
		gens:    make(map[string]uint64),
	}
}

func scope(tenantID, entity string) string {
	return eventbus.Topic(tenantID, entity)
}

// Get returns the cached value for key or calls load. A load that started
// before an invalidation of the same scope is returned to its callers but
// not stored.
func Get[T any](ctx context.Context, c *Cache, tenantID, entity, key string, load func(context.Context) (T, error)) (T, error) {
	sc := scope(tenantID, entity)

	c.mu.Lock()
	if e, ok := c.entries[sc][key]; ok && c.now().Before(e.expiresAt) && e.gen == c.gens[sc] {
		c.mu.Unlock()
		return e.value.(T), nil
	}
	gen := c.gens[sc]
	c.mu.Unlock()

	v, err, _ := c.group.Do(fmt.Sprintf("%s|%d|%s", sc, gen, key), func() (interface{}, error) {
		val, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gens[sc] == gen {
			if c.entries[sc] == nil {
				c.entries[sc] = make(map[string]entry)
			}
			c.entries[sc][key] = entry{value: val, expiresAt: c.now().Add(c.ttl), gen: gen}
		}
		c.mu.Unlock()
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops every key cached for the tenant and entity.
func (c *Cache) Invalidate(tenantID, entity string) {
	sc := scope(tenantID, entity)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[sc]++
	delete(c.entries, sc)
}

// HandleEvent implements eventbus.Handler.
func (c *Cache) HandleEvent(_ context.Context, evt eventbus.EntityChanged) error {
	c.Invalidate(evt.TenantID, evt.Entity)
	return nil
}

// Len reports the number of cached keys, for tests and diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.entries {
		n += len(m)
	}
	return n
}
