package sgis

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/bizscope/weather-collector/internal/domain"
	"github.com/bizscope/weather-collector/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache. Station
// coordinates repeat across runs, so most lookups after the first full
// enrichment are hits.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lon, lat float64) (domain.Address, error) {
	key := fmt.Sprintf("%.6f,%.6f", lon, lat)
	if addr, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return addr, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	addr, err := c.inner.ReverseGeocode(ctx, lon, lat)
	if err != nil {
		return addr, err
	}
	// Only cache matches so a transient "no address found" can be retried.
	if !addr.IsZero() {
		c.cache.put(key, addr)
	}
	return addr, nil
}

// lruCache is a small thread-safe LRU for addresses.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
}

type cacheEntry struct {
	key  string
	addr domain.Address
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

func (c *lruCache) get(key string) (domain.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.Address{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).addr, true
}

func (c *lruCache) put(key string, addr domain.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).addr = addr
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, addr: addr})

	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}
