package google

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
	"github.com/couchcryptid/nga-flood-trigger/internal/observability"
)

// fetcher is the subset of Client the cache decorates.
type fetcher interface {
	FetchForecasts(ctx context.Context, monitoringDate time.Time) ([]domain.ForecastRow, error)
}

// CachedClient wraps a forecast fetcher with an in-memory LRU cache keyed by
// monitoring date. Issued forecasts never change, so repeated runs for the
// same date reuse the first non-empty answer.
type CachedClient struct {
	inner   fetcher
	name    string
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedClient creates a cache decorator around a fetcher.
func NewCachedClient(inner *Client, maxEntries int, metrics *observability.Metrics) *CachedClient {
	return newCachedClient(inner, maxEntries, metrics)
}

func newCachedClient(inner fetcher, maxEntries int, metrics *observability.Metrics) *CachedClient {
	return &CachedClient{
		inner:   inner,
		name:    string(domain.SourceGoogle),
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// Name identifies the source in logs.
func (c *CachedClient) Name() string { return c.name }

func (c *CachedClient) FetchForecasts(ctx context.Context, monitoringDate time.Time) ([]domain.ForecastRow, error) {
	key := domain.FormatDate(monitoringDate)
	if rows, ok := c.cache.get(key); ok {
		c.metrics.GoogleCache.WithLabelValues("hit").Inc()
		return rows, nil
	}
	c.metrics.GoogleCache.WithLabelValues("miss").Inc()

	rows, err := c.inner.FetchForecasts(ctx, monitoringDate)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so a forecast not yet issued is retried.
	if len(rows) > 0 {
		c.cache.put(key, rows)
	}
	return rows, nil
}

// lruCache is a simple thread-safe LRU cache of forecast rows.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []domain.ForecastRow
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]domain.ForecastRow, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.ForecastRow) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
