// Package rates resolves (pair, timestamp) lookups to BTC-denominated
// exchange rates, consulting a session cache, the historical rate service and
// two live ticker fallbacks.
package rates

import (
	"sync"
	"time"

	"github.com/vadiminshakov/coinfolio/internal/domain"
)

type cacheKey struct {
	pair string
	unix int64
}

// Cache is the session-scoped rate cache. It is append-only for the lifetime
// of a replay session and never evicts: request timestamps are already
// quantized to the granularity the rate service returns, so exact-match
// lookups are effective. The cache is owned by the session and passed by
// reference into every component that values holdings; it is not a process
// singleton. Writes are serialized so concurrent valuations can share it.
type Cache struct {
	mu     sync.RWMutex
	quotes map[cacheKey]domain.RateQuote
}

// NewCache creates an empty session cache.
func NewCache() *Cache {
	return &Cache{quotes: make(map[cacheKey]domain.RateQuote)}
}

// Get returns the cached quote for the pair at the original request timestamp.
func (c *Cache) Get(pair domain.Pair, ts time.Time) (domain.RateQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q, ok := c.quotes[cacheKey{pair: pair.String(), unix: ts.UnixNano()}]
	return q, ok
}

// Put stores a freshly resolved quote under its original request timestamp.
func (c *Cache) Put(q domain.RateQuote) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.quotes[cacheKey{pair: q.Pair.String(), unix: q.Time.UnixNano()}] = q
}

// Len returns the number of cached quotes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.quotes)
}

// All returns a snapshot of every cached quote, for persistence.
func (c *Cache) All() []domain.RateQuote {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.RateQuote, 0, len(c.quotes))
	for _, q := range c.quotes {
		out = append(out, q)
	}
	return out
}
