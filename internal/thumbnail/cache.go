package thumbnail

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/rs/zerolog"

	"github.com/illarion/photovault/internal/metrics"
)

// DefaultLimitBytes is the default memory budget.
const DefaultLimitBytes = 50 * 1024 * 1024

type entry struct {
	data        []byte
	lastAccess  time.Time
	accessCount uint64
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Count        int
	Bytes        int64
	LimitBytes   int64
	MaxDimension int
	Quality      int
}

// Cache holds generated thumbnails under a byte budget.
//
// Eviction removes the entry with the oldest access time; among entries
// accessed at the same instant the one with the fewest accesses goes first.
// The entry touched by the current call is never evicted by it.
type Cache struct {
	mu sync.Mutex

	lru     *simplelru.LRU[string, *entry]
	bytes   int64
	limit   int64
	maxDim  int
	quality int
	now     func() time.Time
	log     zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLimitBytes sets the memory budget. Non-positive values are ignored.
func WithLimitBytes(n int64) Option {
	return func(c *Cache) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithMaxDimension sets the default longest side for GetOrGenerate.
func WithMaxDimension(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxDim = n
		}
	}
}

// WithQuality sets the JPEG quality used when generating.
func WithQuality(q int) Option {
	return func(c *Cache) {
		if q >= 1 && q <= 100 {
			c.quality = q
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// NewCache creates an empty cache.
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		limit:   DefaultLimitBytes,
		maxDim:  DefaultMaxDimension,
		quality: DefaultQuality,
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// Only the byte budget bounds the cache; the count cap is never reached.
	lru, err := simplelru.NewLRU[string, *entry](math.MaxInt32, func(_ string, e *entry) {
		c.bytes -= int64(len(e.data))
	})
	if err != nil {
		panic(err) // size is a positive constant
	}
	c.lru = lru
	return c
}

// Get returns a copy of a cached thumbnail and records the access.
func (c *Cache) Get(id string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(id)
}

func (c *Cache) get(id string) ([]byte, bool) {
	e, ok := c.lru.Get(id)
	if !ok {
		metrics.CacheMisses.Inc()
		return nil, false
	}
	metrics.CacheHits.Inc()
	e.lastAccess = c.now()
	e.accessCount++
	return slices.Clone(e.data), true
}

// Put stores a copy of a thumbnail, evicting as needed. Data larger than
// the whole budget is not cached.
func (c *Cache) Put(id string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(id, data)
}

func (c *Cache) put(id string, data []byte) {
	size := int64(len(data))
	c.lru.Remove(id)
	if size > c.limit {
		c.log.Debug().Str("id", id).Int64("size", size).Msg("thumbnail exceeds cache budget, not cached")
		metrics.CacheBytes.Set(float64(c.bytes))
		return
	}

	c.lru.Add(id, &entry{data: slices.Clone(data), lastAccess: c.now(), accessCount: 1})
	c.bytes += size
	c.evict(id)
	metrics.CacheBytes.Set(float64(c.bytes))
}

// evict removes entries until the budget holds, never choosing keep.
func (c *Cache) evict(keep string) {
	for c.bytes > c.limit {
		victim, ok := c.victim(keep)
		if !ok {
			return
		}
		c.lru.Remove(victim)
		metrics.CacheEvictions.Inc()
	}
}

// victim picks the oldest-accessed entry, breaking ties on the lowest
// access count. Keys are ordered oldest to newest.
func (c *Cache) victim(keep string) (string, bool) {
	var (
		best   string
		bestE  *entry
		oldest time.Time
	)
	for _, k := range c.lru.Keys() {
		if k == keep {
			continue
		}
		e, _ := c.lru.Peek(k)
		if bestE == nil {
			best, bestE, oldest = k, e, e.lastAccess
			continue
		}
		if !e.lastAccess.Equal(oldest) {
			break
		}
		if e.accessCount < bestE.accessCount {
			best, bestE = k, e
		}
	}
	return best, bestE != nil
}

// GetOrGenerate returns the cached thumbnail for id, generating it from
// plaintext on a miss. maxDimension <= 0 selects the configured size.
func (c *Cache) GetOrGenerate(id string, plaintext []byte, maxDimension int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if data, ok := c.get(id); ok {
		return data, nil
	}
	if maxDimension <= 0 {
		maxDimension = c.maxDim
	}

	data, err := Generate(plaintext, maxDimension, c.quality)
	if err != nil {
		return nil, err
	}
	c.put(id, data)
	return data, nil
}

// RemoveEntry drops id from the cache.
func (c *Cache) RemoveEntry(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(id)
	metrics.CacheBytes.Set(float64(c.bytes))
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.bytes = 0
	metrics.CacheBytes.Set(0)
}

// Stats returns the current usage and generation settings.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Count:        c.lru.Len(),
		Bytes:        c.bytes,
		LimitBytes:   c.limit,
		MaxDimension: c.maxDim,
		Quality:      c.quality,
	}
}
