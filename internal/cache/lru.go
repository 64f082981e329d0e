package cache

import (
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/objectfs/windowio/internal/metrics"
	wioerrors "github.com/objectfs/windowio/pkg/errors"
	"github.com/objectfs/windowio/pkg/types"
	"github.com/objectfs/windowio/pkg/utils"
	"github.com/objectfs/windowio/pkg/window"
)

// DefaultCapacity is the number of windows a recency-bounded cache keeps when no
// capacity is configured.
const DefaultCapacity = 32

var logger = utils.GetLogger("cache")

// EvictionListener is told about a window before an LRUCache drops it. An error is
// reported by the Add that caused the eviction.
type EvictionListener func(w *window.Window) error

// LRUConfig represents recency-bounded cache configuration
type LRUConfig struct {
	Capacity int    `yaml:"capacity"`
	Name     string `yaml:"name"`
}

// LRUCache keeps at most Capacity windows and evicts the least recently used one when a
// new window would exceed that. Both Add and a successful lookup count as use.
type LRUCache struct {
	config    *LRUConfig
	lru       *simplelru.LRU[int64, *window.Window]
	metrics   *metrics.Collector
	listeners []EvictionListener

	// purging suppresses eviction handling while Clear empties the cache.
	purging  bool
	evictErr error

	bytes int64
	stats types.CacheStats
}

// NewLRUCache creates a new LRU cache
func NewLRUCache(config *LRUConfig, collector *metrics.Collector) (*LRUCache, error) {
	cfg := LRUConfig{Capacity: DefaultCapacity}
	if config != nil {
		cfg = *config
	}
	if cfg.Capacity < 1 {
		return nil, wioerrors.InvalidArgument("cache", "cache capacity %d must be at least 1", cfg.Capacity)
	}
	if cfg.Name == "" {
		cfg.Name = "lru"
	}
	config = &cfg

	c := &LRUCache{
		config:  config,
		metrics: collector,
		stats: types.CacheStats{
			Capacity: config.Capacity,
		},
	}

	lru, err := simplelru.NewLRU[int64, *window.Window](config.Capacity, c.onEvict)
	if err != nil {
		return nil, wioerrors.NewError(wioerrors.ErrCodeInternalError, "failed to create LRU").
			WithComponent("cache").
			WithCause(err)
	}
	c.lru = lru

	return c, nil
}

// OnEvict registers a listener called for every window evicted by capacity pressure.
func (c *LRUCache) OnEvict(listener EvictionListener) {
	c.listeners = append(c.listeners, listener)
}

// Window implements window.Cache.
func (c *LRUCache) Window(position int64) (*window.Window, error) {
	w, ok := c.lru.Get(position)
	c.recordLookup(ok)
	if !ok {
		return nil, nil
	}
	return w, nil
}

// Add implements window.Cache.
func (c *LRUCache) Add(w *window.Window) error {
	if w == nil {
		return wioerrors.InvalidArgument("cache", "cannot add a nil window")
	}

	if old, ok := c.lru.Peek(w.Position()); ok {
		c.bytes -= int64(old.Span())
	}

	c.evictErr = nil
	c.lru.Add(w.Position(), w)
	c.bytes += int64(w.Span())

	err := c.evictErr
	c.evictErr = nil
	return err
}

// Read implements window.Cache. When the window at position is consumed and the next
// window is resident too, the copy continues into it.
func (c *LRUCache) Read(position int64, offset int, dst []byte) (int, error) {
	w, ok := c.lru.Get(position)
	c.recordLookup(ok)
	if !ok {
		return 0, nil
	}

	total := 0
	for {
		n, err := w.Read(offset, dst[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 || total == len(dst) || offset+n < w.Length() || w.Length() < w.Span() {
			return total, nil
		}

		next, ok := c.lru.Get(w.NextPosition())
		if !ok {
			return total, nil
		}
		c.recordLookup(true)
		w, offset = next, 0
	}
}

// Clear implements window.Cache. Listeners are not told about cleared windows.
func (c *LRUCache) Clear() error {
	c.purging = true
	c.lru.Purge()
	c.purging = false
	c.bytes = 0
	return nil
}

// Contains reports whether a window is resident without counting as use.
func (c *LRUCache) Contains(position int64) bool {
	return c.lru.Contains(position)
}

// Positions returns the resident window positions from least to most recently used.
func (c *LRUCache) Positions() []int64 {
	return c.lru.Keys()
}

// Len returns the number of resident windows.
func (c *LRUCache) Len() int {
	return c.lru.Len()
}

// Stats returns cache statistics
func (c *LRUCache) Stats() types.CacheStats {
	stats := c.stats
	stats.Windows = c.lru.Len()
	stats.Bytes = c.bytes
	stats.UpdateHitRate()
	return stats
}

func (c *LRUCache) onEvict(position int64, w *window.Window) {
	if c.purging {
		return
	}

	c.bytes -= int64(w.Span())
	c.stats.Evictions++
	c.metrics.RecordEviction(c.config.Name)
	logger.Debugf("%s: evicted window %d", c.config.Name, position)

	for _, listener := range c.listeners {
		if err := listener(w); err != nil && c.evictErr == nil {
			c.evictErr = err
		}
	}
}

func (c *LRUCache) recordLookup(hit bool) {
	if hit {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	c.metrics.RecordCacheLookup(c.config.Name, hit)
}
