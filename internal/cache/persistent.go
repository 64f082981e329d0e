package cache

import (
	"github.com/objectfs/windowio/internal/metrics"
	wioerrors "github.com/objectfs/windowio/pkg/errors"
	"github.com/objectfs/windowio/pkg/types"
	"github.com/objectfs/windowio/pkg/window"
)

// OverflowConfig represents overflow cache configuration
type OverflowConfig struct {
	Backend   string `yaml:"backend"`
	Directory string `yaml:"directory"`
}

// overflowEntry is what the cache remembers about a stored window.
type overflowEntry struct {
	length int
	span   int
}

// OverflowCache is an unbounded cache that writes every window to a durable store the
// first time it is added and can serve any stored window afterwards, in any order.
type OverflowCache struct {
	store   OverflowStore
	index   map[int64]overflowEntry
	metrics *metrics.Collector

	bytes int64
	stats types.CacheStats
}

// NewOverflowCache creates an overflow cache backed by the configured store.
func NewOverflowCache(config *OverflowConfig, collector *metrics.Collector) (*OverflowCache, error) {
	if config == nil {
		config = &OverflowConfig{Backend: BackendFile}
	}

	store, err := NewOverflowStore(config.Backend, config.Directory)
	if err != nil {
		return nil, err
	}
	return NewOverflowCacheWithStore(store, collector), nil
}

// NewOverflowCacheWithStore creates an overflow cache over an existing store.
func NewOverflowCacheWithStore(store OverflowStore, collector *metrics.Collector) *OverflowCache {
	return &OverflowCache{
		store:   store,
		index:   make(map[int64]overflowEntry),
		metrics: collector,
	}
}

// Window implements window.Cache. The returned window is rebuilt from the store.
func (c *OverflowCache) Window(position int64) (*window.Window, error) {
	entry, ok := c.index[position]
	c.recordLookup(ok)
	if !ok {
		return nil, nil
	}

	buf := make([]byte, entry.span)
	n, err := c.store.Get(position, 0, buf[:entry.length])
	if err != nil {
		return nil, err
	}
	if n != entry.length {
		return nil, wioerrors.Newf(wioerrors.ErrCodeStoreRead,
			"read %d bytes of window %d, want %d", n, position, entry.length).
			WithComponent("overflow")
	}
	return window.New(buf, position, entry.length)
}

// Add implements window.Cache. A window already stored at the same position is kept.
func (c *OverflowCache) Add(w *window.Window) error {
	if w == nil {
		return wioerrors.InvalidArgument("overflow", "cannot add a nil window")
	}
	if _, ok := c.index[w.Position()]; ok {
		return nil
	}

	buf, err := w.Array()
	if err != nil {
		return err
	}
	if err := c.store.Put(w.Position(), buf[:w.Length()]); err != nil {
		return err
	}

	c.index[w.Position()] = overflowEntry{length: w.Length(), span: w.Span()}
	c.bytes += int64(w.Length())
	c.metrics.RecordOverflowWrite(w.Length())
	logger.Debugf("overflow: stored window %d (%d bytes)", w.Position(), w.Length())
	return nil
}

// Read implements window.Cache, continuing into consecutive stored windows.
func (c *OverflowCache) Read(position int64, offset int, dst []byte) (int, error) {
	entry, ok := c.index[position]
	c.recordLookup(ok)
	if !ok {
		return 0, nil
	}

	total := 0
	for {
		n, err := c.store.Get(position, offset, dst[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 || total == len(dst) || offset+n < entry.length || entry.length < entry.span {
			return total, nil
		}

		position += int64(entry.span)
		if entry, ok = c.index[position]; !ok {
			return total, nil
		}
		c.recordLookup(true)
		offset = 0
	}
}

// Clear implements window.Cache. The backing store is deleted.
func (c *OverflowCache) Clear() error {
	c.index = make(map[int64]overflowEntry)
	c.bytes = 0
	return c.store.Close()
}

// Len returns the number of stored windows.
func (c *OverflowCache) Len() int {
	return len(c.index)
}

// Stats returns cache statistics
func (c *OverflowCache) Stats() types.CacheStats {
	stats := c.stats
	stats.Windows = len(c.index)
	stats.Bytes = c.bytes
	stats.UpdateHitRate()
	return stats
}

func (c *OverflowCache) recordLookup(hit bool) {
	if hit {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	c.metrics.RecordCacheLookup("overflow", hit)
}
