package cache

import (
	"github.com/objectfs/windowio/internal/metrics"
	wioerrors "github.com/objectfs/windowio/pkg/errors"
	"github.com/objectfs/windowio/pkg/types"
	"github.com/objectfs/windowio/pkg/window"
)

// Policy decides when windows reach the secondary tier of a TwoLevelCache.
type Policy string

const (
	// PolicySpill writes a window to the secondary tier when the primary evicts it.
	PolicySpill Policy = "spill"
	// PolicyWriteThrough writes every added window to both tiers.
	PolicyWriteThrough Policy = "write_through"
)

// TwoLevelConfig represents two-level cache configuration
type TwoLevelConfig struct {
	Primary  *LRUConfig      `yaml:"primary"`
	Overflow *OverflowConfig `yaml:"overflow"`
	Policy   Policy          `yaml:"policy"`
}

// TwoLevelCache puts a bounded LRU in front of a durable cache so that nothing a
// forward-only source has produced is lost to eviction. Secondary hits are not
// promoted back into the primary.
type TwoLevelCache struct {
	primary   *LRUCache
	secondary window.Cache
	policy    Policy
}

// NewTwoLevelCache creates a two-level cache with an LRU primary and an overflow
// secondary built from config.
func NewTwoLevelCache(config *TwoLevelConfig, collector *metrics.Collector) (*TwoLevelCache, error) {
	if config == nil {
		config = &TwoLevelConfig{}
	}

	primary, err := NewLRUCache(config.Primary, collector)
	if err != nil {
		return nil, err
	}
	secondary, err := NewOverflowCache(config.Overflow, collector)
	if err != nil {
		return nil, err
	}
	return Compose(primary, secondary, config.Policy)
}

// Compose layers an existing primary over an existing secondary.
func Compose(primary *LRUCache, secondary window.Cache, policy Policy) (*TwoLevelCache, error) {
	if primary == nil || secondary == nil {
		return nil, wioerrors.InvalidArgument("cache", "two-level cache needs both tiers")
	}
	switch policy {
	case "":
		policy = PolicySpill
	case PolicySpill, PolicyWriteThrough:
	default:
		return nil, wioerrors.InvalidArgument("cache", "unknown two-level policy %q", policy)
	}

	c := &TwoLevelCache{
		primary:   primary,
		secondary: secondary,
		policy:    policy,
	}
	if policy == PolicySpill {
		primary.OnEvict(c.spill)
	}
	return c, nil
}

// Window implements window.Cache.
func (c *TwoLevelCache) Window(position int64) (*window.Window, error) {
	w, err := c.primary.Window(position)
	if w != nil || err != nil {
		return w, err
	}
	return c.secondary.Window(position)
}

// Add implements window.Cache. A failure to spill an evicted window is returned here.
func (c *TwoLevelCache) Add(w *window.Window) error {
	if c.policy == PolicyWriteThrough {
		if err := c.secondary.Add(w); err != nil {
			return err
		}
	}
	return c.primary.Add(w)
}

// Read implements window.Cache.
func (c *TwoLevelCache) Read(position int64, offset int, dst []byte) (int, error) {
	n, err := c.primary.Read(position, offset, dst)
	if n > 0 || err != nil {
		return n, err
	}
	return c.secondary.Read(position, offset, dst)
}

// Clear implements window.Cache. Both tiers are cleared; cleared primary windows are
// not spilled.
func (c *TwoLevelCache) Clear() error {
	primaryErr := c.primary.Clear()
	secondaryErr := c.secondary.Clear()
	if primaryErr != nil {
		return primaryErr
	}
	return secondaryErr
}

// Primary returns the bounded tier.
func (c *TwoLevelCache) Primary() *LRUCache {
	return c.primary
}

// Secondary returns the durable tier.
func (c *TwoLevelCache) Secondary() window.Cache {
	return c.secondary
}

// Stats returns the combined statistics of both tiers.
func (c *TwoLevelCache) Stats() types.CacheStats {
	stats := c.primary.Stats()
	if sp, ok := c.secondary.(window.StatsProvider); ok {
		stats.Add(sp.Stats())
	}
	return stats
}

func (c *TwoLevelCache) spill(w *window.Window) error {
	logger.Debugf("spilling window %d to secondary", w.Position())
	return c.secondary.Add(w)
}

// NoCache retains nothing. It suits sources whose whole content is one window already
// held by the reader.
type NoCache struct{}

// Window implements window.Cache.
func (NoCache) Window(int64) (*window.Window, error) { return nil, nil }

// Add implements window.Cache.
func (NoCache) Add(*window.Window) error { return nil }

// Read implements window.Cache.
func (NoCache) Read(int64, int, []byte) (int, error) { return 0, nil }

// Clear implements window.Cache.
func (NoCache) Clear() error { return nil }
