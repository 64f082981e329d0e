package window

import "github.com/objectfs/windowio/pkg/types"

// Cache stores windows keyed by their absolute start position.
type Cache interface {
	// Window returns the window starting at position, or nil if it is not cached.
	Window(position int64) (*Window, error)

	// Add inserts a window, possibly evicting or spilling others.
	Add(w *Window) error

	// Read copies bytes starting at offset within the window at position into dst.
	// A miss returns 0 and no error. Implementations may continue into the following
	// windows when they are cached too.
	Read(position int64, offset int, dst []byte) (int, error)

	// Clear releases every cached window and any storage behind them.
	Clear() error
}

// StatsProvider is implemented by caches that track statistics.
type StatsProvider interface {
	Stats() types.CacheStats
}
