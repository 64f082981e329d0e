/*
Package cache provides the window caches used by windowed readers.

Every cache implements window.Cache and is keyed by the absolute start position of a
window. None of them is safe for concurrent use; a reader owns its cache exclusively.

# Cache Architecture

	┌──────────────────────────────┐
	│        Windowed reader        │
	└──────────────────────────────┘
	               │
	┌──────────────────────────────┐
	│         TwoLevelCache         │
	│  ┌────────────────────────┐  │
	│  │  LRUCache (primary)    │  │  bounded, recency ordered
	│  └────────────────────────┘  │
	│              │ evictions      │
	│  ┌────────────────────────┐  │
	│  │ OverflowCache          │  │  unbounded, durable
	│  │   FileStore | BoltStore│  │
	│  └────────────────────────┘  │
	└──────────────────────────────┘

# LRUCache

A fixed number of windows, built on hashicorp/golang-lru's simplelru. Adding a window and
finding one both count as use; when a new window would exceed the capacity the least
recently used window is evicted and its reference dropped. Listeners registered with
OnEvict see each evicted window first. Read continues into the next window when the
current one is consumed and its successor is resident, so a cache hit can satisfy a
span of several windows in one call.

	lru, err := cache.NewLRUCache(&cache.LRUConfig{Capacity: 32}, nil)

# OverflowCache

Writes each window once to an OverflowStore and can return any stored window afterwards.
FileStore appends to a single scratch file and keeps an in-memory index with an xxhash
checksum per window; BoltStore keeps windows in a bbolt bucket keyed by big-endian
position. Both create their file on first use and delete it on Clear.

# TwoLevelCache

An LRUCache in front of an OverflowCache. With PolicySpill (the default) a window reaches
the secondary tier when the primary evicts it; with PolicyWriteThrough every window is
written to both tiers. Lookups try the primary first and never promote secondary hits.
This is the cache that lets a forward-only stream answer requests for any position it
has already read.

	tl, err := cache.NewTwoLevelCache(&cache.TwoLevelConfig{
		Primary:  &cache.LRUConfig{Capacity: 32},
		Overflow: &cache.OverflowConfig{Backend: cache.BackendBolt, Directory: dir},
		Policy:   cache.PolicySpill,
	}, collector)

# NoCache

Retains nothing. In-memory sources use it because their single window is already held
by the reader.
*/
package cache
