/*
Package types provides data structures shared by the window caches, the readers built on
them and the tooling that reports on both.

CacheStats is reported by every cache that tracks hits, misses and evictions; composite
caches fold the statistics of their tiers together with CacheStats.Add. Range describes
an inclusive byte range of a source, as used by the window and chunk iterators.
*/
package types
