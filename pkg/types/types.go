package types

// CacheStats represents window cache statistics
type CacheStats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	Windows   int     `json:"windows"`
	Capacity  int     `json:"capacity"`
	Bytes     int64   `json:"bytes"`
	HitRate   float64 `json:"hit_rate"`
}

// UpdateHitRate recomputes HitRate from Hits and Misses.
func (s *CacheStats) UpdateHitRate() {
	total := s.Hits + s.Misses
	if total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
}

// Add folds other into s, summing counters and recomputing the hit rate.
func (s *CacheStats) Add(other CacheStats) {
	s.Hits += other.Hits
	s.Misses += other.Misses
	s.Evictions += other.Evictions
	s.Windows += other.Windows
	s.Capacity += other.Capacity
	s.Bytes += other.Bytes
	s.UpdateHitRate()
}

// Range represents an inclusive byte range [From, To]
type Range struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Length returns the number of bytes covered by the range.
func (r Range) Length() int64 {
	if r.To < r.From {
		return 0
	}
	return r.To - r.From + 1
}

// Contains reports whether position lies in the range.
func (r Range) Contains(position int64) bool {
	return position >= r.From && position <= r.To
}

// SourceInfo describes a windowed reader and the source behind it.
type SourceInfo struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	WindowSize int    `json:"window_size"`
	// Length is -1 while a stream source has not reached its end.
	Length int64 `json:"length"`
	Closed bool  `json:"closed"`
}
