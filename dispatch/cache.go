package dispatch

import "sync/atomic"

// ---------------------------------------------------------------------------
// Dispatch cache
// ---------------------------------------------------------------------------

// dispatchCache memoizes resolved overloads under nested maps, one level
// per dispatch position. Keys are discriminators: a *Class for class-tagged
// arguments, a kind name string otherwise.
//
// The cache itself is not locked; the owning Multimethod serializes writes
// through its lock. Hit and miss counters are atomic so the read path can
// bump them without the write lock.
type dispatchCache struct {
	depth int
	root  map[any]any
	size  int

	hits   atomic.Uint64
	misses atomic.Uint64
}

func newDispatchCache(depth int) *dispatchCache {
	return &dispatchCache{
		depth: depth,
		root:  make(map[any]any),
	}
}

// lookup probes the nested maps with one key per position.
func (dc *dispatchCache) lookup(keys []any) (Func, bool) {
	node := dc.root
	for i := 0; i < dc.depth-1; i++ {
		next, ok := node[keys[i]].(map[any]any)
		if !ok {
			return nil, false
		}
		node = next
	}
	fn, ok := node[keys[dc.depth-1]].(Func)
	return fn, ok
}

// insert stores a resolved overload under the discriminator tuple.
func (dc *dispatchCache) insert(keys []any, fn Func) {
	node := dc.root
	for i := 0; i < dc.depth-1; i++ {
		next, ok := node[keys[i]].(map[any]any)
		if !ok {
			next = make(map[any]any)
			node[keys[i]] = next
		}
		node = next
	}
	last := keys[dc.depth-1]
	if _, exists := node[last]; !exists {
		dc.size++
	}
	node[last] = fn
}

// clear drops every cached entry but keeps the lifetime counters.
func (dc *dispatchCache) clear() {
	dc.root = make(map[any]any)
	dc.size = 0
}

// resetStats zeroes the hit and miss counters.
func (dc *dispatchCache) resetStats() {
	dc.hits.Store(0)
	dc.misses.Store(0)
}

// ---------------------------------------------------------------------------
// Statistics
// ---------------------------------------------------------------------------

// CacheStats is a point-in-time view of a multimethod's dispatch cache.
type CacheStats struct {
	Hits    uint64 // Calls answered from the cache
	Misses  uint64 // Calls that ran full overload resolution
	Entries int    // Discriminator tuples currently cached
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) * 100 / float64(total)
}
