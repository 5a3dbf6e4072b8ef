// Package mirror maintains a coarse-mutex shadow of a table for consumers
// that want to draw or inspect bucket contents without touching the
// lock-free internals. The shadow is updated only on operations that the
// table itself reported successful, so it trails the table by at most the
// in-flight operations and never invents entries.
package mirror

import (
	"sync"

	"github.com/stlngds/lfht/pkg/lfht"
)

// HistorySize bounds the load-factor history ring.
const HistorySize = 200

// Entry is one shadow tuple: a key, its value, and whether the entry has
// been removed but not yet collected.
type Entry[K lfht.Key, V any] struct {
	Key     K
	Val     V
	Removed bool
}

// View wraps a table and mirrors successful mutations into shadow buckets
// guarded by one mutex. All View methods are safe for concurrent use.
type View[K lfht.Key, V any] struct {
	table *lfht.Table[K, V]

	mu         sync.Mutex
	buckets    [][]Entry[K, V]
	history    []float64
	hasher     func(K, uint64) uint64
	seed       uint64
	nCollected int
}

// New builds a view over table with nBuckets shadow buckets. Pass the
// table's hasher and seed to make shadow placement track real placement;
// a nil hasher selects the default hasher, which is fine for display-only
// consumers since shadow buckets need not line up with real ones.
func New[K lfht.Key, V any](table *lfht.Table[K, V], nBuckets int, hasher func(K, uint64) uint64, seed uint64) *View[K, V] {
	if hasher == nil {
		hasher = lfht.DefaultHasher[K]()
	}
	return &View[K, V]{
		table:   table,
		buckets: make([][]Entry[K, V], nBuckets),
		hasher:  hasher,
		seed:    seed,
	}
}

func (v *View[K, V]) bucketIdx(key K) int {
	return int(v.hasher(key, v.seed) % uint64(len(v.buckets)))
}

// Insert forwards to the table and mirrors a created entry.
func (v *View[K, V]) Insert(key K, val V) bool {
	ok := v.table.Insert(key, val)
	if ok {
		idx := v.bucketIdx(key)
		v.mu.Lock()
		v.buckets[idx] = append(v.buckets[idx], Entry[K, V]{Key: key, Val: val})
		v.mu.Unlock()
	}
	return ok
}

// Remove forwards to the table and marks the first live shadow entry for
// the key as removed.
func (v *View[K, V]) Remove(key K) bool {
	ok := v.table.Remove(key)
	if ok {
		idx := v.bucketIdx(key)
		v.mu.Lock()
		for i := range v.buckets[idx] {
			e := &v.buckets[idx][i]
			if e.Key == key && !e.Removed {
				e.Removed = true
				break
			}
		}
		v.mu.Unlock()
	}
	return ok
}

// Contains forwards to the table; the shadow is not consulted.
func (v *View[K, V]) Contains(key K) bool {
	return v.table.Contains(key)
}

// CollectRemoved deletes removed shadow entries and returns how many were
// collected.
func (v *View[K, V]) CollectRemoved() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	collected := 0
	for idx := range v.buckets {
		kept := v.buckets[idx][:0]
		for _, e := range v.buckets[idx] {
			if e.Removed {
				collected++
			} else {
				kept = append(kept, e)
			}
		}
		v.buckets[idx] = kept
	}
	v.nCollected += collected
	return collected
}

// AdjustBucketCount redistributes shadow entries over a new bucket count,
// mirroring a table resize.
func (v *View[K, V]) AdjustBucketCount(n int) {
	if n < 1 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	fresh := make([][]Entry[K, V], n)
	for _, bucket := range v.buckets {
		for _, e := range bucket {
			idx := int(v.hasher(e.Key, v.seed) % uint64(n))
			fresh[idx] = append(fresh[idx], e)
		}
	}
	v.buckets = fresh
}

// Snapshot returns a deep copy of the shadow buckets.
func (v *View[K, V]) Snapshot() [][]Entry[K, V] {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]Entry[K, V], len(v.buckets))
	for i, bucket := range v.buckets {
		out[i] = append([]Entry[K, V](nil), bucket...)
	}
	return out
}

// ClearShadow drops every shadow entry and the history. The underlying
// table is untouched.
func (v *View[K, V]) ClearShadow() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.buckets {
		v.buckets[i] = nil
	}
	v.history = v.history[:0]
	v.nCollected = 0
}

// LoadFactor returns live shadow entries divided by shadow bucket count.
func (v *View[K, V]) LoadFactor() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.buckets) == 0 {
		return 0
	}
	live := 0
	for _, bucket := range v.buckets {
		for _, e := range bucket {
			if !e.Removed {
				live++
			}
		}
	}
	return float64(live) / float64(len(v.buckets))
}

// RecordLoadFactor appends the current load factor to the history ring.
func (v *View[K, V]) RecordLoadFactor() {
	lf := v.LoadFactor()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.history = append(v.history, lf)
	if len(v.history) > HistorySize {
		v.history = v.history[len(v.history)-HistorySize:]
	}
}

// LoadFactorHistory returns a copy of the recorded history, oldest first.
func (v *View[K, V]) LoadFactorHistory() []float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]float64(nil), v.history...)
}

// BucketCount returns the shadow bucket count.
func (v *View[K, V]) BucketCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.buckets)
}

// Collected returns the lifetime number of collected shadow entries.
func (v *View[K, V]) Collected() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.nCollected
}
