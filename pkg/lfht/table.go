// Package lfht implements a lock-free dynamic hash table after Michael's
// list-based design: per-bucket ordered linked lists whose links are tagged
// words, two-phase (mark then unlink) deletion, hazard-pointer reclamation,
// and load-factor driven resizing of the bucket directory.
//
// Insert, Remove, and Contains are safe for any number of concurrent
// goroutines. Writers retry on contention but never block each other;
// readers never CAS a list link. The one exception is an in-flight resize,
// which drains writers briefly while it snapshots the old directory.
package lfht

import (
	"cmp"
	"runtime"
	"sync/atomic"

	"github.com/stlngds/lfht/internal/arena"
	"github.com/stlngds/lfht/internal/hazard"
	"github.com/stlngds/lfht/internal/tagged"
)

// Key is the constraint on table keys. The configured hasher and the
// ordering must both be pure functions of the key.
type Key interface{ cmp.Ordered }

type bucketArray struct {
	buckets []atomic.Uint64
	mask    uint64
}

func newBucketArray(size uint64) *bucketArray {
	return &bucketArray{
		buckets: make([]atomic.Uint64, size),
		mask:    size - 1,
	}
}

type retiredArray struct {
	arr   *bucketArray
	epoch uint64
}

// Table is a lock-free hash table mapping ordered keys to values stored by
// value. Construct with New; the zero value is not usable.
type Table[K Key, V any] struct {
	arr      atomic.Pointer[bucketArray]
	count    atomic.Int64
	epoch    atomic.Uint64
	gate     atomic.Uint64
	resizing atomic.Bool

	// oldArrays is guarded by the resizing flag, not a lock: only the
	// operator holding the flag may touch it.
	oldArrays []retiredArray

	arena  *arena.Arena[K, V]
	dom    *hazard.Domain
	hasher func(K, uint64) uint64
	seed   uint64
	upper  float64
	lower  float64
	min    uint64

	stats Stats
}

// New builds a table from cfg, applying defaults for zero fields.
func New[K Key, V any](cfg Config[K]) (*Table[K, V], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	t := &Table[K, V]{
		arena:  arena.New[K, V](),
		hasher: cfg.Hasher,
		seed:   cfg.Seed,
		upper:  cfg.UpperLoadFactor,
		lower:  cfg.LowerLoadFactor,
		min:    uint64(cfg.InitialBuckets),
	}
	t.dom = hazard.New(cfg.RetireThreshold, func(h uint64) { t.arena.Free(h) })
	t.arr.Store(newBucketArray(uint64(cfg.InitialBuckets)))
	t.epoch.Store(1)
	return t, nil
}

// Insert adds key with val and reports whether a new entry was created.
// False means a live entry with the same key already existed; val is
// discarded in that case.
func (t *Table[K, V]) Insert(key K, val V) bool {
	rec := t.dom.Acquire()
	t.enterMutator()
	rec.SetEpoch(t.epoch.Load())

	h, n := t.arena.Alloc(key, val)
	var (
		created bool
		arr     *bucketArray
		c       int64
	)
	for {
		arr = t.arr.Load()
		idx := t.hasher(key, t.seed) & arr.mask
		prev, prevW, cur, curNode := t.locate(arr, idx, key, rec)
		if cur != 0 && curNode.Key == key {
			t.arena.Free(h) // never published
			break
		}
		n.Next.Store(tagged.Pack(cur, false, 0))
		if prev.CompareAndSwap(prevW, tagged.Redirect(prevW, h)) {
			c = t.count.Add(1)
			created = true
			break
		}
	}

	rec.ClearEpoch()
	t.exitMutator()
	t.dom.Release(rec)

	if created {
		t.stats.Inserts.Add(1)
		size := uint64(len(arr.buckets))
		if float64(c)/float64(size) > t.upper {
			t.tryResize(arr, size*2)
		}
	} else {
		t.stats.InsertMisses.Add(1)
	}
	return created
}

// Remove logically deletes the live entry with key and reports whether this
// call performed the deletion. The physical unlink may be finished here or
// by any later traversal; either way true means the entry is gone.
func (t *Table[K, V]) Remove(key K) bool {
	rec := t.dom.Acquire()
	t.enterMutator()
	rec.SetEpoch(t.epoch.Load())

	var (
		removed bool
		arr     *bucketArray
		c       int64
	)
	for {
		arr = t.arr.Load()
		idx := t.hasher(key, t.seed) & arr.mask
		prev, prevW, cur, curNode := t.locate(arr, idx, key, rec)
		if cur == 0 || curNode.Key != key {
			break
		}
		curW := curNode.Next.Load()
		if tagged.Marked(curW) {
			continue
		}
		if !curNode.Next.CompareAndSwap(curW, tagged.Mark(curW)) {
			continue
		}
		// Marked: the remove is linearized. Unlinking is best effort; a
		// loser leaves it to the next traversal through this bucket.
		c = t.count.Add(-1)
		if prev.CompareAndSwap(prevW, tagged.Redirect(prevW, tagged.Handle(curW))) {
			t.dom.Retire(cur)
		}
		removed = true
		break
	}

	rec.ClearEpoch()
	t.exitMutator()
	t.dom.Release(rec)

	if removed {
		t.stats.Removes.Add(1)
		size := uint64(len(arr.buckets))
		if float64(c)/float64(size) < t.lower {
			t.tryResize(arr, size/2)
		}
	} else {
		t.stats.RemoveMisses.Add(1)
	}
	return removed
}

// Contains reports whether a live entry with key is present. It never
// mutates the list and never blocks behind a resize.
func (t *Table[K, V]) Contains(key K) bool {
	rec := t.dom.Acquire()
	rec.SetEpoch(t.epoch.Load())

	arr := t.arr.Load()
	idx := t.hasher(key, t.seed) & arr.mask
	found := t.seek(arr, idx, key, rec)

	rec.ClearEpoch()
	t.dom.Release(rec)

	if found {
		t.stats.Hits.Add(1)
	} else {
		t.stats.Misses.Add(1)
	}
	return found
}

// Len returns the advisory live-entry count. It converges on the true count
// once mutations quiesce.
func (t *Table[K, V]) Len() int {
	c := t.count.Load()
	if c < 0 {
		return 0
	}
	return int(c)
}

// BucketCount returns the size of the current bucket array.
func (t *Table[K, V]) BucketCount() int {
	return len(t.arr.Load().buckets)
}

// LoadFactor returns Len divided by BucketCount.
func (t *Table[K, V]) LoadFactor() float64 {
	return float64(t.Len()) / float64(t.BucketCount())
}

// Reclaim forces a hazard scan and, when no resize is in flight, releases
// any drained old bucket arrays. Returns the number of nodes freed. Called
// after quiescence it empties the retired list.
func (t *Table[K, V]) Reclaim() int {
	freed := 0
	if t.resizing.CompareAndSwap(false, true) {
		freed += t.drainOldArrays()
		t.resizing.Store(false)
	}
	freed += t.dom.Scan()
	return freed
}

// mutator gate: bit 63 signals a pending resize, the low bits count active
// mutators. A resize closes the gate, waits for the count to drain, and
// reopens it after the directory swap.

const gatePending = uint64(1) << 63

func (t *Table[K, V]) enterMutator() {
	for {
		g := t.gate.Load()
		if g&gatePending != 0 {
			runtime.Gosched()
			continue
		}
		if t.gate.CompareAndSwap(g, g+1) {
			return
		}
	}
}

func (t *Table[K, V]) exitMutator() {
	t.gate.Add(^uint64(0))
}
