package lfht

import (
	"runtime"

	"github.com/rs/zerolog/log"

	"github.com/stlngds/lfht/internal/tagged"
)

// tryResize rebuilds the directory at newSize buckets. Exactly one resize
// runs at a time: losers of the flag CAS return immediately and keep using
// the old array until the winner swaps.
//
// The rebuild copies live nodes into fresh arena slots rather than
// relinking, so traversals still on the old array keep seeing a consistent
// list. Writers are drained through the gate for the duration of the
// snapshot, which is what keeps a mark or insert from slipping in between
// the copy and the swap; readers are never stopped.
func (t *Table[K, V]) tryResize(old *bucketArray, newSize uint64) {
	if newSize < t.min {
		newSize = t.min
	}
	if newSize == uint64(len(old.buckets)) {
		return
	}
	if !t.resizing.CompareAndSwap(false, true) {
		return
	}
	defer t.resizing.Store(false)

	if t.arr.Load() != old {
		// Another resize already replaced this array.
		return
	}

	t.gate.Or(gatePending)
	for t.gate.Load()&^gatePending != 0 {
		runtime.Gosched()
	}

	newArr := newBucketArray(newSize)
	copied := 0
	for i := range old.buckets {
		cur := tagged.Handle(old.buckets[i].Load())
		for cur != 0 {
			n := t.arena.Get(cur)
			w := n.Next.Load()
			if !tagged.Marked(w) {
				t.rebuildInsert(newArr, n.Key, n.Val)
				copied++
			}
			cur = tagged.Handle(w)
		}
	}

	t.arr.Store(newArr)
	swapEpoch := t.epoch.Add(1) - 1
	t.oldArrays = append(t.oldArrays, retiredArray{arr: old, epoch: swapEpoch})

	t.gate.And(^gatePending)

	grew := newSize > uint64(len(old.buckets))
	if grew {
		t.stats.Grows.Add(1)
	} else {
		t.stats.Shrinks.Add(1)
	}
	t.drainOldArrays()

	log.Debug().
		Int("old_buckets", len(old.buckets)).
		Uint64("new_buckets", newSize).
		Int("copied", copied).
		Bool("grew", grew).
		Msg("bucket directory resized")
}

// rebuildInsert links a fresh copy of (key, val) into the not-yet-visible
// array, keeping each bucket sorted. No CAS: the array has a single writer
// until the swap.
func (t *Table[K, V]) rebuildInsert(newArr *bucketArray, key K, val V) {
	idx := t.hasher(key, t.seed) & newArr.mask
	h, n := t.arena.Alloc(key, val)
	slot := &newArr.buckets[idx]
	for {
		w := slot.Load()
		nextH := tagged.Handle(w)
		if nextH == 0 {
			break
		}
		nextNode := t.arena.Get(nextH)
		if nextNode.Key >= key {
			break
		}
		slot = &nextNode.Next
	}
	w := slot.Load()
	n.Next.Store(tagged.Pack(tagged.Handle(w), false, 0))
	slot.Store(tagged.Redirect(w, h))
}

// drainOldArrays frees the nodes of swapped-out arrays once every operator
// that could still be traversing them has finished, judged by the epoch
// stamps on the hazard records. Caller must hold the resizing flag.
func (t *Table[K, V]) drainOldArrays() int {
	if len(t.oldArrays) == 0 {
		return 0
	}
	min := t.dom.MinEpoch()
	freed := 0
	kept := t.oldArrays[:0]
	for _, ra := range t.oldArrays {
		if ra.epoch < min {
			freed += t.freeArrayNodes(ra.arr)
			t.stats.ArraysReclaimed.Add(1)
		} else {
			kept = append(kept, ra)
		}
	}
	t.oldArrays = kept
	if freed > 0 {
		log.Debug().Int("nodes", freed).Msg("old bucket arrays drained")
	}
	return freed
}

// freeArrayNodes returns every node still linked in a drained array to the
// arena. Nodes unlinked before the swap went through the retired list
// instead and are not reachable here.
func (t *Table[K, V]) freeArrayNodes(b *bucketArray) int {
	n := 0
	for i := range b.buckets {
		h := tagged.Handle(b.buckets[i].Load())
		for h != 0 {
			next := tagged.Handle(t.arena.Get(h).Next.Load())
			t.arena.Free(h)
			h = next
			n++
		}
	}
	return n
}
