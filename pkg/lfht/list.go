package lfht

import (
	"sync/atomic"

	"github.com/stlngds/lfht/internal/arena"
	"github.com/stlngds/lfht/internal/hazard"
	"github.com/stlngds/lfht/internal/tagged"
)

// locate walks bucket idx and returns the link immediately preceding the
// first node with key >= key, the word observed in that link, and that node
// (handle 0 when the list ends first). Marked nodes met on the way are
// unlinked and retired. On return the caller holds hazard protection on the
// returned node (SlotCurr), its successor (SlotNext), and the node owning
// the returned link (SlotPrev, when the link is not the bucket head).
//
// The two validation re-reads are what make the protection sound: a handle
// is only trusted after it is published and the link it came from is shown
// unchanged.
func (t *Table[K, V]) locate(arr *bucketArray, idx uint64, key K, rec *hazard.Record) (prev *atomic.Uint64, prevW uint64, cur uint64, curNode *arena.Node[K, V]) {
restart:
	rec.Clear(hazard.SlotPrev)
	prev = &arr.buckets[idx]
	prevW = prev.Load()
	cur = tagged.Handle(prevW)
	for {
		if cur == 0 {
			return prev, prevW, 0, nil
		}
		rec.Set(hazard.SlotCurr, cur)
		if prev.Load() != prevW {
			goto restart
		}
		curNode = t.arena.Get(cur)
		curW := curNode.Next.Load()
		rec.Set(hazard.SlotNext, tagged.Handle(curW))
		if curNode.Next.Load() != curW {
			goto restart
		}
		if tagged.Marked(curW) {
			// cur is logically deleted: unlink it before moving on. A
			// failed CAS means the link changed under us, so start over.
			next := tagged.Handle(curW)
			desired := tagged.Redirect(prevW, next)
			if !prev.CompareAndSwap(prevW, desired) {
				goto restart
			}
			t.dom.Retire(cur)
			prevW = desired
			cur = next
			continue
		}
		if curNode.Key >= key {
			return prev, prevW, cur, curNode
		}
		rec.Set(hazard.SlotPrev, cur)
		prev = &curNode.Next
		prevW = curW
		cur = tagged.Handle(curW)
	}
}

// seek is the read-only traversal behind Contains: it skips marked nodes
// instead of unlinking them and performs no CAS at all, so it runs freely
// during a resize snapshot. Returns whether a live node with key exists.
func (t *Table[K, V]) seek(arr *bucketArray, idx uint64, key K, rec *hazard.Record) bool {
restart:
	rec.Clear(hazard.SlotPrev)
	prev := &arr.buckets[idx]
	prevW := prev.Load()
	cur := tagged.Handle(prevW)
	for {
		if cur == 0 {
			return false
		}
		rec.Set(hazard.SlotCurr, cur)
		if prev.Load() != prevW {
			goto restart
		}
		curNode := t.arena.Get(cur)
		curW := curNode.Next.Load()
		rec.Set(hazard.SlotNext, tagged.Handle(curW))
		if curNode.Next.Load() != curW {
			goto restart
		}
		if !tagged.Marked(curW) {
			if curNode.Key == key {
				return true
			}
			if curNode.Key > key {
				return false
			}
		}
		rec.Set(hazard.SlotPrev, cur)
		prev = &curNode.Next
		prevW = curW
		cur = tagged.Handle(curW)
	}
}
