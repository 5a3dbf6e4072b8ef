// Package arena owns every node the table ever links. Nodes live in
// grow-only slabs and are addressed by 48-bit handles, which is what lets a
// node reference ride inside a single CASable word (internal/tagged): the
// runtime cannot trace a pointer smuggled through a uint64, but it can trace
// the slabs, so a stale traversal that still holds a handle always finds
// intact memory behind it.
//
// Freed handles are recycled through a Treiber stack, so a handle can come
// back carrying a different key. Callers are expected to run the hazard
// protocol before dereferencing; the arena itself never blocks.
package arena

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/stlngds/lfht/internal/tagged"
)

const (
	slotBits = 16
	// SlabSize is the number of nodes per slab.
	SlabSize = 1 << slotBits
	slotMask = SlabSize - 1
	maxSlabs = 1 << 15
	// MaxNodes is the handle-space capacity of one arena.
	MaxNodes = maxSlabs * SlabSize
)

// Node is a single table entry. Next is a tagged word; while the node sits
// on the free list the same field holds the bare handle of the next free
// node instead.
type Node[K any, V any] struct {
	Key  K
	Val  V
	Next atomic.Uint64
}

// Arena hands out handles in [1, MaxNodes]; handle 0 is nil. Slabs are
// installed on first touch with a CAS, the bump cursor and the free-list
// head are the only other shared state.
type Arena[K any, V any] struct {
	slabs    [maxSlabs]atomic.Pointer[[]Node[K, V]]
	nextSlot atomic.Uint64
	freeHead atomic.Uint64 // tagged word: version tag + head handle
	live     atomic.Int64
}

func New[K any, V any]() *Arena[K, V] {
	return &Arena[K, V]{}
}

// Get returns the node behind a handle, or nil for handle 0.
func (a *Arena[K, V]) Get(h uint64) *Node[K, V] {
	if h == 0 {
		return nil
	}
	idx := h - 1
	slab := a.slabs[idx>>slotBits].Load()
	return &(*slab)[idx&slotMask]
}

// Alloc returns a zero-Next node initialized with key and val. It prefers
// recycled handles and falls back to bumping into a fresh slab slot.
func (a *Arena[K, V]) Alloc(key K, val V) (uint64, *Node[K, V]) {
	for {
		head := a.freeHead.Load()
		h := tagged.Handle(head)
		if h == 0 {
			break
		}
		n := a.Get(h)
		next := n.Next.Load()
		// The tag in the head word is what makes this pop safe against a
		// concurrent pop/realloc/free of the same handle.
		if a.freeHead.CompareAndSwap(head, tagged.Pack(next, false, tagged.NextTag(head))) {
			n.Key = key
			n.Val = val
			n.Next.Store(0)
			a.live.Add(1)
			return h, n
		}
	}

	idx := a.nextSlot.Add(1) - 1
	if idx >= MaxNodes {
		log.Panic().Uint64("slots", uint64(MaxNodes)).Msg("arena handle space exhausted")
	}
	slabIdx := idx >> slotBits
	if a.slabs[slabIdx].Load() == nil {
		slab := make([]Node[K, V], SlabSize)
		a.slabs[slabIdx].CompareAndSwap(nil, &slab)
	}
	h := idx + 1
	n := a.Get(h)
	n.Key = key
	n.Val = val
	n.Next.Store(0)
	a.live.Add(1)
	return h, n
}

// Free pushes a handle back on the free list. The caller must guarantee no
// operator can still reach h: either it was never published, or it has been
// unlinked and cleared by a hazard scan.
func (a *Arena[K, V]) Free(h uint64) {
	n := a.Get(h)
	for {
		head := a.freeHead.Load()
		n.Next.Store(tagged.Handle(head))
		if a.freeHead.CompareAndSwap(head, tagged.Pack(h, false, tagged.NextTag(head))) {
			a.live.Add(-1)
			return
		}
	}
}

// Live returns the number of allocated, not-yet-freed nodes.
func (a *Arena[K, V]) Live() int64 {
	return a.live.Load()
}
