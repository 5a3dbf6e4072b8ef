// Package hazard implements safe reclamation for arena handles. Operators
// publish the handles they are about to dereference in per-record slots;
// retired handles are only handed back to the free function once a scan
// proves no record publishes them.
//
// Records are threaded on a global list and never unlinked. A finished
// operator clears its record and drops the active flag so the next Acquire
// can reuse it; an abandoned record with empty slots costs one skip per
// scan.
package hazard

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Slots is the number of handles one operator can publish at a time. The
// list traversal needs exactly three: the current node, its successor, and
// the node owning the slot being CASed.
const Slots = 3

// Slot indices used by traversals.
const (
	SlotNext = 0
	SlotCurr = 1
	SlotPrev = 2
)

// Record is one operator's published state. The epoch field carries the
// directory epoch the operator entered under; zero means quiescent. It is
// read by the resize path to decide when a swapped-out bucket array has
// drained.
type Record struct {
	slots  [Slots]atomic.Uint64
	epoch  atomic.Uint64
	active atomic.Uint32
	next   *Record
	_      cpu.CacheLinePad
}

// Set publishes a handle in slot i.
func (r *Record) Set(i int, h uint64) {
	r.slots[i].Store(h)
}

// Clear empties slot i.
func (r *Record) Clear(i int) {
	r.slots[i].Store(0)
}

// ClearAll empties every slot.
func (r *Record) ClearAll() {
	for i := range r.slots {
		r.slots[i].Store(0)
	}
}

// SetEpoch stamps the record with the directory epoch the operator read on
// entry. Must happen before the operator loads the bucket-array pointer.
func (r *Record) SetEpoch(e uint64) {
	r.epoch.Store(e)
}

// ClearEpoch marks the operator quiescent.
func (r *Record) ClearEpoch() {
	r.epoch.Store(0)
}

type retired struct {
	h    uint64
	next *retired
}

// Domain ties the record list, the retired list, and the free function
// together. One domain per table.
type Domain struct {
	head      atomic.Pointer[Record]
	records   atomic.Int64
	retired   atomic.Pointer[retired]
	nRetired  atomic.Int64
	threshold int64
	free      func(h uint64)

	scans atomic.Uint64
	freed atomic.Uint64
}

// New builds a domain. threshold is the retired-list length that triggers a
// scan; zero selects 2 x GOMAXPROCS x Slots. free receives every handle a
// scan proves unreachable.
func New(threshold int, free func(h uint64)) *Domain {
	if threshold <= 0 {
		threshold = 2 * runtime.GOMAXPROCS(0) * Slots
	}
	return &Domain{threshold: int64(threshold), free: free}
}

// Acquire claims a record for the calling operator, reusing an inactive one
// if possible and registering a new record otherwise.
func (d *Domain) Acquire() *Record {
	for r := d.head.Load(); r != nil; r = r.next {
		if r.active.Load() == 0 && r.active.CompareAndSwap(0, 1) {
			return r
		}
	}
	r := &Record{}
	r.active.Store(1)
	for {
		h := d.head.Load()
		r.next = h
		if d.head.CompareAndSwap(h, r) {
			d.records.Add(1)
			return r
		}
	}
}

// Release clears the record and returns it to the inactive pool.
func (d *Domain) Release(r *Record) {
	r.ClearAll()
	r.ClearEpoch()
	r.active.Store(0)
}

// Retire queues a handle for reclamation and scans once the queue is long
// enough.
func (d *Domain) Retire(h uint64) {
	d.push(h)
	if d.nRetired.Add(1) >= d.threshold {
		d.Scan()
	}
}

func (d *Domain) push(h uint64) {
	n := &retired{h: h}
	for {
		head := d.retired.Load()
		n.next = head
		if d.retired.CompareAndSwap(head, n) {
			return
		}
	}
}

// Scan snapshots every published handle, detaches the retired list, frees
// each detached handle no record publishes, and re-queues the rest. Returns
// the number of handles freed.
func (d *Domain) Scan() int {
	protected := make(map[uint64]struct{}, d.records.Load()*Slots)
	for r := d.head.Load(); r != nil; r = r.next {
		for i := range r.slots {
			if h := r.slots[i].Load(); h != 0 {
				protected[h] = struct{}{}
			}
		}
	}

	node := d.retired.Swap(nil)
	nFreed := 0
	for node != nil {
		next := node.next
		if _, ok := protected[node.h]; ok {
			d.push(node.h)
		} else {
			d.free(node.h)
			nFreed++
		}
		node = next
	}
	d.nRetired.Add(-int64(nFreed))
	d.scans.Add(1)
	d.freed.Add(uint64(nFreed))
	return nFreed
}

// MinEpoch returns the smallest nonzero epoch stamped on any record, or
// ^uint64(0) when every record is quiescent.
func (d *Domain) MinEpoch() uint64 {
	min := ^uint64(0)
	for r := d.head.Load(); r != nil; r = r.next {
		if e := r.epoch.Load(); e != 0 && e < min {
			min = e
		}
	}
	return min
}

// Retired returns the current retired-list length.
func (d *Domain) Retired() int64 {
	return d.nRetired.Load()
}

// Stats returns the lifetime scan and free counts.
func (d *Domain) Stats() (scans, freed uint64) {
	return d.scans.Load(), d.freed.Load()
}
