package lfht

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Stats is the table's live operation counters. Counters are advisory the
// same way the live count is: each is bumped with its own atomic add on the
// operation paths, so a snapshot is not one consistent cut.
type Stats struct {
	Inserts      atomic.Uint64
	InsertMisses atomic.Uint64
	Removes      atomic.Uint64
	RemoveMisses atomic.Uint64
	Hits         atomic.Uint64
	Misses       atomic.Uint64

	Grows           atomic.Uint64
	Shrinks         atomic.Uint64
	ArraysReclaimed atomic.Uint64

	_ cpu.CacheLinePad
}

// StatsSnapshot is a plain-value copy of the counters plus the reclamation
// figures owned by the hazard domain and the arena.
type StatsSnapshot struct {
	Inserts      uint64
	InsertMisses uint64
	Removes      uint64
	RemoveMisses uint64
	Hits         uint64
	Misses       uint64

	Grows           uint64
	Shrinks         uint64
	ArraysReclaimed uint64

	Scans        uint64
	Freed        uint64
	RetiredNodes int64
	LiveNodes    int64
}

// Stats returns a point-in-time copy of all counters.
func (t *Table[K, V]) Stats() StatsSnapshot {
	scans, freed := t.dom.Stats()
	return StatsSnapshot{
		Inserts:         t.stats.Inserts.Load(),
		InsertMisses:    t.stats.InsertMisses.Load(),
		Removes:         t.stats.Removes.Load(),
		RemoveMisses:    t.stats.RemoveMisses.Load(),
		Hits:            t.stats.Hits.Load(),
		Misses:          t.stats.Misses.Load(),
		Grows:           t.stats.Grows.Load(),
		Shrinks:         t.stats.Shrinks.Load(),
		ArraysReclaimed: t.stats.ArraysReclaimed.Load(),
		Scans:           scans,
		Freed:           freed,
		RetiredNodes:    t.dom.Retired(),
		LiveNodes:       t.arena.Live(),
	}
}
