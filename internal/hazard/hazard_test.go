package hazard

import (
	"sync"
	"testing"
)

func collectingDomain(threshold int) (*Domain, *sync.Map) {
	var freed sync.Map
	d := New(threshold, func(h uint64) {
		if _, loaded := freed.LoadOrStore(h, true); loaded {
			panic("double free")
		}
	})
	return d, &freed
}

func TestScanFreesUnprotected(t *testing.T) {
	d, freed := collectingDomain(1 << 30)

	d.Retire(101)
	d.Retire(102)
	if n := d.Scan(); n != 2 {
		t.Fatalf("Scan freed %d, want 2", n)
	}
	for _, h := range []uint64{101, 102} {
		if _, ok := freed.Load(h); !ok {
			t.Errorf("handle %d not freed", h)
		}
	}
	if d.Retired() != 0 {
		t.Errorf("Retired = %d after full scan, want 0", d.Retired())
	}
}

func TestScanSparesProtected(t *testing.T) {
	d, freed := collectingDomain(1 << 30)

	r := d.Acquire()
	r.Set(SlotCurr, 42)
	d.Retire(42)
	d.Retire(43)

	if n := d.Scan(); n != 1 {
		t.Fatalf("Scan freed %d, want 1", n)
	}
	if _, ok := freed.Load(uint64(42)); ok {
		t.Error("protected handle 42 was freed")
	}
	if _, ok := freed.Load(uint64(43)); !ok {
		t.Error("unprotected handle 43 survived")
	}

	// Once the slot clears, the re-queued handle goes on the next scan.
	r.Clear(SlotCurr)
	if n := d.Scan(); n != 1 {
		t.Fatalf("second Scan freed %d, want 1", n)
	}
	if _, ok := freed.Load(uint64(42)); !ok {
		t.Error("handle 42 not freed after slot cleared")
	}
	d.Release(r)
}

func TestRetireThresholdTriggersScan(t *testing.T) {
	d, _ := collectingDomain(4)
	for h := uint64(1); h <= 4; h++ {
		d.Retire(h)
	}
	scans, freed := d.Stats()
	if scans != 1 {
		t.Errorf("scans = %d, want 1", scans)
	}
	if freed != 4 {
		t.Errorf("freed = %d, want 4", freed)
	}
}

func TestAcquireReusesRecords(t *testing.T) {
	d, _ := collectingDomain(0)
	r1 := d.Acquire()
	d.Release(r1)
	r2 := d.Acquire()
	if r1 != r2 {
		t.Error("released record not reused")
	}
	if r2.slots[SlotCurr].Load() != 0 || r2.epoch.Load() != 0 {
		t.Error("reused record not cleared")
	}
	d.Release(r2)
}

func TestMinEpoch(t *testing.T) {
	d, _ := collectingDomain(0)
	if got := d.MinEpoch(); got != ^uint64(0) {
		t.Errorf("MinEpoch with no records = %d, want max", got)
	}

	r1 := d.Acquire()
	r2 := d.Acquire()
	r1.SetEpoch(7)
	r2.SetEpoch(3)
	if got := d.MinEpoch(); got != 3 {
		t.Errorf("MinEpoch = %d, want 3", got)
	}
	r2.ClearEpoch()
	if got := d.MinEpoch(); got != 7 {
		t.Errorf("MinEpoch = %d, want 7", got)
	}
	d.Release(r1)
	d.Release(r2)
	if got := d.MinEpoch(); got != ^uint64(0) {
		t.Errorf("MinEpoch after releases = %d, want max", got)
	}
}

func TestConcurrentRetire(t *testing.T) {
	var freed sync.Map
	var nFreed int64
	var mu sync.Mutex
	d := New(8, func(h uint64) {
		if _, loaded := freed.LoadOrStore(h, true); loaded {
			t.Errorf("double free of %d", h)
		}
		mu.Lock()
		nFreed++
		mu.Unlock()
	})

	const workers = 8
	const perWorker = 1000
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			base := uint64(w*perWorker + 1)
			for i := uint64(0); i < perWorker; i++ {
				d.Retire(base + i)
			}
		}(w)
	}
	wg.Wait()
	d.Scan()

	mu.Lock()
	defer mu.Unlock()
	if nFreed != workers*perWorker {
		t.Errorf("freed %d handles, want %d", nFreed, workers*perWorker)
	}
	if d.Retired() != 0 {
		t.Errorf("Retired = %d after terminal scan, want 0", d.Retired())
	}
}
