package lfht

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestConcurrentDisjointInserts(t *testing.T) {
	tbl := mustNew[int, int](t, Config[int]{InitialBuckets: 64})

	const half = 1000
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			start := w * half
			for k := start; k < start+half; k++ {
				if !tbl.Insert(k, k) {
					t.Errorf("Insert(%d) = false on disjoint range", k)
				}
			}
		}(w)
	}
	wg.Wait()

	if got := tbl.Len(); got != 2*half {
		t.Errorf("Len = %d, want %d", got, 2*half)
	}
	for k := 0; k < 2*half; k++ {
		if !tbl.Contains(k) {
			t.Errorf("Contains(%d) = false after concurrent inserts", k)
		}
	}
	// 2000 keys force several grows mid-run; losing none proves the resize
	// snapshot saw every drained writer.
	if got := tbl.BucketCount(); got < 128 {
		t.Errorf("BucketCount = %d, want >= 128", got)
	}
}

func TestConcurrentSameKeyChurn(t *testing.T) {
	tbl := mustNew[int, int](t, Config[int]{})

	const key = 99
	const iters = 20_000
	var inserts, removes atomic.Int64

	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iters; i++ {
				if w%2 == 0 {
					if tbl.Insert(key, i) {
						inserts.Add(1)
					}
				} else {
					if tbl.Remove(key) {
						removes.Add(1)
					}
				}
			}
		}(w)
	}
	wg.Wait()

	net := inserts.Load() - removes.Load()
	if net != 0 && net != 1 {
		t.Fatalf("net successful inserts = %d, want 0 or 1", net)
	}
	if got := tbl.Contains(key); got != (net == 1) {
		t.Errorf("Contains(%d) = %v, want %v (net=%d)", key, got, net == 1, net)
	}
	if got := tbl.Len(); got != int(net) {
		t.Errorf("Len = %d, want %d", got, net)
	}
}

func TestConcurrentChurnConsistency(t *testing.T) {
	const nKeys = 64
	const workers = 8
	const iters = 5000

	tbl := mustNew[int, int](t, Config[int]{InitialBuckets: 64})

	var inserts, removes [nKeys]atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			// Cheap deterministic per-worker mixing; no shared rng.
			x := uint64(w + 1)
			for i := 0; i < iters; i++ {
				x ^= x << 13
				x ^= x >> 7
				x ^= x << 17
				k := int(x % nKeys)
				if x&(1<<20) == 0 {
					if tbl.Insert(k, i) {
						inserts[k].Add(1)
					}
				} else {
					if tbl.Remove(k) {
						removes[k].Add(1)
					}
				}
			}
		}(w)
	}
	wg.Wait()

	wantLen := 0
	for k := 0; k < nKeys; k++ {
		net := inserts[k].Load() - removes[k].Load()
		if net != 0 && net != 1 {
			t.Fatalf("key %d: net successful inserts = %d, want 0 or 1", k, net)
		}
		if got := tbl.Contains(k); got != (net == 1) {
			t.Errorf("key %d: Contains = %v, want %v", k, got, net == 1)
		}
		wantLen += int(net)
	}
	if got := tbl.Len(); got != wantLen {
		t.Errorf("Len = %d, want %d", got, wantLen)
	}
}

func TestConcurrentInsertAgainstRemove(t *testing.T) {
	const nKeys = 10_000
	tbl := mustNew[int, int](t, Config[int]{InitialBuckets: 64, RetireThreshold: 64})

	insertOK := make([]atomic.Bool, nKeys)
	removeOK := make([]atomic.Bool, nKeys)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for k := 0; k < nKeys; k++ {
			if tbl.Insert(k, k) {
				insertOK[k].Store(true)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for k := 0; k < nKeys; k++ {
			if tbl.Remove(k) {
				removeOK[k].Store(true)
			}
		}
	}()
	wg.Wait()

	// Each key is inserted at most once and removed at most once, so the
	// final set is exactly the inserted-and-not-removed keys.
	wantLen := 0
	for k := 0; k < nKeys; k++ {
		if removeOK[k].Load() && !insertOK[k].Load() {
			t.Fatalf("key %d removed but never inserted", k)
		}
		want := insertOK[k].Load() && !removeOK[k].Load()
		if got := tbl.Contains(k); got != want {
			t.Errorf("key %d: Contains = %v, want %v", k, got, want)
		}
		if want {
			wantLen++
		}
	}
	if got := tbl.Len(); got != wantLen {
		t.Errorf("Len = %d, want %d", got, wantLen)
	}

	// Drain everything and verify nothing leaked past a terminal scan.
	for k := 0; k < nKeys; k++ {
		tbl.Remove(k)
	}
	for k := 0; k < nKeys; k++ {
		tbl.Remove(k)
	}
	tbl.Reclaim()
	s := tbl.Stats()
	if s.RetiredNodes != 0 {
		t.Errorf("RetiredNodes = %d after terminal scan, want 0", s.RetiredNodes)
	}
	if s.LiveNodes != 0 {
		t.Errorf("LiveNodes = %d after draining the table, want 0", s.LiveNodes)
	}
	if got := tbl.Len(); got != 0 {
		t.Errorf("Len = %d after draining, want 0", got)
	}
}

func TestConcurrentReadersDuringResize(t *testing.T) {
	tbl := mustNew[int, int](t, Config[int]{InitialBuckets: 64})

	// A few stable keys that stay put while churn forces grows and
	// shrinks; few enough that the shrink threshold stays reachable.
	for k := 1_000_000; k < 1_000_020; k++ {
		tbl.Insert(k, k)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			for k := 0; k < 400; k++ {
				tbl.Insert(k, k)
			}
			for k := 0; k < 400; k++ {
				tbl.Remove(k)
			}
		}
	}()

	for i := 0; i < 500; i++ {
		for k := 1_000_000; k < 1_000_020; k++ {
			if !tbl.Contains(k) {
				t.Errorf("Contains(%d) = false while resizing", k)
			}
		}
	}
	close(stop)
	wg.Wait()
}
