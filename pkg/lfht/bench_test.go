package lfht

import (
	"math/rand"
	"testing"
)

func benchTable(b *testing.B, nKeys int) *Table[int, int] {
	b.Helper()
	tbl, err := New[int, int](Config[int]{InitialBuckets: 1 << 12})
	if err != nil {
		b.Fatal(err)
	}
	for k := 0; k < nKeys; k++ {
		tbl.Insert(k, k)
	}
	b.ResetTimer()
	return tbl
}

func BenchmarkInsert(b *testing.B) {
	tbl := benchTable(b, 0)
	for i := 0; i < b.N; i++ {
		tbl.Insert(i, i)
	}
}

func BenchmarkContainsHit(b *testing.B) {
	const nKeys = 1 << 16
	tbl := benchTable(b, nKeys)
	for i := 0; i < b.N; i++ {
		tbl.Contains(i & (nKeys - 1))
	}
}

func BenchmarkContainsParallel(b *testing.B) {
	const nKeys = 1 << 16
	tbl := benchTable(b, nKeys)
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			tbl.Contains(i & (nKeys - 1))
			i++
		}
	})
}

func BenchmarkMixedParallel(b *testing.B) {
	const nKeys = 1 << 16
	tbl := benchTable(b, nKeys)
	b.RunParallel(func(pb *testing.PB) {
		rng := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			k := rng.Intn(nKeys)
			switch rng.Intn(10) {
			case 0:
				tbl.Insert(k, k)
			case 1:
				tbl.Remove(k)
			default:
				tbl.Contains(k)
			}
		}
	})
}
