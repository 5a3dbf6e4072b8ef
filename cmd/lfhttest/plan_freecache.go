package main

import (
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coocood/freecache"
	"github.com/rs/zerolog/log"

	"github.com/stlngds/lfht/pkg/metrics"
)

// planFreecache runs the churn load shape against freecache so the two can
// be compared under the same workers/keys/duration. freecache is a cache,
// not a set, so evictions make its hit numbers an upper-bound comparison
// only.
func planFreecache(cfg planConfig) {
	cache := freecache.NewCache(256 * 1024 * 1024)

	collector := metrics.NewCollector(metrics.CollectorConfig{
		Workers:        cfg.Workers,
		ConsoleLogging: cfg.Console,
	})
	collector.Start()

	var running atomic.Bool
	running.Store(true)

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(w) + time.Now().UnixNano()))
			val := []byte("val")
			for running.Load() {
				var key int
				if cfg.Gaussian {
					key = normalDistInt(rng, cfg.Keys)
				} else {
					key = rng.Intn(cfg.Keys)
				}
				k := strconv.AppendInt(nil, int64(key), 10)
				switch rng.Intn(3) {
				case 0:
					err := cache.Set(k, val, 0)
					collector.RecordInsert(w, err == nil)
				case 1:
					collector.RecordRemove(w, cache.Del(k))
				default:
					_, err := cache.Get(k)
					collector.RecordContains(w, err == nil)
				}
				if cfg.LimitOps {
					time.Sleep(5 * time.Microsecond)
				}
			}
		}(w)
	}

	time.Sleep(time.Duration(cfg.Seconds) * time.Second)
	running.Store(false)
	wg.Wait()
	collector.Stop()

	inserts, removes, contains := collector.Totals()
	log.Info().
		Int64("sets", inserts).
		Int64("dels", removes).
		Int64("hits", contains).
		Int64("entries", cache.EntryCount()).
		Msg("freecache plan finished")

	flushCSV(cfg, collector)
}
