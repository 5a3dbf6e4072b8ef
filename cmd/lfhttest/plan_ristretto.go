package main

import (
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog/log"

	"github.com/stlngds/lfht/pkg/metrics"
)

// planRistretto runs the churn load shape against ristretto. Like the
// freecache plan this is a throughput-shape comparison: ristretto admits
// entries probabilistically, so its hit counts are not a correctness
// baseline.
func planRistretto(cfg planConfig) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(10 * cfg.Keys),
		MaxCost:     int64(cfg.Keys),
		BufferItems: 64,
	})
	if err != nil {
		log.Panic().Err(err).Msg("failed to build ristretto cache")
	}

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
			for running.Load() {
				var key int
				if cfg.Gaussian {
					key = normalDistInt(rng, cfg.Keys)
				} else {
					key = rng.Intn(cfg.Keys)
				}
				k := strconv.Itoa(key)
				switch rng.Intn(3) {
				case 0:
					collector.RecordInsert(w, cache.Set(k, "val", 1))
				case 1:
					cache.Del(k)
					collector.RecordRemove(w, true)
				default:
					_, found := cache.Get(k)
					collector.RecordContains(w, found)
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
		Msg("ristretto plan finished")

	flushCSV(cfg, collector)
}
