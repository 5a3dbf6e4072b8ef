package main

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stlngds/lfht/pkg/lfht"
	"github.com/stlngds/lfht/pkg/metrics"
)

// planChurn is the default stress plan: every worker fires random
// insert/remove/contains at a shared key range for the configured duration,
// then the table's live count is checked against successful inserts minus
// successful removes.
func planChurn(cfg planConfig) {
	table, err := lfht.New[int, string](lfht.Config[int]{
		InitialBuckets: cfg.InitialBuckets,
	})
	if err != nil {
		log.Panic().Err(err).Msg("failed to build table")
	}

	collector := metrics.NewCollector(metrics.CollectorConfig{
		Workers:        cfg.Workers,
		ConsoleLogging: cfg.Console,
		LoadFactor:     table.LoadFactor,
		Buckets:        table.BucketCount,
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
				switch rng.Intn(3) {
				case 0:
					collector.RecordInsert(w, table.Insert(key, "val"))
				case 1:
					collector.RecordRemove(w, table.Remove(key))
				default:
					collector.RecordContains(w, table.Contains(key))
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

	inserts, removes, _ := collector.Totals()
	if got, want := table.Len(), int(inserts-removes); got != want {
		log.Error().Int("len", got).Int("expected", want).Msg("live count diverged from successful ops")
	}

	freed := table.Reclaim()
	stats := table.Stats()
	log.Info().
		Int("len", table.Len()).
		Int("buckets", table.BucketCount()).
		Uint64("grows", stats.Grows).
		Uint64("shrinks", stats.Shrinks).
		Uint64("scans", stats.Scans).
		Int("final_frees", freed).
		Int64("retired", stats.RetiredNodes).
		Int64("live_nodes", stats.LiveNodes).
		Msg("churn plan finished")

	flushCSV(cfg, collector)
}

func flushCSV(cfg planConfig, collector *metrics.Collector) {
	if !cfg.Csv {
		return
	}
	csv := metrics.CsvLogger{FileName: cfg.CsvFile, Collector: collector}
	if err := csv.Flush(); err != nil {
		log.Error().Err(err).Msg("failed to write csv")
	}
}
