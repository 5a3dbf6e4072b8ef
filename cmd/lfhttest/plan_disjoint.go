package main

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/stlngds/lfht/pkg/lfht"
	"github.com/stlngds/lfht/pkg/metrics"
)

// planDisjoint gives each worker its own slice of the key space and inserts
// all of it concurrently. No two workers ever touch the same key, so at the
// end the table must hold exactly cfg.Keys entries; anything else means an
// update was lost, most likely across a resize.
func planDisjoint(cfg planConfig) {
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

	perWorker := cfg.Keys / cfg.Workers
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			start := w * perWorker
			end := start + perWorker
			if w == cfg.Workers-1 {
				end = cfg.Keys
			}
			for key := start; key < end; key++ {
				collector.RecordInsert(w, table.Insert(key, "val"))
			}
		}(w)
	}
	wg.Wait()
	collector.Stop()

	missing := 0
	for key := 0; key < cfg.Keys; key++ {
		if !table.Contains(key) {
			missing++
		}
	}
	if missing > 0 || table.Len() != cfg.Keys {
		log.Error().Int("missing", missing).Int("len", table.Len()).Int("expected", cfg.Keys).Msg("disjoint plan lost updates")
	} else {
		log.Info().Int("keys", cfg.Keys).Int("buckets", table.BucketCount()).Msg("disjoint plan verified, no lost updates")
	}

	flushCSV(cfg, collector)
}
