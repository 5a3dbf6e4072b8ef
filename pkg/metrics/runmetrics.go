// Package metrics collects operation throughput from the load driver's
// workers: per-worker op counts, table-wide insert/remove/contains totals,
// sampled ops/sec, and the table's load factor over time. Emission is
// console (zerolog) and/or CSV.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/cpu"
)

// HistorySize bounds the sample history kept for CSV emission.
const HistorySize = 10_000

// Recorder is the surface workers report through.
type Recorder interface {
	RecordInsert(worker int, created bool)
	RecordRemove(worker int, removed bool)
	RecordContains(worker int, hit bool)
}

type workerCounters struct {
	ops      atomic.Int64
	inserts  atomic.Int64
	removes  atomic.Int64
	contains atomic.Int64
	_        cpu.CacheLinePad
}

// Sample is one sampling-period observation.
type Sample struct {
	At         time.Time
	OpsPerSec  float64
	Inserts    int64
	Removes    int64
	Contains   int64
	LoadFactor float64
	Buckets    int
}

// CollectorConfig mirrors the driver knobs.
type CollectorConfig struct {
	Workers        int
	SamplePeriod   time.Duration // default 1s
	ConsoleLogging bool

	// LoadFactor and Buckets are polled each sample when set.
	LoadFactor func() float64
	Buckets    func() int
}

// Collector accumulates worker counters and samples them on a ticker.
type Collector struct {
	config  CollectorConfig
	workers []workerCounters

	mu      sync.Mutex
	samples []Sample
	lastOps int64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewCollector(config CollectorConfig) *Collector {
	if config.SamplePeriod <= 0 {
		config.SamplePeriod = time.Second
	}
	return &Collector{
		config:  config,
		workers: make([]workerCounters, config.Workers),
		stopCh:  make(chan struct{}),
	}
}

func (c *Collector) RecordInsert(worker int, created bool) {
	w := &c.workers[worker]
	w.ops.Add(1)
	if created {
		w.inserts.Add(1)
	}
}

func (c *Collector) RecordRemove(worker int, removed bool) {
	w := &c.workers[worker]
	w.ops.Add(1)
	if removed {
		w.removes.Add(1)
	}
}

func (c *Collector) RecordContains(worker int, hit bool) {
	w := &c.workers[worker]
	w.ops.Add(1)
	if hit {
		w.contains.Add(1)
	}
}

// WorkerOps returns the lifetime op count of one worker.
func (c *Collector) WorkerOps(worker int) int64 {
	return c.workers[worker].ops.Load()
}

// Totals returns lifetime successful inserts, removes, and contains hits.
func (c *Collector) Totals() (inserts, removes, contains int64) {
	for i := range c.workers {
		inserts += c.workers[i].inserts.Load()
		removes += c.workers[i].removes.Load()
		contains += c.workers[i].contains.Load()
	}
	return
}

// Start launches the sampling loop. Stop with Stop.
func (c *Collector) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.config.SamplePeriod)
		defer ticker.Stop()
		for {
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.sample()
			}
		}
	}()
}

func (c *Collector) sample() {
	var total int64
	for i := range c.workers {
		total += c.workers[i].ops.Load()
	}
	inserts, removes, contains := c.Totals()

	s := Sample{
		At:       time.Now(),
		Inserts:  inserts,
		Removes:  removes,
		Contains: contains,
	}
	if c.config.LoadFactor != nil {
		s.LoadFactor = c.config.LoadFactor()
	}
	if c.config.Buckets != nil {
		s.Buckets = c.config.Buckets()
	}

	c.mu.Lock()
	s.OpsPerSec = float64(total-c.lastOps) / c.config.SamplePeriod.Seconds()
	c.lastOps = total
	c.samples = append(c.samples, s)
	if len(c.samples) > HistorySize {
		c.samples = c.samples[len(c.samples)-HistorySize:]
	}
	c.mu.Unlock()

	if c.config.ConsoleLogging {
		log.Info().
			Float64("ops_per_sec", s.OpsPerSec).
			Int64("inserts", s.Inserts).
			Int64("removes", s.Removes).
			Int64("contains", s.Contains).
			Float64("load_factor", s.LoadFactor).
			Int("buckets", s.Buckets).
			Msg("run metrics")
	}
}

// Samples returns a copy of the sample history.
func (c *Collector) Samples() []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sample(nil), c.samples...)
}

// Stop ends the sampling loop and takes one final sample.
func (c *Collector) Stop() {
	close(c.stopCh)
	c.wg.Wait()
	c.sample()
}
