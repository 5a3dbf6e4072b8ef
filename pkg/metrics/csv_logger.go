package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultCSVFileName is used when CsvLogger.FileName is empty.
const DefaultCSVFileName = "lfhttest_results.csv"

// CsvLogger writes a collector's sample history out as CSV, one row per
// sample. Call Flush once the run is over.
type CsvLogger struct {
	FileName  string
	Collector *Collector
}

func (c *CsvLogger) fileName() string {
	if c.FileName == "" {
		return DefaultCSVFileName
	}
	return c.FileName
}

// Flush writes every sample collected so far. The file is truncated first;
// a run produces exactly one file.
func (c *CsvLogger) Flush() error {
	samples := c.Collector.Samples()

	f, err := os.Create(c.fileName())
	if err != nil {
		return fmt.Errorf("csv logger: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"time", "ops_per_sec", "inserts", "removes", "contains", "load_factor", "buckets"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("csv logger: %w", err)
	}
	for _, s := range samples {
		row := []string{
			s.At.Format(time.RFC3339),
			strconv.FormatFloat(s.OpsPerSec, 'f', 2, 64),
			strconv.FormatInt(s.Inserts, 10),
			strconv.FormatInt(s.Removes, 10),
			strconv.FormatInt(s.Contains, 10),
			strconv.FormatFloat(s.LoadFactor, 'f', 4, 64),
			strconv.Itoa(s.Buckets),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv logger: %w", err)
		}
	}
	log.Info().Str("file", c.fileName()).Int("samples", len(samples)).Msg("csv results written")
	return nil
}
