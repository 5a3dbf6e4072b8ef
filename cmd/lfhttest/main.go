package main

import (
	"math/rand"
	"net/http"
	"os"

	_ "net/http/pprof"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// normalDistInt returns an integer in [0, max) following a normal
// distribution centered at max/2, so a fraction of the key space is hot and
// removes/inserts keep colliding there.
func normalDistInt(rng *rand.Rand, max int) int {
	if max <= 0 {
		return 0
	}
	mean := float64(max) / 2.0
	stdDev := float64(max) / 8.0
	for {
		val := rng.NormFloat64()*stdDev + mean
		if val >= 0 && val < float64(max) {
			return int(val)
		}
	}
}

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg, err := loadPlanConfig()
	if err != nil {
		log.Panic().Err(err).Msg("failed to load plan config")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if cfg.PprofAddr != "" {
		go func() {
			if err := http.ListenAndServe(cfg.PprofAddr, nil); err != nil {
				log.Error().Err(err).Msg("pprof server stopped")
			}
		}()
	}

	plan := os.Getenv("PLAN")
	if plan == "" {
		plan = "churn"
	}
	log.Info().Str("plan", plan).Int("workers", cfg.Workers).Int("keys", cfg.Keys).Int("seconds", cfg.Seconds).Msg("starting load plan")

	switch plan {
	case "churn":
		planChurn(cfg)
	case "disjoint":
		planDisjoint(cfg)
	case "freecache":
		planFreecache(cfg)
	case "ristretto":
		planRistretto(cfg)
	default:
		log.Panic().Str("plan", plan).Msg("invalid plan")
	}
}
