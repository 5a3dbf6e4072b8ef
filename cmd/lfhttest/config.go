package main

import (
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

// planConfig carries the knobs shared by all plans. Defaults below, each
// overridable through LFHT_-prefixed environment variables
// (LFHT_WORKERS=16, LFHT_GAUSSIAN=false, ...).
type planConfig struct {
	Workers        int    `koanf:"workers"`
	Keys           int    `koanf:"keys"`
	Seconds        int    `koanf:"seconds"`
	InitialBuckets int    `koanf:"initialbuckets"`
	Gaussian       bool   `koanf:"gaussian"`
	LimitOps       bool   `koanf:"limitops"`
	Csv            bool   `koanf:"csv"`
	CsvFile        string `koanf:"csvfile"`
	Console        bool   `koanf:"console"`
	Debug          bool   `koanf:"debug"`
	PprofAddr      string `koanf:"pprofaddr"`
}

func loadPlanConfig() (planConfig, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"workers":        8,
		"keys":           100_000,
		"seconds":        30,
		"initialbuckets": 64,
		"gaussian":       true,
		"limitops":       false,
		"csv":            false,
		"csvfile":        "",
		"console":        true,
		"debug":          false,
		"pprofaddr":      "",
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return planConfig{}, err
	}
	if err := k.Load(env.Provider("LFHT_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "LFHT_"))
	}), nil); err != nil {
		return planConfig{}, err
	}

	var cfg planConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return planConfig{}, err
	}
	return cfg, nil
}
