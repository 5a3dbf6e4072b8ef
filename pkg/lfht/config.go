package lfht

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	// DefaultInitialBuckets is both the size of the first bucket array and
	// the floor below which shrinking never goes.
	DefaultInitialBuckets = 64

	DefaultUpperLoadFactor = 2.0
	DefaultLowerLoadFactor = 0.25
)

var (
	ErrInitialBucketsLessThan1      = fmt.Errorf("initial bucket count must be greater than 0")
	ErrInitialBucketsNotPowerOfTwo  = fmt.Errorf("initial bucket count must be a power of two")
	ErrLoadFactorNotPositive        = fmt.Errorf("load factors must be greater than 0")
	ErrUpperLoadFactorNotAboveLower = fmt.Errorf("upper load factor must be greater than lower load factor")
	ErrRetireThresholdLessThan0     = fmt.Errorf("retire threshold must not be negative")
	ErrHasherRequired               = fmt.Errorf("no built-in hasher for this key type, set Config.Hasher")

	// defaultSeed follows the process-unique seed idiom: derived once from
	// the start time so bucket placement differs between runs.
	defaultSeed = xxhash.Sum64String(strconv.Itoa(int(time.Now().UnixNano())))
)

// Config carries the construction-time options. The zero value selects every
// default.
type Config[K Key] struct {
	// InitialBuckets sizes the first bucket array and is the shrink floor.
	// Must be a power of two. Defaults to DefaultInitialBuckets.
	InitialBuckets int

	// UpperLoadFactor is the live-count / bucket-count ratio above which the
	// table doubles. Defaults to DefaultUpperLoadFactor.
	UpperLoadFactor float64

	// LowerLoadFactor is the ratio below which the table halves, never going
	// under InitialBuckets. Defaults to DefaultLowerLoadFactor.
	LowerLoadFactor float64

	// RetireThreshold is the retired-node count that triggers a reclamation
	// scan. Zero selects 2 x GOMAXPROCS x 3.
	RetireThreshold int

	// Seed perturbs the hash function. Zero selects a per-process seed.
	Seed uint64

	// Hasher maps a key and the seed to a 64-bit hash. Nil selects a
	// built-in hasher for the predeclared ordered types.
	Hasher func(K, uint64) uint64
}

func (c *Config[K]) validate() error {
	if c.InitialBuckets == 0 {
		c.InitialBuckets = DefaultInitialBuckets
	}
	if c.InitialBuckets < 1 {
		return ErrInitialBucketsLessThan1
	}
	if c.InitialBuckets&(c.InitialBuckets-1) != 0 {
		return ErrInitialBucketsNotPowerOfTwo
	}
	if c.UpperLoadFactor == 0 {
		c.UpperLoadFactor = DefaultUpperLoadFactor
	}
	if c.LowerLoadFactor == 0 {
		c.LowerLoadFactor = DefaultLowerLoadFactor
	}
	if c.UpperLoadFactor <= 0 || c.LowerLoadFactor <= 0 {
		return ErrLoadFactorNotPositive
	}
	if c.UpperLoadFactor <= c.LowerLoadFactor {
		return ErrUpperLoadFactorNotAboveLower
	}
	if c.RetireThreshold < 0 {
		return ErrRetireThresholdLessThan0
	}
	if c.Seed == 0 {
		c.Seed = defaultSeed
	}
	if c.Hasher == nil {
		c.Hasher = builtinHasher[K]()
		if c.Hasher == nil {
			return ErrHasherRequired
		}
	}
	return nil
}
