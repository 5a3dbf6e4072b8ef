package lfht

import (
	"encoding/binary"
	"math"

	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"
)

// DefaultHasher returns the hasher New would select for K, or nil when K is
// not one of the predeclared ordered types. Useful for collaborators that
// want placement consistent with a default-configured table.
func DefaultHasher[K Key]() func(K, uint64) uint64 {
	return builtinHasher[K]()
}

// builtinHasher picks a hasher for the predeclared ordered types. Named
// types (`type ID int`) do not match the switch; callers with such keys set
// Config.Hasher themselves.
func builtinHasher[K Key]() func(K, uint64) uint64 {
	var zero K
	switch any(zero).(type) {
	case string:
		return func(k K, seed uint64) uint64 {
			return xxh3.HashStringSeed(any(k).(string), seed)
		}
	case int:
		return func(k K, seed uint64) uint64 { return hashWord(uint64(any(k).(int)), seed) }
	case int8:
		return func(k K, seed uint64) uint64 { return hashWord(uint64(any(k).(int8)), seed) }
	case int16:
		return func(k K, seed uint64) uint64 { return hashWord(uint64(any(k).(int16)), seed) }
	case int32:
		return func(k K, seed uint64) uint64 { return hashWord(uint64(any(k).(int32)), seed) }
	case int64:
		return func(k K, seed uint64) uint64 { return hashWord(uint64(any(k).(int64)), seed) }
	case uint:
		return func(k K, seed uint64) uint64 { return hashWord(uint64(any(k).(uint)), seed) }
	case uint8:
		return func(k K, seed uint64) uint64 { return hashWord(uint64(any(k).(uint8)), seed) }
	case uint16:
		return func(k K, seed uint64) uint64 { return hashWord(uint64(any(k).(uint16)), seed) }
	case uint32:
		return func(k K, seed uint64) uint64 { return hashWord(uint64(any(k).(uint32)), seed) }
	case uint64:
		return func(k K, seed uint64) uint64 { return hashWord(any(k).(uint64), seed) }
	case uintptr:
		return func(k K, seed uint64) uint64 { return hashWord(uint64(any(k).(uintptr)), seed) }
	case float32:
		return func(k K, seed uint64) uint64 {
			return hashWord(uint64(math.Float32bits(any(k).(float32))), seed)
		}
	case float64:
		return func(k K, seed uint64) uint64 {
			return hashWord(math.Float64bits(any(k).(float64)), seed)
		}
	default:
		return nil
	}
}

func hashWord(x, seed uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], x)
	return murmur3.Sum64WithSeed(b[:], uint32(seed))
}

// HashBytes hashes an arbitrary byte key. Useful as a building block for a
// custom Config.Hasher.
func HashBytes(b []byte, seed uint64) uint64 {
	return xxh3.HashSeed(b, seed)
}
