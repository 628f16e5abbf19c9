package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Hasher maps a key to a 64 bit hash. The table indexes its directory with
// the lowest bits of the result, so the hasher should mix its input well.
type Hasher[K comparable] func(K) uint64

func Uint64Hasher(key uint64) uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], key)
	return xxhash.Sum64(buf[:])
}

func IntHasher(key int) uint64 {
	return Uint64Hasher(uint64(key))
}

func StringHasher(key string) uint64 {
	return xxhash.Sum64String(key)
}
