package util

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// --------------------------------------------------------------------------
// General Utility Functions
// --------------------------------------------------------------------------

// GenerateSeed returns a random seed for hash based shard selection.
// If the system random source fails the current time is used instead.
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// HashString hashes s with FNV-1a, mixing in the given seed so that two
// instances with different seeds distribute the same keys differently.
func HashString(s string, seed uint64) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	hash := uint64(offset64) ^ seed
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}
	return hash
}

// ShardIndex maps a hash onto one of n shards.
// The low bits of FNV are weak, so the hash is shifted before taking the modulo.
func ShardIndex(hash uint64, n int) int {
	return int((hash >> 7) % uint64(n))
}
