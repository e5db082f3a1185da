// Package hash provides stable fingerprints for identifier sets.
package hash

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// IDs computes a 64-bit fingerprint of an identifier sequence.
//
// The fingerprint folds each identifier into an XXH3 hash, using the previous
// hash as the seed for the next one, so the result depends on both the set and
// its order. Callers wanting a set fingerprint must sort first.
//
// Parameters:
//   - ids: Identifier sequence
//
// Returns:
//   - uint64: Fingerprint (the hash of the empty input for an empty sequence)
//
// Example:
//
//	slices.Sort(ids)
//	fp := hash.IDs(ids)
func IDs(ids []uint64) uint64 {
	return IDsSeed(ids, 0)
}

// IDsSeed is IDs with an explicit starting seed.
func IDsSeed(ids []uint64, seed uint64) uint64 {
	var buf [8]byte
	h := xxh3.HashSeed(nil, seed)
	for _, id := range ids {
		binary.LittleEndian.PutUint64(buf[:], id)
		h = xxh3.HashSeed(buf[:], h)
	}

	return h
}

// String computes the XXH3 hash of s.
//
// Used to compare configuration digests across processes.
func String(s string) uint64 {
	return xxh3.HashString(s)
}
