// Package hllhash provides the caller-side hash this module's HLL expects
// to receive through AddRaw. The storage spec leaves the choice of hash
// unspecified as long as it is well distributed; this package standardizes
// on murmur3, matching the convention used by the PostgreSQL and Java
// reference implementations and by other Go HLL ports.
package hllhash

import "github.com/spaolacci/murmur3"

// Sum64 hashes data with murmur3. Pass the result to (*hll.HLL).AddRaw.
func Sum64(data []byte) uint64 {
	return murmur3.Sum64(data)
}

// Sum64String is Sum64 for a string: it hashes []byte(s), so it returns
// the same value Sum64 does for the same bytes.
func Sum64String(s string) uint64 {
	return murmur3.Sum64([]byte(s))
}

// Sum64WithSeed hashes data with a caller-chosen seed, for callers that
// need to avoid hash-flooding collisions across independently-seeded HLLs
// being unioned together.
func Sum64WithSeed(data []byte, seed uint32) uint64 {
	h := murmur3.New64WithSeed(seed)
	h.Write(data) //nolint:errcheck // hash.Hash.Write never returns an error
	return h.Sum64()
}
