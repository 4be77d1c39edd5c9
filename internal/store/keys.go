package store

import "sync"

// Key prefixes.
const (
	popularityPrefix = "popularity:"
	licensePrefix    = "license:"
)

// keyPool provides reusable byte slices for building read keys.
var keyPool = sync.Pool{
	New: func() any {
		// prefix (8-11 bytes) + asset or license ID (up to 128 bytes)
		return make([]byte, 0, 160)
	},
}

// buildKey constructs a database key from prefix and id using a pooled buffer.
// The returned slice is valid until releaseKey is called.
//
// Only use pooled keys for reads: badger retains the key slice passed to
// txn.Set until the transaction commits.
func buildKey(prefix, id string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, id...)
	return buf
}

// releaseKey returns a key buffer to the pool for reuse.
func releaseKey(key []byte) {
	if cap(key) <= 1024 {
		keyPool.Put(key[:0]) //nolint:staticcheck // SA6002: slice header allocation is acceptable here
	}
}

// ownedKey builds a key that is safe to hand to txn.Set or txn.Delete.
func ownedKey(prefix, id string) []byte {
	return []byte(prefix + id)
}
