package cache

// Cache defines the minimal key-value cache API the orchestration layer depends on.
// Implementations must be safe for concurrent use.
type Cache[K comparable, V any] interface {
	// Get returns the value and whether it was present. A hit counts as a use.
	Get(key K) (V, bool)

	// Put inserts or overwrites the value for key.
	Put(key K, value V)

	// Remove deletes a key if present.
	Remove(key K)

	// Len returns the number of entries currently stored.
	Len() int
}
