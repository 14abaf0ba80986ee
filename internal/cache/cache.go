package cache

// Cache is a string-keyed store in which every entry shares one process-wide
// time-to-live. Implementations are safe for concurrent use.
type Cache[V any] interface {
	// Get returns the value and whether it was present and not expired.
	Get(key string) (V, bool)

	// Set stores the value, replacing any existing entry for key and
	// restarting its time-to-live.
	Set(key string, value V)

	// Len returns the number of non-expired items currently stored.
	Len() int

	// PurgeExpired removes expired entries and reports how many were dropped.
	PurgeExpired() int
}
