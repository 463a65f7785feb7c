package cache

// Store maps keys to entries.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Consistency: once Set returns, a subsequent Get for the same key observes it.
// - Expiry: none. Entries leave the store only through Evict or EvictPrefix.
type Store interface {
	// Get returns the entry for key. Returns (Entry{}, false) when absent.
	Get(key Key) (Entry, bool)

	// Set stores the entry for key, replacing any previous one.
	Set(key Key, entry Entry)

	// Evict removes key. Returns false if it was absent.
	Evict(key Key) bool

	// EvictPrefix removes every key that has prefix and returns the count.
	EvictPrefix(prefix Key) int

	// Len returns the number of stored entries.
	Len() int

	// Range calls fn for each entry until fn returns false.
	// fn must not call back into the store.
	Range(fn func(key Key, entry Entry) bool)
}

// Stats summarizes a store by entry status.
type Stats struct {
	Total   int
	Empty   int
	Pending int
	Success int
	Error   int
	Loading int
}

// Collect computes Stats over a store.
func Collect(s Store) Stats {
	var st Stats
	s.Range(func(_ Key, e Entry) bool {
		st.Total++
		switch e.Status {
		case StatusEmpty:
			st.Empty++
		case StatusPending:
			st.Pending++
		case StatusSuccess:
			st.Success++
		case StatusError:
			st.Error++
		}
		if e.Loading() {
			st.Loading++
		}
		return true
	})
	return st
}
