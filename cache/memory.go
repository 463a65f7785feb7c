package cache

import "sync"

// MemoryStore is the in-memory Store. The zero value is not usable; call
// NewMemoryStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*slot
}

type slot struct {
	key   Key
	entry Entry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*slot),
	}
}

// Get returns the entry for key.
func (s *MemoryStore) Get(key Key) (Entry, bool) {
	s.mu.RLock()
	sl, ok := s.entries[key.String()]
	s.mu.RUnlock()

	if !ok {
		return Entry{}, false
	}
	return sl.entry, true
}

// Set stores the entry for key.
func (s *MemoryStore) Set(key Key, entry Entry) {
	s.mu.Lock()
	s.entries[key.String()] = &slot{key: key, entry: entry}
	s.mu.Unlock()
}

// Evict removes key. Idempotent.
func (s *MemoryStore) Evict(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key.String()]; !ok {
		return false
	}
	delete(s.entries, key.String())
	return true
}

// EvictPrefix removes all keys under prefix.
func (s *MemoryStore) EvictPrefix(prefix Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for enc, sl := range s.entries {
		if sl.key.HasPrefix(prefix) {
			delete(s.entries, enc)
			n++
		}
	}
	return n
}

// Len returns the number of entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Range iterates over a snapshot of the entries.
func (s *MemoryStore) Range(fn func(key Key, entry Entry) bool) {
	s.mu.RLock()
	snapshot := make([]slot, 0, len(s.entries))
	for _, sl := range s.entries {
		snapshot = append(snapshot, *sl)
	}
	s.mu.RUnlock()

	for _, sl := range snapshot {
		if !fn(sl.key, sl.entry) {
			return
		}
	}
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
