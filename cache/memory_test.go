package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_GetSetEvict(t *testing.T) {
	store := NewMemoryStore()
	key := MustKey("docs", "projects")

	if _, ok := store.Get(key); ok {
		t.Error("Get on empty store should return ok=false")
	}

	entry := Entry{Status: StatusSuccess, Value: []string{"a"}, FetchedAt: time.Now()}
	store.Set(key, entry)

	got, ok := store.Get(MustKey("docs", "projects"))
	if !ok {
		t.Fatal("Get after Set should return ok=true")
	}
	if got.Status != StatusSuccess {
		t.Errorf("Status = %v, want success", got.Status)
	}

	if !store.Evict(key) {
		t.Error("Evict of present key should return true")
	}
	if _, ok := store.Get(key); ok {
		t.Error("Get after Evict should return ok=false")
	}
	if store.Evict(key) {
		t.Error("Evict is idempotent and reports absence")
	}
}

func TestMemoryStore_EvictPrefix(t *testing.T) {
	store := NewMemoryStore()
	store.Set(MustKey("docs", "projects"), Entry{})
	store.Set(MustKey("docs", "projects", "a"), Entry{})
	store.Set(MustKey("docs", "projects", "b"), Entry{})
	store.Set(MustKey("current-user", "u1"), Entry{})

	n := store.EvictPrefix(MustKey("docs", "projects"))
	if n != 3 {
		t.Errorf("EvictPrefix removed %d, want 3", n)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
	if _, ok := store.Get(MustKey("current-user", "u1")); !ok {
		t.Error("unrelated key should survive prefix eviction")
	}
}

func TestMemoryStore_RangeStopsEarly(t *testing.T) {
	store := NewMemoryStore()
	for i := 0; i < 5; i++ {
		store.Set(MustKey("n", i), Entry{})
	}

	visited := 0
	store.Range(func(Key, Entry) bool {
		visited++
		return visited < 2
	})
	if visited != 2 {
		t.Errorf("visited %d entries, want 2", visited)
	}
}

func TestCollect(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.Set(MustKey("a"), Entry{Status: StatusSuccess, Value: 1, FetchedAt: now})
	store.Set(MustKey("b"), Entry{Status: StatusSuccess, Value: 1, FetchedAt: now, InFlight: 4})
	store.Set(MustKey("c"), Entry{Status: StatusPending, InFlight: 5})
	store.Set(MustKey("d"), Entry{Status: StatusError, Err: errors.New("x")})

	st := Collect(store)
	want := Stats{Total: 4, Success: 2, Pending: 1, Error: 1, Loading: 2}
	if st != want {
		t.Errorf("Collect() = %+v, want %+v", st, want)
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := MustKey("k", fmt.Sprint(n%10))
			store.Set(key, Entry{Status: StatusPending, InFlight: uint64(n + 1)})
			store.Get(key)
			if n%7 == 0 {
				store.Evict(key)
			}
		}(i)
	}
	wg.Wait()

	if store.Len() > 10 {
		t.Errorf("Len() = %d, want at most 10", store.Len())
	}
}
