package cache

import (
	"container/list"
	"sync"
	"time"
)

// localEntry is one cached value in the local tier. Entries are never
// mutated after insert; Set on an existing key replaces the entry.
type localEntry struct {
	key        string
	value      any
	size       int64
	insertedAt time.Time
	expiresAt  time.Time
	elem       *list.Element
}

// LocalStore is the fast in-process tier: a mutex-guarded map with per-entry
// TTL, an LRU recency list and approximate memory accounting. Expired
// entries are dropped lazily on read and swept by the owning CacheStore.
type LocalStore struct {
	mu         sync.Mutex
	entries    map[string]*localEntry
	recency    *list.List // front = most recently used
	memory     int64
	maxEntries int
	now        func() time.Time
}

// NewLocalStore returns an empty local tier. maxEntries bounds the entry
// count (0 means unbounded); the memory bound is enforced by the owning
// CacheStore's sweep.
func NewLocalStore(maxEntries int) *LocalStore {
	return &LocalStore{
		entries:    make(map[string]*localEntry),
		recency:    list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// approxSize estimates the in-memory footprint of an entry. Byte and string
// payloads are measured exactly; anything else (raw-value fallback) gets a
// flat estimate.
func approxSize(key string, val any) int64 {
	const entryOverhead = 96
	size := int64(len(key)) + entryOverhead
	switch v := val.(type) {
	case []byte:
		size += int64(len(v))
	case string:
		size += int64(len(v))
	default:
		size += 256
	}
	return size
}

// Get returns the value for key, or found=false if absent or expired.
// A hit marks the entry as most recently used.
func (s *LocalStore) Get(key string) (bool, any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if e.expiresAt.Before(s.now()) {
		s.removeLocked(e)
		return false, nil
	}
	s.recency.MoveToFront(e.elem)
	return true, e.value
}

// Set stores a value with the given TTL, replacing any existing entry for
// the key. If the entry-count bound is reached, the least recently used
// entry is evicted first; the returned count reports such evictions.
func (s *LocalStore) Set(key string, val any, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[key]; ok {
		s.removeLocked(old)
	}
	var evicted int
	if s.maxEntries > 0 {
		for len(s.entries) >= s.maxEntries {
			oldest := s.recency.Back()
			if oldest == nil {
				break
			}
			s.removeLocked(oldest.Value.(*localEntry))
			evicted++
		}
	}
	now := s.now()
	e := &localEntry{
		key:        key,
		value:      val,
		size:       approxSize(key, val),
		insertedAt: now,
		expiresAt:  now.Add(ttl),
	}
	e.elem = s.recency.PushFront(e)
	s.entries[key] = e
	s.memory += e.size
	return evicted
}

// Delete removes the entry for key, reporting whether it existed.
func (s *LocalStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if ok {
		s.removeLocked(e)
	}
	return ok
}

// Clear removes every entry.
func (s *LocalStore) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*localEntry)
	s.recency.Init()
	s.memory = 0
	s.mu.Unlock()
}

// Len returns the current entry count.
func (s *LocalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Memory returns the approximate memory usage in bytes.
func (s *LocalStore) Memory() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory
}

// SweepExpired removes all expired entries and returns how many were
// removed.
func (s *LocalStore) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var removed int
	for _, e := range s.entries {
		if e.expiresAt.Before(now) {
			s.removeLocked(e)
			removed++
		}
	}
	return removed
}

// EvictOldest removes up to n entries in least-recently-used order and
// returns how many were removed.
func (s *LocalStore) EvictOldest(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int
	for removed < n {
		oldest := s.recency.Back()
		if oldest == nil {
			break
		}
		s.removeLocked(oldest.Value.(*localEntry))
		removed++
	}
	return removed
}

func (s *LocalStore) removeLocked(e *localEntry) {
	delete(s.entries, e.key)
	s.recency.Remove(e.elem)
	s.memory -= e.size
}
