package cache

import "sync/atomic"

// tierCounters tracks per-tier operation counts. All fields are monotonic
// until Reset.
type tierCounters struct {
	hits    atomic.Uint64
	misses  atomic.Uint64
	sets    atomic.Uint64
	deletes atomic.Uint64
}

func (t *tierCounters) reset() {
	t.hits.Store(0)
	t.misses.Store(0)
	t.sets.Store(0)
	t.deletes.Store(0)
}

func (t *tierCounters) snapshot() TierStats {
	return TierStats{
		Hits:    t.hits.Load(),
		Misses:  t.misses.Load(),
		Sets:    t.sets.Load(),
		Deletes: t.deletes.Load(),
	}
}

type stats struct {
	local     tierCounters
	remote    tierCounters
	evictions atomic.Uint64
}

func (s *stats) reset() {
	s.local.reset()
	s.remote.reset()
	s.evictions.Store(0)
}

// TierStats holds the operation counters for one storage tier.
type TierStats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Sets    uint64 `json:"sets"`
	Deletes uint64 `json:"deletes"`
}

// Stats is a point-in-time snapshot of cache statistics.
type Stats struct {
	Local  TierStats `json:"local"`
	Remote TierStats `json:"remote"`

	// Hits and Misses aggregate both tiers.
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	// HitRate is hits/(hits+misses), 0 when there has been no traffic.
	HitRate float64 `json:"hit_rate"`

	Evictions uint64 `json:"evictions"`

	// Entries and MemoryBytes describe the local tier. MemoryBytes is an
	// approximation based on key and payload sizes.
	Entries     int   `json:"entries"`
	MemoryBytes int64 `json:"memory_bytes"`

	// ProcessMemoryBytes is the resident set size of this process, when it
	// could be determined.
	ProcessMemoryBytes uint64 `json:"process_memory_bytes,omitempty"`

	RemoteEnabled bool `json:"remote_enabled"`
	RemoteHealthy bool `json:"remote_healthy"`
}
