// Package cache implements the multi-tier, TTL-driven spatiotemporal cache
// that sits between the flight-map HTTP layer and the upstream position-data
// providers.
//
// # Tiers
//
// A [CacheStore] composes two tiers:
//
//   - [LocalStore]: in-process map guarded by a mutex, with per-entry TTL,
//     an LRU recency list and approximate memory accounting. The fast tier.
//     Expired entries are dropped lazily on read and swept periodically.
//
//   - [RemoteStore]: shared Redis tier using
//     [github.com/redis/go-redis/v9], with native Redis TTLs and an optional
//     key prefix for namespacing. The remote tier may be absent entirely
//     (RemoteEnabled off) or fail independently of the local tier; either
//     way the cache degrades to local-only operation. Consecutive failures
//     trip an internal breaker so a dead Redis is probed, not hammered.
//
// [CacheStore.Get] checks local first; a remote hit is promoted into the
// local tier with its remaining TTL. [CacheStore.Set] writes through to both
// tiers. No operation ever surfaces a backing-store outage to the caller;
// a correctness-preserving miss is always the worst case.
//
// # Serialization
//
// Values cross tier boundaries through a pluggable [Serializer]. The default
// stores msgpack ([github.com/vmihailenco/msgpack/v5]); [NewGzipSerializer]
// adds real gzip compression for large payloads. If serialization of a value
// fails, the raw value is kept in the local tier rather than failing the
// write.
//
// # Facades
//
// Two facades specialize the store for the flight-map domain:
//
//   - [TileCache]: map-tile payloads keyed by (layer, zoom, x, y), with a
//     zoom-dependent TTL (coarser zoom, longer TTL) and square preloading
//     around a center tile.
//
//   - [TimeBinCache]: time-bucketed aggregate snapshots keyed by bin start
//     and a bounds signature ([github.com/cespare/xxhash/v2]), with an
//     age-dependent TTL and range/future-bin batch fetches.
//
// Batch operations fan out concurrently and tolerate individual failures:
// successes come back in input order, failures are silently dropped.
//
// # Typed helpers
//
// [Get] decodes a stored value into a concrete type. [Fetch] is the
// cache-aside helper HTTP handlers use to fill a miss from the provider
// client:
//
//	found, tiles, err := cache.Fetch(ctx, store, key, ttl,
//	    func(ctx context.Context) (TilePayload, bool, error) {
//	        return provider.FetchTile(ctx, zoom, x, y)
//	    })
//
// # Eviction
//
// A background sweep (60s by default) removes expired entries, recomputes
// the memory gauge and, when usage exceeds the configured limit, evicts
// roughly a tenth of the local entries in least-recently-used order.
package cache
