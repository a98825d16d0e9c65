package cache

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/flightmap/skycache/logger"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CacheStore composes the local and optional remote tiers into one
// read-through, write-through cache. It owns statistics, the maintenance
// sweep and eviction. The store never computes values itself; callers fill
// misses (see Fetch) and hand the result back via Set.
type CacheStore struct {
	cfg    config
	local  *LocalStore
	remote *RemoteStore
	stats  stats
	log    logger.Logger
	tracer trace.Tracer

	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
}

// New returns a started CacheStore. The background maintenance sweep runs
// until Close is called or the parent context is cancelled.
func New(parent context.Context, opts ...Option) *CacheStore {
	cfg := applyOptions(opts)
	if cfg.defaultTTL <= 0 {
		cfg.defaultTTL = DefaultTTL
	}
	if cfg.sweepInterval <= 0 {
		cfg.sweepInterval = DefaultSweepInterval
	}
	if cfg.memoryLimit <= 0 {
		cfg.memoryLimit = DefaultMemoryLimit
	}
	if cfg.serializer == nil {
		cfg.serializer = NewMsgpackSerializer()
	}
	ctx, cancel := context.WithCancel(parent)

	local := NewLocalStore(cfg.maxEntries)
	local.now = cfg.now

	id := uuid.NewString()
	log := cfg.logger.With(map[string]interface{}{"cache": id[:8]})

	c := &CacheStore{
		cfg:    cfg,
		local:  local,
		log:    log,
		tracer: otel.Tracer("skycache"),
		ctx:    ctx,
		cancel: cancel,
	}
	if cfg.remote != nil {
		c.remote = NewRemoteStore(cfg.remote, cfg.prefix, cfg.queryTimeout, log)
	}

	c.waitGroup.Add(1)
	go c.run()
	return c
}

// getStored returns the stored representation of key: serialized bytes for
// normal entries, the raw value for serialization-fallback entries. All
// statistics accounting for reads happens here.
func (c *CacheStore) getStored(ctx context.Context, key string) (bool, any, error) {
	if found, val := c.local.Get(key); found {
		c.stats.local.hits.Add(1)
		return true, val, nil
	}
	c.stats.local.misses.Add(1)

	if c.remote == nil {
		return false, nil, nil
	}

	found, data, ttl, err := c.remote.Get(ctx, key)
	if err != nil {
		// A remote error is a miss, never a caller-visible failure.
		c.stats.remote.misses.Add(1)
		c.log.Trace("remote get %s failed: %v", key, err)
		return false, nil, nil
	}
	if !found {
		c.stats.remote.misses.Add(1)
		return false, nil, nil
	}
	c.stats.remote.hits.Add(1)

	// Promote to the local tier so subsequent reads are fast. The entry
	// keeps whatever lifetime Redis still had for it.
	if ttl <= 0 {
		ttl = c.cfg.defaultTTL
	}
	c.local.Set(key, data, ttl)
	return true, data, nil
}

// Get retrieves a value, checking the local tier first and falling back to
// the remote tier. A remote hit is written back into the local tier. Any
// remote error resolves to a miss.
func (c *CacheStore) Get(ctx context.Context, key string) (bool, any, error) {
	ctx, span := c.tracer.Start(ctx, "cache.get", trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	found, val, err := c.getStored(ctx, key)
	span.SetAttributes(attribute.Bool("cache.hit", found))
	if !found || err != nil {
		return false, nil, err
	}
	data, ok := val.([]byte)
	if !ok {
		// Raw-value fallback entry.
		return true, val, nil
	}
	var out any
	if err := c.cfg.serializer.Decode(data, &out); err != nil {
		c.log.Warn("failed to decode cached value for %s: %v", key, err)
		return false, nil, nil
	}
	return true, out, nil
}

// Set serializes the value and writes it to both tiers with the given TTL.
// If ttl <= 0 the configured default is used. A serialization failure falls
// back to storing the raw value locally; a remote failure is logged and
// swallowed. Set never returns an error to the caller.
func (c *CacheStore) Set(ctx context.Context, key string, val any, ttl time.Duration) error {
	ctx, span := c.tracer.Start(ctx, "cache.set", trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	if ttl <= 0 {
		ttl = c.cfg.defaultTTL
	}

	data, err := c.cfg.serializer.Encode(val)
	if err != nil {
		// Keep the value anyway; only the local tier can hold an
		// unserialized payload.
		c.log.Warn("failed to serialize value for %s, storing raw: %v", key, err)
		c.evictionsFromSet(c.local.Set(key, val, ttl))
		c.stats.local.sets.Add(1)
		return nil
	}

	c.evictionsFromSet(c.local.Set(key, data, ttl))
	c.stats.local.sets.Add(1)

	if c.remote != nil {
		if err := c.remote.Set(ctx, key, data, ttl); err != nil {
			c.log.Trace("remote set %s failed: %v", key, err)
		} else {
			c.stats.remote.sets.Add(1)
		}
	}
	return nil
}

func (c *CacheStore) evictionsFromSet(n int) {
	if n > 0 {
		c.stats.evictions.Add(uint64(n))
	}
}

// Delete removes the key from both tiers. Remote failures are swallowed.
func (c *CacheStore) Delete(ctx context.Context, key string) {
	ctx, span := c.tracer.Start(ctx, "cache.delete", trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	if c.local.Delete(key) {
		c.stats.local.deletes.Add(1)
	}
	if c.remote != nil {
		found, err := c.remote.Delete(ctx, key)
		if err != nil {
			c.log.Trace("remote delete %s failed: %v", key, err)
		} else if found {
			c.stats.remote.deletes.Add(1)
		}
	}
}

// Clear empties both tiers and resets all statistics.
func (c *CacheStore) Clear(ctx context.Context) {
	c.local.Clear()
	if c.remote != nil {
		if err := c.remote.Clear(ctx); err != nil {
			c.log.Warn("remote clear failed: %v", err)
		}
	}
	c.stats.reset()
}

// Stats returns a snapshot of the cache statistics.
func (c *CacheStore) Stats() Stats {
	s := Stats{
		Local:       c.stats.local.snapshot(),
		Remote:      c.stats.remote.snapshot(),
		Evictions:   c.stats.evictions.Load(),
		Entries:     c.local.Len(),
		MemoryBytes: c.local.Memory(),
	}
	// A request is an aggregate hit when either tier served it; a local
	// miss that the remote tier absorbed is not an aggregate miss.
	s.Hits = s.Local.Hits + s.Remote.Hits
	if c.remote != nil {
		s.Misses = s.Remote.Misses
		s.RemoteEnabled = true
		s.RemoteHealthy = c.remote.Healthy()
	} else {
		s.Misses = s.Local.Misses
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	if rss, err := processRSS(); err == nil {
		s.ProcessMemoryBytes = rss
	}
	return s
}

func processRSS() (uint64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return mem.RSS, nil
}

// Close stops the maintenance sweep and closes the remote connection. The
// local tier is left for the garbage collector.
func (c *CacheStore) Close() error {
	var err error
	c.once.Do(func() {
		c.cancel()
		c.waitGroup.Wait()
		if c.remote != nil {
			err = c.remote.Close()
		}
	})
	return err
}

// run is the periodic maintenance sweep: drop expired entries, recompute the
// memory gauge and evict under pressure.
func (c *CacheStore) run() {
	defer c.waitGroup.Done()
	ticker := time.NewTicker(c.cfg.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep performs one maintenance pass.
func (c *CacheStore) sweep() {
	if expired := c.local.SweepExpired(); expired > 0 {
		c.log.Trace("swept %d expired entries", expired)
	}
	memory := c.local.Memory()
	if memory <= c.cfg.memoryLimit {
		return
	}
	count := c.local.Len()
	target := count / evictFraction
	if target < 1 {
		target = 1
	}
	evicted := c.local.EvictOldest(target)
	c.stats.evictions.Add(uint64(evicted))
	c.log.Warn("memory usage %s over limit %s, evicted %d of %d entries",
		humanize.Bytes(uint64(memory)), humanize.Bytes(uint64(c.cfg.memoryLimit)), evicted, count)
}
