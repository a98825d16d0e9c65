package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/flightmap/skycache/logger"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the TTL used by Set when the caller passes ttl <= 0.
const DefaultTTL = 5 * time.Minute

// DefaultQueryTimeout is the per-operation timeout for the remote tier.
// Prevents indefinite hangs on a slow or unresponsive Redis.
const DefaultQueryTimeout = 5 * time.Second

// DefaultMemoryLimit is the approximate local-tier memory bound.
const DefaultMemoryLimit = 512 << 20 // 512 MiB

// DefaultSweepInterval is how often the maintenance sweep runs.
const DefaultSweepInterval = time.Minute

// evictFraction is the share of local entries removed by one eviction pass.
const evictFraction = 10 // one tenth

// config holds the resolved configuration for a CacheStore.
type config struct {
	defaultTTL    time.Duration
	queryTimeout  time.Duration
	sweepInterval time.Duration
	memoryLimit   int64
	maxEntries    int
	prefix        string
	serializer    Serializer
	remote        *redis.Client
	logger        logger.Logger
	now           func() time.Time
}

// Option configures a CacheStore.
type Option func(*config)

func defaultConfig() config {
	return config{
		defaultTTL:    DefaultTTL,
		queryTimeout:  DefaultQueryTimeout,
		sweepInterval: DefaultSweepInterval,
		memoryLimit:   DefaultMemoryLimit,
		serializer:    NewMsgpackSerializer(),
		logger:        logger.NewConsoleLogger(),
		now:           time.Now,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithDefaultTTL sets the TTL used when Set is called with ttl <= 0.
func WithDefaultTTL(d time.Duration) Option {
	return func(c *config) { c.defaultTTL = d }
}

// WithQueryTimeout sets the per-operation timeout for the remote tier.
// Defaults to DefaultQueryTimeout (5 seconds).
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithSweepInterval sets the interval of the background maintenance sweep.
// Defaults to DefaultSweepInterval (1 minute).
func WithSweepInterval(d time.Duration) Option {
	return func(c *config) { c.sweepInterval = d }
}

// WithMemoryLimit sets the approximate memory bound for the local tier, in
// bytes. When a sweep finds usage above the limit, roughly a tenth of the
// current entries are evicted in least-recently-used order.
func WithMemoryLimit(bytes int64) Option {
	return func(c *config) { c.memoryLimit = bytes }
}

// WithMaxEntries bounds the number of entries in the local tier. When the
// bound is reached, Set evicts the least recently used entry first.
// Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(c *config) { c.maxEntries = n }
}

// WithPrefix sets the key prefix for namespacing remote keys, so multiple
// environments can share one Redis instance.
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

// WithSerializer sets the Serializer used for values. Defaults to msgpack.
func WithSerializer(s Serializer) Option {
	return func(c *config) { c.serializer = s }
}

// WithRemote enables the shared remote tier backed by the given Redis client.
// The CacheStore takes ownership of the client and closes it on Close.
func WithRemote(client *redis.Client) Option {
	return func(c *config) { c.remote = client }
}

// WithLogger sets the logger for the cache.
func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.logger = l }
}

// withClock overrides the time source. Test hook.
func withClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// Get retrieves a typed value from the cache. Serialized entries are decoded
// into T through the store's serializer; entries stored raw (serialization
// fallback) are returned by direct type assertion.
func Get[T any](ctx context.Context, c *CacheStore, key string) (bool, T, error) {
	var zero T
	found, val, err := c.getStored(ctx, key)
	if !found || err != nil {
		return false, zero, err
	}
	if data, ok := val.([]byte); ok {
		var result T
		if err := c.cfg.serializer.Decode(data, &result); err != nil {
			return false, zero, errors.Wrap(err, "cache: failed to decode value")
		}
		return true, result, nil
	}
	if typed, ok := val.(T); ok {
		return true, typed, nil
	}
	return false, zero, errors.Newf("cache: cannot convert value of type %T to %T", val, zero)
}

// Filler produces a fresh value on a cache miss, typically by calling the
// upstream flight-data provider. The bool return indicates whether a value
// was produced; return false to signal "no data" without caching anything.
type Filler[T any] func(ctx context.Context) (T, bool, error)

// Fetch is a cache-aside helper. It checks the cache for key first and
// returns the cached value on a hit. On a miss it calls fill; if fill
// produces a value it is stored with the given TTL and returned. Errors from
// the store on the way back are swallowed since the caller already has the
// value.
func Fetch[T any](ctx context.Context, c *CacheStore, key string, ttl time.Duration, fill Filler[T]) (bool, T, error) {
	found, val, err := Get[T](ctx, c, key)
	if err != nil {
		var zero T
		return false, zero, err
	}
	if found {
		return true, val, nil
	}

	result, ok, err := fill(ctx)
	if err != nil {
		var zero T
		return false, zero, err
	}
	if !ok {
		var zero T
		return false, zero, nil
	}

	_ = c.Set(ctx, key, result, ttl)
	return true, result, nil
}
