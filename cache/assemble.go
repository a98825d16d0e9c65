package cache

import (
	"context"

	conf "github.com/flightmap/skycache/config"
	"github.com/flightmap/skycache/logger"
	"github.com/redis/go-redis/v9"
)

// NewFromOptions builds a CacheStore and both facades from a resolved
// options structure. This is the composition root handlers should receive
// their cache from; construct one instance at process start and pass it by
// reference.
func NewFromOptions(ctx context.Context, opts conf.Options, log logger.Logger) (*CacheStore, *TileCache, *TimeBinCache) {
	cacheOpts := []Option{
		WithLogger(log),
		WithDefaultTTL(opts.TileTTL),
		WithMaxEntries(opts.TileCacheSize),
		WithMemoryLimit(opts.MemoryLimit),
		WithQueryTimeout(opts.QueryTimeout),
		WithSweepInterval(opts.SweepInterval),
		WithPrefix(opts.KeyPrefix),
	}
	if opts.CompressionEnabled {
		cacheOpts = append(cacheOpts, WithSerializer(NewGzipSerializer(nil)))
	}
	if opts.RemoteEnabled {
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		cacheOpts = append(cacheOpts, WithRemote(client))
	}

	store := New(ctx, cacheOpts...)
	return store, NewTileCache(store), NewTimeBinCache(store, opts.TimeBinSize, opts.TimeBinTTL)
}
