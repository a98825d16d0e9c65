package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/flightmap/skycache/logger"
	"github.com/redis/go-redis/v9"
)

// ErrRemoteUnavailable is returned by remote-tier operations while the tier
// is marked unreachable. The CacheStore treats it like any other remote
// failure: swallow and fall back to the local tier.
var ErrRemoteUnavailable = errors.New("cache: remote tier unavailable")

const (
	// remoteFailureThreshold is how many consecutive failures mark the
	// remote tier unreachable.
	remoteFailureThreshold = 3
	// remoteRetryCooldown is how long the remote tier stays marked
	// unreachable before a probe is allowed through.
	remoteRetryCooldown = 30 * time.Second
)

// RemoteStore is the shared slow tier, backed by Redis with native TTL
// support. Consecutive failures trip an internal breaker so a dead Redis is
// not hammered on every request; reachability is surfaced through Healthy.
type RemoteStore struct {
	client       *redis.Client
	prefix       string
	queryTimeout time.Duration
	log          logger.Logger

	failures  atomic.Int32
	downSince atomic.Int64 // unix nano, 0 when healthy
}

// NewRemoteStore wraps a Redis client as the remote tier. The store takes
// ownership of the client; Close closes it.
func NewRemoteStore(client *redis.Client, prefix string, queryTimeout time.Duration, log logger.Logger) *RemoteStore {
	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}
	return &RemoteStore{
		client:       client,
		prefix:       prefix,
		queryTimeout: queryTimeout,
		log:          log.WithPrefix("[remote]"),
	}
}

func (r *RemoteStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, r.queryTimeout)
}

func (r *RemoteStore) prefixKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

// Healthy reports whether the remote tier is currently considered
// reachable.
func (r *RemoteStore) Healthy() bool {
	return r.downSince.Load() == 0
}

// allow reports whether an operation may be attempted. While unreachable,
// one probe is let through after the cooldown elapses.
func (r *RemoteStore) allow() bool {
	down := r.downSince.Load()
	if down == 0 {
		return true
	}
	return time.Since(time.Unix(0, down)) >= remoteRetryCooldown
}

func (r *RemoteStore) onSuccess() {
	r.failures.Store(0)
	if r.downSince.Swap(0) != 0 {
		r.log.Info("remote tier reachable again")
	}
}

func (r *RemoteStore) onFailure(err error) {
	failures := r.failures.Add(1)
	if failures < remoteFailureThreshold {
		return
	}
	if r.downSince.CompareAndSwap(0, time.Now().UnixNano()) {
		r.log.Warn("remote tier unreachable after %d consecutive failures, serving local only: %v", failures, err)
	} else {
		// Still down after a probe. Push the cooldown window out.
		r.downSince.Store(time.Now().UnixNano())
	}
}

// Get returns the stored bytes and the remaining TTL for key. A missing key
// is (false, nil, 0, nil).
func (r *RemoteStore) Get(ctx context.Context, key string) (bool, []byte, time.Duration, error) {
	if !r.allow() {
		return false, nil, 0, ErrRemoteUnavailable
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	k := r.prefixKey(key)
	pipe := r.client.Pipeline()
	getCmd := pipe.Get(qctx, k)
	ttlCmd := pipe.PTTL(qctx, k)
	if _, err := pipe.Exec(qctx); err != nil && err != redis.Nil {
		r.onFailure(err)
		return false, nil, 0, err
	}
	r.onSuccess()
	data, err := getCmd.Bytes()
	if err == redis.Nil {
		return false, nil, 0, nil
	}
	if err != nil {
		return false, nil, 0, err
	}
	ttl, _ := ttlCmd.Result()
	if ttl < 0 {
		ttl = 0
	}
	return true, data, ttl, nil
}

// Set stores bytes under key with the given TTL.
func (r *RemoteStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if !r.allow() {
		return ErrRemoteUnavailable
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	if err := r.client.Set(qctx, r.prefixKey(key), data, ttl).Err(); err != nil {
		r.onFailure(err)
		return err
	}
	r.onSuccess()
	return nil
}

// Delete removes key, reporting whether it existed.
func (r *RemoteStore) Delete(ctx context.Context, key string) (bool, error) {
	if !r.allow() {
		return false, ErrRemoteUnavailable
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	n, err := r.client.Del(qctx, r.prefixKey(key)).Result()
	if err != nil {
		r.onFailure(err)
		return false, err
	}
	r.onSuccess()
	return n > 0, nil
}

// Clear removes every key in this store's namespace. Without a prefix it
// scans the whole keyspace, so share a Redis between environments only with
// prefixes set.
func (r *RemoteStore) Clear(ctx context.Context) error {
	if !r.allow() {
		return ErrRemoteUnavailable
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	pattern := "*"
	if r.prefix != "" {
		pattern = r.prefix + ":*"
	}
	iter := r.client.Scan(qctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(qctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.onFailure(err)
		return err
	}
	if len(keys) > 0 {
		if err := r.client.Del(qctx, keys...).Err(); err != nil {
			r.onFailure(err)
			return err
		}
	}
	r.onSuccess()
	return nil
}

// Ping verifies connectivity to Redis.
func (r *RemoteStore) Ping(ctx context.Context) error {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	if err := r.client.Ping(qctx).Err(); err != nil {
		r.onFailure(err)
		return err
	}
	r.onSuccess()
	return nil
}

// Close closes the underlying Redis client.
func (r *RemoteStore) Close() error {
	return r.client.Close()
}
