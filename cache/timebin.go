package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// DefaultBinSize is the width of one time bin.
const DefaultBinSize = time.Minute

// DefaultTimeBinTTL is the fallback TTL for bins the age policy cannot
// place, i.e. bins that start in the future.
const DefaultTimeBinTTL = 120 * time.Second

// DefaultFutureBins is how many upcoming bins PreloadFutureBins warms.
const DefaultFutureBins = 5

// globalBoundsToken names the "no bounds" bucket in time-bin keys.
const globalBoundsToken = "global"

// TimeBinCache keys time-bucketed aggregate snapshots by (bin start, spatial
// bounds signature) and applies an age-dependent TTL: recent data is
// volatile and refreshed quickly, older data is effectively immutable
// history.
type TimeBinCache struct {
	store      *CacheStore
	binSize    time.Duration
	defaultTTL time.Duration
	now        func() time.Time
}

// NewTimeBinCache returns a time-bin facade over the given store. binSize is
// fixed per instance; pass 0 to use DefaultBinSize. defaultTTL applies to
// future-dated bins; pass 0 to use DefaultTimeBinTTL.
func NewTimeBinCache(store *CacheStore, binSize, defaultTTL time.Duration) *TimeBinCache {
	if binSize <= 0 {
		binSize = DefaultBinSize
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTimeBinTTL
	}
	return &TimeBinCache{store: store, binSize: binSize, defaultTTL: defaultTTL, now: store.cfg.now}
}

// BinStart floors ts to the bin boundary.
func (c *TimeBinCache) BinStart(ts time.Time) time.Time {
	ms := ts.UnixMilli()
	size := c.binSize.Milliseconds()
	return time.UnixMilli(ms - ms%size)
}

// TimeBinKey builds the cache key for the bin containing ts. Bounds are
// hashed so arbitrarily long bounds strings produce fixed-size keys; the
// same bounds always yield the same signature.
func (c *TimeBinCache) TimeBinKey(ts time.Time, bounds string) string {
	sig := globalBoundsToken
	if bounds != "" {
		sig = fmt.Sprintf("%016x", xxhash.Sum64String(bounds))
	}
	return fmt.Sprintf("timebin:%d:%s", c.BinStart(ts).UnixMilli(), sig)
}

// TTLForAge returns the TTL for a snapshot whose bin started age ago.
func TTLForAge(age time.Duration) time.Duration {
	switch {
	case age < 5*time.Minute:
		return 30 * time.Second
	case age < 30*time.Minute:
		return 120 * time.Second
	case age < time.Hour:
		return 300 * time.Second
	default:
		return 600 * time.Second
	}
}

// GetTimeBin retrieves the snapshot for the bin containing ts. Empty bounds
// means the global bucket.
func (c *TimeBinCache) GetTimeBin(ctx context.Context, ts time.Time, bounds string) (bool, any, error) {
	if ts.IsZero() {
		return false, nil, errors.New("timebin: zero timestamp")
	}
	return c.store.Get(ctx, c.TimeBinKey(ts, bounds))
}

// SetTimeBin stores the snapshot for the bin containing ts, with a TTL
// derived from the data's age.
func (c *TimeBinCache) SetTimeBin(ctx context.Context, ts time.Time, val any, bounds string) error {
	if ts.IsZero() {
		return errors.New("timebin: zero timestamp")
	}
	age := c.now().Sub(c.BinStart(ts))
	ttl := c.defaultTTL
	if age >= 0 {
		ttl = TTLForAge(age)
	}
	return c.store.Set(ctx, c.TimeBinKey(ts, bounds), val, ttl)
}

// GetTimeRange fetches every bin from start to end inclusive, concurrently,
// and returns the snapshots that were found in chronological order. Missing
// or failed bins are omitted, never substituted.
func (c *TimeBinCache) GetTimeRange(ctx context.Context, start, end time.Time, bounds string) ([]any, error) {
	if start.IsZero() || end.IsZero() {
		return nil, errors.New("timebin: zero timestamp")
	}
	if end.Before(start) {
		return nil, errors.Newf("timebin: range end %s before start %s", end, start)
	}

	var fns []func(ctx context.Context) (any, bool, error)
	last := c.BinStart(end)
	for bin := c.BinStart(start); !bin.After(last); bin = bin.Add(c.binSize) {
		key := c.TimeBinKey(bin, bounds)
		fns = append(fns, func(ctx context.Context) (any, bool, error) {
			found, val, err := c.store.Get(ctx, key)
			return val, found, err
		})
	}
	return gather(ctx, fns), nil
}

// PreloadFutureBins fetches the next count bins after current, tolerating
// individual failures, and reports how many were already cached. Pass
// count <= 0 for DefaultFutureBins.
func (c *TimeBinCache) PreloadFutureBins(ctx context.Context, current time.Time, count int, bounds string) (int, error) {
	if current.IsZero() {
		return 0, errors.New("timebin: zero timestamp")
	}
	if count <= 0 {
		count = DefaultFutureBins
	}

	var fns []func(ctx context.Context) (any, bool, error)
	bin := c.BinStart(current)
	for i := 0; i < count; i++ {
		bin = bin.Add(c.binSize)
		key := c.TimeBinKey(bin, bounds)
		fns = append(fns, func(ctx context.Context) (any, bool, error) {
			found, val, err := c.store.Get(ctx, key)
			return val, found, err
		})
	}
	return len(gather(ctx, fns)), nil
}
