package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/flightmap/skycache/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTimeBinCache(t *testing.T) (*TimeBinCache, *fakeClock, *CacheStore) {
	t.Helper()
	clk := newFakeClock()
	c := New(context.Background(), WithLogger(logger.NewTestLogger()), withClock(clk.Now))
	t.Cleanup(func() { c.Close() })
	return NewTimeBinCache(c, 0, 0), clk, c
}

func TestBinStart(t *testing.T) {
	bins, _, _ := newTestTimeBinCache(t)
	ts := time.UnixMilli(1717243265432)
	start := bins.BinStart(ts)
	assert.EqualValues(t, 0, start.UnixMilli()%60000)
	assert.Equal(t, int64(1717243265432/60000*60000), start.UnixMilli())
	// Same bin for any timestamp inside it.
	assert.Equal(t, start, bins.BinStart(start.Add(59*time.Second)))
	assert.NotEqual(t, start, bins.BinStart(start.Add(60*time.Second)))
}

func TestTimeBinKey(t *testing.T) {
	bins, _, _ := newTestTimeBinCache(t)
	ts := time.UnixMilli(1717243260000)

	assert.Equal(t, "timebin:1717243260000:global", bins.TimeBinKey(ts, ""))

	bounds := "52.1,4.5,52.6,5.1"
	want := fmt.Sprintf("timebin:1717243260000:%016x", xxhash.Sum64String(bounds))
	assert.Equal(t, want, bins.TimeBinKey(ts, bounds))
	// Same bounds, same signature.
	assert.Equal(t, want, bins.TimeBinKey(ts.Add(30*time.Second), bounds))
}

func TestTTLForAge(t *testing.T) {
	tests := []struct {
		ageMs int64
		want  time.Duration
	}{
		{299_999, 30 * time.Second},
		{300_000, 120 * time.Second},
		{1_799_999, 120 * time.Second},
		{1_800_000, 300 * time.Second},
		{3_599_999, 300 * time.Second},
		{3_600_000, 600 * time.Second},
		{0, 30 * time.Second},
	}
	for _, tt := range tests {
		age := time.Duration(tt.ageMs) * time.Millisecond
		assert.Equal(t, tt.want, TTLForAge(age), "age %dms", tt.ageMs)
	}
}

func TestTimeBinSetGet(t *testing.T) {
	bins, clk, _ := newTestTimeBinCache(t)
	ctx := context.Background()
	now := clk.Now()

	require.NoError(t, bins.SetTimeBin(ctx, now, "snapshot", ""))
	found, val, err := bins.GetTimeBin(ctx, now, "")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "snapshot", val)

	// Another timestamp inside the same bin resolves to the same entry.
	found, _, err = bins.GetTimeBin(ctx, bins.BinStart(now).Add(10*time.Second), "")
	assert.NoError(t, err)
	assert.True(t, found)

	// Different bounds bucket is independent.
	found, _, err = bins.GetTimeBin(ctx, now, "52.1,4.5,52.6,5.1")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestTimeBinRecentDataExpiresQuickly(t *testing.T) {
	bins, clk, _ := newTestTimeBinCache(t)
	ctx := context.Background()
	now := clk.Now()

	// Fresh bin: 30s TTL.
	require.NoError(t, bins.SetTimeBin(ctx, now, "fresh", ""))
	clk.Advance(31 * time.Second)
	found, _, err := bins.GetTimeBin(ctx, now, "")
	assert.NoError(t, err)
	assert.False(t, found)

	// Hour-old bin: 600s TTL.
	old := clk.Now().Add(-2 * time.Hour)
	require.NoError(t, bins.SetTimeBin(ctx, old, "history", ""))
	clk.Advance(301 * time.Second)
	found, _, err = bins.GetTimeBin(ctx, old, "")
	assert.NoError(t, err)
	assert.True(t, found)
}

func TestTimeBinValidation(t *testing.T) {
	bins, clk, _ := newTestTimeBinCache(t)
	ctx := context.Background()

	_, _, err := bins.GetTimeBin(ctx, time.Time{}, "")
	assert.Error(t, err)
	assert.Error(t, bins.SetTimeBin(ctx, time.Time{}, "x", ""))

	now := clk.Now()
	_, err = bins.GetTimeRange(ctx, now, now.Add(-time.Minute), "")
	assert.Error(t, err)
	_, err = bins.PreloadFutureBins(ctx, time.Time{}, 3, "")
	assert.Error(t, err)
}

func TestGetTimeRangeAscendingWithGaps(t *testing.T) {
	bins, clk, _ := newTestTimeBinCache(t)
	ctx := context.Background()
	start := bins.BinStart(clk.Now())

	// Populate bins 0, 2 and 4 of a five-bin range; 1 and 3 stay missing.
	for _, i := range []int{0, 2, 4} {
		ts := start.Add(time.Duration(i) * time.Minute)
		require.NoError(t, bins.SetTimeBin(ctx, ts, fmt.Sprintf("bin-%d", i), ""))
	}

	got, err := bins.GetTimeRange(ctx, start, start.Add(4*time.Minute), "")
	assert.NoError(t, err)
	assert.Equal(t, []any{"bin-0", "bin-2", "bin-4"}, got)
}

func TestGetTimeRangeInclusiveBounds(t *testing.T) {
	bins, clk, _ := newTestTimeBinCache(t)
	ctx := context.Background()
	start := bins.BinStart(clk.Now())
	end := start.Add(2 * time.Minute)

	require.NoError(t, bins.SetTimeBin(ctx, start, "first", ""))
	require.NoError(t, bins.SetTimeBin(ctx, end, "last", ""))

	got, err := bins.GetTimeRange(ctx, start, end, "")
	assert.NoError(t, err)
	assert.Equal(t, []any{"first", "last"}, got)

	// A single-instant range still covers its own bin.
	got, err = bins.GetTimeRange(ctx, start, start, "")
	assert.NoError(t, err)
	assert.Equal(t, []any{"first"}, got)
}

func TestPreloadFutureBins(t *testing.T) {
	bins, clk, _ := newTestTimeBinCache(t)
	ctx := context.Background()
	now := clk.Now()
	start := bins.BinStart(now)

	// Two of the next five bins are already cached.
	require.NoError(t, bins.SetTimeBin(ctx, start.Add(time.Minute), "b1", ""))
	require.NoError(t, bins.SetTimeBin(ctx, start.Add(3*time.Minute), "b3", ""))
	// The current bin itself must not be counted.
	require.NoError(t, bins.SetTimeBin(ctx, now, "current", ""))

	hits, err := bins.PreloadFutureBins(ctx, now, 5, "")
	assert.NoError(t, err)
	assert.Equal(t, 2, hits)

	// count <= 0 falls back to the default.
	hits, err = bins.PreloadFutureBins(ctx, now, 0, "")
	assert.NoError(t, err)
	assert.Equal(t, 2, hits)
}
