package cache

import (
	"context"
	"testing"
	"time"

	"github.com/flightmap/skycache/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileKey(t *testing.T) {
	assert.Equal(t, "tile:flights:5:10:10", TileKey("flights", 5, 10, 10))
	assert.Equal(t, "tile:flights:5:10:10", TileKey("", 5, 10, 10))
	assert.Equal(t, "tile:weather:0:0:0", TileKey("weather", 0, 0, 0))
}

func TestTTLForZoom(t *testing.T) {
	tests := []struct {
		zoom int
		want time.Duration
	}{
		{3, 600 * time.Second},
		{4, 300 * time.Second},
		{7, 300 * time.Second},
		{8, 180 * time.Second},
		{11, 180 * time.Second},
		{12, 60 * time.Second},
		{0, 600 * time.Second},
		{18, 60 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TTLForZoom(tt.zoom), "zoom %d", tt.zoom)
	}
}

func TestTileValidation(t *testing.T) {
	c := New(context.Background(), WithLogger(logger.NewTestLogger()))
	defer c.Close()
	tiles := NewTileCache(c)
	ctx := context.Background()

	_, _, err := tiles.GetTile(ctx, -1, 0, 0, "")
	assert.Error(t, err)
	_, _, err = tiles.GetTile(ctx, 40, 0, 0, "")
	assert.Error(t, err)
	// x out of range for zoom 2 (valid: 0..3).
	err = tiles.SetTile(ctx, 2, 4, 0, "payload", "")
	assert.Error(t, err)
	err = tiles.SetTile(ctx, 2, 0, -1, "payload", "")
	assert.Error(t, err)
	_, err = tiles.PreloadTiles(ctx, 0, 0, 2, -1, "")
	assert.Error(t, err)
}

func TestTileEndToEnd(t *testing.T) {
	clk := newFakeClock()
	c := New(context.Background(), WithLogger(logger.NewTestLogger()), withClock(clk.Now))
	defer c.Close()
	tiles := NewTileCache(c)
	ctx := context.Background()

	require.NoError(t, tiles.SetTile(ctx, 5, 10, 10, "payload", "flights"))

	// Zoom 5 falls in the 4..7 band, so the entry lives 300s.
	found, _ := c.local.Get("tile:flights:5:10:10")
	require.True(t, found)
	assert.Equal(t, 300*time.Second, TTLForZoom(5))

	ok, val, err := tiles.GetTile(ctx, 5, 10, 10, "flights")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", val)

	clk.Advance(301 * time.Second)
	ok, val, err = tiles.GetTile(ctx, 5, 10, 10, "flights")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestTileDelete(t *testing.T) {
	c := New(context.Background(), WithLogger(logger.NewTestLogger()))
	defer c.Close()
	tiles := NewTileCache(c)
	ctx := context.Background()

	require.NoError(t, tiles.SetTile(ctx, 5, 10, 10, "payload", ""))
	require.NoError(t, tiles.DeleteTile(ctx, 5, 10, 10, ""))
	ok, _, err := tiles.GetTile(ctx, 5, 10, 10, "")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestPreloadTiles(t *testing.T) {
	c := New(context.Background(), WithLogger(logger.NewTestLogger()))
	defer c.Close()
	tiles := NewTileCache(c)
	ctx := context.Background()

	// Cache 3 of the 25 tiles in the radius-2 square around (10,10).
	require.NoError(t, tiles.SetTile(ctx, 6, 10, 10, "a", ""))
	require.NoError(t, tiles.SetTile(ctx, 6, 9, 10, "b", ""))
	require.NoError(t, tiles.SetTile(ctx, 6, 12, 12, "c", ""))
	// Outside the square; must not count.
	require.NoError(t, tiles.SetTile(ctx, 6, 20, 20, "d", ""))

	hits, err := tiles.PreloadTiles(ctx, 10, 10, 6, 2, "")
	assert.NoError(t, err)
	assert.Equal(t, 3, hits)
}

func TestPreloadTilesClipsAtEdges(t *testing.T) {
	c := New(context.Background(), WithLogger(logger.NewTestLogger()))
	defer c.Close()
	tiles := NewTileCache(c)
	ctx := context.Background()

	// Zoom 1 has a 2x2 tile grid; a radius-2 square around (0,0) clips to
	// the 4 valid tiles. Cache them all.
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			require.NoError(t, tiles.SetTile(ctx, 1, x, y, "p", ""))
		}
	}
	hits, err := tiles.PreloadTiles(ctx, 0, 0, 1, 2, "")
	assert.NoError(t, err)
	assert.Equal(t, 4, hits)
}
