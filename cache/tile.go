package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultTileLayer is the layer used when the caller passes an empty layer.
const DefaultTileLayer = "flights"

// MaxZoom is the deepest zoom level accepted for tile keys. Web-mercator
// tile servers rarely go past 22; anything above is a programming error.
const MaxZoom = 22

// DefaultPreloadRadius is the tile radius warmed around a center tile.
const DefaultPreloadRadius = 2

// TileCache keys map-tile payloads by (layer, zoom, x, y) and applies a
// zoom-dependent TTL: wide views change less visually per unit time, so
// coarser zooms live longer.
type TileCache struct {
	store *CacheStore
}

// NewTileCache returns a tile facade over the given store.
func NewTileCache(store *CacheStore) *TileCache {
	return &TileCache{store: store}
}

// TileKey builds the cache key for a tile. The same coordinates always
// yield the same key.
func TileKey(layer string, zoom, x, y int) string {
	if layer == "" {
		layer = DefaultTileLayer
	}
	return fmt.Sprintf("tile:%s:%d:%d:%d", layer, zoom, x, y)
}

// TTLForZoom returns the tile TTL for a zoom level.
func TTLForZoom(zoom int) time.Duration {
	switch {
	case zoom >= 12:
		return 60 * time.Second
	case zoom >= 8:
		return 180 * time.Second
	case zoom >= 4:
		return 300 * time.Second
	default:
		return 600 * time.Second
	}
}

// validateTile rejects coordinates that cannot name a real tile. This is the
// one error that reaches callers: it indicates a programming mistake, not an
// operational condition.
func validateTile(zoom, x, y int) error {
	if zoom < 0 || zoom > MaxZoom {
		return errors.Newf("tile: zoom %d out of range [0,%d]", zoom, MaxZoom)
	}
	max := 1 << zoom
	if x < 0 || x >= max || y < 0 || y >= max {
		return errors.Newf("tile: coordinates (%d,%d) out of range for zoom %d", x, y, zoom)
	}
	return nil
}

// GetTile retrieves a tile payload. An empty layer means DefaultTileLayer.
func (t *TileCache) GetTile(ctx context.Context, zoom, x, y int, layer string) (bool, any, error) {
	if err := validateTile(zoom, x, y); err != nil {
		return false, nil, err
	}
	return t.store.Get(ctx, TileKey(layer, zoom, x, y))
}

// SetTile stores a tile payload with the zoom-derived TTL.
func (t *TileCache) SetTile(ctx context.Context, zoom, x, y int, val any, layer string) error {
	if err := validateTile(zoom, x, y); err != nil {
		return err
	}
	return t.store.Set(ctx, TileKey(layer, zoom, x, y), val, TTLForZoom(zoom))
}

// DeleteTile removes a tile from both tiers.
func (t *TileCache) DeleteTile(ctx context.Context, zoom, x, y int, layer string) error {
	if err := validateTile(zoom, x, y); err != nil {
		return err
	}
	t.store.Delete(ctx, TileKey(layer, zoom, x, y))
	return nil
}

// PreloadTiles issues a Get for every tile of the (2·radius+1)² square
// around the center that lies inside the valid index range for the zoom.
// All lookups run concurrently; the call returns once every lookup has
// settled, reporting how many tiles were already cached. A single tile
// failure never aborts the batch.
func (t *TileCache) PreloadTiles(ctx context.Context, centerX, centerY, zoom, radius int, layer string) (int, error) {
	if err := validateTile(zoom, centerX, centerY); err != nil {
		return 0, err
	}
	if radius < 0 {
		return 0, errors.Newf("tile: negative preload radius %d", radius)
	}

	max := 1 << zoom
	var fns []func(ctx context.Context) (any, bool, error)
	for x := centerX - radius; x <= centerX+radius; x++ {
		if x < 0 || x >= max {
			continue
		}
		for y := centerY - radius; y <= centerY+radius; y++ {
			if y < 0 || y >= max {
				continue
			}
			key := TileKey(layer, zoom, x, y)
			fns = append(fns, func(ctx context.Context) (any, bool, error) {
				found, val, err := t.store.Get(ctx, key)
				return val, found, err
			})
		}
	}
	return len(gather(ctx, fns)), nil
}
