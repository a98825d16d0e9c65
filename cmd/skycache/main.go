// Command skycache is a small operational tool for a skycache deployment:
// check the remote tier, inspect statistics and warm tile squares.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/flightmap/skycache/cache"
	"github.com/flightmap/skycache/config"
	"github.com/flightmap/skycache/logger"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newLogger(cmd *cobra.Command) logger.Logger {
	switch config.FlagOrEnv(cmd, "log-level", "SKYCACHE_LOG_LEVEL", "info") {
	case "trace", "TRACE":
		return logger.NewConsoleLogger(logger.LevelTrace)
	case "debug", "DEBUG":
		return logger.NewConsoleLogger(logger.LevelDebug)
	case "warn", "WARN":
		return logger.NewConsoleLogger(logger.LevelWarn)
	case "error", "ERROR":
		return logger.NewConsoleLogger(logger.LevelError)
	}
	return logger.NewConsoleLogger(logger.LevelInfo)
}

func loadOptions(cmd *cobra.Command) (config.Options, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.FromFile(path)
	}
	return config.FromEnv()
}

func newRedisClient(opts config.Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})
}

var rootCmd = &cobra.Command{
	Use:   "skycache",
	Short: "Operational tool for the flight-map cache",
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check connectivity to the remote cache tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		client := newRedisClient(opts)
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), opts.QueryTimeout)
		defer cancel()
		started := time.Now()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("remote tier at %s unreachable: %w", opts.RedisAddr, err)
		}
		fmt.Printf("PONG from %s in %s\n", opts.RedisAddr, time.Since(started).Round(time.Millisecond))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache statistics as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		log := newLogger(cmd)
		store, _, _ := cache.NewFromOptions(cmd.Context(), opts, log)
		defer store.Close()

		buf, err := json.MarshalIndent(store.Stats(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(buf))
		return nil
	},
}

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Issue preload lookups for a tile square",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		zoom, _ := cmd.Flags().GetInt("zoom")
		x, _ := cmd.Flags().GetInt("x")
		y, _ := cmd.Flags().GetInt("y")
		radius, _ := cmd.Flags().GetInt("radius")
		layer, _ := cmd.Flags().GetString("layer")

		log := newLogger(cmd)
		store, tiles, _ := cache.NewFromOptions(cmd.Context(), opts, log)
		defer store.Close()

		hits, err := tiles.PreloadTiles(cmd.Context(), x, y, zoom, radius, layer)
		if err != nil {
			return err
		}
		fmt.Printf("warmed square around %d/%d/%d: %d tiles already cached\n", zoom, x, y, hits)
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	warmCmd.Flags().Int("zoom", 5, "tile zoom level")
	warmCmd.Flags().Int("x", 0, "center tile x")
	warmCmd.Flags().Int("y", 0, "center tile y")
	warmCmd.Flags().Int("radius", cache.DefaultPreloadRadius, "square radius in tiles")
	warmCmd.Flags().String("layer", cache.DefaultTileLayer, "tile layer")
	rootCmd.AddCommand(pingCmd, statsCmd, warmCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
