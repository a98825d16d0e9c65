// Package config holds the recognized options for a skycache instance and
// loads them from the environment or a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Options configures a cache instance. The zero value is not usable; start
// from Default.
type Options struct {
	// TileTTL is the fallback tile TTL when a zoom-specific one does not
	// apply.
	TileTTL time.Duration `yaml:"tile_ttl"`
	// TileCacheSize bounds the local tier's entry count. Zero means
	// unbounded.
	TileCacheSize int `yaml:"tile_cache_size"`
	// TimeBinTTL is the fallback time-bin TTL.
	TimeBinTTL time.Duration `yaml:"time_bin_ttl"`
	// TimeBinSize is the width of one time bin.
	TimeBinSize time.Duration `yaml:"time_bin_size"`
	// MemoryLimit is the approximate local-tier memory bound in bytes.
	MemoryLimit int64 `yaml:"memory_limit"`
	// CompressionEnabled stores values gzip-compressed.
	CompressionEnabled bool `yaml:"compression_enabled"`

	// RemoteEnabled turns on the shared Redis tier.
	RemoteEnabled bool   `yaml:"remote_enabled"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	// KeyPrefix namespaces remote keys so environments can share a Redis.
	KeyPrefix string `yaml:"key_prefix"`
	// QueryTimeout bounds each remote operation.
	QueryTimeout time.Duration `yaml:"query_timeout"`

	// SweepInterval is how often the maintenance sweep runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Default returns the documented defaults: 300s tile TTL, 120s time-bin
// TTL, 60s bins, 512 MiB memory limit, 60s sweep.
func Default() Options {
	return Options{
		TileTTL:       300 * time.Second,
		TimeBinTTL:    120 * time.Second,
		TimeBinSize:   time.Minute,
		MemoryLimit:   512 << 20,
		RedisAddr:     "localhost:6379",
		QueryTimeout:  5 * time.Second,
		SweepInterval: time.Minute,
	}
}

// yamlOptions mirrors Options with string duration/size fields so YAML files
// can say "5m" and "512MiB".
type yamlOptions struct {
	TileTTL            string `yaml:"tile_ttl"`
	TileCacheSize      int    `yaml:"tile_cache_size"`
	TimeBinTTL         string `yaml:"time_bin_ttl"`
	TimeBinSize        string `yaml:"time_bin_size"`
	MemoryLimit        string `yaml:"memory_limit"`
	CompressionEnabled *bool  `yaml:"compression_enabled"`
	RemoteEnabled      *bool  `yaml:"remote_enabled"`
	RedisAddr          string `yaml:"redis_addr"`
	RedisPassword      string `yaml:"redis_password"`
	RedisDB            *int   `yaml:"redis_db"`
	KeyPrefix          string `yaml:"key_prefix"`
	QueryTimeout       string `yaml:"query_timeout"`
	SweepInterval      string `yaml:"sweep_interval"`
}

func parseDuration(val string, into *time.Duration) error {
	if val == "" {
		return nil
	}
	d, err := str2duration.ParseDuration(val)
	if err != nil {
		return errors.Wrapf(err, "config: invalid duration %q", val)
	}
	*into = d
	return nil
}

func parseBytes(val string, into *int64) error {
	if val == "" {
		return nil
	}
	n, err := humanize.ParseBytes(val)
	if err != nil {
		return errors.Wrapf(err, "config: invalid size %q", val)
	}
	*into = int64(n)
	return nil
}

func (o *Options) apply(y yamlOptions) error {
	if err := parseDuration(y.TileTTL, &o.TileTTL); err != nil {
		return err
	}
	if y.TileCacheSize > 0 {
		o.TileCacheSize = y.TileCacheSize
	}
	if err := parseDuration(y.TimeBinTTL, &o.TimeBinTTL); err != nil {
		return err
	}
	if err := parseDuration(y.TimeBinSize, &o.TimeBinSize); err != nil {
		return err
	}
	if err := parseBytes(y.MemoryLimit, &o.MemoryLimit); err != nil {
		return err
	}
	if y.CompressionEnabled != nil {
		o.CompressionEnabled = *y.CompressionEnabled
	}
	if y.RemoteEnabled != nil {
		o.RemoteEnabled = *y.RemoteEnabled
	}
	if y.RedisAddr != "" {
		o.RedisAddr = y.RedisAddr
	}
	if y.RedisPassword != "" {
		o.RedisPassword = y.RedisPassword
	}
	if y.RedisDB != nil {
		o.RedisDB = *y.RedisDB
	}
	if y.KeyPrefix != "" {
		o.KeyPrefix = y.KeyPrefix
	}
	if err := parseDuration(y.QueryTimeout, &o.QueryTimeout); err != nil {
		return err
	}
	return parseDuration(y.SweepInterval, &o.SweepInterval)
}

// FromFile loads options from a YAML file, with defaults for anything the
// file leaves out.
func FromFile(path string) (Options, error) {
	opts := Default()
	buf, err := os.ReadFile(path)
	if err != nil {
		return opts, errors.Wrapf(err, "config: reading %s", path)
	}
	var y yamlOptions
	if err := yaml.Unmarshal(buf, &y); err != nil {
		return opts, errors.Wrapf(err, "config: parsing %s", path)
	}
	if err := opts.apply(y); err != nil {
		return opts, err
	}
	return opts, nil
}

// FromEnv loads options from SKYCACHE_* environment variables, with
// defaults for anything unset. Durations accept str2duration syntax
// ("90s", "5m", "1h30m"); sizes accept humanized forms ("512MiB").
func FromEnv() (Options, error) {
	opts := Default()
	y := yamlOptions{
		TileTTL:       os.Getenv("SKYCACHE_TILE_TTL"),
		TimeBinTTL:    os.Getenv("SKYCACHE_TIMEBIN_TTL"),
		TimeBinSize:   os.Getenv("SKYCACHE_TIMEBIN_SIZE"),
		MemoryLimit:   os.Getenv("SKYCACHE_MEMORY_LIMIT"),
		RedisAddr:     os.Getenv("SKYCACHE_REDIS_ADDR"),
		RedisPassword: os.Getenv("SKYCACHE_REDIS_PASSWORD"),
		KeyPrefix:     os.Getenv("SKYCACHE_KEY_PREFIX"),
		QueryTimeout:  os.Getenv("SKYCACHE_QUERY_TIMEOUT"),
		SweepInterval: os.Getenv("SKYCACHE_SWEEP_INTERVAL"),
	}
	if v := os.Getenv("SKYCACHE_TILE_CACHE_SIZE"); v != "" {
		n, err := humanize.ParseBytes(v)
		if err != nil {
			return opts, errors.Wrapf(err, "config: invalid SKYCACHE_TILE_CACHE_SIZE %q", v)
		}
		y.TileCacheSize = int(n)
	}
	if v := os.Getenv("SKYCACHE_REDIS_DB"); v != "" {
		var db int
		if _, err := fmt.Sscanf(v, "%d", &db); err != nil {
			return opts, errors.Wrapf(err, "config: invalid SKYCACHE_REDIS_DB %q", v)
		}
		y.RedisDB = &db
	}
	if v := os.Getenv("SKYCACHE_COMPRESSION"); v != "" {
		b := v == "true" || v == "1"
		y.CompressionEnabled = &b
	}
	if v := os.Getenv("SKYCACHE_REMOTE_ENABLED"); v != "" {
		b := v == "true" || v == "1"
		y.RemoteEnabled = &b
	}
	if err := opts.apply(y); err != nil {
		return opts, err
	}
	return opts, nil
}

// FlagOrEnv returns the cobra flag value when set, falling back to the
// environment variable and then the default.
func FlagOrEnv(cmd *cobra.Command, flagName string, envName string, defaultValue string) string {
	flagValue, _ := cmd.Flags().GetString(flagName)
	if flagValue != "" {
		return flagValue
	}
	if val, ok := os.LookupEnv(envName); ok {
		return val
	}
	return defaultValue
}
