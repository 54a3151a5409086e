package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tailored-agentic-units/tablecache/record"
	"github.com/tailored-agentic-units/tablecache/store"
)

const (
	defaultApp             = "tablecache"
	defaultMaxCacheSize    = 1000
	defaultRetentionPeriod = time.Minute
	defaultAddr            = ":8080"
	defaultObserver        = "slog"
)

// Duration is a time.Duration that reads and writes JSON as a duration
// string such as "30s" or "5m".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// CacheConfig sizes the cache table and paces its expirer.
type CacheConfig struct {
	MaxSize         int      `json:"max_size,omitempty"`
	RetentionPeriod Duration `json:"retention_period,omitempty"`
	Interval        Duration `json:"interval,omitempty"`      // Defaults to the retention period.
	InitialDelay    Duration `json:"initial_delay,omitempty"` // Delay before the first tick.
}

// DefaultCacheConfig returns the default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSize:         defaultMaxCacheSize,
		RetentionPeriod: Duration(defaultRetentionPeriod),
	}
}

// Merge applies non-zero values from source into c.
func (c *CacheConfig) Merge(source *CacheConfig) {
	if source.MaxSize > 0 {
		c.MaxSize = source.MaxSize
	}
	if source.RetentionPeriod > 0 {
		c.RetentionPeriod = source.RetentionPeriod
	}
	if source.Interval > 0 {
		c.Interval = source.Interval
	}
	if source.InitialDelay > 0 {
		c.InitialDelay = source.InitialDelay
	}
}

// TickInterval returns Interval, or the retention period when unset.
func (c *CacheConfig) TickInterval() time.Duration {
	if c.Interval > 0 {
		return c.Interval.Std()
	}
	return c.RetentionPeriod.Std()
}

// ServerConfig holds the admin HTTP server settings.
type ServerConfig struct {
	Addr string `json:"addr,omitempty"`
}

// Merge applies non-zero values from source into c.
func (c *ServerConfig) Merge(source *ServerConfig) {
	if source.Addr != "" {
		c.Addr = source.Addr
	}
}

// Config holds initialization parameters for every engine subsystem.
type Config struct {
	App      string            `json:"app,omitempty"`
	Table    record.Definition `json:"table"`
	Cache    CacheConfig       `json:"cache"`
	Store    store.Config      `json:"store"`
	Server   ServerConfig      `json:"server"`
	Observer string            `json:"observer,omitempty"`
}

// DefaultConfig returns a Config with defaults for all subsystems. The table
// definition has no default and must come from the loaded config.
func DefaultConfig() Config {
	return Config{
		App:      defaultApp,
		Cache:    DefaultCacheConfig(),
		Store:    store.DefaultConfig(),
		Server:   ServerConfig{Addr: defaultAddr},
		Observer: defaultObserver,
	}
}

// Merge applies non-zero values from source into c, delegating to each
// section's Merge method.
func (c *Config) Merge(source *Config) {
	c.Cache.Merge(&source.Cache)
	c.Store.Merge(&source.Store)
	c.Server.Merge(&source.Server)

	if source.App != "" {
		c.App = source.App
	}
	if source.Table.ID != "" {
		c.Table.ID = source.Table.ID
	}
	if len(source.Table.Attributes) > 0 {
		c.Table.Attributes = source.Table.Attributes
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
