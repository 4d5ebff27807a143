// Package config loads studio configuration from YAML with environment
// overrides for the knobs operators commonly change.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all studio configuration.
type Config struct {
	Name string `yaml:"name"`

	Storage     StorageConfig     `yaml:"storage"`
	Cache       CacheConfig       `yaml:"cache"`
	History     HistoryConfig     `yaml:"history"`
	Server      ServerConfig      `yaml:"server"`
	Script      ScriptConfig      `yaml:"script"`
	Watch       WatchConfig       `yaml:"watch"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// StorageConfig configures the SQLite page store.
type StorageConfig struct {
	Path             string `yaml:"path"`
	ValidateOnImport bool   `yaml:"validate_on_import"`
}

// CacheConfig configures the three cache tiers.
// Durations are strings ("5s", "100ms") parsed on access.
type CacheConfig struct {
	MetadataTTL     string `yaml:"metadata_ttl"`
	PreloadTTL      string `yaml:"preload_ttl"`
	PreloadCapacity int    `yaml:"preload_capacity"`
	FlushDebounce   string `yaml:"flush_debounce"`
	RecentLimit     int    `yaml:"recent_limit"`
}

// HistoryConfig configures the navigation history manager.
type HistoryConfig struct {
	MaxSize int `yaml:"max_size"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ResolveBaseURL  string `yaml:"resolve_base_url"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// ScriptConfig configures sandboxed script execution.
type ScriptConfig struct {
	Timeout string `yaml:"timeout"`
}

// WatchConfig configures the storage file watcher.
type WatchConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Debounce string `yaml:"debounce"`
}

// MaintenanceConfig configures the janitor.
type MaintenanceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// LoggingConfig configures category logging.
type LoggingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Console    bool   `yaml:"console"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Name: "studio",
		Storage: StorageConfig{
			Path:             ".studio/studio.db",
			ValidateOnImport: true,
		},
		Cache: CacheConfig{
			MetadataTTL:     "5s",
			PreloadTTL:      "5m",
			PreloadCapacity: 20,
			FlushDebounce:   "100ms",
			RecentLimit:     10,
		},
		History: HistoryConfig{MaxSize: 10},
		Server: ServerConfig{
			Addr:            ":8466",
			ShutdownTimeout: "5s",
		},
		Script: ScriptConfig{Timeout: "5s"},
		Watch:  WatchConfig{Enabled: true, Debounce: "250ms"},
		Maintenance: MaintenanceConfig{
			Enabled:  true,
			Schedule: "@every 1m",
		},
		Logging: LoggingConfig{
			Enabled: false,
			Dir:     ".studio/logs",
			Level:   "info",
		},
	}
}

// Load reads configuration from path, layering file values over defaults
// and environment overrides over both. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from STUDIO_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("STUDIO_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("STUDIO_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("STUDIO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("STUDIO_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
		cfg.Logging.Enabled = true
	}
	if v := os.Getenv("STUDIO_HISTORY_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.History.MaxSize = n
		}
	}
}

// Validate rejects configurations the services cannot run with.
func (c Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.History.MaxSize < 1 {
		return fmt.Errorf("history.max_size must be >= 1, got %d", c.History.MaxSize)
	}
	if c.Cache.PreloadCapacity < 1 {
		return fmt.Errorf("cache.preload_capacity must be >= 1, got %d", c.Cache.PreloadCapacity)
	}
	if c.Cache.RecentLimit < 1 {
		return fmt.Errorf("cache.recent_limit must be >= 1, got %d", c.Cache.RecentLimit)
	}
	for name, v := range map[string]string{
		"cache.metadata_ttl":     c.Cache.MetadataTTL,
		"cache.preload_ttl":      c.Cache.PreloadTTL,
		"cache.flush_debounce":   c.Cache.FlushDebounce,
		"script.timeout":         c.Script.Timeout,
		"watch.debounce":         c.Watch.Debounce,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
	} {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q", name, v)
		}
		if d <= 0 {
			return fmt.Errorf("%s: duration must be positive, got %q", name, v)
		}
	}
	return nil
}

// duration parses s, falling back to def on empty or invalid input.
func duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// MetadataTTL returns the metadata cache TTL.
func (c CacheConfig) MetadataTTLDuration() time.Duration {
	return duration(c.MetadataTTL, 5*time.Second)
}

// PreloadTTLDuration returns the preload entry TTL.
func (c CacheConfig) PreloadTTLDuration() time.Duration {
	return duration(c.PreloadTTL, 5*time.Minute)
}

// FlushDebounceDuration returns the storage flush debounce window.
func (c CacheConfig) FlushDebounceDuration() time.Duration {
	return duration(c.FlushDebounce, 100*time.Millisecond)
}

// TimeoutDuration returns the script execution timeout.
func (c ScriptConfig) TimeoutDuration() time.Duration {
	return duration(c.Timeout, 5*time.Second)
}

// DebounceDuration returns the watcher debounce window.
func (c WatchConfig) DebounceDuration() time.Duration {
	return duration(c.Debounce, 250*time.Millisecond)
}

// ShutdownTimeoutDuration returns the HTTP graceful shutdown budget.
func (c ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return duration(c.ShutdownTimeout, 5*time.Second)
}
