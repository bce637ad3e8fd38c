// Package config loads and hot-reloads server/client configuration using
// viper for layered sourcing (file, env, defaults), pelletier/go-toml/v2
// for the on-disk format, and fsnotify for live reload.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// DefaultConfigFilename is the file Load searches for when no explicit
// path is given.
const DefaultConfigFilename = "scriptrpc.toml"

var configPtr atomic.Pointer[Config]
var loadedConfigFile atomic.Value

// Config is the top-level configuration for a scriptrpc server or client
// process.
type Config struct {
	Server ServerConfig `mapstructure:"server" toml:"server"`
	Client ClientConfig `mapstructure:"client" toml:"client"`
	Redis  RedisConfig  `mapstructure:"redis"  toml:"redis"`
	Log    LogConfig    `mapstructure:"log"    toml:"log"`
}

// ServerConfig controls the acceptor and event bus.
type ServerConfig struct {
	ListenAddr    string `mapstructure:"listen_addr"     toml:"listen_addr"`
	WorkerPool    int    `mapstructure:"worker_pool"     toml:"worker_pool"`
	MaxEventsKept int    `mapstructure:"max_events_kept" toml:"max_events_kept"`
}

// ClientConfig controls the RPC transport and follow driver a script host
// uses against a server.
type ClientConfig struct {
	ServerAddr         string `mapstructure:"server_addr"         toml:"server_addr"`
	EntryKey           string `mapstructure:"entry_key"           toml:"entry_key"`
	FollowIntervalMs   int    `mapstructure:"follow_interval_ms"  toml:"follow_interval_ms"`
	VerifyFingerprints bool   `mapstructure:"verify_fingerprints" toml:"verify_fingerprints"`
}

// RedisConfig configures the optional durable event bus. DSNResource names
// a github.com/viant/scy secret resource holding the connection string; it
// is resolved lazily so a DSN never needs to sit in plaintext config.
type RedisConfig struct {
	Enabled     bool   `mapstructure:"enabled"      toml:"enabled"`
	DSNResource string `mapstructure:"dsn_resource" toml:"dsn_resource"`
	StreamKey   string `mapstructure:"stream_key"   toml:"stream_key"`
}

// LogConfig controls the zerolog sink.
type LogConfig struct {
	Level   string `mapstructure:"level"   toml:"level"`
	Console bool   `mapstructure:"console" toml:"console"`
}

// DefaultConfig returns the built-in defaults, matching the relevant
// constants in the root package where applicable.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:    ":7777",
			WorkerPool:    4,
			MaxEventsKept: 10_000,
		},
		Client: ClientConfig{
			ServerAddr:       "127.0.0.1:7777",
			FollowIntervalMs: 1000,
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Get returns the current process-wide Config, defaulting if none has been
// loaded yet. Safe for concurrent use.
func Get() *Config {
	if c := configPtr.Load(); c != nil {
		return c
	}
	d := DefaultConfig()
	configPtr.Store(d)
	return d
}

func set(cfg *Config) { configPtr.Store(cfg) }

// Load reads configuration with precedence env > explicitPath > ./scriptrpc.toml
// > built-in defaults, validates it, and stores it as the process-wide
// Config.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	setViperDefaults(v, DefaultConfig())

	v.SetEnvPrefix("SCRIPTRPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(strings.TrimSuffix(DefaultConfigFilename, ".toml"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if cf := v.ConfigFileUsed(); cf != "" {
		loadedConfigFile.Store(cf)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	set(cfg)
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Server.WorkerPool <= 0 {
		return fmt.Errorf("server.worker_pool must be positive, got %d", cfg.Server.WorkerPool)
	}
	if cfg.Server.MaxEventsKept <= 0 {
		return fmt.Errorf("server.max_events_kept must be positive, got %d", cfg.Server.MaxEventsKept)
	}
	if cfg.Redis.Enabled && cfg.Redis.DSNResource == "" {
		return fmt.Errorf("redis.dsn_resource is required when redis.enabled is true")
	}
	return nil
}

// ConfigFilePath returns the path of the config file loaded by the last
// successful Load, or empty if none was found.
func ConfigFilePath() string {
	if v, ok := loadedConfigFile.Load().(string); ok {
		return v
	}
	return ""
}

// WriteDefault writes the built-in defaults to path in TOML form unless a
// file already exists there.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshalling default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func setViperDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.listen_addr", d.Server.ListenAddr)
	v.SetDefault("server.worker_pool", d.Server.WorkerPool)
	v.SetDefault("server.max_events_kept", d.Server.MaxEventsKept)

	v.SetDefault("client.server_addr", d.Client.ServerAddr)
	v.SetDefault("client.entry_key", d.Client.EntryKey)
	v.SetDefault("client.follow_interval_ms", d.Client.FollowIntervalMs)
	v.SetDefault("client.verify_fingerprints", d.Client.VerifyFingerprints)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.dsn_resource", d.Redis.DSNResource)
	v.SetDefault("redis.stream_key", d.Redis.StreamKey)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.console", d.Log.Console)
}
