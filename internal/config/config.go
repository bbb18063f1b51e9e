package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. FAWLDB_DATA_DIR
const EnvPrefix = "FAWLDB"

// Config is the complete runtime configuration
type Config struct {
	DataDir   string       `mapstructure:"data_dir"`
	Backend   string       `mapstructure:"backend"`
	CacheSize uint64       `mapstructure:"cache_size"`
	Server    ServerConfig `mapstructure:"server"`
	Log       LogConfig    `mapstructure:"log"`
}

// ServerConfig configures the network listeners
type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	HTTPAddr string `mapstructure:"http_addr"`
	Workers  int    `mapstructure:"workers"`
}

// LogConfig configures the global logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./store")
	v.SetDefault("backend", "disk")
	v.SetDefault("cache_size", 4<<20)
	v.SetDefault("server.addr", ":6390")
	v.SetDefault("server.http_addr", ":8890")
	v.SetDefault("server.workers", 256)
	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.format", "text")
}

// New returns a viper instance with defaults and environment overrides
// (FAWLDB_SERVER_ADDR -> server.addr) wired in.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path (any format viper supports)
// and unmarshals the merged configuration.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fails fast on settings the store cannot start with
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir is required")
	}
	switch c.Backend {
	case "disk", "badger":
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.Server.Workers <= 0 {
		return fmt.Errorf("config: server.workers must be positive, got %d", c.Server.Workers)
	}
	return nil
}
