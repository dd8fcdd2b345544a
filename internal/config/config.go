// Package config loads engine and server settings from a YAML file
// (default: configs/config.yaml) with KESTREL_* environment overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML
// file structure.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

// EngineConfig tunes the matching core.
//
//   - DepthLevels: levels per side in depth events and snapshots.
//   - FeedBuffer: per-subscriber event buffer; slow subscribers drop
//     their oldest events past this.
//   - MaxRestingOrders: per-symbol resting cap, 0 = unbounded.
type EngineConfig struct {
	DepthLevels      int `mapstructure:"depth_levels"`
	FeedBuffer       int `mapstructure:"feed_buffer"`
	MaxRestingOrders int `mapstructure:"max_resting_orders"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides, e.g.
// KESTREL_SERVER_PORT=8080.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("KESTREL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("engine.depth_levels", 10)
	v.SetDefault("engine.feed_buffer", 1024)
	v.SetDefault("engine.max_resting_orders", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535]")
	}
	if c.Engine.DepthLevels <= 0 {
		return fmt.Errorf("engine.depth_levels must be > 0")
	}
	if c.Engine.FeedBuffer <= 0 {
		return fmt.Errorf("engine.feed_buffer must be > 0")
	}
	if c.Engine.MaxRestingOrders < 0 {
		return fmt.Errorf("engine.max_resting_orders must be >= 0")
	}
	return nil
}
