// Package config loads host configuration for a keel simulation process
// from TOML, with sane defaults for every field.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Sim      SimConfig      `toml:"sim"`
	Database DatabaseConfig `toml:"database"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Scripts  ScriptsConfig  `toml:"scripts"`
	Logging  LoggingConfig  `toml:"logging"`
}

type SimConfig struct {
	Workers  int           `toml:"workers"`   // scheduler worker pool size
	TickRate time.Duration `toml:"tick_rate"` // simulation step interval
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty disables DB snapshots
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type SnapshotConfig struct {
	Name     string `toml:"name"`     // logical snapshot stream name
	Interval int    `toml:"interval"` // ticks between snapshots, 0 disables
	Keep     int    `toml:"keep"`     // snapshots retained per name
}

type ScriptsConfig struct {
	Dir string `toml:"dir"` // lua script directory, empty disables scripting
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the built-in configuration, used when no file is given.
func Default() *Config { return defaults() }

func defaults() *Config {
	return &Config{
		Sim: SimConfig{
			Workers:  runtime.NumCPU(),
			TickRate: 50 * time.Millisecond,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Snapshot: SnapshotConfig{
			Name:     "world",
			Interval: 1200, // 1200 ticks x 50ms = 1 minute
			Keep:     10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
