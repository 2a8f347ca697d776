// Package config loads the service configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	Database  Database  `yaml:"database"`
	Scheduler Scheduler `yaml:"scheduler"`
	Log       Log       `yaml:"log"`
}

type Database struct {
	// Path is the SQLite database file. ":memory:" runs fully in memory.
	Path string `yaml:"path"`
}

type Scheduler struct {
	// TickPeriodMs is the schedule evaluation cadence in milliseconds.
	TickPeriodMs int64 `yaml:"tick_period_ms"`
}

type Log struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:  Database{Path: "boardflow.db"},
		Scheduler: Scheduler{TickPeriodMs: 60_000},
		Log:       Log{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file and loads defaults
// plus environment only.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("BOARDFLOW_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("BOARDFLOW_TICK_PERIOD_MS"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("BOARDFLOW_TICK_PERIOD_MS: %w", err)
		}
		c.Scheduler.TickPeriodMs = ms
	}
	if v := os.Getenv("BOARDFLOW_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("BOARDFLOW_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Scheduler.TickPeriodMs <= 0 {
		return fmt.Errorf("scheduler.tick_period_ms must be positive, got %d", c.Scheduler.TickPeriodMs)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}
	return nil
}
