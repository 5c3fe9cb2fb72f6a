package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/regref/regref/ecfr"
)

// Config holds the full regrefd configuration.
type Config struct {
	Listen   string         `yaml:"listen"`
	DBPath   string         `yaml:"db_path"`
	LogLevel string         `yaml:"log_level"`
	Parts    []string       `yaml:"parts"` // parts to sync, e.g. ["390", "391"]
	Provider ProviderConfig `yaml:"provider"`
	Sync     SyncConfig     `yaml:"sync"`
	Watch    WatchConfig    `yaml:"watch"`
}

// ProviderConfig configures the upstream client.
type ProviderConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Title     int           `yaml:"title"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// SyncConfig configures the tracker.
type SyncConfig struct {
	SectionDelay time.Duration `yaml:"section_delay"`
	Interval     time.Duration `yaml:"interval"` // 0 disables the periodic pass
}

// WatchConfig configures the changelog watch loop.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:   ":8090",
		DBPath:   "regref.db",
		LogLevel: "info",
		Parts:    []string{"390"},
		Provider: ProviderConfig{Title: 49},
		Sync:     SyncConfig{Interval: 6 * time.Hour},
		Watch:    WatchConfig{Interval: 2 * time.Second, Debounce: 5 * time.Second},
	}
}

// LoadConfig reads a YAML config file over the defaults, then applies
// REGREF_* environment overrides. path may be empty (defaults + env only).
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	if v := os.Getenv("REGREF_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("REGREF_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("REGREF_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("REGREF_TITLE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Provider.Title = n
		}
	}
	if v := os.Getenv("REGREF_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if len(c.Parts) == 0 {
		return fmt.Errorf("at least one part is required")
	}
	if c.Provider.Title <= 0 {
		return fmt.Errorf("provider title must be > 0")
	}
	return nil
}

// ProviderClientConfig maps the file config onto the client's own config.
func (c *Config) ProviderClientConfig() ecfr.Config {
	return ecfr.Config{
		BaseURL:   c.Provider.BaseURL,
		Title:     c.Provider.Title,
		Timeout:   c.Provider.Timeout,
		UserAgent: c.Provider.UserAgent,
	}
}
