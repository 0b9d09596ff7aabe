// Package config loads engine settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/on-the-ground/effect_ive_feedbacks/effects/log"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Log     Log     `yaml:"log"`
	Cache   Cache   `yaml:"cache"`
	Commits Commits `yaml:"commits"`
}

type Log struct {
	Level       log.LogLevel `yaml:"level"`
	Development bool         `yaml:"development"`
}

// Cache sizes the memo of resolved item initial states.
type Cache struct {
	NumCounters int64 `yaml:"num_counters"`
	MaxCost     int64 `yaml:"max_cost"`
	BufferItems int64 `yaml:"buffer_items"`
}

// Commits sizes the channel returned by Engine.Source.
type Commits struct {
	BufferSize int `yaml:"buffer_size"`
}

func Default() Config {
	return Config{
		Log: Log{Level: log.LogInfo},
		Cache: Cache{
			NumCounters: 1e4,
			MaxCost:     1 << 20,
			BufferItems: 64,
		},
		Commits: Commits{BufferSize: 256},
	}
}

// Load decodes YAML over the defaults. Unknown keys are rejected.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Load(bytes.NewReader(data))
}

// Validate reports the first bad field by its dotted key.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, KeyLogLevel, err)
	}
	if c.Cache.NumCounters <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, KeyCacheNumCounters)
	}
	if c.Cache.MaxCost <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, KeyCacheMaxCost)
	}
	if c.Cache.BufferItems <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, KeyCacheBufferItems)
	}
	if c.Commits.BufferSize < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, KeyCommitsBufferSize)
	}
	return nil
}
