package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"easel/internal/batch"
	"easel/internal/retry"
)

// ServerConfig configures one easeld instance.
type ServerConfig struct {
	Name             string      `toml:"name"`
	Addr             string      `toml:"addr"`
	CorsOrigins      []string    `toml:"cors_origins"`
	DefaultChannel   string      `toml:"default_channel"`
	AuthToken        string      `toml:"auth_token"`
	CommandTimeoutMS int64       `toml:"command_timeout_ms"`
	Retry            RetryConfig `toml:"retry"`
	Batch            BatchConfig `toml:"batch"`
}

// RetryConfig tunes the dispatch-path retry budget.
type RetryConfig struct {
	Retries        int     `toml:"retries"`
	InitialDelayMS int64   `toml:"initial_delay_ms"`
	Multiplier     float64 `toml:"multiplier"`
	MaxDelayMS     int64   `toml:"max_delay_ms"`
}

// BatchConfig tunes batch execution.
type BatchConfig struct {
	ChunkSize   int `toml:"chunk_size"`
	Concurrency int `toml:"concurrency"`
}

// DefaultServerConfig returns the documented defaults: 30s command
// budget, channel "default", three retries growing 1.5x from 1s.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Name:             "easeld",
		Addr:             ":3055",
		CorsOrigins:      []string{"http://localhost:3000"},
		DefaultChannel:   "default",
		CommandTimeoutMS: 30_000,
		Retry: RetryConfig{
			Retries:        3,
			InitialDelayMS: 1_000,
			Multiplier:     1.5,
			MaxDelayMS:     0,
		},
		Batch: BatchConfig{
			ChunkSize:   batch.DefaultChunkSize,
			Concurrency: batch.DefaultConcurrency,
		},
	}
}

// LoadServerConfig reads path, fills defaults for absent fields, and
// validates the result.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("server config missing name")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("server config missing addr")
	}
	if strings.TrimSpace(cfg.DefaultChannel) == "" {
		return fmt.Errorf("server config missing default_channel")
	}
	if cfg.CommandTimeoutMS <= 0 {
		return fmt.Errorf("server config command_timeout_ms must be positive")
	}
	if cfg.Retry.Retries < 0 {
		return fmt.Errorf("server config retry.retries must not be negative")
	}
	if cfg.Retry.Multiplier < 1.0 {
		return fmt.Errorf("server config retry.multiplier must be >= 1.0")
	}
	if cfg.Batch.ChunkSize < 0 || cfg.Batch.Concurrency < 0 {
		return fmt.Errorf("server config batch sizes must not be negative")
	}
	return nil
}

// CommandTimeout returns the per-request budget as a duration.
func (c ServerConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMS) * time.Millisecond
}

// RetryPolicy projects the retry section onto a retry.Policy.
func (c ServerConfig) RetryPolicy() retry.Policy {
	return retry.Policy{
		Retries:      c.Retry.Retries,
		InitialDelay: time.Duration(c.Retry.InitialDelayMS) * time.Millisecond,
		Multiplier:   c.Retry.Multiplier,
		MaxDelay:     time.Duration(c.Retry.MaxDelayMS) * time.Millisecond,
	}
}

// BatchOptions projects the batch section onto batch.Options.
func (c ServerConfig) BatchOptions() batch.Options {
	return batch.Options{
		ChunkSize:   c.Batch.ChunkSize,
		Concurrency: c.Batch.Concurrency,
	}
}
