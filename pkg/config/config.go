// Package config loads the allocator's YAML configuration file, the
// executor resource shape, launcher concurrency, and the handful of
// placement knobs named in the allocator's external interface.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Executor holds the executor resourcespec inputs and the initial target
// executor count.
type Executor struct {
	MemoryMB                  int     `yaml:"memoryMB"`
	MemoryOverheadMB          int     `yaml:"memoryOverheadMB"`
	InterpreterWorkerMemoryMB int     `yaml:"interpreterWorkerMemoryMB"`
	Cores                     int     `yaml:"cores"`
	NodeLabelExpression       string  `yaml:"nodeLabelExpression"`
	InitialCount              int     `yaml:"initialCount"`
	MemoryOverheadFactor      float64 `yaml:"memoryOverheadFactor"`
}

// Launcher holds launcher worker-pool sizing.
type Launcher struct {
	MaxThreads int `yaml:"maxThreads"`
}

// Blacklist holds failure-tracking and blacklist thresholds.
type Blacklist struct {
	FailureThreshold     int   `yaml:"failureThreshold"`
	FailureWindowSeconds int64 `yaml:"failureWindowSeconds"`
}

// Config is the fully parsed allocator configuration.
type Config struct {
	Executor    Executor  `yaml:"executor"`
	Launcher    Launcher  `yaml:"launcher"`
	Blacklist   Blacklist `yaml:"blacklist"`
	DataDir     string    `yaml:"dataDir"`
	MetricsAddr string    `yaml:"metricsAddr"`
}

// DefaultMaxThreads is used when launcher.maxThreads is absent or zero.
const DefaultMaxThreads = 8

// DefaultFailureThreshold is used when blacklist.failureThreshold is absent.
const DefaultFailureThreshold = 10

// DefaultFailureWindowSeconds is used when blacklist.failureWindowSeconds
// is absent.
const DefaultFailureWindowSeconds = 3600

// DefaultMetricsAddr is the listen address for the metrics/health server
// when metricsAddr is not set.
const DefaultMetricsAddr = "127.0.0.1:9090"

// Load reads and parses the YAML file at path, applies defaults, and
// validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Launcher.MaxThreads <= 0 {
		c.Launcher.MaxThreads = DefaultMaxThreads
	}
	if c.Blacklist.FailureThreshold <= 0 {
		c.Blacklist.FailureThreshold = DefaultFailureThreshold
	}
	if c.Blacklist.FailureWindowSeconds <= 0 {
		c.Blacklist.FailureWindowSeconds = DefaultFailureWindowSeconds
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = DefaultMetricsAddr
	}
}

// Validate rejects configurations that would make the allocator
// constructible but meaningless.
func (c Config) Validate() error {
	if c.Executor.MemoryMB <= 0 {
		return fmt.Errorf("executor.memoryMB must be positive, got %d", c.Executor.MemoryMB)
	}
	if c.Executor.Cores <= 0 {
		return fmt.Errorf("executor.cores must be positive, got %d", c.Executor.Cores)
	}
	if c.Executor.InitialCount < 0 {
		return fmt.Errorf("executor.initialCount must not be negative, got %d", c.Executor.InitialCount)
	}
	if c.Executor.MemoryOverheadMB < 0 {
		return fmt.Errorf("executor.memoryOverheadMB must not be negative, got %d", c.Executor.MemoryOverheadMB)
	}
	if c.Executor.InterpreterWorkerMemoryMB < 0 {
		return fmt.Errorf("executor.interpreterWorkerMemoryMB must not be negative, got %d", c.Executor.InterpreterWorkerMemoryMB)
	}
	return nil
}
