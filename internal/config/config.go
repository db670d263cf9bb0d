// Package config loads the featnet YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backbone kinds.
const (
	KindResNet  = "resnet"
	KindPyramid = "pyramid"
)

// Backends.
const (
	BackendCPU    = "cpu"
	BackendWebGPU = "webgpu"
)

// Config represents a featnet configuration file.
type Config struct {
	Seed      int64  `yaml:"seed"`
	Backend   string `yaml:"backend"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Workers   int    `yaml:"workers"` // CPU worker goroutines; 0 means one per CPU
	Model     Model  `yaml:"model"`
}

// Model describes the feature extractor architecture.
type Model struct {
	Backbone Backbone `yaml:"backbone"`
	FPN      FPN      `yaml:"fpn"`
}

// Backbone configures the multi-scale backbone.
type Backbone struct {
	Kind          string  `yaml:"kind"`
	ImageChannels int     `yaml:"image_channels"`
	InChannels    int     `yaml:"in_channels"`
	Groups        int     `yaml:"groups"`
	WidthPerGroup int     `yaml:"width_per_group"`
	StemKernel    int     `yaml:"stem_kernel"`
	StemStride    int     `yaml:"stem_stride"`
	Stages        []Stage `yaml:"stages,omitempty"` // empty selects the default stages for in_channels
}

// Stage configures one residual stage.
type Stage struct {
	Block    string `yaml:"block"`
	Channels int    `yaml:"channels"`
	Blocks   int    `yaml:"blocks"`
	Stride   int    `yaml:"stride"`
	Dilate   bool   `yaml:"dilate,omitempty"`
}

// FPN configures the pyramid fuser. Input widths come from the backbone.
type FPN struct {
	OutChannels int `yaml:"out_channels"`
	NumLevels   int `yaml:"num_levels"`
}

// Default returns the default configuration: a ResNet backbone with
// 32 stem channels and a 3-level, 128-channel FPN on the CPU backend.
func Default() *Config {
	return &Config{
		Seed:      0,
		Backend:   BackendCPU,
		LogLevel:  "info",
		LogFormat: "console",
		Model: Model{
			Backbone: Backbone{
				Kind:          KindResNet,
				ImageChannels: 3,
				InChannels:    32,
				Groups:        1,
				WidthPerGroup: 64,
				StemKernel:    7,
				StemStride:    3,
			},
			FPN: FPN{
				OutChannels: 128,
				NumLevels:   3,
			},
		},
	}
}

// Load reads and validates a configuration file. Fields missing from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration data.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FEATNET_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("FEATNET_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("FEATNET_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
}

// Validate checks the fields that do not depend on model construction.
// Architectural constraints (block variants, groups, halving) are checked
// when the model is built.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case BackendCPU, BackendWebGPU:
	default:
		return fmt.Errorf("invalid backend: %s (valid: %s, %s)", c.Backend, BackendCPU, BackendWebGPU)
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s (valid: console, json)", c.LogFormat)
	}

	if c.Workers < 0 {
		return fmt.Errorf("invalid workers: %d", c.Workers)
	}

	return c.Model.Validate()
}

// Validate checks the model section.
func (m Model) Validate() error {
	b := m.Backbone
	switch strings.ToLower(b.Kind) {
	case KindResNet, KindPyramid:
	default:
		return fmt.Errorf("invalid backbone kind: %s (valid: %s, %s)", b.Kind, KindResNet, KindPyramid)
	}
	if b.InChannels <= 0 {
		return fmt.Errorf("invalid backbone in_channels: %d", b.InChannels)
	}
	for i, s := range b.Stages {
		if s.Block == "" {
			return fmt.Errorf("stage %d: block is required", i+1)
		}
	}
	if strings.EqualFold(b.Kind, KindPyramid) && len(b.Stages) > 0 {
		return fmt.Errorf("backbone kind %s does not take stages", KindPyramid)
	}

	if m.FPN.OutChannels <= 0 {
		return fmt.Errorf("invalid fpn out_channels: %d", m.FPN.OutChannels)
	}
	if m.FPN.NumLevels < 1 {
		return fmt.Errorf("invalid fpn num_levels: %d", m.FPN.NumLevels)
	}
	return nil
}
