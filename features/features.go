// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package features

import (
	"math/rand"

	"github.com/born-ml/featnet/internal/config"
	"github.com/born-ml/featnet/internal/extractor"
	"github.com/born-ml/featnet/internal/fpn"
	"github.com/born-ml/featnet/internal/logger"
	"github.com/born-ml/featnet/internal/nn"
	"github.com/born-ml/featnet/internal/resnet"
	"github.com/born-ml/featnet/tensor"
)

// Error categories matched with errors.Is.
var (
	ErrConfig             = nn.ErrConfig
	ErrShapeMismatch      = nn.ErrShapeMismatch
	ErrUnsupportedFeature = nn.ErrUnsupportedFeature
)

// Pipeline

// Extractor is a backbone followed by a Feature Pyramid Network.
type Extractor[B tensor.Backend] = extractor.Extractor[B]

// Output holds the backbone features and the fused pyramid of one pass.
type Output[B tensor.Backend] = extractor.Output[B]

// Backbone produces multi-scale feature maps, finest first.
type Backbone[B tensor.Backend] = extractor.Backbone[B]

// Option configures an Extractor.
type Option = extractor.Option

// Logger receives per-level debug output.
type Logger = logger.Logger

// WithLogger sets the logger used for per-level debug output.
func WithLogger(l Logger) Option {
	return extractor.WithLogger(l)
}

// New builds an FPN sized for backbone and returns the pipeline.
// cfg.InChannels is taken from the backbone.
func New[B tensor.Backend](backbone Backbone[B], cfg FPNConfig, rng *rand.Rand, backend B, opts ...Option) (*Extractor[B], error) {
	return extractor.New(backbone, cfg, rng, backend, opts...)
}

// NewDefault builds the default ResNet backbone and FPN.
func NewDefault[B tensor.Backend](rng *rand.Rand, backend B, opts ...Option) (*Extractor[B], error) {
	backbone, err := NewResNet(DefaultResNetConfig(), rng, backend)
	if err != nil {
		return nil, err
	}
	return New[B](backbone, DefaultFPNConfig(), rng, backend, opts...)
}

// Configuration

// Config is the file configuration of a featnet run.
type Config = config.Config

// ModelConfig is the model section of a Config.
type ModelConfig = config.Model

// DefaultConfig returns the default file configuration.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// Build constructs an Extractor from a model configuration. log may be nil.
func Build[B tensor.Backend](cfg ModelConfig, rng *rand.Rand, backend B, log Logger) (*Extractor[B], error) {
	return extractor.Build(cfg, rng, backend, log)
}

// Backbone

// ResNetConfig configures a ResNet backbone.
type ResNetConfig = resnet.Config

// StageSpec describes one backbone stage.
type StageSpec = resnet.StageSpec

// BlockVariant selects the residual block type of a stage.
type BlockVariant = resnet.BlockVariant

// Block variants.
const (
	BasicBlock = resnet.BasicBlockVariant
	Bottleneck = resnet.BottleneckVariant
)

// ResNet is the residual backbone.
type ResNet[B tensor.Backend] = resnet.Backbone[B]

// DefaultResNetConfig returns the default backbone: 3 image channels, a 32
// channel 7x7 stride-3 stem and stages DefaultStages(32).
func DefaultResNetConfig() ResNetConfig {
	return resnet.DefaultConfig()
}

// DefaultStages returns the default stage list for a stem width.
func DefaultStages(inChannels int) []StageSpec {
	return resnet.DefaultStages(inChannels)
}

// NewResNet builds a ResNet backbone.
func NewResNet[B tensor.Backend](cfg ResNetConfig, rng *rand.Rand, backend B) (*ResNet[B], error) {
	return resnet.New(cfg, rng, backend)
}

// SimplePyramid is a light backbone producing [C, 2C, 4C] channels at
// strides 1, 2 and 4.
type SimplePyramid[B tensor.Backend] = fpn.SimplePyramid[B]

// NewSimplePyramid builds a SimplePyramid for inputs with channels channels.
func NewSimplePyramid[B tensor.Backend](channels int, rng *rand.Rand, backend B) (*SimplePyramid[B], error) {
	return fpn.NewSimplePyramid(channels, rng, backend)
}

// Pyramid network

// FPNConfig configures a Feature Pyramid Network.
type FPNConfig = fpn.Config

// FPN is the Feature Pyramid Network.
type FPN[B tensor.Backend] = fpn.Network[B]

// Pyramid is the ordered list of fused feature maps, finest first.
type Pyramid[B tensor.Backend] = fpn.Pyramid[B]

// DefaultFPNConfig returns an FPN for the default backbone.
func DefaultFPNConfig() FPNConfig {
	return fpn.DefaultConfig()
}

// NewFPN builds a Feature Pyramid Network.
func NewFPN[B tensor.Backend](cfg FPNConfig, rng *rand.Rand, backend B) (*FPN[B], error) {
	return fpn.New(cfg, rng, backend)
}
