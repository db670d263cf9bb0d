// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/featnet/internal/nn"
	"github.com/born-ml/featnet/tensor"
)

// Errors

// Error categories matched with errors.Is.
var (
	ErrConfig             = nn.ErrConfig
	ErrShapeMismatch      = nn.ErrShapeMismatch
	ErrUnsupportedFeature = nn.ErrUnsupportedFeature
)

// ConfigError describes a rejected configuration.
type ConfigError = nn.ConfigError

// ShapeError describes a tensor whose shape does not fit an operation.
type ShapeError = nn.ShapeError

// Initialization

// Initializer selects how convolution kernels are filled.
type Initializer = nn.Initializer

// Kernel initializers.
const (
	InitXavierUniform = nn.InitXavierUniform
	InitKaimingNormal = nn.InitKaimingNormal
)

// Layers

// Conv2DConfig configures a Conv2D layer.
type Conv2DConfig = nn.Conv2DConfig

// Conv2D represents a grouped, dilated 2D convolution over NHWC input.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a new 2D convolutional layer.
//
// Example:
//
//	conv, err := nn.NewConv2D(nn.Conv2DConfig{
//	    InChannels: 3, OutChannels: 32, KernelH: 7, KernelW: 7, Stride: 3, Padding: 3,
//	    Init: nn.InitKaimingNormal,
//	}, rng, backend)
func NewConv2D[B tensor.Backend](cfg Conv2DConfig, rng *rand.Rand, backend B) (*Conv2D[B], error) {
	return nn.NewConv2D(cfg, rng, backend)
}

// Batch norm defaults.
const (
	DefaultBatchNormEpsilon  = nn.DefaultBatchNormEpsilon
	DefaultBatchNormMomentum = nn.DefaultBatchNormMomentum
)

// BatchNormConfig configures a BatchNorm2D layer.
type BatchNormConfig = nn.BatchNormConfig

// BatchNorm2D normalizes each channel of an NHWC tensor.
type BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]

// NewBatchNorm2D creates a batch norm with unit scale, zero bias and
// identity running statistics.
func NewBatchNorm2D[B tensor.Backend](channels int, cfg BatchNormConfig, backend B) (*BatchNorm2D[B], error) {
	return nn.NewBatchNorm2D(channels, cfg, backend)
}

// Activations

// ReLU represents the Rectified Linear Unit activation function.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a new ReLU activation layer.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// LeakyReLU passes x for x >= 0 and slope*x otherwise.
type LeakyReLU[B tensor.Backend] = nn.LeakyReLU[B]

// NewLeakyReLU creates a new LeakyReLU activation layer.
func NewLeakyReLU[B tensor.Backend](slope float64) *LeakyReLU[B] {
	return nn.NewLeakyReLU[B](slope)
}

// Containers

// Sequential chains modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a new sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// ConvBNAct is a convolution followed by batch norm and an optional activation.
type ConvBNAct[B tensor.Backend] = nn.ConvBNAct[B]

// NewConvBNAct creates a ConvBNAct. A nil act leaves the output linear.
func NewConvBNAct[B tensor.Backend](conv Conv2DConfig, bn BatchNormConfig, act Module[B], rng *rand.Rand, backend B) (*ConvBNAct[B], error) {
	return nn.NewConvBNAct(conv, bn, act, rng, backend)
}
