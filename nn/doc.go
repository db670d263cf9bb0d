// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the convolutional building blocks of featnet.
//
// # Overview
//
// This package contains:
//   - Layers: Conv2D (grouped, dilated), BatchNorm2D
//   - Activations: ReLU, LeakyReLU
//   - Composition: Sequential, ConvBNAct, Module interface, Parameter
//   - Initialization: XavierUniform, KaimingNormal, Zeros, Ones
//   - Errors: ErrConfig, ErrShapeMismatch, ErrUnsupportedFeature
//
// All tensors are NHWC and kernels are HWIO [KH, KW, Cin/groups, Cout].
//
// # Basic Usage
//
//	backend := cpu.New()
//	rng := rand.New(rand.NewSource(1))
//
//	block, err := nn.NewConvBNAct(nn.Conv2DConfig{
//	    InChannels: 3, OutChannels: 16, KernelH: 3, KernelW: 3, Padding: 1,
//	}, nn.BatchNormConfig{}, nn.NewReLU[*cpu.Backend](), rng, backend)
//	if err != nil {
//	    return err
//	}
//	y, err := block.Forward(x)
//
// # Errors
//
// Constructors validate their configuration and return errors matching
// ErrConfig or ErrUnsupportedFeature. Forward returns errors matching
// ErrShapeMismatch when the input does not fit the layer.
package nn
