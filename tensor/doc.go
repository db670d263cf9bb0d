// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API of featnet.
//
// The package defines the types every feature extraction component works on:
//   - Tensor[T, B]: generic NHWC tensor bound to a backend
//   - RawTensor: untyped storage used by backends
//   - Backend: the numerical primitives (Conv2D, BatchNorm, ResizeNearest, ...)
//   - Shape, DataType, Device: core type definitions
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{1, 96, 96, 3}, backend)
//	y := x.ReLU()
package tensor
