// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU backend for GPU-accelerated feature extraction.
//
// GPU kernels are built on windows; on other platforms New returns
// ErrUnavailable and IsAvailable reports false.
//
// Example:
//
//	gpu, err := webgpu.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer gpu.Release()
//
//	ex, err := features.NewDefault(rng, gpu)
package webgpu

import (
	internalwebgpu "github.com/born-ml/featnet/internal/backend/webgpu"
	"github.com/born-ml/featnet/tensor"
)

// Backend represents the WebGPU backend implementation.
type Backend = internalwebgpu.Backend

// ErrUnavailable is returned by New when no WebGPU adapter can be used.
var ErrUnavailable = internalwebgpu.ErrUnavailable

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new WebGPU backend.
// Call Release() when done to free GPU resources.
func New() (*Backend, error) {
	return internalwebgpu.New()
}

// IsAvailable checks if WebGPU is available on the current system.
//
// Example:
//
//	if webgpu.IsAvailable() {
//	    gpu, _ := webgpu.New()
//	    run(gpu)
//	} else {
//	    run(cpu.New())
//	}
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
