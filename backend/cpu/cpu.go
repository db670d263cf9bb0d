// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/featnet/internal/backend/cpu"
	"github.com/born-ml/featnet/internal/parallel"
	"github.com/born-ml/featnet/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Option configures a Backend.
type Option = internalcpu.Option

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	backend := cpu.New(cpu.WithWorkers(4))
//	x := tensor.Zeros[float32](tensor.Shape{1, 96, 96, 3}, backend)
func New(opts ...Option) *Backend {
	return internalcpu.New(opts...)
}

// WithWorkers bounds the number of goroutines used by a single operation.
// Zero keeps the default (one per CPU); one runs everything sequentially.
func WithWorkers(n int) Option {
	cfg := parallel.DefaultConfig()
	switch {
	case n == 1:
		cfg = parallel.Sequential()
	case n > 1:
		cfg.Enabled = true
		cfg.NumWorkers = n
	}
	return internalcpu.WithParallel(cfg)
}
