// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for the featnet primitives.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Direct NHWC convolution with groups and dilation
//   - Float32 and Float64 support
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/featnet/backend/cpu"
//	    "github.com/born-ml/featnet/features"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    ex, err := features.NewDefault(rng, backend)
//	}
//
// # Determinism
//
// Convolutions are split across (batch, output row) work items. Every output
// element is accumulated by one goroutine in a fixed order, so results do not
// depend on the number of workers.
package cpu
