// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/featnet/internal/tensor"

// Backend defines the numerical primitives the feature extractor is built from.
//
// Implementations:
//   - backend/cpu: pure Go, parallel over batch and output rows
//   - backend/webgpu: WGSL compute shaders (windows builds)
type Backend = tensor.Backend

// Conv2DParams describes a 2D convolution over an NHWC input.
type Conv2DParams = tensor.Conv2DParams
