// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/featnet/internal/nn"
	"github.com/born-ml/featnet/tensor"
)

// Module is the base interface for all layers.
//
// Modules can be composed to build larger blocks:
//
//	model := nn.NewSequential[Backend](conv, nn.NewReLU[Backend]())
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named tensor owned by a module.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// CountParameters returns the total number of scalar values in params.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	return nn.CountParameters(params)
}
