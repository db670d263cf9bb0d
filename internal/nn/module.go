// Package nn implements the neural network building blocks of featnet.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Named parameter tensors
//   - Conv2D, BatchNorm2D: NHWC layers with explicit parameter containers
//   - ReLU, LeakyReLU: Activations
//   - Sequential, ConvBNAct: Containers for stacking layers
//   - Initializers: Xavier-uniform and Kaiming-normal with an explicit RNG
//
// Layers validate configuration eagerly at construction and return typed
// errors (ErrConfig, ErrShapeMismatch, ErrUnsupportedFeature) instead of
// panicking on user input.
package nn

import (
	"github.com/born-ml/featnet/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all parameters
//
// Modules can be composed to build complex architectures:
//
//	stem := nn.NewSequential[B](conv, bn, nn.NewReLU[B]())
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	//
	// Returns an ErrShapeMismatch error if the input does not fit the module.
	Forward(input *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error)

	// Parameters returns all parameters of this module, including
	// batch-norm statistics and nested module parameters.
	// Returns an empty slice for modules without parameters.
	Parameters() []*Parameter[B]
}
