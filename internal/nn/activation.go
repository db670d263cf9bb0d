package nn

import (
	"fmt"

	"github.com/born-ml/featnet/internal/tensor"
)

// ReLU applies the rectified linear unit element-wise: max(0, x).
//
// ReLU has no parameters.
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a new ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	return input.ReLU(), nil
}

// Parameters returns an empty slice.
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}

// String returns "ReLU".
func (r *ReLU[B]) String() string {
	return "ReLU"
}

// LeakyReLU applies x for x >= 0 and Slope*x otherwise.
type LeakyReLU[B tensor.Backend] struct {
	Slope float64
}

// NewLeakyReLU creates a LeakyReLU activation with the given negative slope.
func NewLeakyReLU[B tensor.Backend](slope float64) *LeakyReLU[B] {
	return &LeakyReLU[B]{Slope: slope}
}

// Forward applies LeakyReLU.
func (l *LeakyReLU[B]) Forward(input *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	return input.LeakyReLU(l.Slope), nil
}

// Parameters returns an empty slice.
func (l *LeakyReLU[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}

// String returns a string representation of the activation.
func (l *LeakyReLU[B]) String() string {
	return fmt.Sprintf("LeakyReLU(slope=%g)", l.Slope)
}
