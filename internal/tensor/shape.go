package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
//
// Feature maps use the NHWC convention: [batch, height, width, channels].
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// IsNHWC reports whether the shape is a 4D feature map.
func (s Shape) IsNHWC() bool {
	return len(s) == 4
}

// Batch returns the batch dimension of an NHWC shape.
func (s Shape) Batch() int {
	s.mustNHWC()
	return s[0]
}

// Height returns the spatial height of an NHWC shape.
func (s Shape) Height() int {
	s.mustNHWC()
	return s[1]
}

// Width returns the spatial width of an NHWC shape.
func (s Shape) Width() int {
	s.mustNHWC()
	return s[2]
}

// Channels returns the channel dimension of an NHWC shape.
func (s Shape) Channels() int {
	s.mustNHWC()
	return s[3]
}

// Spatial returns [height, width] of an NHWC shape.
func (s Shape) Spatial() [2]int {
	s.mustNHWC()
	return [2]int{s[1], s[2]}
}

func (s Shape) mustNHWC() {
	if len(s) != 4 {
		panic(fmt.Sprintf("shape %v is not NHWC", s))
	}
}

// ConvOutputSize returns the output extent of a convolution along one axis.
//
//	out = (in + 2*padding - dilation*(kernel-1) - 1) / stride + 1
//
// The result is zero when the padded input is smaller than the receptive field.
func ConvOutputSize(in, kernel, stride, padding, dilation int) int {
	span := in + 2*padding - dilation*(kernel-1) - 1
	if span < 0 {
		return 0
	}
	return span/stride + 1
}
