package nn

import (
	"github.com/born-ml/featnet/internal/tensor"
)

// Parameter represents a named parameter tensor of a module.
//
// Parameters are owned by the module that created them and are read-only
// during a forward pass. Batch-norm running statistics are parameters too.
//
// Example:
//
//	kernel := nn.NewParameter("kernel", kernelTensor)
//	k := kernel.Tensor()
type Parameter[B tensor.Backend] struct {
	name   string                     // Parameter name (e.g., "kernel", "bn.scale")
	tensor *tensor.Tensor[float32, B] // The parameter tensor
}

// NewParameter creates a new parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Prefixed returns views of params whose names carry prefix + ".".
// The underlying tensors are shared.
func Prefixed[B tensor.Backend](prefix string, params []*Parameter[B]) []*Parameter[B] {
	out := make([]*Parameter[B], len(params))
	for i, p := range params {
		out[i] = &Parameter[B]{name: prefix + "." + p.name, tensor: p.tensor}
	}
	return out
}

// CountParameters returns the total number of scalar values in params.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	n := 0
	for _, p := range params {
		n += p.tensor.NumElements()
	}
	return n
}
