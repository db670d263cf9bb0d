package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/featnet/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input. The first error
// stops the chain and is returned wrapped with the failing position.
//
// Example:
//
//	stem := nn.NewSequential[B](conv, bn, nn.NewReLU[B]())
//	out, err := stem.Forward(x)
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a new Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{
		modules: modules,
	}
}

// Forward applies all modules in sequence.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	output := input

	for i, module := range s.modules {
		var err error
		output, err = module.Forward(output)
		if err != nil {
			return nil, fmt.Errorf("sequential[%d]: %w", i, err)
		}
	}

	return output, nil
}

// Parameters returns all parameters from all modules, prefixed by position.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]

	for i, module := range s.modules {
		params = append(params, Prefixed(fmt.Sprintf("%d", i), module.Parameters())...)
	}

	return params
}

// Add appends a module to the sequence.
func (s *Sequential[B]) Add(module Module[B]) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
// Panics if index is out of range.
func (s *Sequential[B]) Module(index int) Module[B] {
	return s.modules[index]
}

// String returns a string representation of the container.
func (s *Sequential[B]) String() string {
	var sb strings.Builder
	sb.WriteString("Sequential(")
	for i, m := range s.modules {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%v", m)
	}
	sb.WriteString(")")
	return sb.String()
}
