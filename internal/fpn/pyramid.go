package fpn

import (
	"github.com/born-ml/featnet/internal/tensor"
)

// Pyramid is an ordered set of feature maps, finest first.
type Pyramid[B tensor.Backend] struct {
	levels []*tensor.Tensor[float32, B]
}

// NewPyramid wraps levels, finest first.
func NewPyramid[B tensor.Backend](levels ...*tensor.Tensor[float32, B]) *Pyramid[B] {
	return &Pyramid[B]{levels: levels}
}

// Len returns the number of levels.
func (p *Pyramid[B]) Len() int {
	return len(p.levels)
}

// Level returns level i (0 is the finest).
// Panics if i is out of range.
func (p *Pyramid[B]) Level(i int) *tensor.Tensor[float32, B] {
	return p.levels[i]
}

// Levels returns all levels.
func (p *Pyramid[B]) Levels() []*tensor.Tensor[float32, B] {
	return p.levels
}

// Shapes returns the shape of every level.
func (p *Pyramid[B]) Shapes() []tensor.Shape {
	shapes := make([]tensor.Shape, len(p.levels))
	for i, l := range p.levels {
		shapes[i] = l.Shape()
	}
	return shapes
}
