//go:build !windows

package webgpu

import (
	"testing"

	"github.com/born-ml/featnet/internal/tensor"
	"github.com/stretchr/testify/assert"
)

func TestNew_Unavailable(t *testing.T) {
	b, err := New()
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, IsAvailable())
}

func TestStub_Panics(t *testing.T) {
	var b Backend
	x := tensor.MustNewRaw(tensor.Shape{1, 1, 1, 1}, tensor.Float32, tensor.CPU)
	assert.Equal(t, tensor.WebGPU, b.Device())
	assert.PanicsWithValue(t, ErrUnavailable, func() { b.ReLU(x) })
}
