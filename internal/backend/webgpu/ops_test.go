//go:build windows

package webgpu

import (
	"math/rand"
	"testing"

	"github.com/born-ml/featnet/internal/backend/cpu"
	"github.com/born-ml/featnet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New()
	if err != nil {
		t.Skipf("WebGPU not available: %v", err)
	}
	t.Cleanup(b.Release)
	return b
}

func randomRaw(shape tensor.Shape, rng *rand.Rand) *tensor.RawTensor {
	r := tensor.MustNewRaw(shape, tensor.Float32, tensor.CPU)
	for i, data := 0, r.AsFloat32(); i < len(data); i++ {
		data[i] = rng.Float32()*2 - 1
	}
	return r
}

func assertClose(t *testing.T, want, got *tensor.RawTensor) {
	t.Helper()
	require.Equal(t, want.Shape(), got.Shape())
	assert.Equal(t, tensor.WebGPU, got.Device())
	w, g := want.AsFloat32(), got.AsFloat32()
	for i := range w {
		if !assert.InDelta(t, w[i], g[i], 1e-4, "element %d", i) {
			return
		}
	}
}

func TestNew(t *testing.T) {
	b := newBackend(t)
	assert.Equal(t, "WebGPU", b.Name())
	assert.Equal(t, tensor.WebGPU, b.Device())
	t.Logf("adapter: %+v", b.AdapterInfo())
}

func TestConv2D_MatchesCPU(t *testing.T) {
	b := newBackend(t)
	host := cpu.New()
	rng := rand.New(rand.NewSource(3))

	tests := []struct {
		name   string
		input  tensor.Shape
		kernel tensor.Shape
		p      tensor.Conv2DParams
	}{
		{"stem", tensor.Shape{1, 21, 21, 3}, tensor.Shape{7, 7, 3, 8}, tensor.Conv2DParams{Stride: 3, Padding: 3, Dilation: 1, Groups: 1}},
		{"pointwise", tensor.Shape{2, 5, 5, 8}, tensor.Shape{1, 1, 8, 4}, tensor.Conv2DParams{Stride: 1, Dilation: 1, Groups: 1}},
		{"grouped dilated", tensor.Shape{1, 9, 9, 4}, tensor.Shape{3, 3, 2, 6}, tensor.Conv2DParams{Stride: 2, Padding: 2, Dilation: 2, Groups: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, k := randomRaw(tt.input, rng), randomRaw(tt.kernel, rng)
			assertClose(t, host.Conv2D(in, k, tt.p), b.Conv2D(in, k, tt.p))
		})
	}
}

func TestElementwise_MatchCPU(t *testing.T) {
	b := newBackend(t)
	host := cpu.New()
	rng := rand.New(rand.NewSource(4))

	x := randomRaw(tensor.Shape{2, 4, 6, 5}, rng)
	y := randomRaw(tensor.Shape{2, 4, 6, 5}, rng)
	vec := func() *tensor.RawTensor { return randomRaw(tensor.Shape{5}, rng) }

	assertClose(t, host.Add(x, y), b.Add(x, y))
	assertClose(t, host.ReLU(x), b.ReLU(x))
	assertClose(t, host.LeakyReLU(x, 0.2), b.LeakyReLU(x, 0.2))
	assertClose(t, host.ResizeNearest(x, 8, 12), b.ResizeNearest(x, 8, 12))

	bias := vec()
	assertClose(t, host.BiasAdd(x, bias), b.BiasAdd(x, bias))

	scale, shift, mean := vec(), vec(), vec()
	variance := host.ReLU(vec())
	assertClose(t, host.BatchNorm(x, scale, shift, mean, variance, 1e-5), b.BatchNorm(x, scale, shift, mean, variance, 1e-5))

	m, v := b.Moments(x)
	wm, wv := host.Moments(x)
	assertClose(t, wm, m)
	assertClose(t, wv, v)
}

func TestShapeMismatch_Panics(t *testing.T) {
	b := newBackend(t)
	a := tensor.MustNewRaw(tensor.Shape{1, 2, 2, 3}, tensor.Float32, tensor.CPU)
	c := tensor.MustNewRaw(tensor.Shape{1, 2, 2, 4}, tensor.Float32, tensor.CPU)

	assert.Panics(t, func() { b.Add(a, c) })
	assert.Panics(t, func() { b.BiasAdd(a, tensor.MustNewRaw(tensor.Shape{4}, tensor.Float32, tensor.CPU)) })
	assert.Panics(t, func() { b.ResizeNearest(a, 0, 2) })
}
