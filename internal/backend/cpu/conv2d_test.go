package cpu

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/featnet/internal/parallel"
	"github.com/born-ml/featnet/internal/tensor"
)

func rawFrom(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), data)
	return r
}

func randomRaw(shape tensor.Shape, rng *rand.Rand) *tensor.RawTensor {
	r := tensor.MustNewRaw(shape, tensor.Float32, tensor.CPU)
	for i := range r.AsFloat32() {
		r.AsFloat32()[i] = float32(rng.Float64()*2 - 1)
	}
	return r
}

// naiveConv2D is the textbook definition used as an oracle.
func naiveConv2D(in, kern *tensor.RawTensor, p tensor.Conv2DParams) ([]float32, tensor.Shape) {
	is, ks := in.Shape(), kern.Shape()
	n, h, w, cin := is[0], is[1], is[2], is[3]
	kh, kw, cing, cout := ks[0], ks[1], ks[2], ks[3]
	coutg := cout / p.Groups
	hout := tensor.ConvOutputSize(h, kh, p.Stride, p.Padding, p.Dilation)
	wout := tensor.ConvOutputSize(w, kw, p.Stride, p.Padding, p.Dilation)

	x, k := in.AsFloat32(), kern.AsFloat32()
	out := make([]float32, n*hout*wout*cout)
	for b := 0; b < n; b++ {
		for oy := 0; oy < hout; oy++ {
			for ox := 0; ox < wout; ox++ {
				for o := 0; o < cout; o++ {
					grp := o / coutg
					var sum float32
					for ky := 0; ky < kh; ky++ {
						for kx := 0; kx < kw; kx++ {
							iy := oy*p.Stride - p.Padding + ky*p.Dilation
							ix := ox*p.Stride - p.Padding + kx*p.Dilation
							if iy < 0 || iy >= h || ix < 0 || ix >= w {
								continue
							}
							for ci := 0; ci < cing; ci++ {
								sum += x[((b*h+iy)*w+ix)*cin+grp*cing+ci] * k[((ky*kw+kx)*cing+ci)*cout+o]
							}
						}
					}
					out[((b*hout+oy)*wout+ox)*cout+o] = sum
				}
			}
		}
	}
	return out, tensor.Shape{n, hout, wout, cout}
}

func TestConv2D_BasicForward(t *testing.T) {
	backend := New()

	// 1 2 3
	// 4 5 6
	// 7 8 9
	input := rawFrom(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, tensor.Shape{1, 3, 3, 1})

	// 1 0
	// 0 1
	kernel := rawFrom(t, []float32{1, 0, 0, 1}, tensor.Shape{2, 2, 1, 1})

	output := backend.Conv2D(input, kernel, tensor.Conv2DParams{Stride: 1, Padding: 0, Dilation: 1, Groups: 1})

	assert.Equal(t, tensor.Shape{1, 2, 2, 1}, output.Shape())
	assert.Equal(t, []float32{6, 8, 12, 14}, output.AsFloat32())
}

func TestConv2D_PaddingKeepsSize(t *testing.T) {
	backend := New()

	input := rawFrom(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, tensor.Shape{1, 3, 3, 1})
	ones := rawFrom(t, []float32{1, 1, 1, 1, 1, 1, 1, 1, 1}, tensor.Shape{3, 3, 1, 1})

	output := backend.Conv2D(input, ones, tensor.Conv2DParams{Stride: 1, Padding: 1, Dilation: 1, Groups: 1})

	require.Equal(t, tensor.Shape{1, 3, 3, 1}, output.Shape())
	// Corner sees 1,2,4,5; centre sees everything.
	assert.Equal(t, float32(12), output.AsFloat32()[0])
	assert.Equal(t, float32(45), output.AsFloat32()[4])
}

func TestConv2D_MatchesNaive(t *testing.T) {
	tests := []struct {
		name   string
		input  tensor.Shape
		kernel tensor.Shape
		params tensor.Conv2DParams
	}{
		{"1x1", tensor.Shape{2, 5, 5, 4}, tensor.Shape{1, 1, 4, 6}, tensor.Conv2DParams{Stride: 1, Padding: 0, Dilation: 1, Groups: 1}},
		{"1x1 stride 2", tensor.Shape{2, 6, 6, 4}, tensor.Shape{1, 1, 4, 8}, tensor.Conv2DParams{Stride: 2, Padding: 0, Dilation: 1, Groups: 1}},
		{"3x3 stride 2", tensor.Shape{1, 7, 9, 3}, tensor.Shape{3, 3, 3, 5}, tensor.Conv2DParams{Stride: 2, Padding: 1, Dilation: 1, Groups: 1}},
		{"3x3 dilated", tensor.Shape{2, 8, 8, 2}, tensor.Shape{3, 3, 2, 2}, tensor.Conv2DParams{Stride: 1, Padding: 2, Dilation: 2, Groups: 1}},
		{"3x3 grouped", tensor.Shape{1, 6, 6, 8}, tensor.Shape{3, 3, 2, 8}, tensor.Conv2DParams{Stride: 1, Padding: 1, Dilation: 1, Groups: 4}},
		{"7x7 stride 3", tensor.Shape{1, 12, 12, 3}, tensor.Shape{7, 7, 3, 4}, tensor.Conv2DParams{Stride: 3, Padding: 3, Dilation: 1, Groups: 1}},
	}

	rng := rand.New(rand.NewSource(1))
	backend := New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := randomRaw(tt.input, rng)
			kern := randomRaw(tt.kernel, rng)

			got := backend.Conv2D(in, kern, tt.params)
			want, wantShape := naiveConv2D(in, kern, tt.params)

			require.Equal(t, wantShape, got.Shape())
			assert.InDeltaSlice(t, want, got.AsFloat32(), 1e-4)
		})
	}
}

func TestConv2D_ParallelIsBitIdentical(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	in := randomRaw(tensor.Shape{3, 16, 16, 8}, rng)
	kern := randomRaw(tensor.Shape{3, 3, 8, 16}, rng)
	p := tensor.Conv2DParams{Stride: 1, Padding: 1, Dilation: 1, Groups: 1}

	seq := New(WithParallel(parallel.Sequential())).Conv2D(in, kern, p)
	par := New(WithParallel(parallel.Config{Enabled: true, NumWorkers: 8, MinChunkSize: 1})).Conv2D(in, kern, p)

	assert.Equal(t, seq.AsFloat32(), par.AsFloat32())
}

func TestConv2D_InvalidArguments(t *testing.T) {
	backend := New()
	in := tensor.MustNewRaw(tensor.Shape{1, 4, 4, 4}, tensor.Float32, tensor.CPU)
	p := tensor.Conv2DParams{Stride: 1, Padding: 0, Dilation: 1, Groups: 1}

	assert.Panics(t, func() {
		backend.Conv2D(in, tensor.MustNewRaw(tensor.Shape{1, 1, 3, 2}, tensor.Float32, tensor.CPU), p)
	}, "channel mismatch")
	assert.Panics(t, func() {
		backend.Conv2D(in, tensor.MustNewRaw(tensor.Shape{5, 5, 4, 2}, tensor.Float32, tensor.CPU), p)
	}, "kernel larger than input")
	assert.Panics(t, func() {
		g := p
		g.Groups = 3
		backend.Conv2D(in, tensor.MustNewRaw(tensor.Shape{1, 1, 1, 3}, tensor.Float32, tensor.CPU), g)
	}, "groups do not divide channels")
}
