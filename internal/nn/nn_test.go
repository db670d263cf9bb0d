package nn

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/featnet/internal/backend/cpu"
	"github.com/born-ml/featnet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Backend = *cpu.CPUBackend

func newRNG() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestErrors_Categories(t *testing.T) {
	err := NewConfigError("BasicBlock", "Groups", 2, "must be 1")
	assert.True(t, errors.Is(err, ErrConfig))
	assert.False(t, errors.Is(err, ErrUnsupportedFeature))
	assert.Contains(t, err.Error(), "BasicBlock")

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "Groups", cfgErr.Field)
	assert.Equal(t, 2, cfgErr.Value)

	err = NewUnsupportedError("BasicBlock", "Dilation", 2, "dilation > 1 not supported")
	assert.True(t, errors.Is(err, ErrUnsupportedFeature))
	assert.False(t, errors.Is(err, ErrConfig))

	err = NewShapeError("fpn", tensor.Shape{2, 8, 8, 4}, tensor.Shape{2, 16, 16, 4}, "not a 2x level")
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	assert.Contains(t, err.Error(), "[2 16 16 4]")
}

func TestCheckNHWC(t *testing.T) {
	assert.NoError(t, CheckNHWC("op", tensor.Shape{1, 2, 2, 3}, 3))
	assert.NoError(t, CheckNHWC("op", tensor.Shape{1, 2, 2, 3}, -1))
	assert.ErrorIs(t, CheckNHWC("op", tensor.Shape{2, 2, 3}, 3), ErrShapeMismatch)
	assert.ErrorIs(t, CheckNHWC("op", tensor.Shape{1, 2, 2, 4}, 3), ErrShapeMismatch)
}

func TestXavierUniform_Bounds(t *testing.T) {
	backend := cpu.New()
	w := XavierUniform(27, 54, tensor.Shape{3, 3, 3, 6}, newRNG(), backend)

	bound := float32(math.Sqrt(6.0 / 81.0))
	for _, v := range w.Data() {
		assert.LessOrEqual(t, v, bound)
		assert.GreaterOrEqual(t, v, -bound)
	}
}

func TestKaimingNormal_Truncated(t *testing.T) {
	backend := cpu.New()
	fanOut := 7 * 7 * 64
	w := KaimingNormal(fanOut, tensor.Shape{7, 7, 8, 64}, newRNG(), backend)

	std := math.Sqrt(2.0/float64(fanOut)) / 0.87962566103423978
	var sum, sq float64
	for _, v := range w.Data() {
		assert.LessOrEqual(t, math.Abs(float64(v)), 2*std+1e-6)
		sum += float64(v)
		sq += float64(v) * float64(v)
	}
	n := float64(w.NumElements())
	mean := sum / n
	variance := sq/n - mean*mean
	assert.InDelta(t, 0, mean, 0.01)
	assert.InDelta(t, 2.0/float64(fanOut), variance, 0.2*2.0/float64(fanOut))
}

func TestInitializers_Reproducible(t *testing.T) {
	backend := cpu.New()
	a := XavierUniform(4, 4, tensor.Shape{2, 2}, rand.New(rand.NewSource(7)), backend)
	b := XavierUniform(4, 4, tensor.Shape{2, 2}, rand.New(rand.NewSource(7)), backend)
	assert.Equal(t, a.Data(), b.Data())
}

func TestConv2DConfig_Validate(t *testing.T) {
	base := Conv2DConfig{InChannels: 4, OutChannels: 8, KernelH: 3, KernelW: 3}

	tests := []struct {
		name   string
		modify func(*Conv2DConfig)
		ok     bool
	}{
		{"defaults", func(*Conv2DConfig) {}, true},
		{"grouped", func(c *Conv2DConfig) { c.Groups = 4 }, true},
		{"zero in", func(c *Conv2DConfig) { c.InChannels = 0 }, false},
		{"zero out", func(c *Conv2DConfig) { c.OutChannels = 0 }, false},
		{"zero kernel", func(c *Conv2DConfig) { c.KernelW = 0 }, false},
		{"negative stride", func(c *Conv2DConfig) { c.Stride = -1 }, false},
		{"negative padding", func(c *Conv2DConfig) { c.Padding = -1 }, false},
		{"negative dilation", func(c *Conv2DConfig) { c.Dilation = -2 }, false},
		{"groups not dividing in", func(c *Conv2DConfig) { c.Groups = 3 }, false},
		{"groups not dividing out", func(c *Conv2DConfig) { c.InChannels = 6; c.Groups = 3; c.OutChannels = 8 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrConfig)
			}
		})
	}
}

func TestConv2D_ShapesAndParameters(t *testing.T) {
	backend := cpu.New()

	conv, err := NewConv2D(Conv2DConfig{
		InChannels: 3, OutChannels: 8, KernelH: 7, KernelW: 7,
		Stride: 3, Padding: 3, Init: InitKaimingNormal,
	}, newRNG(), backend)
	require.NoError(t, err)

	x := tensor.Ones[float32](tensor.Shape{2, 24, 24, 3}, backend)
	y, err := conv.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 8, 8, 8}, y.Shape())

	params := conv.Parameters()
	require.Len(t, params, 1)
	assert.Equal(t, "kernel", params[0].Name())
	assert.Equal(t, tensor.Shape{7, 7, 3, 8}, params[0].Tensor().Shape())
	assert.Nil(t, conv.Bias())
}

func TestConv2D_BiasIsAdded(t *testing.T) {
	backend := cpu.New()

	conv, err := NewConv2D(Conv2DConfig{InChannels: 2, OutChannels: 3, KernelH: 1, KernelW: 1, UseBias: true}, newRNG(), backend)
	require.NoError(t, err)
	require.Len(t, conv.Parameters(), 2)

	// Zero kernel, so the output is exactly the bias.
	for i := range conv.Kernel().Tensor().Data() {
		conv.Kernel().Tensor().Data()[i] = 0
	}
	copy(conv.Bias().Tensor().Data(), []float32{1, 2, 3})

	y, err := conv.Forward(tensor.Ones[float32](tensor.Shape{1, 2, 2, 2}, backend))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, y.Data()[:3])
	assert.Equal(t, []float32{1, 2, 3}, y.Data()[9:])
}

func TestConv2D_ForwardErrors(t *testing.T) {
	backend := cpu.New()

	conv, err := NewConv2D(Conv2DConfig{InChannels: 3, OutChannels: 4, KernelH: 7, KernelW: 7, Stride: 3}, newRNG(), backend)
	require.NoError(t, err)

	_, err = conv.Forward(tensor.Zeros[float32](tensor.Shape{1, 8, 8, 5}, backend))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = conv.Forward(tensor.Zeros[float32](tensor.Shape{8, 8, 3}, backend))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	// 4x4 input without padding is smaller than the 7x7 window.
	_, err = conv.Forward(tensor.Zeros[float32](tensor.Shape{1, 4, 4, 3}, backend))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestBatchNorm2D_RunningAverageIsIdentityAtInit(t *testing.T) {
	backend := cpu.New()

	bn, err := NewBatchNorm2D(3, BatchNormConfig{}, backend)
	require.NoError(t, err)
	assert.True(t, bn.UseRunningAverage())
	require.Len(t, bn.Parameters(), 4)

	x := tensor.RandUniform[float32](tensor.Shape{2, 4, 4, 3}, -1, 1, newRNG(), backend)
	y, err := bn.Forward(x)
	require.NoError(t, err)

	scale := float32(1 / math.Sqrt(1+DefaultBatchNormEpsilon))
	for i, v := range x.Data() {
		assert.InDelta(t, v*scale, y.Data()[i], 1e-6)
	}
}

func TestBatchNorm2D_TrainingUsesBatchStatistics(t *testing.T) {
	backend := cpu.New()

	bn, err := NewBatchNorm2D(1, BatchNormConfig{Training: true, Momentum: 0.5}, backend)
	require.NoError(t, err)

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 2, 2, 1}, backend)
	require.NoError(t, err)

	y, err := bn.Forward(x)
	require.NoError(t, err)

	// mean 2.5, biased variance 1.25
	std := math.Sqrt(1.25 + DefaultBatchNormEpsilon)
	for i, v := range []float64{1, 2, 3, 4} {
		assert.InDelta(t, (v-2.5)/std, float64(y.Data()[i]), 1e-5)
	}

	assert.InDelta(t, 1.25, float64(bn.RunningMean.Tensor().Data()[0]), 1e-6)
	assert.InDelta(t, 1.125, float64(bn.RunningVar.Tensor().Data()[0]), 1e-6)
}

func TestBatchNorm2D_Errors(t *testing.T) {
	backend := cpu.New()

	_, err := NewBatchNorm2D(0, BatchNormConfig{}, backend)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewBatchNorm2D(4, BatchNormConfig{Momentum: 1.5}, backend)
	assert.ErrorIs(t, err, ErrConfig)

	bn, err := NewBatchNorm2D(4, BatchNormConfig{}, backend)
	require.NoError(t, err)
	_, err = bn.Forward(tensor.Zeros[float32](tensor.Shape{1, 2, 2, 3}, backend))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestActivations(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{-2, -0.5, 0, 1.5}, tensor.Shape{1, 1, 2, 2}, backend)
	require.NoError(t, err)

	y, err := NewReLU[Backend]().Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 1.5}, y.Data())

	y, err = NewLeakyReLU[Backend](0.2).Forward(x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{-0.4, -0.1, 0, 1.5}, y.Data(), 1e-6)

	assert.Empty(t, NewReLU[Backend]().Parameters())
	assert.Equal(t, "LeakyReLU(slope=0.2)", NewLeakyReLU[Backend](0.2).String())
}

func TestSequential_ChainsAndPrefixes(t *testing.T) {
	backend := cpu.New()

	conv, err := NewConv2D(Conv2DConfig{InChannels: 2, OutChannels: 4, KernelH: 3, KernelW: 3, Padding: 1}, newRNG(), backend)
	require.NoError(t, err)
	bn, err := NewBatchNorm2D(4, BatchNormConfig{}, backend)
	require.NoError(t, err)

	seq := NewSequential[Backend](conv, bn, NewReLU[Backend]())
	assert.Equal(t, 3, seq.Len())

	y, err := seq.Forward(tensor.Ones[float32](tensor.Shape{1, 5, 5, 2}, backend))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 5, 5, 4}, y.Shape())
	for _, v := range y.Data() {
		assert.GreaterOrEqual(t, v, float32(0))
	}

	names := make([]string, 0)
	for _, p := range seq.Parameters() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"0.kernel", "1.scale", "1.bias", "1.mean", "1.var"}, names)
	assert.Equal(t, 3*3*2*4+4*4, CountParameters(seq.Parameters()))

	_, err = seq.Forward(tensor.Ones[float32](tensor.Shape{1, 5, 5, 3}, backend))
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.Contains(t, err.Error(), "sequential[0]")
}

func TestConvBNAct(t *testing.T) {
	backend := cpu.New()

	block, err := NewConvBNAct[Backend](
		Conv2DConfig{InChannels: 4, OutChannels: 8, KernelH: 3, KernelW: 3, Stride: 2, Padding: 1},
		BatchNormConfig{},
		NewLeakyReLU[Backend](0.2),
		newRNG(), backend,
	)
	require.NoError(t, err)
	assert.Equal(t, 8, block.OutChannels())

	y, err := block.Forward(tensor.RandUniform[float32](tensor.Shape{2, 8, 8, 4}, -1, 1, newRNG(), backend))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 4, 4, 8}, y.Shape())

	params := block.Parameters()
	require.Len(t, params, 5)
	assert.Equal(t, "conv.kernel", params[0].Name())
	assert.Equal(t, "bn.var", params[4].Name())

	_, err = NewConvBNAct[Backend](Conv2DConfig{InChannels: 4, OutChannels: 6, KernelH: 1, KernelW: 1, Groups: 4}, BatchNormConfig{}, nil, newRNG(), backend)
	assert.ErrorIs(t, err, ErrConfig)
}
