package fpn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/featnet/internal/nn"
	"github.com/born-ml/featnet/internal/tensor"
)

// SimplePyramidSlope is the negative slope of the SimplePyramid activations.
const SimplePyramidSlope = 0.2

// SimplePyramid derives a three-level pyramid from a single feature map.
//
// For x [N, H, W, C] it returns [x, out1, out2] where
//
//	out1 = down(x, 2C)    [N, H/2, W/2, 2C]
//	out2 = down(out1, 4C) [N, H/4, W/4, 4C]
//	down = 3x3 stride-2 conv -> BN -> leaky relu -> 1x1 conv -> BN -> leaky relu
//
// Its outputs have the widths the default Network expects for C = 32.
type SimplePyramid[B tensor.Backend] struct {
	channels int
	stages   [2]*nn.Sequential[B]
}

// NewSimplePyramid constructs a SimplePyramid for inputs with the given channels.
func NewSimplePyramid[B tensor.Backend](channels int, rng *rand.Rand, backend B) (*SimplePyramid[B], error) {
	if channels <= 0 {
		return nil, nn.NewConfigError("simple pyramid", "channels", channels, "must be positive")
	}

	p := &SimplePyramid[B]{channels: channels}
	in := channels
	for i := range p.stages {
		out := in * 2
		down, err := nn.NewConvBNAct[B](nn.Conv2DConfig{
			InChannels: in, OutChannels: out, KernelH: 3, KernelW: 3, Stride: 2, Padding: 1,
		}, nn.BatchNormConfig{}, nn.NewLeakyReLU[B](SimplePyramidSlope), rng, backend)
		if err != nil {
			return nil, err
		}
		mix, err := nn.NewConvBNAct[B](nn.Conv2DConfig{
			InChannels: out, OutChannels: out, KernelH: 1, KernelW: 1,
		}, nn.BatchNormConfig{}, nn.NewLeakyReLU[B](SimplePyramidSlope), rng, backend)
		if err != nil {
			return nil, err
		}
		p.stages[i] = nn.NewSequential[B](down, mix)
		in = out
	}
	return p, nil
}

// Forward returns [x, out1, out2].
func (p *SimplePyramid[B]) Forward(x *tensor.Tensor[float32, B]) ([]*tensor.Tensor[float32, B], error) {
	if err := nn.CheckNHWC("simple pyramid", x.Shape(), p.channels); err != nil {
		return nil, err
	}

	levels := []*tensor.Tensor[float32, B]{x}
	cur := x
	for i, stage := range p.stages {
		var err error
		cur, err = stage.Forward(cur)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i+1, err)
		}
		levels = append(levels, cur)
	}
	return levels, nil
}

// Parameters returns the parameters of both downsampling stages.
func (p *SimplePyramid[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for i, stage := range p.stages {
		params = append(params, nn.Prefixed(fmt.Sprintf("level%d", i+1), stage.Parameters())...)
	}
	return params
}

// InChannels returns the channel count of the input map.
func (p *SimplePyramid[B]) InChannels() int {
	return p.channels
}

// OutChannels returns C, 2C and 4C.
func (p *SimplePyramid[B]) OutChannels() []int {
	return []int{p.channels, 2 * p.channels, 4 * p.channels}
}

// SetTraining switches all batch norms.
func (p *SimplePyramid[B]) SetTraining(training bool) {
	for _, stage := range p.stages {
		for i := 0; i < stage.Len(); i++ {
			if m, ok := stage.Module(i).(interface{ SetTraining(bool) }); ok {
				m.SetTraining(training)
			}
		}
	}
}

// Summary returns a short description of the pyramid.
func (p *SimplePyramid[B]) Summary() string {
	return fmt.Sprintf("simple pyramid: channels=%v, leaky_relu=%g\nparameters: %d",
		p.OutChannels(), SimplePyramidSlope, nn.CountParameters(p.Parameters()))
}
