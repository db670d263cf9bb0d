package resnet

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/featnet/internal/nn"
	"github.com/born-ml/featnet/internal/tensor"
)

// Bottleneck is the three-convolution residual block (expansion 4).
//
//	out = relu(bn1(conv1(x)))      1x1 reduce to width
//	out = relu(bn2(conv2(out)))    3x3 grouped, dilated, strided
//	out = bn3(conv3(out))          1x1 expand to 4*OutChannels
//	out = relu(out + identity)     identity = downsample(x) or x
//
// width = floor(OutChannels * BaseWidth / 64) * Groups.
type Bottleneck[B tensor.Backend] struct {
	cfg   BlockConfig
	width int

	conv1      *nn.ConvBNAct[B]
	conv2      *nn.ConvBNAct[B]
	conv3      *nn.ConvBNAct[B]
	downsample *nn.ConvBNAct[B]
}

func bottleneckWidth(cfg BlockConfig) int {
	return cfg.OutChannels * cfg.BaseWidth / 64 * cfg.Groups
}

// NewBottleneck creates a Bottleneck block.
func NewBottleneck[B tensor.Backend](cfg BlockConfig, rng *rand.Rand, backend B) (*Bottleneck[B], error) {
	if err := cfg.Validate(BottleneckVariant); err != nil {
		return nil, err
	}

	width := bottleneckWidth(cfg)
	out := cfg.OutChannels * BottleneckVariant.Expansion()

	conv1, err := nn.NewConvBNAct[B](conv1x1(cfg.InChannels, width), nn.BatchNormConfig{}, nn.NewReLU[B](), rng, backend)
	if err != nil {
		return nil, err
	}
	conv2, err := nn.NewConvBNAct[B](conv3x3(width, width, cfg.Stride, cfg.Groups, cfg.Dilation),
		nn.BatchNormConfig{}, nn.NewReLU[B](), rng, backend)
	if err != nil {
		return nil, err
	}
	conv3, err := nn.NewConvBNAct[B](conv1x1(width, out), nn.BatchNormConfig{}, nil, rng, backend)
	if err != nil {
		return nil, err
	}

	block := &Bottleneck[B]{cfg: cfg, width: width, conv1: conv1, conv2: conv2, conv3: conv3}
	if cfg.HasDownsample {
		block.downsample, err = newDownsample(cfg.InChannels, out, cfg.Stride, rng, backend)
		if err != nil {
			return nil, err
		}
	}
	return block, nil
}

// Forward applies the block to x [N, H, W, InChannels].
func (b *Bottleneck[B]) Forward(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	if err := nn.CheckNHWC("bottleneck", x.Shape(), b.cfg.InChannels); err != nil {
		return nil, err
	}

	out, err := b.conv1.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("conv1: %w", err)
	}
	out, err = b.conv2.Forward(out)
	if err != nil {
		return nil, fmt.Errorf("conv2: %w", err)
	}
	out, err = b.conv3.Forward(out)
	if err != nil {
		return nil, fmt.Errorf("conv3: %w", err)
	}
	return residual(out, x, b.downsample)
}

// Parameters returns all block parameters.
func (b *Bottleneck[B]) Parameters() []*nn.Parameter[B] {
	params := nn.Prefixed("conv1", b.conv1.Parameters())
	params = append(params, nn.Prefixed("conv2", b.conv2.Parameters())...)
	params = append(params, nn.Prefixed("conv3", b.conv3.Parameters())...)
	if b.downsample != nil {
		params = append(params, nn.Prefixed("downsample", b.downsample.Parameters())...)
	}
	return params
}

// OutChannels returns 4 * OutChannels.
func (b *Bottleneck[B]) OutChannels() int {
	return b.cfg.OutChannels * BottleneckVariant.Expansion()
}

// Width returns the reduced width of the inner 3x3 convolution.
func (b *Bottleneck[B]) Width() int {
	return b.width
}

// HasDownsample reports whether the identity is projected.
func (b *Bottleneck[B]) HasDownsample() bool {
	return b.downsample != nil
}

// SetTraining switches all batch norms of the block.
func (b *Bottleneck[B]) SetTraining(training bool) {
	b.conv1.SetTraining(training)
	b.conv2.SetTraining(training)
	b.conv3.SetTraining(training)
	if b.downsample != nil {
		b.downsample.SetTraining(training)
	}
}

// String returns a short description of the block.
func (b *Bottleneck[B]) String() string {
	return fmt.Sprintf("Bottleneck(%d->%d->%d, stride=%d, groups=%d, dilation=%d, downsample=%v)",
		b.cfg.InChannels, b.width, b.OutChannels(), b.cfg.Stride, b.cfg.Groups, b.cfg.Dilation, b.HasDownsample())
}
