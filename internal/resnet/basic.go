package resnet

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/featnet/internal/nn"
	"github.com/born-ml/featnet/internal/tensor"
)

// BasicBlock is the two-convolution residual block (expansion 1).
//
//	out = relu(bn1(conv1(x)))      3x3, stride
//	out = bn2(conv2(out))          3x3
//	out = relu(out + identity)     identity = downsample(x) or x
type BasicBlock[B tensor.Backend] struct {
	cfg BlockConfig

	conv1      *nn.ConvBNAct[B]
	conv2      *nn.ConvBNAct[B]
	downsample *nn.ConvBNAct[B] // nil when the identity is used as-is
}

// NewBasicBlock creates a BasicBlock.
//
// Returns ErrConfig unless Groups == 1 and BaseWidth == 64, and
// ErrUnsupportedFeature for Dilation > 1.
func NewBasicBlock[B tensor.Backend](cfg BlockConfig, rng *rand.Rand, backend B) (*BasicBlock[B], error) {
	if err := cfg.Validate(BasicBlockVariant); err != nil {
		return nil, err
	}

	conv1, err := nn.NewConvBNAct[B](conv3x3(cfg.InChannels, cfg.OutChannels, cfg.Stride, 1, 1),
		nn.BatchNormConfig{}, nn.NewReLU[B](), rng, backend)
	if err != nil {
		return nil, err
	}
	conv2, err := nn.NewConvBNAct[B](conv3x3(cfg.OutChannels, cfg.OutChannels, 1, 1, 1),
		nn.BatchNormConfig{}, nil, rng, backend)
	if err != nil {
		return nil, err
	}

	block := &BasicBlock[B]{cfg: cfg, conv1: conv1, conv2: conv2}
	if cfg.HasDownsample {
		block.downsample, err = newDownsample(cfg.InChannels, cfg.OutChannels, cfg.Stride, rng, backend)
		if err != nil {
			return nil, err
		}
	}
	return block, nil
}

// Forward applies the block to x [N, H, W, InChannels].
func (b *BasicBlock[B]) Forward(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	if err := nn.CheckNHWC("basic_block", x.Shape(), b.cfg.InChannels); err != nil {
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
	return residual(out, x, b.downsample)
}

// Parameters returns all block parameters.
func (b *BasicBlock[B]) Parameters() []*nn.Parameter[B] {
	params := nn.Prefixed("conv1", b.conv1.Parameters())
	params = append(params, nn.Prefixed("conv2", b.conv2.Parameters())...)
	if b.downsample != nil {
		params = append(params, nn.Prefixed("downsample", b.downsample.Parameters())...)
	}
	return params
}

// OutChannels returns OutChannels (expansion 1).
func (b *BasicBlock[B]) OutChannels() int {
	return b.cfg.OutChannels
}

// HasDownsample reports whether the identity is projected.
func (b *BasicBlock[B]) HasDownsample() bool {
	return b.downsample != nil
}

// SetTraining switches all batch norms of the block.
func (b *BasicBlock[B]) SetTraining(training bool) {
	b.conv1.SetTraining(training)
	b.conv2.SetTraining(training)
	if b.downsample != nil {
		b.downsample.SetTraining(training)
	}
}

// String returns a short description of the block.
func (b *BasicBlock[B]) String() string {
	return fmt.Sprintf("BasicBlock(%d->%d, stride=%d, downsample=%v)",
		b.cfg.InChannels, b.OutChannels(), b.cfg.Stride, b.HasDownsample())
}
