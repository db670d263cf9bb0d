// Package resnet implements the residual backbone of the feature extractor.
//
// A backbone is a 7x7 strided stem followed by an ordered list of stages.
// Each stage is a run of residual blocks (BasicBlock or Bottleneck); the
// first block of a stage may change resolution and channel width, the
// remaining blocks preserve both.
//
// All shapes are resolved at construction from the declared configuration,
// so configuration errors surface before any tensor work.
package resnet

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/born-ml/featnet/internal/nn"
	"github.com/born-ml/featnet/internal/tensor"
)

// BlockVariant selects the residual block type of a stage.
type BlockVariant int

// Supported block variants.
const (
	BasicBlockVariant BlockVariant = iota
	BottleneckVariant
)

// Expansion returns the ratio of block output channels to configured channels.
func (v BlockVariant) Expansion() int {
	if v == BottleneckVariant {
		return 4
	}
	return 1
}

// String returns the variant name as used in configuration files.
func (v BlockVariant) String() string {
	switch v {
	case BasicBlockVariant:
		return "basic"
	case BottleneckVariant:
		return "bottleneck"
	default:
		return fmt.Sprintf("BlockVariant(%d)", int(v))
	}
}

func (v BlockVariant) valid() bool {
	return v == BasicBlockVariant || v == BottleneckVariant
}

// ParseBlockVariant parses "basic" or "bottleneck" (case-insensitive).
func ParseBlockVariant(s string) (BlockVariant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic", "basicblock", "basic_block":
		return BasicBlockVariant, nil
	case "bottleneck":
		return BottleneckVariant, nil
	default:
		return 0, nn.NewConfigError("stage", "block", s, "unknown block variant")
	}
}

// BlockConfig is the static configuration of one residual block.
type BlockConfig struct {
	InChannels    int  // Channels of the block input
	OutChannels   int  // Configured channels; the block emits OutChannels * expansion
	Stride        int  // Stride of the spatial convolution (>= 1)
	Groups        int  // Feature groups of the 3x3 convolution (>= 1)
	BaseWidth     int  // Width per group (> 0)
	Dilation      int  // Dilation of the 3x3 convolution (>= 1)
	HasDownsample bool // Project the identity with a 1x1 strided conv + batch norm
}

// Validate checks the configuration for the given variant.
//
// BasicBlock only supports Groups == 1 and BaseWidth == 64 (ErrConfig) and
// rejects Dilation > 1 (ErrUnsupportedFeature).
func (c BlockConfig) Validate(variant BlockVariant) error {
	component := variant.String()
	switch {
	case !variant.valid():
		return nn.NewConfigError("block", "variant", variant, "unknown block variant")
	case c.InChannels <= 0:
		return nn.NewConfigError(component, "InChannels", c.InChannels, "must be positive")
	case c.OutChannels <= 0:
		return nn.NewConfigError(component, "OutChannels", c.OutChannels, "must be positive")
	case c.Stride < 1:
		return nn.NewConfigError(component, "Stride", c.Stride, "must be >= 1")
	case c.Groups < 1:
		return nn.NewConfigError(component, "Groups", c.Groups, "must be >= 1")
	case c.BaseWidth <= 0:
		return nn.NewConfigError(component, "BaseWidth", c.BaseWidth, "must be positive")
	case c.Dilation < 1:
		return nn.NewConfigError(component, "Dilation", c.Dilation, "must be >= 1")
	}

	if variant == BasicBlockVariant {
		if c.Groups != 1 || c.BaseWidth != 64 {
			return nn.NewConfigError(component, "Groups/BaseWidth", [2]int{c.Groups, c.BaseWidth},
				"basic block only supports groups=1 and base_width=64")
		}
		if c.Dilation > 1 {
			return nn.NewUnsupportedError(component, "Dilation", c.Dilation,
				"dilation > 1 not supported in basic block")
		}
	} else if bottleneckWidth(c) <= 0 {
		return nn.NewConfigError(component, "BaseWidth", c.BaseWidth,
			fmt.Sprintf("reduced width of %d channels is empty", c.OutChannels))
	}

	if !c.HasDownsample && NeedsDownsample(c.Stride, c.InChannels, c.OutChannels, variant.Expansion()) {
		return nn.NewConfigError(component, "HasDownsample", false,
			fmt.Sprintf("identity shortcut cannot map %d channels at stride %d to %d channels",
				c.InChannels, c.Stride, c.OutChannels*variant.Expansion()))
	}
	return nil
}

// NeedsDownsample reports whether a block's identity must be projected.
func NeedsDownsample(stride, inChannels, outChannels, expansion int) bool {
	return stride != 1 || inChannels != outChannels*expansion
}

// Block is a residual block.
type Block[B tensor.Backend] interface {
	nn.Module[B]

	// OutChannels returns the number of channels the block emits.
	OutChannels() int

	// HasDownsample reports whether the identity path is projected.
	HasDownsample() bool

	// SetTraining switches all batch norms of the block.
	SetTraining(training bool)
}

// NewBlock constructs a block of the given variant.
func NewBlock[B tensor.Backend](variant BlockVariant, cfg BlockConfig, rng *rand.Rand, backend B) (Block[B], error) {
	switch variant {
	case BasicBlockVariant:
		return NewBasicBlock(cfg, rng, backend)
	case BottleneckVariant:
		return NewBottleneck(cfg, rng, backend)
	default:
		return nil, nn.NewConfigError("block", "variant", variant, "unknown block variant")
	}
}

// newDownsample builds the 1x1 strided projection applied to the block input.
func newDownsample[B tensor.Backend](inChannels, outChannels, stride int, rng *rand.Rand, backend B) (*nn.ConvBNAct[B], error) {
	return nn.NewConvBNAct[B](nn.Conv2DConfig{
		InChannels:  inChannels,
		OutChannels: outChannels,
		KernelH:     1,
		KernelW:     1,
		Stride:      stride,
		Init:        nn.InitKaimingNormal,
	}, nn.BatchNormConfig{}, nil, rng, backend)
}

// conv3x3 returns a 3x3 convolution with padding equal to the dilation.
func conv3x3(in, out, stride, groups, dilation int) nn.Conv2DConfig {
	return nn.Conv2DConfig{
		InChannels:  in,
		OutChannels: out,
		KernelH:     3,
		KernelW:     3,
		Stride:      stride,
		Padding:     dilation,
		Dilation:    dilation,
		Groups:      groups,
		Init:        nn.InitKaimingNormal,
	}
}

// conv1x1 returns an unpadded 1x1 convolution.
func conv1x1(in, out int) nn.Conv2DConfig {
	return nn.Conv2DConfig{
		InChannels:  in,
		OutChannels: out,
		KernelH:     1,
		KernelW:     1,
		Init:        nn.InitKaimingNormal,
	}
}

// residual adds the (possibly projected) identity to out and applies ReLU.
func residual[B tensor.Backend](out, x *tensor.Tensor[float32, B], downsample *nn.ConvBNAct[B]) (*tensor.Tensor[float32, B], error) {
	identity := x
	if downsample != nil {
		var err error
		identity, err = downsample.Forward(x)
		if err != nil {
			return nil, fmt.Errorf("downsample: %w", err)
		}
	}
	if !out.Shape().Equal(identity.Shape()) {
		return nil, nn.NewShapeError("residual", identity.Shape(), out.Shape(), "identity does not match block output")
	}
	return out.Add(identity).ReLU(), nil
}
