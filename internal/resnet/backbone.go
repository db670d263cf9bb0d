package resnet

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/born-ml/featnet/internal/nn"
	"github.com/born-ml/featnet/internal/tensor"
)

// Config describes a residual backbone.
type Config struct {
	ImageChannels int         // Channels of the input image
	InChannels    int         // Channels produced by the stem
	Groups        int         // Feature groups of bottleneck 3x3 convolutions
	WidthPerGroup int         // Base width of bottleneck blocks
	StemKernel    int         // Stem kernel size (padding is StemKernel/2)
	StemStride    int         // Stem stride
	Stages        []StageSpec // Stages, finest first
}

// DefaultStages returns the three bottleneck stages [3, 4, 6] with widths
// 1x, 2x and 4x inChannels and strides 1, 2, 2.
func DefaultStages(inChannels int) []StageSpec {
	return []StageSpec{
		{Variant: BottleneckVariant, OutChannels: inChannels, NumBlocks: 3, Stride: 1},
		{Variant: BottleneckVariant, OutChannels: inChannels * 2, NumBlocks: 4, Stride: 2},
		{Variant: BottleneckVariant, OutChannels: inChannels * 4, NumBlocks: 6, Stride: 2},
	}
}

// DefaultConfig returns the default backbone: RGB input, 32 stem channels,
// 7x7 stride-3 stem and DefaultStages(32).
func DefaultConfig() Config {
	return Config{
		ImageChannels: 3,
		InChannels:    32,
		Groups:        1,
		WidthPerGroup: 64,
		StemKernel:    7,
		StemStride:    3,
		Stages:        DefaultStages(32),
	}
}

// Validate checks the backbone-wide fields. Per-stage and per-block checks
// run during construction.
func (c Config) Validate() error {
	switch {
	case c.ImageChannels <= 0:
		return nn.NewConfigError("backbone", "ImageChannels", c.ImageChannels, "must be positive")
	case c.InChannels <= 0:
		return nn.NewConfigError("backbone", "InChannels", c.InChannels, "must be positive")
	case c.Groups < 1:
		return nn.NewConfigError("backbone", "Groups", c.Groups, "must be >= 1")
	case c.WidthPerGroup <= 0:
		return nn.NewConfigError("backbone", "WidthPerGroup", c.WidthPerGroup, "must be positive")
	case c.StemKernel <= 0:
		return nn.NewConfigError("backbone", "StemKernel", c.StemKernel, "must be positive")
	case c.StemStride < 1:
		return nn.NewConfigError("backbone", "StemStride", c.StemStride, "must be >= 1")
	case len(c.Stages) == 0:
		return nn.NewConfigError("backbone", "Stages", 0, "at least one stage is required")
	}
	return nil
}

// Backbone is a stem followed by residual stages. Each stage consumes the
// previous stage's output, and Forward returns one feature map per stage.
//
// Example:
//
//	bb, err := resnet.New(resnet.DefaultConfig(), rng, backend)
//	feats, err := bb.Forward(x) // x: [2, 96, 96, 3]
//	// feats: [2,32,32,128], [2,16,16,256], [2,8,8,512]
type Backbone[B tensor.Backend] struct {
	cfg    Config
	stem   *nn.ConvBNAct[B]
	stages []*Stage[B]
}

// New constructs a backbone. All configuration errors are reported here.
func New[B tensor.Backend](cfg Config, rng *rand.Rand, backend B) (*Backbone[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stem, err := nn.NewConvBNAct[B](nn.Conv2DConfig{
		InChannels:  cfg.ImageChannels,
		OutChannels: cfg.InChannels,
		KernelH:     cfg.StemKernel,
		KernelW:     cfg.StemKernel,
		Stride:      cfg.StemStride,
		Padding:     cfg.StemKernel / 2,
		Init:        nn.InitKaimingNormal,
	}, nn.BatchNormConfig{}, nn.NewReLU[B](), rng, backend)
	if err != nil {
		return nil, fmt.Errorf("stem: %w", err)
	}

	bb := &Backbone[B]{cfg: cfg, stem: stem}

	state := BackboneState{InChannels: cfg.InChannels, Dilation: 1}
	opts := StageOptions{Groups: cfg.Groups, BaseWidth: cfg.WidthPerGroup}
	for i, spec := range cfg.Stages {
		var stage *Stage[B]
		stage, state, err = BuildStage(state, spec, opts, rng, backend)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i+1, err)
		}
		bb.stages = append(bb.stages, stage)
	}

	return bb, nil
}

// Forward runs the stem and all stages on x [N, H, W, ImageChannels].
func (bb *Backbone[B]) Forward(x *tensor.Tensor[float32, B]) ([]*tensor.Tensor[float32, B], error) {
	if err := nn.CheckNHWC("backbone", x.Shape(), bb.cfg.ImageChannels); err != nil {
		return nil, err
	}

	out, err := bb.stem.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("stem: %w", err)
	}

	features := make([]*tensor.Tensor[float32, B], 0, len(bb.stages))
	for i, stage := range bb.stages {
		out, err = stage.Forward(out)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i+1, err)
		}
		features = append(features, out)
	}
	return features, nil
}

// Parameters returns the stem and stage parameters.
func (bb *Backbone[B]) Parameters() []*nn.Parameter[B] {
	params := nn.Prefixed("stem", bb.stem.Parameters())
	for i, stage := range bb.stages {
		params = append(params, nn.Prefixed(fmt.Sprintf("stage%d", i+1), stage.Parameters())...)
	}
	return params
}

// InChannels returns the number of image channels Forward expects.
func (bb *Backbone[B]) InChannels() int {
	return bb.cfg.ImageChannels
}

// OutChannels returns the channel count of every stage output.
func (bb *Backbone[B]) OutChannels() []int {
	out := make([]int, len(bb.stages))
	for i, stage := range bb.stages {
		out[i] = stage.OutChannels()
	}
	return out
}

// Strides returns the cumulative spatial reduction of every stage output
// relative to the input image.
func (bb *Backbone[B]) Strides() []int {
	strides := make([]int, len(bb.stages))
	s := bb.cfg.StemStride
	for i, stage := range bb.stages {
		s *= stage.Stride()
		strides[i] = s
	}
	return strides
}

// Stages returns the constructed stages.
func (bb *Backbone[B]) Stages() []*Stage[B] {
	return bb.stages
}

// Config returns the backbone configuration.
func (bb *Backbone[B]) Config() Config {
	return bb.cfg
}

// SetTraining switches every batch norm between batch and running statistics.
func (bb *Backbone[B]) SetTraining(training bool) {
	bb.stem.SetTraining(training)
	for _, stage := range bb.stages {
		stage.SetTraining(training)
	}
}

// Summary returns a multi-line description of the architecture.
func (bb *Backbone[B]) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "stem: %v\n", bb.stem.Conv)
	strides := bb.Strides()
	for i, stage := range bb.stages {
		spec := stage.Spec()
		fmt.Fprintf(&sb, "stage%d: %d x %s, channels=%d, stride=%d, dilate=%v, out=%d, total_stride=%d\n",
			i+1, spec.NumBlocks, spec.Variant, spec.OutChannels, spec.Stride, spec.Dilate, stage.OutChannels(), strides[i])
	}
	fmt.Fprintf(&sb, "parameters: %d", nn.CountParameters(bb.Parameters()))
	return sb.String()
}
