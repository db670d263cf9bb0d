package resnet

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/featnet/internal/nn"
	"github.com/born-ml/featnet/internal/tensor"
)

// StageSpec declares one stage of the backbone.
type StageSpec struct {
	Variant     BlockVariant
	OutChannels int  // Configured channels; the stage emits OutChannels * expansion
	NumBlocks   int  // Number of residual blocks (>= 1)
	Stride      int  // Stride of the first block (>= 1)
	Dilate      bool // Trade the stride for dilation in the following blocks
}

// BackboneState is threaded from one stage to the next during construction.
type BackboneState struct {
	InChannels int // Channels entering the next stage
	Dilation   int // Dilation used by non-first blocks of the next stage
}

// StageOptions carries the backbone-wide block settings.
type StageOptions struct {
	Groups    int
	BaseWidth int
}

// Stage is a run of residual blocks.
type Stage[B tensor.Backend] struct {
	spec   StageSpec
	blocks []Block[B]
}

// BuildStage constructs the blocks of one stage and returns the state for
// the next stage.
//
// If spec.Dilate is set, the dilation grows by spec.Stride and the first
// block runs at stride 1. The first block uses the dilation in effect before
// the stage and projects its identity when the stride or the channel count
// changes; the remaining blocks use stride 1 and the updated dilation.
func BuildStage[B tensor.Backend](state BackboneState, spec StageSpec, opts StageOptions, rng *rand.Rand, backend B) (*Stage[B], BackboneState, error) {
	if !spec.Variant.valid() {
		return nil, state, nn.NewConfigError("stage", "Variant", spec.Variant, "unknown block variant")
	}
	if spec.NumBlocks < 1 {
		return nil, state, nn.NewConfigError("stage", "NumBlocks", spec.NumBlocks, "must be >= 1")
	}
	if spec.Stride < 1 {
		return nil, state, nn.NewConfigError("stage", "Stride", spec.Stride, "must be >= 1")
	}
	if state.Dilation < 1 {
		state.Dilation = 1
	}

	next := state
	previousDilation := state.Dilation
	stride := spec.Stride
	if spec.Dilate {
		next.Dilation *= stride
		stride = 1
	}

	expansion := spec.Variant.Expansion()
	outChannels := spec.OutChannels * expansion

	stage := &Stage[B]{spec: spec, blocks: make([]Block[B], 0, spec.NumBlocks)}

	first, err := NewBlock(spec.Variant, BlockConfig{
		InChannels:    state.InChannels,
		OutChannels:   spec.OutChannels,
		Stride:        stride,
		Groups:        opts.Groups,
		BaseWidth:     opts.BaseWidth,
		Dilation:      previousDilation,
		HasDownsample: NeedsDownsample(stride, state.InChannels, spec.OutChannels, expansion),
	}, rng, backend)
	if err != nil {
		return nil, state, fmt.Errorf("block 0: %w", err)
	}
	stage.blocks = append(stage.blocks, first)

	for i := 1; i < spec.NumBlocks; i++ {
		block, err := NewBlock(spec.Variant, BlockConfig{
			InChannels:  outChannels,
			OutChannels: spec.OutChannels,
			Stride:      1,
			Groups:      opts.Groups,
			BaseWidth:   opts.BaseWidth,
			Dilation:    next.Dilation,
		}, rng, backend)
		if err != nil {
			return nil, state, fmt.Errorf("block %d: %w", i, err)
		}
		stage.blocks = append(stage.blocks, block)
	}

	next.InChannels = outChannels
	return stage, next, nil
}

// Forward applies the blocks in order.
func (s *Stage[B]) Forward(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	out := x
	for i, block := range s.blocks {
		var err error
		out, err = block.Forward(out)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
	}
	return out, nil
}

// Parameters returns the parameters of all blocks, prefixed by block index.
func (s *Stage[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for i, block := range s.blocks {
		params = append(params, nn.Prefixed(fmt.Sprintf("block%d", i), block.Parameters())...)
	}
	return params
}

// Blocks returns the blocks of the stage.
func (s *Stage[B]) Blocks() []Block[B] {
	return s.blocks
}

// Spec returns the stage declaration.
func (s *Stage[B]) Spec() StageSpec {
	return s.spec
}

// OutChannels returns the number of channels the stage emits.
func (s *Stage[B]) OutChannels() int {
	return s.spec.OutChannels * s.spec.Variant.Expansion()
}

// Stride returns the spatial reduction of the stage (1 when dilated).
func (s *Stage[B]) Stride() int {
	if s.spec.Dilate {
		return 1
	}
	return s.spec.Stride
}

// SetTraining switches all batch norms of the stage.
func (s *Stage[B]) SetTraining(training bool) {
	for _, block := range s.blocks {
		block.SetTraining(training)
	}
}
