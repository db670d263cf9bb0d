package resnet

import (
	"strings"
	"testing"

	"github.com/born-ml/featnet/internal/backend/cpu"
	"github.com/born-ml/featnet/internal/nn"
	"github.com/born-ml/featnet/internal/parallel"
	"github.com/born-ml/featnet/internal/tensor"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultOpts = StageOptions{Groups: 1, BaseWidth: 64}

func TestBuildStage_Errors(t *testing.T) {
	backend := cpu.New()
	state := BackboneState{InChannels: 8, Dilation: 1}

	_, next, err := BuildStage(state, StageSpec{Variant: BottleneckVariant, OutChannels: 4, NumBlocks: 0, Stride: 1}, defaultOpts, newRNG(), backend)
	assert.ErrorIs(t, err, nn.ErrConfig)
	assert.Equal(t, state, next)

	_, _, err = BuildStage(state, StageSpec{Variant: BlockVariant(9), OutChannels: 4, NumBlocks: 1, Stride: 1}, defaultOpts, newRNG(), backend)
	assert.ErrorIs(t, err, nn.ErrConfig)

	_, _, err = BuildStage(state, StageSpec{Variant: BasicBlockVariant, OutChannels: 8, NumBlocks: 1, Stride: 1},
		StageOptions{Groups: 2, BaseWidth: 64}, newRNG(), backend)
	assert.ErrorIs(t, err, nn.ErrConfig)
}

func TestBuildStage_ThreadsState(t *testing.T) {
	backend := cpu.New()

	stage, next, err := BuildStage(BackboneState{InChannels: 8, Dilation: 1},
		StageSpec{Variant: BottleneckVariant, OutChannels: 4, NumBlocks: 3, Stride: 2}, defaultOpts, newRNG(), backend)
	require.NoError(t, err)

	assert.Equal(t, BackboneState{InChannels: 16, Dilation: 1}, next)
	require.Len(t, stage.Blocks(), 3)
	assert.True(t, stage.Blocks()[0].HasDownsample())
	assert.False(t, stage.Blocks()[1].HasDownsample())
	assert.False(t, stage.Blocks()[2].HasDownsample())
	assert.Equal(t, 16, stage.OutChannels())
	assert.Equal(t, 2, stage.Stride())

	y, err := stage.Forward(randomInput(tensor.Shape{1, 8, 8, 8}, backend))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 4, 4, 16}, y.Shape())
}

func TestBuildStage_NoDownsampleWhenShapesMatch(t *testing.T) {
	backend := cpu.New()

	stage, next, err := BuildStage(BackboneState{InChannels: 16, Dilation: 1},
		StageSpec{Variant: BottleneckVariant, OutChannels: 4, NumBlocks: 2, Stride: 1}, defaultOpts, newRNG(), backend)
	require.NoError(t, err)
	assert.Equal(t, 16, next.InChannels)
	assert.False(t, stage.Blocks()[0].HasDownsample())
}

func TestBuildStage_Dilate(t *testing.T) {
	backend := cpu.New()

	stage, next, err := BuildStage(BackboneState{InChannels: 16, Dilation: 1},
		StageSpec{Variant: BottleneckVariant, OutChannels: 4, NumBlocks: 2, Stride: 2, Dilate: true}, defaultOpts, newRNG(), backend)
	require.NoError(t, err)

	assert.Equal(t, BackboneState{InChannels: 16, Dilation: 2}, next)
	assert.Equal(t, 1, stage.Stride())
	// Stride traded for dilation and channels match: no projection.
	assert.False(t, stage.Blocks()[0].HasDownsample())

	first := stage.Blocks()[0].(*Bottleneck[Backend])
	second := stage.Blocks()[1].(*Bottleneck[Backend])
	assert.Equal(t, 1, first.cfg.Dilation)
	assert.Equal(t, 2, second.cfg.Dilation)

	y, err := stage.Forward(randomInput(tensor.Shape{1, 6, 6, 16}, backend))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 6, 6, 16}, y.Shape())

	// A second dilated stage compounds the dilation.
	_, next, err = BuildStage(next,
		StageSpec{Variant: BottleneckVariant, OutChannels: 4, NumBlocks: 1, Stride: 2, Dilate: true}, defaultOpts, newRNG(), backend)
	require.NoError(t, err)
	assert.Equal(t, 4, next.Dilation)
}

func TestBuildStage_BasicBlockDilation(t *testing.T) {
	backend := cpu.New()
	state := BackboneState{InChannels: 8, Dilation: 1}

	// The first block still runs at the previous dilation.
	_, next, err := BuildStage(state, StageSpec{Variant: BasicBlockVariant, OutChannels: 8, NumBlocks: 1, Stride: 2, Dilate: true}, defaultOpts, newRNG(), backend)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Dilation)

	_, _, err = BuildStage(state, StageSpec{Variant: BasicBlockVariant, OutChannels: 8, NumBlocks: 2, Stride: 2, Dilate: true}, defaultOpts, newRNG(), backend)
	assert.ErrorIs(t, err, nn.ErrUnsupportedFeature)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"image channels", func(c *Config) { c.ImageChannels = 0 }},
		{"in channels", func(c *Config) { c.InChannels = -1 }},
		{"groups", func(c *Config) { c.Groups = 0 }},
		{"width", func(c *Config) { c.WidthPerGroup = 0 }},
		{"stem kernel", func(c *Config) { c.StemKernel = 0 }},
		{"stem stride", func(c *Config) { c.StemStride = 0 }},
		{"no stages", func(c *Config) { c.Stages = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), nn.ErrConfig)
		})
	}
}

func TestNew_StageErrorIsWrapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stages[1].NumBlocks = 0

	_, err := New(cfg, newRNG(), cpu.New())
	require.ErrorIs(t, err, nn.ErrConfig)
	assert.Contains(t, err.Error(), "stage 2")
}

func TestBackbone_DefaultEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("full-size backbone")
	}
	backend := cpu.New()

	bb, err := New(DefaultConfig(), newRNG(), backend)
	require.NoError(t, err)
	assert.Equal(t, []int{128, 256, 512}, bb.OutChannels())
	assert.Equal(t, []int{3, 6, 12}, bb.Strides())
	assert.Equal(t, 3, bb.InChannels())

	feats, err := bb.Forward(randomInput(tensor.Shape{2, 96, 96, 3}, backend))
	require.NoError(t, err)

	got := make([]tensor.Shape, len(feats))
	for i, f := range feats {
		got[i] = f.Shape()
	}
	want := []tensor.Shape{{2, 32, 32, 128}, {2, 16, 16, 256}, {2, 8, 8, 512}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("feature shapes mismatch (-want +got):\n%s", diff)
	}
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.InChannels = 4
	cfg.Stages = []StageSpec{
		{Variant: BottleneckVariant, OutChannels: 4, NumBlocks: 1, Stride: 1},
		{Variant: BottleneckVariant, OutChannels: 8, NumBlocks: 2, Stride: 2},
		{Variant: BasicBlockVariant, OutChannels: 16, NumBlocks: 2, Stride: 2},
	}
	return cfg
}

func TestBackbone_SmallShapesAndParameters(t *testing.T) {
	backend := cpu.New()

	bb, err := New(smallConfig(), newRNG(), backend)
	require.NoError(t, err)
	assert.Equal(t, []int{16, 32, 16}, bb.OutChannels())

	feats, err := bb.Forward(randomInput(tensor.Shape{1, 24, 24, 3}, backend))
	require.NoError(t, err)
	require.Len(t, feats, 3)
	assert.Equal(t, tensor.Shape{1, 8, 8, 16}, feats[0].Shape())
	assert.Equal(t, tensor.Shape{1, 4, 4, 32}, feats[1].Shape())
	assert.Equal(t, tensor.Shape{1, 2, 2, 16}, feats[2].Shape())

	names := make(map[string]bool)
	for _, p := range bb.Parameters() {
		names[p.Name()] = true
	}
	assert.True(t, names["stem.conv.kernel"])
	assert.True(t, names["stage1.block0.downsample.conv.kernel"])
	assert.True(t, names["stage2.block1.conv3.bn.var"])
	assert.False(t, names["stage2.block1.downsample.conv.kernel"])

	summary := bb.Summary()
	assert.True(t, strings.HasPrefix(summary, "stem: Conv2D(in=3, out=4, kernel=(7, 7), stride=3"))
	assert.Contains(t, summary, "stage3: 2 x basic")
}

func TestBackbone_WrongInputChannels(t *testing.T) {
	backend := cpu.New()

	bb, err := New(smallConfig(), newRNG(), backend)
	require.NoError(t, err)

	_, err = bb.Forward(randomInput(tensor.Shape{1, 24, 24, 4}, backend))
	assert.ErrorIs(t, err, nn.ErrShapeMismatch)
}

func TestBackbone_DeterministicAcrossParallelism(t *testing.T) {
	parallelBackend := cpu.New()
	sequentialBackend := cpu.New(cpu.WithParallel(parallel.Sequential()))

	a, err := New(smallConfig(), newRNG(), parallelBackend)
	require.NoError(t, err)
	b, err := New(smallConfig(), newRNG(), sequentialBackend)
	require.NoError(t, err)

	x := randomInput(tensor.Shape{2, 24, 24, 3}, parallelBackend)
	xs := tensor.New[float32, Backend](x.Raw().Clone(), sequentialBackend)

	fa, err := a.Forward(x)
	require.NoError(t, err)
	fb, err := b.Forward(xs)
	require.NoError(t, err)

	for i := range fa {
		assert.Equal(t, fa[i].Data(), fb[i].Data(), "stage %d", i+1)
	}
}
