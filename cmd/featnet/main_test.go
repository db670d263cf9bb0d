package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/featnet/internal/config"
	"github.com/born-ml/featnet/internal/logger"
	"github.com/born-ml/featnet/tensor"
)

// smallConfig keeps the model small enough for unit tests.
func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Seed = 3
	cfg.Workers = 2
	cfg.Model.Backbone.InChannels = 4
	cfg.Model.Backbone.Stages = []config.Stage{
		{Block: "basic", Channels: 4, Blocks: 1, Stride: 1},
		{Block: "bottleneck", Channels: 2, Blocks: 1, Stride: 2},
		{Block: "basic", Channels: 8, Blocks: 1, Stride: 2},
	}
	cfg.Model.FPN.OutChannels = 8
	return cfg
}

func TestDescribe(t *testing.T) {
	r := describe(1, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	assert.Equal(t, 1, r.Level)
	assert.Equal(t, []int{1, 1, 2, 2}, r.Shape)
	assert.InDelta(t, 2.5, r.Mean, 1e-9)
	assert.InDelta(t, 1.118034, r.Std, 1e-6)
	assert.Equal(t, 1.0, r.Min)
	assert.Equal(t, 4.0, r.Max)

	empty := describe(0, tensor.Shape{0, 1, 1, 1}, nil)
	assert.Zero(t, empty.Mean)
}

func TestExecute_CPU(t *testing.T) {
	ctx := logger.WithContext(context.Background(), logger.Nop())

	report, err := execute(ctx, smallConfig(), runRequest{Batch: 2, Height: 24, Width: 24})
	require.NoError(t, err)

	_, err = uuid.Parse(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, "CPU", report.Backend)
	assert.Equal(t, []int{2, 24, 24, 3}, report.Input)
	assert.Positive(t, report.Parameters)

	require.Len(t, report.Features, 3)
	require.Len(t, report.Pyramid, 3)
	assert.Equal(t, []int{2, 8, 8, 4}, report.Features[0].Shape)
	assert.Equal(t, []int{2, 4, 4, 8}, report.Features[1].Shape)
	assert.Equal(t, []int{2, 2, 2, 8}, report.Pyramid[2].Shape)

	var buf bytes.Buffer
	require.NoError(t, report.WriteJSON(&buf))
	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, report.RunID, decoded.RunID)
	assert.Equal(t, report.Pyramid[0].Shape, decoded.Pyramid[0].Shape)

	buf.Reset()
	require.NoError(t, report.WriteText(&buf))
	assert.Contains(t, buf.String(), "pyramid:")
}

func TestExecute_Deterministic(t *testing.T) {
	ctx := context.Background()
	req := runRequest{Batch: 1, Height: 24, Width: 24}

	a, err := execute(ctx, smallConfig(), req)
	require.NoError(t, err)
	b, err := execute(ctx, smallConfig(), req)
	require.NoError(t, err)
	assert.Equal(t, a.Pyramid, b.Pyramid)
}

func TestExecute_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := execute(ctx, smallConfig(), runRequest{Batch: 0, Height: 24, Width: 24})
	assert.Error(t, err)

	cfg := smallConfig()
	cfg.Model.FPN.NumLevels = 2
	_, err = execute(ctx, cfg, runRequest{Batch: 1, Height: 24, Width: 24})
	assert.ErrorContains(t, err, "failed to build extractor")
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "featnet.yaml")

	require.NoError(t, writeDefaultConfig(path, false, true))
	assert.Error(t, writeDefaultConfig(path, false, false))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Model.Backbone.Stages, 3)
	assert.Equal(t, config.Stage{Block: "bottleneck", Channels: 128, Blocks: 6, Stride: 2}, cfg.Model.Backbone.Stages[2])

	require.NoError(t, writeDefaultConfig(path, true, false))
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Model.Backbone.Stages)
}

func TestInspectModel(t *testing.T) {
	info, err := inspectModel(smallConfig(), true)
	require.NoError(t, err)

	assert.Contains(t, info.Summary, "fpn: in=[4 8 8]")
	require.NotEmpty(t, info.Parameters)
	assert.Equal(t, "backbone.stem.conv.kernel", info.Parameters[0].Name)
	assert.Equal(t, []int{7, 7, 3, 4}, info.Parameters[0].Shape)

	total := 0
	for _, p := range info.Parameters {
		total += p.Size
	}
	assert.Equal(t, info.Total, total)

	var buf bytes.Buffer
	require.NoError(t, info.writeText(&buf))
	assert.Contains(t, buf.String(), "backbone.stem.conv.kernel")
}
