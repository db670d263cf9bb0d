// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package features_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/born-ml/featnet/backend/cpu"
	"github.com/born-ml/featnet/features"
	"github.com/born-ml/featnet/tensor"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Backend = *cpu.Backend

func TestNewDefault(t *testing.T) {
	if testing.Short() {
		t.Skip("full-size forward pass")
	}
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))

	ex, err := features.NewDefault(rng, backend)
	require.NoError(t, err)

	x := tensor.RandUniform[float32](tensor.Shape{1, 96, 96, 3}, 0, 1, rng, backend)
	pyr, err := ex.Forward(context.Background(), x)
	require.NoError(t, err)

	want := []tensor.Shape{{1, 32, 32, 128}, {1, 16, 16, 128}, {1, 8, 8, 128}}
	if diff := cmp.Diff(want, pyr.Shapes()); diff != "" {
		t.Errorf("pyramid shapes mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_CustomBackbone(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(2))

	cfg := features.DefaultResNetConfig()
	cfg.InChannels = 4
	cfg.Stages = []features.StageSpec{
		{Variant: features.BasicBlock, OutChannels: 4, NumBlocks: 1, Stride: 1},
		{Variant: features.BasicBlock, OutChannels: 8, NumBlocks: 1, Stride: 2},
	}
	backbone, err := features.NewResNet(cfg, rng, backend)
	require.NoError(t, err)

	ex, err := features.New[Backend](backbone, features.FPNConfig{OutChannels: 6, NumLevels: 2}, rng, backend)
	require.NoError(t, err)

	out, err := ex.Extract(context.Background(), tensor.Zeros[float32](tensor.Shape{1, 12, 12, 3}, backend))
	require.NoError(t, err)
	assert.Equal(t, []tensor.Shape{{1, 4, 4, 6}, {1, 2, 2, 6}}, out.Pyramid.Shapes())
	assert.Equal(t, tensor.Shape{1, 2, 2, 8}, out.Features[1].Shape())
}

func TestBuild_InvalidConfig(t *testing.T) {
	cfg := features.DefaultConfig()
	cfg.Model.FPN.NumLevels = 4

	_, err := features.Build(cfg.Model, rand.New(rand.NewSource(1)), cpu.New(), nil)
	assert.ErrorIs(t, err, features.ErrConfig)
}
