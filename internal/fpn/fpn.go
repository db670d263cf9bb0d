// Package fpn implements the Feature Pyramid Network that fuses multi-scale
// backbone features into channel-aligned pyramid levels.
//
// Levels are ordered finest first. Each level must be exactly half the
// spatial size of the previous one and all levels share one batch size.
package fpn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/featnet/internal/nn"
	"github.com/born-ml/featnet/internal/tensor"
)

// Config describes a Feature Pyramid Network.
type Config struct {
	InChannels  []int // Channels of each input level, finest first
	OutChannels int   // Channels of every fused level
	NumLevels   int   // Number of levels (== len(InChannels))
}

// DefaultConfig returns the reference configuration: inputs of 32, 64 and
// 128 channels fused to 128 channels.
func DefaultConfig() Config {
	return Config{
		InChannels:  []int{32, 64, 128},
		OutChannels: 128,
		NumLevels:   3,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.NumLevels < 1 {
		return nn.NewConfigError("fpn", "NumLevels", c.NumLevels, "must be >= 1")
	}
	if len(c.InChannels) != c.NumLevels {
		return nn.NewConfigError("fpn", "InChannels", c.InChannels,
			fmt.Sprintf("expected %d entries", c.NumLevels))
	}
	for i, ch := range c.InChannels {
		if ch <= 0 {
			return nn.NewConfigError("fpn", fmt.Sprintf("InChannels[%d]", i), ch, "must be positive")
		}
	}
	if c.OutChannels <= 0 {
		return nn.NewConfigError("fpn", "OutChannels", c.OutChannels, "must be positive")
	}
	return nil
}

// Network is a Feature Pyramid Network.
//
// Forward runs three phases:
//  1. Lateral 1x1 projections of every level to OutChannels.
//  2. Top-down fusion, coarsest to finest: each lateral is upsampled 2x
//     with nearest-neighbor sampling and added into the next finer one.
//  3. Per-level 3x3 smoothing convolution, batch norm and ReLU. Batch norms
//     are independent per level.
//
// Example:
//
//	net, err := fpn.New(fpn.DefaultConfig(), rng, backend)
//	pyr, err := net.Forward(c1, c2, c3)
type Network[B tensor.Backend] struct {
	cfg      Config
	laterals []*nn.Conv2D[B]
	outputs  []*nn.ConvBNAct[B]
	backend  B
}

// New constructs a Feature Pyramid Network.
//
// Laterals and smoothing convolutions use Xavier-uniform kernels and zero biases.
func New[B tensor.Backend](cfg Config, rng *rand.Rand, backend B) (*Network[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	net := &Network[B]{cfg: cfg, backend: backend}
	for i, in := range cfg.InChannels {
		lateral, err := nn.NewConv2D(nn.Conv2DConfig{
			InChannels:  in,
			OutChannels: cfg.OutChannels,
			KernelH:     1,
			KernelW:     1,
			UseBias:     true,
			Init:        nn.InitXavierUniform,
		}, rng, backend)
		if err != nil {
			return nil, fmt.Errorf("lateral %d: %w", i, err)
		}
		net.laterals = append(net.laterals, lateral)
	}

	for i := 0; i < cfg.NumLevels; i++ {
		out, err := nn.NewConvBNAct[B](nn.Conv2DConfig{
			InChannels:  cfg.OutChannels,
			OutChannels: cfg.OutChannels,
			KernelH:     3,
			KernelW:     3,
			Padding:     1,
			UseBias:     true,
			Init:        nn.InitXavierUniform,
		}, nn.BatchNormConfig{}, nn.NewReLU[B](), rng, backend)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		net.outputs = append(net.outputs, out)
	}
	return net, nil
}

// CheckPyramid validates levels against the configuration before any
// tensor work: level count, rank, channel widths, a shared batch size and
// exact 2x spatial halving from each level to the next.
func CheckPyramid(cfg Config, shapes []tensor.Shape) error {
	if len(shapes) != cfg.NumLevels {
		return nn.NewShapeError("fpn", nil, nil, "got %d levels, want %d", len(shapes), cfg.NumLevels)
	}
	for i, s := range shapes {
		if err := nn.CheckNHWC(fmt.Sprintf("fpn level %d", i), s, cfg.InChannels[i]); err != nil {
			return err
		}
	}
	batch := shapes[0].Batch()
	for i := 1; i < len(shapes); i++ {
		fine, coarse := shapes[i-1], shapes[i]
		if coarse.Batch() != batch {
			return nn.NewShapeError(fmt.Sprintf("fpn level %d", i), coarse, nil,
				"batch size %d differs from level 0 batch size %d", coarse.Batch(), batch)
		}
		if fine.Height() != 2*coarse.Height() || fine.Width() != 2*coarse.Width() {
			return nn.NewShapeError(fmt.Sprintf("fpn level %d", i), coarse, nil,
				"level %d is %dx%d, want exactly twice %dx%d",
				i-1, fine.Height(), fine.Width(), coarse.Height(), coarse.Width())
		}
	}
	return nil
}

// Forward fuses the pyramid levels, finest first.
//
// Returns ErrShapeMismatch if the number of levels differs from NumLevels,
// batch sizes differ, channels do not match the configuration or a level is
// not exactly half the size of the previous one.
func (n *Network[B]) Forward(levels ...*tensor.Tensor[float32, B]) (*Pyramid[B], error) {
	shapes := make([]tensor.Shape, len(levels))
	for i, l := range levels {
		shapes[i] = l.Shape()
	}
	if err := CheckPyramid(n.cfg, shapes); err != nil {
		return nil, err
	}

	laterals := make([]*tensor.Tensor[float32, B], len(levels))
	for i, l := range levels {
		lat, err := n.laterals[i].Forward(l)
		if err != nil {
			return nil, fmt.Errorf("lateral %d: %w", i, err)
		}
		laterals[i] = lat
	}

	for i := len(laterals) - 1; i > 0; i-- {
		s := laterals[i].Shape()
		up := laterals[i].ResizeNearest(2*s.Height(), 2*s.Width())
		laterals[i-1] = laterals[i-1].Add(up)
	}

	out := make([]*tensor.Tensor[float32, B], len(laterals))
	for i, lat := range laterals {
		y, err := n.outputs[i].Forward(lat)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		out[i] = y
	}
	return &Pyramid[B]{levels: out}, nil
}

// Parameters returns lateral and output parameters.
func (n *Network[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for i, l := range n.laterals {
		params = append(params, nn.Prefixed(fmt.Sprintf("lateral%d", i), l.Parameters())...)
	}
	for i, o := range n.outputs {
		params = append(params, nn.Prefixed(fmt.Sprintf("output%d", i), o.Parameters())...)
	}
	return params
}

// Config returns the network configuration.
func (n *Network[B]) Config() Config {
	return n.cfg
}

// SetTraining switches the per-level batch norms.
func (n *Network[B]) SetTraining(training bool) {
	for _, o := range n.outputs {
		o.SetTraining(training)
	}
}
