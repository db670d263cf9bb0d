// Package extractor wires a multi-scale backbone to a Feature Pyramid
// Network and runs the full feature extraction pipeline.
package extractor

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/born-ml/featnet/internal/config"
	"github.com/born-ml/featnet/internal/fpn"
	"github.com/born-ml/featnet/internal/logger"
	"github.com/born-ml/featnet/internal/nn"
	"github.com/born-ml/featnet/internal/resnet"
	"github.com/born-ml/featnet/internal/tensor"
)

// Backbone produces multi-scale feature maps, finest first.
//
// Implemented by resnet.Backbone and fpn.SimplePyramid.
type Backbone[B tensor.Backend] interface {
	Forward(x *tensor.Tensor[float32, B]) ([]*tensor.Tensor[float32, B], error)
	Parameters() []*nn.Parameter[B]
	InChannels() int
	OutChannels() []int
	SetTraining(training bool)
	Summary() string
}

// Output holds the backbone features and the fused pyramid of one forward pass.
type Output[B tensor.Backend] struct {
	Features []*tensor.Tensor[float32, B]
	Pyramid  *fpn.Pyramid[B]
}

// Extractor is a backbone followed by a Feature Pyramid Network.
type Extractor[B tensor.Backend] struct {
	backbone Backbone[B]
	fpn      *fpn.Network[B]
	log      logger.Logger
}

// Option configures an Extractor.
type Option func(*options)

type options struct {
	log logger.Logger
}

// WithLogger sets the logger used for per-level debug output. nil is ignored.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// New builds the FPN for the backbone's output widths and returns the pipeline.
func New[B tensor.Backend](backbone Backbone[B], fpnCfg fpn.Config, rng *rand.Rand, backend B, opts ...Option) (*Extractor[B], error) {
	o := options{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	fpnCfg.InChannels = backbone.OutChannels()
	net, err := fpn.New(fpnCfg, rng, backend)
	if err != nil {
		return nil, fmt.Errorf("fpn: %w", err)
	}

	return &Extractor[B]{backbone: backbone, fpn: net, log: o.log}, nil
}

// Build constructs an Extractor from a model configuration.
func Build[B tensor.Backend](cfg config.Model, rng *rand.Rand, backend B, log logger.Logger) (*Extractor[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", nn.ErrConfig, err)
	}

	var (
		backbone Backbone[B]
		err      error
	)
	switch strings.ToLower(cfg.Backbone.Kind) {
	case config.KindPyramid:
		backbone, err = fpn.NewSimplePyramid(cfg.Backbone.InChannels, rng, backend)
	default:
		var rc resnet.Config
		rc, err = ResNetConfig(cfg.Backbone)
		if err == nil {
			backbone, err = resnet.New(rc, rng, backend)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("backbone: %w", err)
	}

	return New(backbone, fpn.Config{
		OutChannels: cfg.FPN.OutChannels,
		NumLevels:   cfg.FPN.NumLevels,
	}, rng, backend, WithLogger(log))
}

// ResNetConfig converts the backbone section of a configuration file.
// Missing stages select resnet.DefaultStages(InChannels).
func ResNetConfig(b config.Backbone) (resnet.Config, error) {
	cfg := resnet.Config{
		ImageChannels: b.ImageChannels,
		InChannels:    b.InChannels,
		Groups:        b.Groups,
		WidthPerGroup: b.WidthPerGroup,
		StemKernel:    b.StemKernel,
		StemStride:    b.StemStride,
	}
	if len(b.Stages) == 0 {
		cfg.Stages = resnet.DefaultStages(b.InChannels)
		return cfg, nil
	}

	for i, s := range b.Stages {
		variant, err := resnet.ParseBlockVariant(s.Block)
		if err != nil {
			return cfg, fmt.Errorf("stage %d: %w", i+1, err)
		}
		cfg.Stages = append(cfg.Stages, resnet.StageSpec{
			Variant:     variant,
			OutChannels: s.Channels,
			NumBlocks:   s.Blocks,
			Stride:      s.Stride,
			Dilate:      s.Dilate,
		})
	}
	return cfg, nil
}

// Forward runs the pipeline and returns the fused pyramid.
func (e *Extractor[B]) Forward(ctx context.Context, x *tensor.Tensor[float32, B]) (*fpn.Pyramid[B], error) {
	out, err := e.Extract(ctx, x)
	if err != nil {
		return nil, err
	}
	return out.Pyramid, nil
}

// Extract runs the pipeline and returns both the backbone features and the
// fused pyramid. A cancelled ctx aborts the pass between phases.
func (e *Extractor[B]) Extract(ctx context.Context, x *tensor.Tensor[float32, B]) (*Output[B], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	features, err := e.backbone.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("backbone: %w", err)
	}
	for i, f := range features {
		e.log.Debug("backbone level", "level", i, "shape", fmt.Sprint(f.Shape()))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pyr, err := e.fpn.Forward(features...)
	if err != nil {
		return nil, fmt.Errorf("fpn: %w", err)
	}
	for i, s := range pyr.Shapes() {
		e.log.Debug("pyramid level", "level", i, "shape", fmt.Sprint(s))
	}

	return &Output[B]{Features: features, Pyramid: pyr}, nil
}

// Parameters returns backbone and FPN parameters.
func (e *Extractor[B]) Parameters() []*nn.Parameter[B] {
	params := nn.Prefixed("backbone", e.backbone.Parameters())
	return append(params, nn.Prefixed("fpn", e.fpn.Parameters())...)
}

// Backbone returns the backbone.
func (e *Extractor[B]) Backbone() Backbone[B] {
	return e.backbone
}

// FPN returns the pyramid network.
func (e *Extractor[B]) FPN() *fpn.Network[B] {
	return e.fpn
}

// SetTraining switches every batch norm of the pipeline.
func (e *Extractor[B]) SetTraining(training bool) {
	e.backbone.SetTraining(training)
	e.fpn.SetTraining(training)
}

// Summary returns a multi-line description of the pipeline.
func (e *Extractor[B]) Summary() string {
	cfg := e.fpn.Config()
	return fmt.Sprintf("%s\nfpn: in=%v, out=%d, levels=%d, parameters=%d\ntotal parameters: %d",
		e.backbone.Summary(), cfg.InChannels, cfg.OutChannels, cfg.NumLevels,
		nn.CountParameters(e.fpn.Parameters()), nn.CountParameters(e.Parameters()))
}
