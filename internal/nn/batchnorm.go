package nn

import (
	"fmt"

	"github.com/born-ml/featnet/internal/tensor"
)

// Batch normalization defaults.
const (
	DefaultBatchNormEpsilon  = 1e-5
	DefaultBatchNormMomentum = 0.99
)

// BatchNormConfig configures a BatchNorm2D layer.
//
// Zero Epsilon and Momentum select the defaults. Training switches the layer
// from running statistics to per-batch statistics.
type BatchNormConfig struct {
	Epsilon  float64
	Momentum float64
	Training bool
}

// BatchNorm2D applies batch normalization over the channel axis of NHWC inputs.
//
// Formula: Y = scale * (X - mean) / sqrt(var + eps) + bias
//
// With running averages (the default) mean and var are the stored running
// statistics. In training mode they are the per-channel batch moments over
// (N, H, W), and the running statistics are updated in place:
//
//	running = momentum*running + (1-momentum)*batch
//
// Example:
//
//	bn, err := nn.NewBatchNorm2D(64, nn.BatchNormConfig{}, backend)
//	y, err := bn.Forward(x) // [N, H, W, 64] -> [N, H, W, 64]
type BatchNorm2D[B tensor.Backend] struct {
	Scale       *Parameter[B] // [channels], ones
	Bias        *Parameter[B] // [channels], zeros
	RunningMean *Parameter[B] // [channels], zeros
	RunningVar  *Parameter[B] // [channels], ones

	channels int
	epsilon  float64
	momentum float64
	training bool
	backend  B
}

// NewBatchNorm2D creates a batch normalization layer for the given channel count.
func NewBatchNorm2D[B tensor.Backend](channels int, cfg BatchNormConfig, backend B) (*BatchNorm2D[B], error) {
	if channels <= 0 {
		return nil, NewConfigError("BatchNorm2D", "channels", channels, "must be positive")
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = DefaultBatchNormEpsilon
	}
	if cfg.Momentum == 0 {
		cfg.Momentum = DefaultBatchNormMomentum
	}
	if cfg.Epsilon < 0 {
		return nil, NewConfigError("BatchNorm2D", "Epsilon", cfg.Epsilon, "must be positive")
	}
	if cfg.Momentum < 0 || cfg.Momentum > 1 {
		return nil, NewConfigError("BatchNorm2D", "Momentum", cfg.Momentum, "must be in [0, 1]")
	}

	shape := tensor.Shape{channels}
	return &BatchNorm2D[B]{
		Scale:       NewParameter("scale", Ones(shape, backend)),
		Bias:        NewParameter("bias", Zeros(shape, backend)),
		RunningMean: NewParameter("mean", Zeros(shape, backend)),
		RunningVar:  NewParameter("var", Ones(shape, backend)),
		channels:    channels,
		epsilon:     cfg.Epsilon,
		momentum:    cfg.Momentum,
		training:    cfg.Training,
		backend:     backend,
	}, nil
}

// Forward normalizes x [N, H, W, C].
func (bn *BatchNorm2D[B]) Forward(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	if err := CheckNHWC("batch_norm", x.Shape(), bn.channels); err != nil {
		return nil, err
	}

	mean, variance := bn.RunningMean.Tensor().Raw(), bn.RunningVar.Tensor().Raw()
	if bn.training {
		mean, variance = bn.backend.Moments(x.Raw())
		bn.updateRunning(tensor.Floats[float32](mean), tensor.Floats[float32](variance))
	}

	out := bn.backend.BatchNorm(x.Raw(), bn.Scale.Tensor().Raw(), bn.Bias.Tensor().Raw(), mean, variance, bn.epsilon)
	return tensor.New[float32, B](out, bn.backend), nil
}

func (bn *BatchNorm2D[B]) updateRunning(batchMean, batchVar []float32) {
	m := float32(bn.momentum)
	runMean := bn.RunningMean.Tensor().Data()
	runVar := bn.RunningVar.Tensor().Data()
	for c := range runMean {
		runMean[c] = m*runMean[c] + (1-m)*batchMean[c]
		runVar[c] = m*runVar[c] + (1-m)*batchVar[c]
	}
}

// Parameters returns scale, bias and the running statistics.
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.Scale, bn.Bias, bn.RunningMean, bn.RunningVar}
}

// SetTraining switches between batch statistics (true) and running averages (false).
func (bn *BatchNorm2D[B]) SetTraining(training bool) {
	bn.training = training
}

// UseRunningAverage reports whether Forward normalizes with the running statistics.
func (bn *BatchNorm2D[B]) UseRunningAverage() bool {
	return !bn.training
}

// Channels returns the number of normalized channels.
func (bn *BatchNorm2D[B]) Channels() int {
	return bn.channels
}

// String returns a string representation of the layer.
func (bn *BatchNorm2D[B]) String() string {
	return fmt.Sprintf("BatchNorm2D(channels=%d, eps=%g, momentum=%g, running_average=%v)",
		bn.channels, bn.epsilon, bn.momentum, !bn.training)
}
