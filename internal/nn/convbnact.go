package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/featnet/internal/tensor"
)

// ConvBNAct is a convolution followed by batch normalization and an optional activation.
//
// It is the basic unit of the stem, the downsample path and the pyramid heads.
type ConvBNAct[B tensor.Backend] struct {
	Conv *Conv2D[B]
	BN   *BatchNorm2D[B]
	Act  Module[B] // nil for no activation
}

// NewConvBNAct builds conv -> batch norm -> act. act may be nil.
func NewConvBNAct[B tensor.Backend](conv Conv2DConfig, bn BatchNormConfig, act Module[B], rng *rand.Rand, backend B) (*ConvBNAct[B], error) {
	c, err := NewConv2D(conv, rng, backend)
	if err != nil {
		return nil, err
	}
	n, err := NewBatchNorm2D(conv.OutChannels, bn, backend)
	if err != nil {
		return nil, err
	}
	return &ConvBNAct[B]{Conv: c, BN: n, Act: act}, nil
}

// Forward applies the three stages in order.
func (m *ConvBNAct[B]) Forward(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	y, err := m.Conv.Forward(x)
	if err != nil {
		return nil, err
	}
	y, err = m.BN.Forward(y)
	if err != nil {
		return nil, err
	}
	if m.Act == nil {
		return y, nil
	}
	return m.Act.Forward(y)
}

// Parameters returns the convolution and batch-norm parameters.
func (m *ConvBNAct[B]) Parameters() []*Parameter[B] {
	params := Prefixed("conv", m.Conv.Parameters())
	return append(params, Prefixed("bn", m.BN.Parameters())...)
}

// OutChannels returns the number of output channels.
func (m *ConvBNAct[B]) OutChannels() int {
	return m.Conv.OutChannels()
}

// SetTraining switches the batch norm between batch and running statistics.
func (m *ConvBNAct[B]) SetTraining(training bool) {
	m.BN.SetTraining(training)
}

// String returns a string representation of the block.
func (m *ConvBNAct[B]) String() string {
	if m.Act == nil {
		return fmt.Sprintf("ConvBN(%v, %v)", m.Conv, m.BN)
	}
	return fmt.Sprintf("ConvBNAct(%v, %v, %v)", m.Conv, m.BN, m.Act)
}
