package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/featnet/internal/tensor"
)

// Conv2DConfig describes a 2D convolution over NHWC feature maps.
//
// Zero values of Stride, Dilation and Groups mean 1.
type Conv2DConfig struct {
	InChannels  int
	OutChannels int
	KernelH     int
	KernelW     int
	Stride      int
	Padding     int
	Dilation    int
	Groups      int
	UseBias     bool
	Init        Initializer
}

func (c Conv2DConfig) withDefaults() Conv2DConfig {
	if c.Stride == 0 {
		c.Stride = 1
	}
	if c.Dilation == 0 {
		c.Dilation = 1
	}
	if c.Groups == 0 {
		c.Groups = 1
	}
	return c
}

// Validate checks the configuration.
func (c Conv2DConfig) Validate() error {
	c = c.withDefaults()
	switch {
	case c.InChannels <= 0:
		return NewConfigError("Conv2D", "InChannels", c.InChannels, "must be positive")
	case c.OutChannels <= 0:
		return NewConfigError("Conv2D", "OutChannels", c.OutChannels, "must be positive")
	case c.KernelH <= 0 || c.KernelW <= 0:
		return NewConfigError("Conv2D", "Kernel", [2]int{c.KernelH, c.KernelW}, "must be positive")
	case c.Stride < 1:
		return NewConfigError("Conv2D", "Stride", c.Stride, "must be >= 1")
	case c.Padding < 0:
		return NewConfigError("Conv2D", "Padding", c.Padding, "must be >= 0")
	case c.Dilation < 1:
		return NewConfigError("Conv2D", "Dilation", c.Dilation, "must be >= 1")
	case c.Groups < 1:
		return NewConfigError("Conv2D", "Groups", c.Groups, "must be >= 1")
	case c.InChannels%c.Groups != 0:
		return NewConfigError("Conv2D", "Groups", c.Groups,
			fmt.Sprintf("must divide input channels %d", c.InChannels))
	case c.OutChannels%c.Groups != 0:
		return NewConfigError("Conv2D", "Groups", c.Groups,
			fmt.Sprintf("must divide output channels %d", c.OutChannels))
	}
	return nil
}

// Conv2D is a 2D convolutional layer over channel-last feature maps.
//
// Performs convolution: output = Conv2D(input, kernel) + bias
//
// Input shape:  [batch, height, width, in_channels]
// Kernel shape: [kernel_h, kernel_w, in_channels/groups, out_channels]
// Bias shape:   [out_channels]
// Output shape: [batch, out_h, out_w, out_channels]
//
// Where:
//
//	out_h = (height + 2*padding - dilation*(kernel_h-1) - 1) / stride + 1
//
// Example:
//
//	conv, err := nn.NewConv2D(nn.Conv2DConfig{
//		InChannels: 32, OutChannels: 64, KernelH: 3, KernelW: 3, Padding: 1,
//	}, rng, backend)
//	out, err := conv.Forward(x) // [N, H, W, 64]
type Conv2D[B tensor.Backend] struct {
	cfg Conv2DConfig

	kernel *Parameter[B] // [kernel_h, kernel_w, in_channels/groups, out_channels]
	bias   *Parameter[B] // [out_channels] or nil

	backend B
}

// NewConv2D creates a new 2D convolutional layer.
//
// Initialization:
//   - Kernel: cfg.Init (Xavier uniform by default)
//   - Bias: Zeros
func NewConv2D[B tensor.Backend](cfg Conv2DConfig, rng *rand.Rand, backend B) (*Conv2D[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	kernel := initKernel(cfg.Init, cfg.KernelH, cfg.KernelW, cfg.InChannels/cfg.Groups, cfg.OutChannels, rng, backend)

	var bias *Parameter[B]
	if cfg.UseBias {
		bias = NewParameter("bias", Zeros(tensor.Shape{cfg.OutChannels}, backend))
	}

	return &Conv2D[B]{
		cfg:     cfg,
		kernel:  NewParameter("kernel", kernel),
		bias:    bias,
		backend: backend,
	}, nil
}

// Forward performs the forward pass.
//
// Input: [batch, height, width, in_channels]
// Output: [batch, out_h, out_w, out_channels].
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	shape := input.Shape()
	if err := CheckNHWC("conv2d", shape, c.cfg.InChannels); err != nil {
		return nil, err
	}
	outH, outW := c.OutputSize(shape.Height(), shape.Width())
	if outH < 1 || outW < 1 {
		return nil, NewShapeError("conv2d", shape, nil,
			"input %dx%d too small for %s", shape.Height(), shape.Width(), c)
	}

	outputRaw := c.backend.Conv2D(input.Raw(), c.kernel.Tensor().Raw(), tensor.Conv2DParams{
		Stride:   c.cfg.Stride,
		Padding:  c.cfg.Padding,
		Dilation: c.cfg.Dilation,
		Groups:   c.cfg.Groups,
	})

	if c.bias != nil {
		outputRaw = c.backend.BiasAdd(outputRaw, c.bias.Tensor().Raw())
	}

	return tensor.New[float32, B](outputRaw, c.backend), nil
}

// Parameters returns the kernel and, if present, the bias.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.bias != nil {
		return []*Parameter[B]{c.kernel, c.bias}
	}
	return []*Parameter[B]{c.kernel}
}

// String returns a string representation of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in=%d, out=%d, kernel=(%d, %d), stride=%d, padding=%d, dilation=%d, groups=%d, bias=%v)",
		c.cfg.InChannels, c.cfg.OutChannels,
		c.cfg.KernelH, c.cfg.KernelW,
		c.cfg.Stride, c.cfg.Padding, c.cfg.Dilation, c.cfg.Groups, c.cfg.UseBias)
}

// Config returns the normalized layer configuration.
func (c *Conv2D[B]) Config() Conv2DConfig {
	return c.cfg
}

// InChannels returns the number of input channels.
func (c *Conv2D[B]) InChannels() int {
	return c.cfg.InChannels
}

// OutChannels returns the number of output channels.
func (c *Conv2D[B]) OutChannels() int {
	return c.cfg.OutChannels
}

// Kernel returns the kernel parameter.
func (c *Conv2D[B]) Kernel() *Parameter[B] {
	return c.kernel
}

// Bias returns the bias parameter, or nil when the layer has none.
func (c *Conv2D[B]) Bias() *Parameter[B] {
	return c.bias
}

// OutputSize computes output spatial dimensions for the given input size.
func (c *Conv2D[B]) OutputSize(inputH, inputW int) (outH, outW int) {
	outH = tensor.ConvOutputSize(inputH, c.cfg.KernelH, c.cfg.Stride, c.cfg.Padding, c.cfg.Dilation)
	outW = tensor.ConvOutputSize(inputW, c.cfg.KernelW, c.cfg.Stride, c.cfg.Padding, c.cfg.Dilation)
	return outH, outW
}
