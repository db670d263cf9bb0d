package tensor

// Conv2DParams describes a 2D convolution over an NHWC input.
//
// The kernel layout is HWIO: [KH, KW, Cin/Groups, Cout]. Cout must be a
// multiple of Groups; output channel o reads input channels of group
// o / (Cout/Groups).
type Conv2DParams struct {
	Stride   int // Same stride on both spatial axes (>= 1)
	Padding  int // Symmetric zero padding on both spatial axes (>= 0)
	Dilation int // Kernel dilation (>= 1)
	Groups   int // Feature groups (>= 1)
}

// Backend defines the numerical primitives the feature extractor is built from.
//
// All operations are pure: inputs are never modified and every call returns a
// newly allocated tensor. Implementations panic on malformed arguments; the nn
// layer validates shapes beforehand and reports typed errors instead.
//
// Implementations:
//   - CPU: pure Go, parallel over batch and output rows
//   - WebGPU: WGSL compute shaders (windows builds)
type Backend interface {
	// Conv2D convolves input [N,H,W,Cin] with kernel [KH,KW,Cin/G,Cout].
	// Output: [N,HOut,WOut,Cout].
	Conv2D(input, kernel *RawTensor, p Conv2DParams) *RawTensor

	// BiasAdd adds a per-channel bias [C] to x [N,H,W,C].
	BiasAdd(x, bias *RawTensor) *RawTensor

	// BatchNorm normalizes x [N,H,W,C] per channel:
	// y = (x - mean) / sqrt(variance + eps) * scale + bias.
	BatchNorm(x, scale, bias, mean, variance *RawTensor, eps float64) *RawTensor

	// Moments returns per-channel mean and (biased) variance of x [N,H,W,C].
	Moments(x *RawTensor) (mean, variance *RawTensor)

	// Add performs element-wise addition of two tensors of equal shape.
	Add(a, b *RawTensor) *RawTensor

	// Activations
	ReLU(x *RawTensor) *RawTensor
	LeakyReLU(x *RawTensor, slope float64) *RawTensor

	// ResizeNearest resizes x [N,H,W,C] to [N,outH,outW,C] with nearest-neighbor
	// sampling: src = floor(dst * in / out).
	ResizeNearest(x *RawTensor, outH, outW int) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
