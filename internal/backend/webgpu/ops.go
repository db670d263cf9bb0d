//go:build windows

package webgpu

import (
	"fmt"

	"github.com/born-ml/featnet/internal/tensor"
)

// onGPU reports whether x can be processed by the float32 shaders.
// Empty tensors cannot be bound as storage buffers.
func onGPU(x *tensor.RawTensor) bool {
	return x.DType() == tensor.Float32 && x.NumElements() > 0
}

// fromHost retags a CPU result with the WebGPU device.
func fromHost(r *tensor.RawTensor) *tensor.RawTensor {
	return r.WithDevice(tensor.WebGPU)
}

// Conv2D convolves input [N,H,W,Cin] with kernel [KH,KW,Cin/G,Cout].
func (b *Backend) Conv2D(input, kernel *tensor.RawTensor, p tensor.Conv2DParams) *tensor.RawTensor {
	if !onGPU(input) || kernel.DType() != input.DType() {
		return fromHost(b.host.Conv2D(input, kernel, p))
	}

	g := resolveConv2D(input, kernel, p)
	result := tensor.MustNewRaw(tensor.Shape{g.N, g.HOut, g.WOut, g.COut}, tensor.Float32, tensor.WebGPU)
	b.dispatch("conv2d", conv2dShader, [][]byte{input.Data(), kernel.Data()}, result, g.uniform)
	return result
}

// BiasAdd adds a per-channel bias [C] to x [N,H,W,C].
func (b *Backend) BiasAdd(x, bias *tensor.RawTensor) *tensor.RawTensor {
	if !onGPU(x) || bias.DType() != x.DType() {
		return fromHost(b.host.BiasAdd(x, bias))
	}

	c := channelsOf("bias_add", x)
	checkChannelVector("bias_add", "bias", bias, c)

	result := tensor.MustNewRaw(x.Shape(), tensor.Float32, tensor.WebGPU)
	b.dispatch("bias_add", biasAddShader, [][]byte{x.Data(), bias.Data()}, result, func(rowSpan uint32) []byte {
		u := &uniform{}
		return u.u32(x.NumElements()).u32(int(rowSpan)).u32(c).bytes()
	})
	return result
}

// BatchNorm normalizes x [N,H,W,C] per channel with the given statistics.
// The per-channel factor scale/sqrt(variance+eps) is folded on the host.
func (b *Backend) BatchNorm(x, scale, bias, mean, variance *tensor.RawTensor, eps float64) *tensor.RawTensor {
	if !onGPU(x) {
		return fromHost(b.host.BatchNorm(x, scale, bias, mean, variance, eps))
	}

	c := channelsOf("batch_norm", x)
	checkChannelVector("batch_norm", "scale", scale, c)
	checkChannelVector("batch_norm", "bias", bias, c)
	checkChannelVector("batch_norm", "mean", mean, c)
	checkChannelVector("batch_norm", "variance", variance, c)

	mul := batchNormMultiplier(scale.AsFloat32(), variance.AsFloat32(), eps)

	result := tensor.MustNewRaw(x.Shape(), tensor.Float32, tensor.WebGPU)
	inputs := [][]byte{x.Data(), mean.Data(), float32Bytes(mul), bias.Data()}
	b.dispatch("batch_norm", batchNormShader, inputs, result, func(rowSpan uint32) []byte {
		u := &uniform{}
		return u.u32(x.NumElements()).u32(int(rowSpan)).u32(c).bytes()
	})
	return result
}

// Moments returns per-channel mean and biased variance of x [N,H,W,C].
// Computed on the host: the reduction runs once per training step.
func (b *Backend) Moments(x *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	mean, variance = b.host.Moments(x)
	return fromHost(mean), fromHost(variance)
}

// Add performs element-wise addition of two tensors of equal shape.
func (b *Backend) Add(a, other *tensor.RawTensor) *tensor.RawTensor {
	if !onGPU(a) || other.DType() != a.DType() {
		return fromHost(b.host.Add(a, other))
	}
	if !a.Shape().Equal(other.Shape()) {
		panic(fmt.Sprintf("add: shape mismatch %v vs %v", a.Shape(), other.Shape()))
	}

	result := tensor.MustNewRaw(a.Shape(), tensor.Float32, tensor.WebGPU)
	b.dispatch("add", addShader, [][]byte{a.Data(), other.Data()}, result, func(rowSpan uint32) []byte {
		u := &uniform{}
		return u.u32(a.NumElements()).u32(int(rowSpan)).bytes()
	})
	return result
}

// ReLU applies max(0, x) element-wise.
func (b *Backend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	if !onGPU(x) {
		return fromHost(b.host.ReLU(x))
	}

	result := tensor.MustNewRaw(x.Shape(), tensor.Float32, tensor.WebGPU)
	b.dispatch("relu", reluShader, [][]byte{x.Data()}, result, func(rowSpan uint32) []byte {
		u := &uniform{}
		return u.u32(x.NumElements()).u32(int(rowSpan)).bytes()
	})
	return result
}

// LeakyReLU applies x for x >= 0 and slope*x otherwise.
func (b *Backend) LeakyReLU(x *tensor.RawTensor, slope float64) *tensor.RawTensor {
	if !onGPU(x) {
		return fromHost(b.host.LeakyReLU(x, slope))
	}

	result := tensor.MustNewRaw(x.Shape(), tensor.Float32, tensor.WebGPU)
	b.dispatch("leaky_relu", leakyReluShader, [][]byte{x.Data()}, result, func(rowSpan uint32) []byte {
		u := &uniform{}
		return u.u32(x.NumElements()).u32(int(rowSpan)).f32(slope).bytes()
	})
	return result
}

// ResizeNearest resizes x [N,H,W,C] to [N,outH,outW,C].
func (b *Backend) ResizeNearest(x *tensor.RawTensor, outH, outW int) *tensor.RawTensor {
	if !onGPU(x) {
		return fromHost(b.host.ResizeNearest(x, outH, outW))
	}
	c := channelsOf("resize_nearest", x)
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("resize_nearest: invalid output size %dx%d", outH, outW))
	}

	s := x.Shape()
	result := tensor.MustNewRaw(tensor.Shape{s[0], outH, outW, c}, tensor.Float32, tensor.WebGPU)
	b.dispatch("resize_nearest", resizeNearestShader, [][]byte{x.Data()}, result, func(rowSpan uint32) []byte {
		u := &uniform{}
		u.u32(result.NumElements()).u32(int(rowSpan))
		return u.u32(s[1]).u32(s[2]).u32(outH).u32(outW).u32(c).bytes()
	})
	return result
}

var _ tensor.Backend = (*Backend)(nil)
