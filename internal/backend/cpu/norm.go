package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/featnet/internal/tensor"
)

// BiasAdd adds a per-channel bias [C] to x [N,H,W,C].
func (cpu *CPUBackend) BiasAdd(x, bias *tensor.RawTensor) *tensor.RawTensor {
	c := channelsOf("bias_add", x)
	checkChannelVector("bias_add", "bias", bias, c)

	result := tensor.MustNewRaw(x.Shape(), x.DType(), cpu.device)
	switch x.DType() {
	case tensor.Float32:
		biasAdd(tensor.Floats[float32](result), tensor.Floats[float32](x), tensor.Floats[float32](bias))
	case tensor.Float64:
		biasAdd(tensor.Floats[float64](result), tensor.Floats[float64](x), tensor.Floats[float64](bias))
	default:
		panic(fmt.Sprintf("bias_add: unsupported dtype %s", x.DType()))
	}
	return result
}

func biasAdd[T tensor.DType](dst, x, bias []T) {
	c := len(bias)
	for i := range dst {
		dst[i] = x[i] + bias[i%c]
	}
}

// BatchNorm normalizes x [N,H,W,C] per channel with the given statistics.
//
// Formula: y = (x - mean) / sqrt(variance + eps) * scale + bias
//
// scale, bias, mean and variance all have shape [C].
func (cpu *CPUBackend) BatchNorm(x, scale, bias, mean, variance *tensor.RawTensor, eps float64) *tensor.RawTensor {
	c := channelsOf("batch_norm", x)
	checkChannelVector("batch_norm", "scale", scale, c)
	checkChannelVector("batch_norm", "bias", bias, c)
	checkChannelVector("batch_norm", "mean", mean, c)
	checkChannelVector("batch_norm", "variance", variance, c)

	result := tensor.MustNewRaw(x.Shape(), x.DType(), cpu.device)
	switch x.DType() {
	case tensor.Float32:
		batchNorm(tensor.Floats[float32](result), tensor.Floats[float32](x),
			tensor.Floats[float32](scale), tensor.Floats[float32](bias),
			tensor.Floats[float32](mean), tensor.Floats[float32](variance), eps)
	case tensor.Float64:
		batchNorm(tensor.Floats[float64](result), tensor.Floats[float64](x),
			tensor.Floats[float64](scale), tensor.Floats[float64](bias),
			tensor.Floats[float64](mean), tensor.Floats[float64](variance), eps)
	default:
		panic(fmt.Sprintf("batch_norm: unsupported dtype %s", x.DType()))
	}
	return result
}

func batchNorm[T tensor.DType](dst, x, scale, bias, mean, variance []T, eps float64) {
	c := len(scale)

	mul := make([]T, c)
	for ch := 0; ch < c; ch++ {
		mul[ch] = scale[ch] * T(1/math.Sqrt(float64(variance[ch])+eps))
	}

	for i := range dst {
		ch := i % c
		dst[i] = (x[i]-mean[ch])*mul[ch] + bias[ch]
	}
}

// Moments returns the per-channel mean and biased variance of x [N,H,W,C].
//
// Sums run sequentially over (n, h, w) so the statistics do not depend on
// the parallel configuration.
func (cpu *CPUBackend) Moments(x *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	c := channelsOf("moments", x)

	mean = tensor.MustNewRaw(tensor.Shape{c}, x.DType(), cpu.device)
	variance = tensor.MustNewRaw(tensor.Shape{c}, x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		moments(tensor.Floats[float32](mean), tensor.Floats[float32](variance), tensor.Floats[float32](x))
	case tensor.Float64:
		moments(tensor.Floats[float64](mean), tensor.Floats[float64](variance), tensor.Floats[float64](x))
	default:
		panic(fmt.Sprintf("moments: unsupported dtype %s", x.DType()))
	}
	return mean, variance
}

func moments[T tensor.DType](mean, variance, x []T) {
	c := len(mean)
	count := float64(len(x) / c)

	sums := make([]float64, c)
	for i, v := range x {
		sums[i%c] += float64(v)
	}
	for ch := range mean {
		sums[ch] /= count
		mean[ch] = T(sums[ch])
	}

	sq := make([]float64, c)
	for i, v := range x {
		d := float64(v) - sums[i%c]
		sq[i%c] += d * d
	}
	for ch := range variance {
		variance[ch] = T(sq[ch] / count)
	}
}

func channelsOf(op string, x *tensor.RawTensor) int {
	checkNHWC(op, x)
	return x.Shape()[3]
}

func checkChannelVector(op, name string, v *tensor.RawTensor, c int) {
	if len(v.Shape()) != 1 || v.Shape()[0] != c {
		panic(fmt.Sprintf("%s: %s must have shape [%d], got %v", op, name, c, v.Shape()))
	}
}
