package cpu

import (
	"fmt"

	"github.com/born-ml/featnet/internal/tensor"
)

// ReLU computes max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.MustNewRaw(x.Shape(), x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		relu(tensor.Floats[float32](result), tensor.Floats[float32](x))
	case tensor.Float64:
		relu(tensor.Floats[float64](result), tensor.Floats[float64](x))
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s", x.DType()))
	}

	return result
}

func relu[T tensor.DType](dst, x []T) {
	for i, v := range x {
		if v > 0 {
			dst[i] = v
		}
	}
}

// LeakyReLU computes x for x >= 0 and slope*x otherwise.
func (cpu *CPUBackend) LeakyReLU(x *tensor.RawTensor, slope float64) *tensor.RawTensor {
	result := tensor.MustNewRaw(x.Shape(), x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		leakyReLU(tensor.Floats[float32](result), tensor.Floats[float32](x), float32(slope))
	case tensor.Float64:
		leakyReLU(tensor.Floats[float64](result), tensor.Floats[float64](x), slope)
	default:
		panic(fmt.Sprintf("leaky_relu: unsupported dtype %s", x.DType()))
	}

	return result
}

func leakyReLU[T tensor.DType](dst, x []T, slope T) {
	for i, v := range x {
		if v >= 0 {
			dst[i] = v
		} else {
			dst[i] = slope * v
		}
	}
}
