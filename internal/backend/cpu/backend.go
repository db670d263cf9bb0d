// Package cpu implements the CPU backend for the featnet numerical primitives.
package cpu

import (
	"fmt"

	"github.com/born-ml/featnet/internal/parallel"
	"github.com/born-ml/featnet/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
//
// Convolutions are split across (batch, output row) work items; every output
// element is accumulated by one goroutine in a fixed order, so parallel and
// sequential execution produce bit-identical results.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// Option configures a CPUBackend.
type Option func(*CPUBackend)

// WithParallel overrides the parallel execution settings.
func WithParallel(cfg parallel.Config) Option {
	return func(cpu *CPUBackend) {
		cpu.parallel = cfg
	}
}

// New creates a new CPU backend.
func New(opts ...Option) *CPUBackend {
	cpu := &CPUBackend{
		device:   tensor.CPU,
		parallel: parallel.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(cpu)
	}
	return cpu
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition of two tensors with identical shapes.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("add: shape mismatch %v vs %v", a.Shape(), b.Shape()))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("add: dtype mismatch %s vs %s", a.DType(), b.DType()))
	}

	result := tensor.MustNewRaw(a.Shape(), a.DType(), cpu.device)

	switch a.DType() {
	case tensor.Float32:
		addTyped(tensor.Floats[float32](result), tensor.Floats[float32](a), tensor.Floats[float32](b))
	case tensor.Float64:
		addTyped(tensor.Floats[float64](result), tensor.Floats[float64](a), tensor.Floats[float64](b))
	default:
		panic(fmt.Sprintf("add: unsupported dtype %s", a.DType()))
	}

	return result
}

func addTyped[T tensor.DType](dst, a, b []T) {
	for i := range dst {
		dst[i] = a[i] + b[i]
	}
}

// checkNHWC panics unless x is a 4D tensor.
func checkNHWC(op string, x *tensor.RawTensor) {
	if len(x.Shape()) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,H,W,C], got %dD", op, len(x.Shape())))
	}
}
