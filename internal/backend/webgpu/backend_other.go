//go:build !windows

package webgpu

import "github.com/born-ml/featnet/internal/tensor"

// Backend is unavailable on this platform; New always fails.
type Backend struct{}

// New reports that WebGPU is not supported on this platform.
func New() (*Backend, error) {
	return nil, ErrUnavailable
}

// IsAvailable always returns false on this platform.
func IsAvailable() bool {
	return false
}

// Release is a no-op.
func (b *Backend) Release() {}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "WebGPU"
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return tensor.WebGPU
}

//nolint:revive // unsupported platform
func (b *Backend) Conv2D(input, kernel *tensor.RawTensor, p tensor.Conv2DParams) *tensor.RawTensor {
	panic(ErrUnavailable)
}

//nolint:revive // unsupported platform
func (b *Backend) BiasAdd(x, bias *tensor.RawTensor) *tensor.RawTensor {
	panic(ErrUnavailable)
}

//nolint:revive // unsupported platform
func (b *Backend) BatchNorm(x, scale, bias, mean, variance *tensor.RawTensor, eps float64) *tensor.RawTensor {
	panic(ErrUnavailable)
}

//nolint:revive // unsupported platform
func (b *Backend) Moments(x *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	panic(ErrUnavailable)
}

//nolint:revive // unsupported platform
func (b *Backend) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	panic(ErrUnavailable)
}

//nolint:revive // unsupported platform
func (b *Backend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	panic(ErrUnavailable)
}

//nolint:revive // unsupported platform
func (b *Backend) LeakyReLU(x *tensor.RawTensor, slope float64) *tensor.RawTensor {
	panic(ErrUnavailable)
}

//nolint:revive // unsupported platform
func (b *Backend) ResizeNearest(x *tensor.RawTensor, outH, outW int) *tensor.RawTensor {
	panic(ErrUnavailable)
}

var _ tensor.Backend = (*Backend)(nil)
