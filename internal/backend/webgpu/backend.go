//go:build windows

// Package webgpu implements the WebGPU backend for the featnet primitives.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// Float32 convolution, normalization, activation and resize run as WGSL
// compute shaders. Moments and float64 tensors are delegated to the CPU
// backend; results always carry the WebGPU device tag.
package webgpu

import (
	"fmt"
	"sync"

	"github.com/born-ml/featnet/internal/backend/cpu"
	"github.com/born-ml/featnet/internal/tensor"
	"github.com/go-webgpu/webgpu/wgpu"
)

// Backend runs the feature extraction primitives on a WebGPU device.
// Safe for concurrent use; compiled kernels are shared.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	info     *wgpu.AdapterInfo

	mu      sync.RWMutex
	kernels map[string]*kernel

	// host runs the primitives without a GPU kernel.
	host *cpu.CPUBackend
}

// kernel is a compiled shader and its compute pipeline.
type kernel struct {
	shader   *wgpu.ShaderModule
	pipeline *wgpu.ComputePipeline
}

// New opens the high-performance adapter and its default queue.
// Errors wrap ErrUnavailable.
func New() (b *Backend, err error) {
	// wgpu panics when the native library cannot be loaded.
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("%w: native library not available: %v", ErrUnavailable, r)
		}
	}()

	b = &Backend{kernels: make(map[string]*kernel), host: cpu.New()}
	b.instance = wgpu.CreateInstance(nil)

	if b.adapter, err = b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	}); err != nil {
		b.Release()
		return nil, fmt.Errorf("%w: request adapter: %w", ErrUnavailable, err)
	}
	info := b.adapter.GetInfo()
	b.info = &info

	if b.device, err = b.adapter.RequestDevice(nil); err != nil {
		b.Release()
		return nil, fmt.Errorf("%w: request device: %w", ErrUnavailable, err)
	}
	if b.queue = b.device.GetQueue(); b.queue == nil {
		b.Release()
		return nil, fmt.Errorf("%w: device has no queue", ErrUnavailable)
	}
	return b, nil
}

// Release frees every GPU object owned by the backend. The backend must
// not be used afterwards.
func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for name, k := range b.kernels {
		k.pipeline.Release()
		k.shader.Release()
		delete(b.kernels, name)
	}
	if b.queue != nil {
		b.queue.Release()
	}
	if b.device != nil {
		b.device.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
	b.queue, b.device, b.adapter, b.instance = nil, nil, nil, nil
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "WebGPU"
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return tensor.WebGPU
}

// AdapterInfo describes the GPU the backend runs on.
func (b *Backend) AdapterInfo() *wgpu.AdapterInfo {
	return b.info
}

// IsAvailable reports whether a WebGPU adapter can be opened.
func IsAvailable() (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}
