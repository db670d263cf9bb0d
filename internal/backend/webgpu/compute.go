//go:build windows

package webgpu

import (
	"fmt"
	"unsafe"

	"github.com/born-ml/featnet/internal/tensor"
	"github.com/go-webgpu/webgpu/wgpu"
)

// kernelFor returns the compiled pipeline for op, building it on first use.
func (b *Backend) kernelFor(op, code string) *kernel {
	b.mu.RLock()
	k, ok := b.kernels[op]
	b.mu.RUnlock()
	if ok {
		return k
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if k, ok := b.kernels[op]; ok {
		return k
	}
	shader := b.device.CreateShaderModuleWGSL(code)
	k = &kernel{
		shader:   shader,
		pipeline: b.device.CreateComputePipelineSimple(nil, shader, "main"),
	}
	b.kernels[op] = k
	return k
}

// upload creates a buffer of at least len(data) bytes, rounded up to align,
// holding data.
func (b *Backend) upload(data []byte, usage wgpu.BufferUsage, align uint64) *wgpu.Buffer {
	size := (uint64(len(data)) + align - 1) &^ (align - 1)
	buf := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	//nolint:gosec // mapped range is valid until Unmap
	copy(unsafe.Slice((*byte)(buf.GetMappedRange(0, size)), size), data)
	buf.Unmap()
	return buf
}

// download copies size bytes of src into dst through a mappable staging buffer.
func (b *Backend) download(src *wgpu.Buffer, dst []byte) error {
	size := uint64(len(dst))
	staging := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	enc := b.device.CreateCommandEncoder(nil)
	enc.CopyBufferToBuffer(src, 0, staging, 0, size)
	b.queue.Submit(enc.Finish(nil))

	if err := staging.MapAsync(b.device, wgpu.MapModeRead, 0, size); err != nil {
		return fmt.Errorf("map staging buffer: %w", err)
	}
	//nolint:gosec // mapped range is valid until Unmap
	copy(dst, unsafe.Slice((*byte)(staging.GetMappedRange(0, size)), size))
	staging.Unmap()
	return nil
}

// paramsFunc builds the uniform payload of a shader once the dispatch
// row span is known.
type paramsFunc func(rowSpan uint32) []byte

// dispatch runs one shader invocation per element of out and writes the
// result into out.
//
// Bindings are assigned in order: inputs, then out, then the uniform params.
func (b *Backend) dispatch(op, code string, inputs [][]byte, out *tensor.RawTensor, params paramsFunc) {
	k := b.kernelFor(op, code)

	entries := make([]wgpu.BindGroupEntry, 0, len(inputs)+2)
	bind := func(buf *wgpu.Buffer, size uint64) {
		//nolint:gosec // G115: binding index is small
		entries = append(entries, wgpu.BufferBindingEntry(uint32(len(entries)), buf, 0, size))
	}

	for _, data := range inputs {
		buf := b.upload(data, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc, 4)
		defer buf.Release()
		bind(buf, uint64(len(data)))
	}

	//nolint:gosec // G115: ByteSize() is non-negative
	outSize := uint64(out.ByteSize())
	result := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  outSize,
	})
	defer result.Release()
	bind(result, outSize)

	gx, gy, rowSpan := dispatchSize(out.NumElements())
	payload := params(rowSpan)
	uniformBuf := b.upload(payload, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst, 16)
	defer uniformBuf.Release()
	bind(uniformBuf, uint64(len(payload)))

	group := b.device.CreateBindGroupSimple(k.pipeline.GetBindGroupLayout(0), entries)
	defer group.Release()

	enc := b.device.CreateCommandEncoder(nil)
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, group, nil)
	pass.DispatchWorkgroups(gx, gy, 1)
	pass.End()
	b.queue.Submit(enc.Finish(nil))

	if err := b.download(result, out.Data()); err != nil {
		panic(fmt.Sprintf("webgpu: %s: %v", op, err))
	}
}
