package cpu

import (
	"fmt"

	"github.com/born-ml/featnet/internal/tensor"
)

// ResizeNearest resizes x [N,H,W,C] to [N,outH,outW,C] by nearest-neighbor sampling.
//
// Destination pixel (y, x) copies source pixel (y*H/outH, x*W/outW) using
// integer division. For an exact 2x upsample this is (y/2, x/2).
func (cpu *CPUBackend) ResizeNearest(x *tensor.RawTensor, outH, outW int) *tensor.RawTensor {
	checkNHWC("resize_nearest", x)
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("resize_nearest: invalid output size %dx%d", outH, outW))
	}

	s := x.Shape()
	result := tensor.MustNewRaw(tensor.Shape{s[0], outH, outW, s[3]}, x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		resizeNearest(tensor.Floats[float32](result), tensor.Floats[float32](x), s, outH, outW)
	case tensor.Float64:
		resizeNearest(tensor.Floats[float64](result), tensor.Floats[float64](x), s, outH, outW)
	default:
		panic(fmt.Sprintf("resize_nearest: unsupported dtype %s", x.DType()))
	}

	return result
}

func resizeNearest[T tensor.DType](dst, src []T, s tensor.Shape, outH, outW int) {
	n, h, w, c := s[0], s[1], s[2], s[3]

	out := 0
	for b := 0; b < n; b++ {
		for y := 0; y < outH; y++ {
			sy := y * h / outH
			for xx := 0; xx < outW; xx++ {
				sx := xx * w / outW
				base := ((b*h+sy)*w + sx) * c
				copy(dst[out:out+c], src[base:base+c])
				out += c
			}
		}
	}
}
