package cpu

import (
	"fmt"

	"github.com/born-ml/featnet/internal/parallel"
	"github.com/born-ml/featnet/internal/tensor"
)

// conv2dGeometry holds the resolved dimensions of one Conv2D call.
type conv2dGeometry struct {
	N, H, W, CIn      int // input
	KH, KW, CInG      int // kernel spatial size, input channels per group
	COut, COutG       int // output channels, output channels per group
	HOut, WOut        int // output spatial size
	Stride, Pad, Dil  int
	Groups            int
	inRow, inImg      int // input strides (row, image)
	outRow, outImg    int // output strides (row, image)
	kernRow, kernCell int // kernel strides (kh, kw)
}

// Conv2D performs a direct 2D convolution over NHWC input.
//
// Input shape:  [N, H, W, C_in]
// Kernel shape: [K_h, K_w, C_in/groups, C_out]
// Output shape: [N, H_out, W_out, C_out]
//
// Where:
//
//	H_out = (H + 2*padding - dilation*(K_h-1) - 1) / stride + 1
//
// Output channel o belongs to group o/(C_out/groups) and reads only that
// group's input channels. The reduction for one output element runs over
// (kh, kw, ci) in that order.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, p tensor.Conv2DParams) *tensor.RawTensor {
	g := resolveConv2D(input, kernel, p)

	output := tensor.MustNewRaw(tensor.Shape{g.N, g.HOut, g.WOut, g.COut}, input.DType(), cpu.device)

	// Dispatch to type-specific implementation
	switch input.DType() {
	case tensor.Float32:
		conv2dNHWC(tensor.Floats[float32](output), tensor.Floats[float32](input), tensor.Floats[float32](kernel), g, cpu.parallel)
	case tensor.Float64:
		conv2dNHWC(tensor.Floats[float64](output), tensor.Floats[float64](input), tensor.Floats[float64](kernel), g, cpu.parallel)
	default:
		panic(fmt.Sprintf("conv2d: unsupported dtype %s", input.DType()))
	}

	return output
}

func resolveConv2D(input, kernel *tensor.RawTensor, p tensor.Conv2DParams) conv2dGeometry {
	checkNHWC("conv2d", input)
	inputShape := input.Shape()
	kernelShape := kernel.Shape()
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [K_h,K_w,C_in/G,C_out], got %dD", len(kernelShape)))
	}
	if input.DType() != kernel.DType() {
		panic(fmt.Sprintf("conv2d: dtype mismatch input=%s kernel=%s", input.DType(), kernel.DType()))
	}
	if p.Stride < 1 || p.Dilation < 1 || p.Groups < 1 || p.Padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid params %+v", p))
	}

	g := conv2dGeometry{
		N:      inputShape[0],
		H:      inputShape[1],
		W:      inputShape[2],
		CIn:    inputShape[3],
		KH:     kernelShape[0],
		KW:     kernelShape[1],
		CInG:   kernelShape[2],
		COut:   kernelShape[3],
		Stride: p.Stride,
		Pad:    p.Padding,
		Dil:    p.Dilation,
		Groups: p.Groups,
	}

	if g.CIn%g.Groups != 0 || g.COut%g.Groups != 0 {
		panic(fmt.Sprintf("conv2d: channels in=%d out=%d not divisible by groups=%d", g.CIn, g.COut, g.Groups))
	}
	if g.CIn/g.Groups != g.CInG {
		panic(fmt.Sprintf("conv2d: input channels per group %d != kernel channels %d", g.CIn/g.Groups, g.CInG))
	}
	g.COutG = g.COut / g.Groups

	g.HOut = tensor.ConvOutputSize(g.H, g.KH, g.Stride, g.Pad, g.Dil)
	g.WOut = tensor.ConvOutputSize(g.W, g.KW, g.Stride, g.Pad, g.Dil)
	if g.HOut <= 0 || g.WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", g.HOut, g.WOut))
	}

	g.inRow = g.W * g.CIn
	g.inImg = g.H * g.inRow
	g.outRow = g.WOut * g.COut
	g.outImg = g.HOut * g.outRow
	g.kernCell = g.CInG * g.COut
	g.kernRow = g.KW * g.kernCell

	return g
}

// conv2dNHWC computes one output row per work item.
func conv2dNHWC[T tensor.DType](out, in, kern []T, g conv2dGeometry, cfg parallel.Config) {
	parallel.ForBatch(g.N, g.HOut, func(n, oh int) {
		acc := make([]T, g.COut)
		ihBase := oh*g.Stride - g.Pad

		for ow := 0; ow < g.WOut; ow++ {
			iwBase := ow*g.Stride - g.Pad
			clear(acc)

			for kh := 0; kh < g.KH; kh++ {
				ih := ihBase + kh*g.Dil
				if ih < 0 || ih >= g.H {
					continue
				}
				for kw := 0; kw < g.KW; kw++ {
					iw := iwBase + kw*g.Dil
					if iw < 0 || iw >= g.W {
						continue
					}
					pixel := in[n*g.inImg+ih*g.inRow+iw*g.CIn:]
					cell := kern[kh*g.kernRow+kw*g.kernCell:]

					for grp := 0; grp < g.Groups; grp++ {
						oLo := grp * g.COutG
						for ci := 0; ci < g.CInG; ci++ {
							v := pixel[grp*g.CInG+ci]
							w := cell[ci*g.COut+oLo : ci*g.COut+oLo+g.COutG]
							a := acc[oLo : oLo+g.COutG]
							for o := range a {
								a[o] += v * w[o]
							}
						}
					}
				}
			}

			copy(out[n*g.outImg+oh*g.outRow+ow*g.COut:], acc)
		}
	}, cfg)
}
