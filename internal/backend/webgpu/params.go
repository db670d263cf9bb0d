package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/born-ml/featnet/internal/tensor"
)

// workgroupSize is the number of threads per workgroup in every shader.
const workgroupSize = 256

// maxWorkgroupsPerDim is the WebGPU limit on workgroups along one dispatch axis.
const maxWorkgroupsPerDim = 65535

// dispatchSize splits n invocations into a 2D grid of workgroups.
// rowSpan is the number of invocations covered by one grid row; shaders
// compute idx = gid.y*rowSpan + gid.x.
func dispatchSize(n int) (x, y, rowSpan uint32) {
	groups := (n + workgroupSize - 1) / workgroupSize
	if groups == 0 {
		groups = 1
	}
	gx := groups
	gy := 1
	if gx > maxWorkgroupsPerDim {
		gx = maxWorkgroupsPerDim
		gy = (groups + gx - 1) / gx
	}
	//nolint:gosec // G115: bounded by maxWorkgroupsPerDim
	return uint32(gx), uint32(gy), uint32(gx * workgroupSize)
}

// uniform packs 32-bit words into a 16-byte aligned uniform buffer payload.
type uniform struct {
	words []uint32
}

func (u *uniform) u32(v int) *uniform {
	//nolint:gosec // G115: tensor dimensions are non-negative and fit in u32
	u.words = append(u.words, uint32(v))
	return u
}

func (u *uniform) f32(v float64) *uniform {
	u.words = append(u.words, math.Float32bits(float32(v)))
	return u
}

func (u *uniform) bytes() []byte {
	size := (len(u.words)*4 + 15) &^ 15
	if size == 0 {
		size = 16
	}
	out := make([]byte, size)
	for i, w := range u.words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// conv2dGeometry holds the resolved dimensions of one Conv2D call.
type conv2dGeometry struct {
	N, H, W, CIn int
	KH, KW, CInG int
	COut, COutG  int
	HOut, WOut   int
	Stride, Pad  int
	Dil, Groups  int
}

// resolveConv2D validates a Conv2D call and computes its geometry.
// Panics on malformed arguments like every backend primitive.
func resolveConv2D(input, kernel *tensor.RawTensor, p tensor.Conv2DParams) conv2dGeometry {
	in, k := input.Shape(), kernel.Shape()
	if len(in) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,H,W,C], got %v", in))
	}
	if len(k) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D kernel [KH,KW,Cin/G,Cout], got %v", k))
	}
	if p.Stride < 1 || p.Padding < 0 || p.Dilation < 1 || p.Groups < 1 {
		panic(fmt.Sprintf("conv2d: invalid params %+v", p))
	}

	g := conv2dGeometry{
		N: in[0], H: in[1], W: in[2], CIn: in[3],
		KH: k[0], KW: k[1], CInG: k[2], COut: k[3],
		Stride: p.Stride, Pad: p.Padding, Dil: p.Dilation, Groups: p.Groups,
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
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d", g.HOut, g.WOut))
	}
	return g
}

// uniform returns the Conv2D shader parameters in declaration order.
func (g conv2dGeometry) uniform(rowSpan uint32) []byte {
	u := &uniform{}
	u.u32(g.N * g.HOut * g.WOut * g.COut).u32(int(rowSpan))
	u.u32(g.H).u32(g.W).u32(g.CIn)
	u.u32(g.HOut).u32(g.WOut).u32(g.COut)
	u.u32(g.KH).u32(g.KW).u32(g.CInG).u32(g.COutG)
	u.u32(g.Stride).u32(g.Pad).u32(g.Dil)
	return u.bytes()
}

// channelsOf panics unless x is a 4D NHWC tensor and returns its channel count.
func channelsOf(op string, x *tensor.RawTensor) int {
	if len(x.Shape()) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,H,W,C], got %dD", op, len(x.Shape())))
	}
	return x.Shape()[3]
}

func checkChannelVector(op, name string, v *tensor.RawTensor, c int) {
	if len(v.Shape()) != 1 || v.Shape()[0] != c {
		panic(fmt.Sprintf("%s: %s must have shape [%d], got %v", op, name, c, v.Shape()))
	}
}

// batchNormMultiplier folds scale and variance into one per-channel factor:
// mul = scale / sqrt(variance + eps).
func batchNormMultiplier(scale, variance []float32, eps float64) []float32 {
	mul := make([]float32, len(scale))
	for c := range mul {
		mul[c] = scale[c] * float32(1/math.Sqrt(float64(variance[c])+eps))
	}
	return mul
}

// float32Bytes returns the little-endian encoding of v.
func float32Bytes(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}
