package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/featnet/internal/tensor"
)

// Initializer fills a kernel of the given shape.
//
// fanIn and fanOut follow the convolution convention
// (channels * receptive field size).
type Initializer int

// Supported kernel initializers.
const (
	// InitXavierUniform draws from U(-sqrt(6/(fan_in+fan_out)), +sqrt(6/(fan_in+fan_out))).
	InitXavierUniform Initializer = iota
	// InitKaimingNormal draws from a normal truncated at two standard deviations
	// with variance 2/fan_out.
	InitKaimingNormal
)

// String returns the initializer name.
func (i Initializer) String() string {
	switch i {
	case InitXavierUniform:
		return "xavier_uniform"
	case InitKaimingNormal:
		return "kaiming_normal"
	default:
		return "unknown"
	}
}

// XavierUniform returns a tensor initialized with the Xavier (Glorot) uniform distribution.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
func XavierUniform[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t
}

// KaimingNormal returns a tensor initialized with He (fan_out) scaling.
//
// Values are drawn from N(0, std^2) truncated to [-2, 2] standard
// deviations, with std chosen so that the truncated distribution has
// variance 2/fan_out.
func KaimingNormal[B tensor.Backend](fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	// Standard deviation of a unit normal truncated to [-2, 2].
	const truncatedStd = 0.87962566103423978
	std := math.Sqrt(2.0/float64(fanOut)) / truncatedStd

	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		v := rng.NormFloat64()
		for math.Abs(v) > 2 {
			v = rng.NormFloat64()
		}
		data[i] = float32(v * std)
	}
	return t
}

// initKernel builds an HWIO kernel [kh, kw, cinG, cout] with the chosen initializer.
func initKernel[B tensor.Backend](init Initializer, kh, kw, cinG, cout int, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	shape := tensor.Shape{kh, kw, cinG, cout}
	receptive := kh * kw
	switch init {
	case InitKaimingNormal:
		return KaimingNormal(cout*receptive, shape, rng, backend)
	default:
		return XavierUniform(cinG*receptive, cout*receptive, shape, rng, backend)
	}
}

// Zeros returns a zero-filled parameter tensor.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones returns a parameter tensor filled with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}
