package nn

import (
	"math"
	"math/rand/v2"

	"github.com/born-ml/coursework/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// Parameters:
//   - fanIn: Number of input units
//   - fanOut: Number of output units
//   - shape: Shape of the weight tensor
//   - rng: Random source
//   - backend: Backend to use for tensor creation
//
// Returns a tensor initialized with Xavier distribution.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[B] {
	bound := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))
	return tensor.RandUniform(shape, -bound, bound, rng, backend)
}

// FanInUniform draws from U(-1/sqrt(fan_in), 1/sqrt(fan_in)), the default
// initialisation PyTorch uses for Linear, Conv2d and LSTM weights and biases.
func FanInUniform[B tensor.Backend](fanIn int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[B] {
	bound := float32(1 / math.Sqrt(float64(fanIn)))
	return tensor.RandUniform(shape, -bound, bound, rng, backend)
}

// Normal draws from N(mean, std²).
func Normal[B tensor.Backend](mean, std float32, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[B] {
	return tensor.Randn(shape, mean, std, rng, backend)
}
